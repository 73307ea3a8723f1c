package exportrouter

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/goliatone/go-report-export/export"
	"github.com/goliatone/go-router"
)

var _ http.ResponseWriter = (*bufferedResponse)(nil)

// newRequest rebuilds a net/http request from a router context that does not
// expose one.
func newRequest(c router.Context) (*http.Request, error) {
	target := strings.TrimSpace(c.OriginalURL())
	if target == "" {
		target = c.Path()
	}
	req, err := http.NewRequestWithContext(c.Context(), c.Method(), target, bytes.NewReader(c.Body()))
	if err != nil {
		return nil, export.NewError(export.KindValidation, "invalid request", err)
	}
	for _, name := range []string{"Content-Type", "Accept"} {
		if value := c.Header(name); value != "" {
			req.Header.Set(name, value)
		}
	}
	return req, nil
}

// bufferedResponse collects a response for routers that only accept a
// complete body.
type bufferedResponse struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func newBufferedResponse() *bufferedResponse {
	return &bufferedResponse{header: make(http.Header)}
}

func (res *bufferedResponse) Header() http.Header {
	return res.header
}

func (res *bufferedResponse) WriteHeader(status int) {
	if res.status != 0 {
		return
	}
	res.status = status
}

func (res *bufferedResponse) Write(data []byte) (int, error) {
	if res.status == 0 {
		res.status = http.StatusOK
	}
	return res.body.Write(data)
}

func (res *bufferedResponse) flush(c router.Context) error {
	for name, values := range res.header {
		if len(values) == 0 {
			continue
		}
		c.SetHeader(name, values[len(values)-1])
	}
	status := res.status
	if status == 0 {
		status = http.StatusOK
	}
	c.Status(status)
	return c.Send(res.body.Bytes())
}

package exportrouter

import (
	exporthttp "github.com/goliatone/go-report-export/adapters/http"
	"github.com/goliatone/go-report-export/export"
	"github.com/goliatone/go-router"
)

// Config configures the go-router adapter.
type Config = exporthttp.Config

// Handler exposes the report endpoints on go-router.
type Handler struct {
	http *exporthttp.Handler
}

// NewHandler creates a go-router handler. It fails on the same configuration
// errors as the net/http handler.
func NewHandler(cfg Config) (*Handler, error) {
	handler, err := exporthttp.NewHandler(cfg)
	if err != nil {
		return nil, err
	}
	return &Handler{http: handler}, nil
}

// RegisterRoutes registers routes on a compatible go-router router.
func (h *Handler) RegisterRoutes(router any) {
	r, ok := router.(routeRegistrar)
	if !ok {
		return
	}
	base := h.basePath()

	r.Post(base+"/document", h.Handle)
	r.Post(base+"/workbook", h.Handle)
	r.Get(base+"/artifacts/:id/:filename", h.Handle)
}

// Handle runs the shared report workflow.
func (h *Handler) Handle(c router.Context) error {
	if c == nil {
		return nil
	}
	if h == nil || h.http == nil {
		res := newBufferedResponse()
		exporthttp.WriteError(res, export.NewError(export.KindInternal, "handler is nil", nil))
		return res.flush(c)
	}

	if httpCtx, ok := router.AsHTTPContext(c); ok && httpCtx.Request() != nil && httpCtx.Response() != nil {
		h.http.ServeHTTP(httpCtx.Response(), httpCtx.Request())
		return nil
	}

	res := newBufferedResponse()
	req, err := newRequest(c)
	if err != nil {
		exporthttp.WriteError(res, err)
		return res.flush(c)
	}
	h.http.ServeHTTP(res, req)
	return res.flush(c)
}

func (h *Handler) basePath() string {
	if h == nil || h.http == nil {
		return "/reports"
	}
	return h.http.BasePath()
}

type routeRegistrar interface {
	Get(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Post(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
}

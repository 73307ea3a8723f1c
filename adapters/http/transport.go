package exporthttp

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"sync"

	"github.com/goliatone/go-report-export/export"
)

// DownloadStore is a single-use ArtifactStore that answers an HTTP request
// with the stored artifact as an attachment.
type DownloadStore struct {
	w http.ResponseWriter

	mu      sync.Mutex
	written bool
}

// NewDownloadStore wraps w.
func NewDownloadStore(w http.ResponseWriter) *DownloadStore {
	return &DownloadStore{w: w}
}

// Put writes the artifact headers and body to the response.
func (s *DownloadStore) Put(ctx context.Context, key string, r io.Reader, meta export.ArtifactMeta) (export.ArtifactRef, error) {
	if err := ctx.Err(); err != nil {
		return export.ArtifactRef{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.written {
		return export.ArtifactRef{}, export.NewError(export.KindPersistence, "response already written", nil)
	}
	s.written = true

	n, err := writeAttachment(s.w, key, meta, r)
	if err != nil {
		return export.ArtifactRef{}, export.NewError(export.KindPersistence, "write download", err)
	}
	meta.Size = n
	return export.ArtifactRef{Key: key, Meta: meta}, nil
}

// Written reports whether the response has been started.
func (s *DownloadStore) Written() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.written
}

func writeAttachment(w http.ResponseWriter, key string, meta export.ArtifactMeta, r io.Reader) (int64, error) {
	contentType := meta.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header := w.Header()
	header.Set("Content-Type", contentType)
	if meta.Filename != "" {
		header.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": meta.Filename}))
	} else {
		header.Set("Content-Disposition", "attachment")
	}
	if meta.Size > 0 {
		header.Set("Content-Length", strconv.FormatInt(meta.Size, 10))
	}
	if key != "" {
		header.Set("X-Report-Key", key)
	}
	w.WriteHeader(http.StatusOK)

	n, err := io.Copy(w, r)
	if err != nil {
		return n, fmt.Errorf("copy artifact: %w", err)
	}
	return n, nil
}

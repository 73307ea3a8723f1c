package exporthttp

import (
	"net/http"
	"strings"

	"github.com/goliatone/go-report-export/export"
)

const defaultBasePath = "/reports"

// Config configures the HTTP adapter.
type Config struct {
	// Exporter is the template for per-request exporters. Its Store is
	// replaced by a DownloadStore for each request.
	Exporter export.Config
	// Artifacts serves previously stored artifacts when set.
	Artifacts    export.ArtifactOpener
	BasePath     string
	MaxBodyBytes int64
}

// Handler exposes report export endpoints:
//
//	POST {base}/document        dataset JSON in, PDF attachment out
//	POST {base}/workbook        dataset JSON in, XLSX attachment out
//	GET  {base}/artifacts/{key} stored artifact download
type Handler struct {
	cfg Config
}

// NewHandler validates cfg by building an exporter from it.
func NewHandler(cfg Config) (*Handler, error) {
	if _, err := export.NewExporter(cfg.Exporter); err != nil {
		return nil, err
	}
	if cfg.Exporter.Logger == nil {
		cfg.Exporter.Logger = export.NopLogger{}
	}
	return &Handler{cfg: cfg}, nil
}

// RegisterRoutes registers handlers on a compatible router.
func (h *Handler) RegisterRoutes(router any) {
	switch r := router.(type) {
	case interface{ Handle(string, http.Handler) }:
		r.Handle(h.basePath()+"/", h)
	case interface {
		HandleFunc(string, func(http.ResponseWriter, *http.Request))
	}:
		r.HandleFunc(h.basePath()+"/", h.ServeHTTP)
	}
}

// ServeHTTP routes report endpoints.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if w == nil {
		return
	}
	if h == nil {
		WriteError(w, export.NewError(export.KindInternal, "handler is nil", nil))
		return
	}

	rest, ok := strings.CutPrefix(r.URL.Path, h.basePath()+"/")
	if !ok {
		WriteError(w, export.NewError(export.KindNotFound, "route not found", nil))
		return
	}

	switch {
	case rest == "document" || rest == "workbook":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, http.MethodPost)
			return
		}
		h.export(w, r, rest == "document")
	case strings.HasPrefix(rest, "artifacts/"):
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			methodNotAllowed(w, http.MethodGet)
			return
		}
		h.download(w, r, strings.TrimPrefix(rest, "artifacts/"))
	default:
		WriteError(w, export.NewError(export.KindNotFound, "route not found", nil))
	}
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request, document bool) {
	ds, err := DecodeDataset(r, h.cfg.MaxBodyBytes)
	if err != nil {
		WriteError(w, err)
		return
	}

	store := NewDownloadStore(w)
	cfg := h.cfg.Exporter
	cfg.Store = store
	exporter, err := export.NewExporter(cfg)
	if err != nil {
		WriteError(w, err)
		return
	}

	if document {
		_, err = exporter.ExportDocument(r.Context(), ds)
	} else {
		_, err = exporter.ExportWorkbook(r.Context(), ds)
	}
	if err != nil {
		if store.Written() {
			// headers are gone; the client sees a truncated body
			cfg.Logger.Errorf("report download interrupted: %v", err)
			return
		}
		WriteError(w, err)
	}
}

func (h *Handler) download(w http.ResponseWriter, r *http.Request, key string) {
	if h.cfg.Artifacts == nil {
		WriteError(w, export.NewError(export.KindNotFound, "artifact downloads are not enabled", nil))
		return
	}
	if key == "" {
		WriteError(w, export.NewError(export.KindValidation, "artifact key is required", nil))
		return
	}

	reader, meta, err := h.cfg.Artifacts.Open(r.Context(), key)
	if err != nil {
		WriteError(w, err)
		return
	}
	defer reader.Close()

	if _, err := writeAttachment(w, key, meta, reader); err != nil {
		h.cfg.Exporter.Logger.Errorf("artifact download %q interrupted: %v", key, err)
	}
}

// BasePath returns the route prefix the handler serves.
func (h *Handler) BasePath() string {
	if h == nil {
		return defaultBasePath
	}
	return h.basePath()
}

func (h *Handler) basePath() string {
	path := strings.TrimRight(strings.TrimSpace(h.cfg.BasePath), "/")
	if path == "" {
		return defaultBasePath
	}
	return path
}

func methodNotAllowed(w http.ResponseWriter, allow string) {
	w.Header().Set("Allow", allow)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusMethodNotAllowed)
	_, _ = w.Write([]byte(`{"error":{"message":"method not allowed","code":"method_not_allowed"}}` + "\n"))
}

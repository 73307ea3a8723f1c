package command

import (
	"context"

	gcmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-report-export/export"
)

// Exporter runs the report pipelines.
type Exporter interface {
	ExportDocument(ctx context.Context, ds export.Dataset) (export.Artifact, error)
	ExportWorkbook(ctx context.Context, ds export.Dataset) (export.Artifact, error)
}

// ExportDocumentHandler handles document exports.
type ExportDocumentHandler struct {
	Exporter Exporter
}

func NewExportDocumentHandler(exp Exporter) *ExportDocumentHandler {
	return &ExportDocumentHandler{Exporter: exp}
}

func (h *ExportDocumentHandler) Execute(ctx context.Context, msg ExportDocument) error {
	if h == nil || h.Exporter == nil {
		return exporterRequired()
	}
	artifact, err := h.Exporter.ExportDocument(ctx, msg.Dataset)
	if err != nil {
		return err
	}
	storeResult(ctx, msg.Result, artifact)
	return nil
}

// ExportWorkbookHandler handles workbook exports.
type ExportWorkbookHandler struct {
	Exporter Exporter
}

func NewExportWorkbookHandler(exp Exporter) *ExportWorkbookHandler {
	return &ExportWorkbookHandler{Exporter: exp}
}

func (h *ExportWorkbookHandler) Execute(ctx context.Context, msg ExportWorkbook) error {
	if h == nil || h.Exporter == nil {
		return exporterRequired()
	}
	artifact, err := h.Exporter.ExportWorkbook(ctx, msg.Dataset)
	if err != nil {
		return err
	}
	storeResult(ctx, msg.Result, artifact)
	return nil
}

func storeResult(ctx context.Context, dst *export.Artifact, artifact export.Artifact) {
	if dst != nil {
		*dst = artifact
	}
	if res := gcmd.ResultFromContext[export.Artifact](ctx); res != nil {
		res.Store(artifact)
	}
}

func exporterRequired() error {
	return errors.New("report exporter is required", errors.CategoryInternal).
		WithTextCode("EXPORTER_REQUIRED")
}

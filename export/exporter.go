package export

import (
	"bytes"
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Config configures an Exporter.
type Config struct {
	// Store receives finished artifacts. When nil the artifact bytes are only
	// returned to the caller.
	Store ArtifactStore
	// DocumentRenderer draws PDF documents. ExportDocument fails without one.
	DocumentRenderer DocumentRenderer
	Layout           DocumentLayout
	Workbook         WorkbookOptions
	Format           FormatOptions
	// FilenameTemplate is a text/template over .Title, .Date and .Format.
	FilenameTemplate string
	Logger           Logger
	Now              func() time.Time
	IDGenerator      func() string
}

// Exporter runs the document and workbook pipelines.
type Exporter struct {
	store            ArtifactStore
	documentRenderer DocumentRenderer
	workbook         WorkbookRenderer
	layout           DocumentLayout
	formatter        Formatter
	filenameTemplate string
	logger           Logger
	now              func() time.Time
	newID            func() string
}

// NewExporter resolves cfg. An unknown locale or time zone is a validation error.
func NewExporter(cfg Config) (*Exporter, error) {
	formatter, err := NewFormatter(cfg.Format)
	if err != nil {
		return nil, AsGoError(err)
	}

	workbook := DefaultWorkbookOptions()
	if cfg.Workbook.ColumnWidth > 0 {
		workbook.ColumnWidth = cfg.Workbook.ColumnWidth
	}
	if cfg.Workbook.Creator != "" {
		workbook.Creator = cfg.Workbook.Creator
	}
	workbook.PlainHeader = cfg.Workbook.PlainHeader

	layout := DefaultDocumentLayout().Merge(cfg.Layout)
	if _, err := layout.Page(); err != nil {
		return nil, AsGoError(NewError(KindValidation, "invalid document layout", err))
	}

	exp := &Exporter{
		store:            cfg.Store,
		documentRenderer: cfg.DocumentRenderer,
		workbook:         WorkbookRenderer{Options: workbook},
		layout:           layout,
		formatter:        formatter,
		filenameTemplate: strings.TrimSpace(cfg.FilenameTemplate),
		logger:           cfg.Logger,
		now:              cfg.Now,
		newID:            cfg.IDGenerator,
	}
	if exp.filenameTemplate == "" {
		exp.filenameTemplate = DefaultFilenameTemplate
	}
	if exp.logger == nil {
		exp.logger = NopLogger{}
	}
	if exp.now == nil {
		exp.now = time.Now
	}
	if exp.newID == nil {
		exp.newID = uuid.NewString
	}
	return exp, nil
}

// Formatter returns the resolved value formatter.
func (e *Exporter) Formatter() Formatter {
	return e.formatter
}

// ExportDocument renders ds as a paginated PDF document. Any failure is
// reported as a *PipelineError matching ErrDocumentExport.
func (e *Exporter) ExportDocument(ctx context.Context, ds Dataset) (Artifact, error) {
	if e == nil {
		return Artifact{}, newPipelineError(FormatPDF, NewError(KindInternal, "exporter is nil", nil))
	}
	artifact, err := e.exportDocument(ctx, ds)
	if err != nil {
		e.logger.Errorf("document export %q failed: %v", ds.Title, err)
		return Artifact{}, newPipelineError(FormatPDF, err)
	}
	e.logger.Infof("document export %q ready: file=%s rows=%d pages=%d bytes=%d",
		ds.Title, artifact.Filename, artifact.Rows, artifact.Pages, artifact.Size)
	return artifact, nil
}

// ExportWorkbook renders ds as a single-sheet XLSX workbook. Any failure is
// reported as a *PipelineError matching ErrWorkbookExport.
func (e *Exporter) ExportWorkbook(ctx context.Context, ds Dataset) (Artifact, error) {
	if e == nil {
		return Artifact{}, newPipelineError(FormatXLSX, NewError(KindInternal, "exporter is nil", nil))
	}
	artifact, err := e.exportWorkbook(ctx, ds)
	if err != nil {
		e.logger.Errorf("workbook export %q failed: %v", ds.Title, err)
		return Artifact{}, newPipelineError(FormatXLSX, err)
	}
	e.logger.Infof("workbook export %q ready: file=%s rows=%d bytes=%d",
		ds.Title, artifact.Filename, artifact.Rows, artifact.Size)
	return artifact, nil
}

func (e *Exporter) exportDocument(ctx context.Context, ds Dataset) (Artifact, error) {
	if err := ctx.Err(); err != nil {
		return Artifact{}, err
	}
	if e.documentRenderer == nil {
		return Artifact{}, NewError(KindInternal, "document renderer is not configured", nil)
	}

	now := e.now()
	e.logger.Debugf("document export %q: columns=%d rows=%d", ds.Title, len(ds.Headers), len(ds.Rows))

	doc, err := BuildDocument(ds, e.formatter, e.layout, now)
	if err != nil {
		return Artifact{}, err
	}
	filename, err := documentFilename(e.filenameTemplate, ds.Title, now, e.formatter)
	if err != nil {
		return Artifact{}, NewError(KindRender, "document filename", err)
	}

	var buf bytes.Buffer
	stats, err := e.documentRenderer.RenderDocument(ctx, doc, &buf)
	if err != nil {
		return Artifact{}, err
	}
	if stats.Pages == 0 {
		stats.Pages = 1
	}
	stats.Rows = int64(len(doc.Rows))

	return e.finish(ctx, FormatPDF, filename, now, stats, buf.Bytes())
}

func (e *Exporter) exportWorkbook(ctx context.Context, ds Dataset) (Artifact, error) {
	if err := ctx.Err(); err != nil {
		return Artifact{}, err
	}

	now := e.now()
	e.logger.Debugf("workbook export %q: columns=%d rows=%d", ds.Title, len(ds.Headers), len(ds.Rows))

	grid, err := BuildGrid(ds.Headers, ds.Rows, e.formatter)
	if err != nil {
		return Artifact{}, err
	}
	filename, err := workbookFilename(e.filenameTemplate, ds.Title, now)
	if err != nil {
		return Artifact{}, NewError(KindRender, "workbook filename", err)
	}

	var buf bytes.Buffer
	stats, err := e.workbook.Render(ctx, grid, SheetName(ds.Title), now, &buf)
	if err != nil {
		return Artifact{}, err
	}

	return e.finish(ctx, FormatXLSX, filename, now, stats, buf.Bytes())
}

func (e *Exporter) finish(ctx context.Context, format Format, filename string, now time.Time, stats RenderStats, data []byte) (Artifact, error) {
	artifact := Artifact{
		ID:          e.newID(),
		Format:      format,
		Filename:    filename,
		ContentType: ContentTypeFor(format),
		Size:        int64(len(data)),
		Rows:        int(stats.Rows),
		Pages:       stats.Pages,
		GeneratedAt: now,
		Data:        data,
	}

	if e.store == nil {
		return artifact, nil
	}

	key := artifact.ID + "/" + filename
	ref, err := e.store.Put(ctx, key, bytes.NewReader(data), ArtifactMeta{
		ContentType: artifact.ContentType,
		Size:        artifact.Size,
		Filename:    filename,
		CreatedAt:   now,
	})
	if err != nil {
		return Artifact{}, NewError(KindPersistence, "artifact store put", err)
	}
	artifact.Ref = ref
	return artifact, nil
}

// ContentTypeFor returns the MIME type of an export format.
func ContentTypeFor(format Format) string {
	switch format {
	case FormatPDF:
		return "application/pdf"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/octet-stream"
	}
}

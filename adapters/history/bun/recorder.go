package historybun

import (
	"context"
	"strings"

	"github.com/goliatone/go-errors"
	reportcmd "github.com/goliatone/go-report-export/command"
	"github.com/goliatone/go-report-export/export"
)

// Recorder wraps an exporter and records every export in a Store. History
// write failures are logged and never change the export result. Exports
// running for a queued report are keyed by its report ID, so retries update
// one entry and the last attempt wins.
type Recorder struct {
	Exporter reportcmd.Exporter
	History  *Store
	Logger   export.Logger
}

var _ reportcmd.Exporter = (*Recorder)(nil)

// NewRecorder creates a history recorder.
func NewRecorder(exp reportcmd.Exporter, history *Store, logger export.Logger) *Recorder {
	if logger == nil {
		logger = export.NopLogger{}
	}
	return &Recorder{Exporter: exp, History: history, Logger: logger}
}

// ExportDocument runs and records a document export.
func (r *Recorder) ExportDocument(ctx context.Context, ds export.Dataset) (export.Artifact, error) {
	if r == nil || r.Exporter == nil {
		return export.Artifact{}, export.NewError(export.KindInternal, "recorder exporter is nil", nil)
	}
	artifact, err := r.Exporter.ExportDocument(ctx, ds)
	r.record(ctx, export.FormatPDF, ds.Title, artifact, err)
	return artifact, err
}

// ExportWorkbook runs and records a workbook export.
func (r *Recorder) ExportWorkbook(ctx context.Context, ds export.Dataset) (export.Artifact, error) {
	if r == nil || r.Exporter == nil {
		return export.Artifact{}, export.NewError(export.KindInternal, "recorder exporter is nil", nil)
	}
	artifact, err := r.Exporter.ExportWorkbook(ctx, ds)
	r.record(ctx, export.FormatXLSX, ds.Title, artifact, err)
	return artifact, err
}

func (r *Recorder) record(ctx context.Context, format export.Format, title string, artifact export.Artifact, exportErr error) {
	if r.History == nil {
		return
	}

	id := artifact.ID
	if reportID := reportcmd.ReportIDFromContext(ctx); reportID != "" {
		id = reportID
	}
	entry := Entry{
		ID:     id,
		Title:  title,
		Format: format,
		State:  StateCompleted,
	}
	if exportErr != nil {
		entry.State = StateFailed
		entry.ErrorKind = export.KindFromError(exportErr)
	} else {
		entry.Filename = artifact.Filename
		entry.ArtifactKey = artifact.Ref.Key
		entry.Rows = int64(artifact.Rows)
		entry.Pages = int64(artifact.Pages)
		entry.Size = artifact.Size
		entry.CreatedAt = artifact.GeneratedAt
	}

	// Canceled exports are still recorded.
	if _, err := r.History.Record(context.WithoutCancel(ctx), entry); err != nil {
		r.logger().Errorf("report history %q not recorded: %v", title, err)
	}
}

func (r *Recorder) logger() export.Logger {
	if r.Logger == nil {
		return export.NopLogger{}
	}
	return r.Logger
}

// ListReports queries recorded exports.
type ListReports struct {
	Format export.Format
	State  State
	Limit  int
}

func (ListReports) Type() string { return "report:history" }

func (msg ListReports) Validate() error {
	switch export.Format(strings.ToLower(string(msg.Format))) {
	case "", export.FormatPDF, export.FormatXLSX:
	default:
		return errors.New("unsupported report format", errors.CategoryValidation).
			WithTextCode("FORMAT_UNSUPPORTED")
	}
	switch msg.State {
	case "", StateCompleted, StateFailed:
	default:
		return errors.New("unsupported report state", errors.CategoryValidation).
			WithTextCode("STATE_UNSUPPORTED")
	}
	if msg.Limit < 0 {
		return errors.New("limit must not be negative", errors.CategoryValidation).
			WithTextCode("LIMIT_INVALID")
	}
	return nil
}

// ListReportsHandler answers ListReports from a Store.
type ListReportsHandler struct {
	History *Store
}

func NewListReportsHandler(history *Store) *ListReportsHandler {
	return &ListReportsHandler{History: history}
}

func (h *ListReportsHandler) Query(ctx context.Context, msg ListReports) ([]Entry, error) {
	if h == nil || h.History == nil {
		return nil, errors.New("report history is required", errors.CategoryInternal).
			WithTextCode("HISTORY_REQUIRED")
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	entries, err := h.History.List(ctx, Filter{
		Format: export.Format(strings.ToLower(string(msg.Format))),
		State:  msg.State,
		Limit:  msg.Limit,
	})
	if err != nil {
		return nil, export.AsGoError(err)
	}
	return entries, nil
}

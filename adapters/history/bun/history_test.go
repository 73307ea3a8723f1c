package historybun

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	reportcmd "github.com/goliatone/go-report-export/command"
	"github.com/goliatone/go-report-export/export"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

type stubExporter struct {
	artifact export.Artifact
	err      error
}

func (s stubExporter) ExportDocument(ctx context.Context, ds export.Dataset) (export.Artifact, error) {
	return s.artifact, s.err
}

func (s stubExporter) ExportWorkbook(ctx context.Context, ds export.Dataset) (export.Artifact, error) {
	return s.artifact, s.err
}

func TestStore_RecordGetList(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	base := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

	for i, format := range []export.Format{export.FormatPDF, export.FormatXLSX, export.FormatPDF} {
		_, err := store.Record(ctx, Entry{
			ID:        fmt.Sprintf("r%d", i+1),
			Title:     "Sales Report",
			Format:    format,
			Rows:      int64(i + 1),
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		})
		if err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}

	got, err := store.Get(ctx, "r2")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Format != export.FormatXLSX || got.State != StateCompleted || got.Rows != 2 {
		t.Fatalf("unexpected entry %+v", got)
	}

	pdfs, err := store.List(ctx, Filter{Format: export.FormatPDF})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(pdfs) != 2 {
		t.Fatalf("expected 2 pdf entries, got %d", len(pdfs))
	}
	if pdfs[0].ID != "r3" {
		t.Fatalf("expected newest first, got %q", pdfs[0].ID)
	}

	limited, err := store.List(ctx, Filter{Limit: 1})
	if err != nil {
		t.Fatalf("list limited: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(limited))
	}

	since, err := store.List(ctx, Filter{Since: base.Add(90 * time.Minute)})
	if err != nil {
		t.Fatalf("list since: %v", err)
	}
	if len(since) != 1 || since[0].ID != "r3" {
		t.Fatalf("unexpected since result %+v", since)
	}
}

func TestStore_GetDeleteNotFound(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	store.IDGenerator = func() string { return "fixed" }

	id, err := store.Record(ctx, Entry{Title: "Ops", Format: export.FormatXLSX})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if id != "fixed" {
		t.Fatalf("expected generated id, got %q", id)
	}

	if err := store.Delete(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, id); export.KindFromError(err) != export.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := store.Delete(ctx, id); export.KindFromError(err) != export.KindNotFound {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
	if _, err := store.Get(ctx, ""); export.KindFromError(err) != export.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestStore_NotConfigured(t *testing.T) {
	var store *Store
	if _, err := store.Record(context.Background(), Entry{}); export.KindFromError(err) != export.KindInternal {
		t.Fatalf("expected internal error, got %v", err)
	}
}

func TestRecorder_RecordsSuccessAndFailure(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	generated := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

	ok := NewRecorder(stubExporter{artifact: export.Artifact{
		ID:          "a1",
		Format:      export.FormatPDF,
		Filename:    "Sales_Report_1-15-2024.pdf",
		Size:        512,
		Rows:        3,
		Pages:       1,
		GeneratedAt: generated,
		Ref:         export.ArtifactRef{Key: "a1/Sales_Report_1-15-2024.pdf"},
	}}, store, nil)
	if _, err := ok.ExportDocument(ctx, export.Dataset{Title: "Sales Report"}); err != nil {
		t.Fatalf("export document: %v", err)
	}

	got, err := store.Get(ctx, "a1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ArtifactKey != "a1/Sales_Report_1-15-2024.pdf" || got.Pages != 1 || got.Size != 512 {
		t.Fatalf("unexpected entry %+v", got)
	}
	if !got.CreatedAt.Equal(generated) {
		t.Fatalf("expected created at %v, got %v", generated, got.CreatedAt)
	}

	failure := export.NewError(export.KindRender, "sheet", nil)
	failing := NewRecorder(stubExporter{err: failure}, store, nil)
	if _, err := failing.ExportWorkbook(ctx, export.Dataset{Title: "Broken"}); !errors.Is(err, failure) {
		t.Fatalf("expected export error to pass through, got %v", err)
	}

	failed, err := store.List(ctx, Filter{State: StateFailed})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(failed) != 1 {
		t.Fatalf("expected 1 failed entry, got %d", len(failed))
	}
	if failed[0].ErrorKind != export.KindRender || failed[0].Format != export.FormatXLSX || failed[0].Title != "Broken" {
		t.Fatalf("unexpected failed entry %+v", failed[0])
	}
}

func TestRecorder_QueuedRetriesShareReportID(t *testing.T) {
	store := newTestStore(t)
	ctx := reportcmd.WithReportID(context.Background(), "job-7")

	failing := NewRecorder(stubExporter{err: export.NewError(export.KindPersistence, "disk busy", nil)}, store, nil)
	for i := 0; i < 2; i++ {
		if _, err := failing.ExportWorkbook(ctx, export.Dataset{Title: "Ops"}); err == nil {
			t.Fatalf("attempt %d: expected failure", i)
		}
	}

	failed, err := store.Get(ctx, "job-7")
	if err != nil {
		t.Fatalf("get after failures: %v", err)
	}
	if failed.State != StateFailed || failed.ErrorKind != export.KindPersistence {
		t.Fatalf("unexpected failed entry %+v", failed)
	}

	ok := NewRecorder(stubExporter{artifact: export.Artifact{
		ID:       "a9",
		Filename: "Ops_2024-01-15.xlsx",
		Rows:     4,
		Ref:      export.ArtifactRef{Key: "a9/Ops_2024-01-15.xlsx"},
	}}, store, nil)
	if _, err := ok.ExportWorkbook(ctx, export.Dataset{Title: "Ops"}); err != nil {
		t.Fatalf("final attempt: %v", err)
	}

	entries, err := store.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one entry per report, got %d", len(entries))
	}
	got := entries[0]
	if got.ID != "job-7" || got.State != StateCompleted || got.ErrorKind != "" {
		t.Fatalf("expected completed job-7, got %+v", got)
	}
	if got.ArtifactKey != "a9/Ops_2024-01-15.xlsx" || got.Rows != 4 {
		t.Fatalf("expected artifact details, got %+v", got)
	}
}

func TestRecorder_HistoryFailureKeepsResult(t *testing.T) {
	logger := &recordingLogger{}
	recorder := NewRecorder(stubExporter{artifact: export.Artifact{ID: "a1"}}, &Store{}, logger)

	artifact, err := recorder.ExportWorkbook(context.Background(), export.Dataset{Title: "Ops"})
	if err != nil {
		t.Fatalf("expected export success, got %v", err)
	}
	if artifact.ID != "a1" {
		t.Fatalf("unexpected artifact %+v", artifact)
	}
	if len(logger.errors) != 1 || !strings.Contains(logger.errors[0], "not recorded") {
		t.Fatalf("expected history error to be logged, got %v", logger.errors)
	}
}

func TestListReportsHandler(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	for _, id := range []string{"a", "b"} {
		if _, err := store.Record(ctx, Entry{ID: id, Title: "T", Format: export.FormatXLSX}); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	handler := NewListReportsHandler(store)
	entries, err := handler.Query(ctx, ListReports{Format: "XLSX"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	_, err = handler.Query(ctx, ListReports{Format: "csv"})
	var ge *goerrors.Error
	if !errors.As(err, &ge) || ge.TextCode != "FORMAT_UNSUPPORTED" {
		t.Fatalf("expected FORMAT_UNSUPPORTED, got %v", err)
	}

	_, err = NewListReportsHandler(nil).Query(ctx, ListReports{})
	if !errors.As(err, &ge) || ge.TextCode != "HISTORY_REQUIRED" {
		t.Fatalf("expected HISTORY_REQUIRED, got %v", err)
	}

	if (ListReports{}).Type() != "report:history" {
		t.Fatalf("unexpected message type")
	}
}

type recordingLogger struct {
	errors []string
}

func (l *recordingLogger) Debugf(string, ...any) {}
func (l *recordingLogger) Infof(string, ...any)  {}
func (l *recordingLogger) Errorf(format string, args ...any) {
	l.errors = append(l.errors, fmt.Sprintf(format, args...))
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() {
		_ = db.Close()
	})

	store := NewStore(db)
	if err := store.CreateTable(context.Background()); err != nil {
		t.Fatalf("create table: %v", err)
	}
	return store
}

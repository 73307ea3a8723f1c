package command

import (
	"context"
	"errors"
	"testing"
	"time"

	gcmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-command/dispatcher"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-report-export/export"
)

type stubExporter struct {
	document func(ctx context.Context, ds export.Dataset) (export.Artifact, error)
	workbook func(ctx context.Context, ds export.Dataset) (export.Artifact, error)
}

func (s *stubExporter) ExportDocument(ctx context.Context, ds export.Dataset) (export.Artifact, error) {
	if s.document != nil {
		return s.document(ctx, ds)
	}
	return export.Artifact{}, nil
}

func (s *stubExporter) ExportWorkbook(ctx context.Context, ds export.Dataset) (export.Artifact, error) {
	if s.workbook != nil {
		return s.workbook(ctx, ds)
	}
	return export.Artifact{}, nil
}

func salesDataset() export.Dataset {
	return export.Dataset{
		Title: "Sales Report",
		Headers: []export.Column{
			{Key: "date", Title: "Date", Type: export.TypeDate},
			{Key: "amount", Title: "Amount", Type: export.TypeCurrency},
		},
		Rows: []export.Record{{"date": "2024-01-15", "amount": 100}},
	}
}

func TestExportDocumentHandler_StoresResult(t *testing.T) {
	want := export.Artifact{ID: "a1", Format: export.FormatPDF, Filename: "Sales_Report_1-15-2024.pdf"}
	exp := &stubExporter{
		document: func(ctx context.Context, ds export.Dataset) (export.Artifact, error) {
			if ds.Title != "Sales Report" {
				t.Fatalf("unexpected dataset %q", ds.Title)
			}
			return want, nil
		},
	}

	handler := NewExportDocumentHandler(exp)
	var got export.Artifact
	result := gcmd.NewResult[export.Artifact]()
	ctx := gcmd.ContextWithResult(context.Background(), result)

	if err := handler.Execute(ctx, ExportDocument{Dataset: salesDataset(), Result: &got}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got.ID != want.ID {
		t.Fatalf("expected result pointer %q, got %q", want.ID, got.ID)
	}

	stored, ok := result.Load()
	if !ok {
		t.Fatalf("expected context result")
	}
	if stored.Filename != want.Filename {
		t.Fatalf("expected context result %q, got %q", want.Filename, stored.Filename)
	}
}

func TestExportWorkbookHandler_PropagatesError(t *testing.T) {
	failure := errors.New("boom")
	exp := &stubExporter{
		workbook: func(ctx context.Context, ds export.Dataset) (export.Artifact, error) {
			return export.Artifact{}, failure
		},
	}
	var got export.Artifact
	err := NewExportWorkbookHandler(exp).Execute(context.Background(), ExportWorkbook{Dataset: salesDataset(), Result: &got})
	if !errors.Is(err, failure) {
		t.Fatalf("expected exporter error, got %v", err)
	}
	if got.ID != "" {
		t.Fatalf("expected result untouched on failure")
	}
}

func TestHandlers_RequireExporter(t *testing.T) {
	var handler *ExportDocumentHandler
	err := handler.Execute(context.Background(), ExportDocument{Dataset: salesDataset()})
	var ge *goerrors.Error
	if !errors.As(err, &ge) || ge.TextCode != "EXPORTER_REQUIRED" {
		t.Fatalf("expected EXPORTER_REQUIRED, got %v", err)
	}
}

func TestMessages_Validate(t *testing.T) {
	tests := []struct {
		name string
		msg  interface{ Validate() error }
		code string
	}{
		{name: "document ok", msg: ExportDocument{Dataset: salesDataset()}},
		{name: "workbook ok", msg: ExportWorkbook{Dataset: salesDataset()}},
		{name: "blank title", msg: ExportDocument{Dataset: export.Dataset{Title: "  "}}, code: "TITLE_REQUIRED"},
		{name: "blank key", msg: ExportWorkbook{Dataset: export.Dataset{Title: "t", Headers: []export.Column{{Title: "x"}}}}, code: "COLUMN_KEY_REQUIRED"},
	}

	for _, tc := range tests {
		err := tc.msg.Validate()
		if tc.code == "" {
			if err != nil {
				t.Fatalf("%s: unexpected error %v", tc.name, err)
			}
			continue
		}
		var ge *goerrors.Error
		if !errors.As(err, &ge) {
			t.Fatalf("%s: expected go-errors error, got %v", tc.name, err)
		}
		if ge.TextCode != tc.code || ge.Category != goerrors.CategoryValidation {
			t.Fatalf("%s: unexpected error %s/%s", tc.name, ge.Category, ge.TextCode)
		}
	}
}

func TestMessageTypes(t *testing.T) {
	if (ExportDocument{}).Type() != "report:export_document" {
		t.Fatalf("unexpected document type")
	}
	if (ExportWorkbook{}).Type() != "report:export_workbook" {
		t.Fatalf("unexpected workbook type")
	}
}

func TestRegisterHandlers_Dispatch(t *testing.T) {
	exp, err := export.NewExporter(export.Config{
		Now: func() time.Time { return time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("new exporter: %v", err)
	}

	reg := gcmd.NewRegistry()
	subs, err := RegisterHandlers(reg, exp)
	if err != nil {
		t.Fatalf("register handlers: %v", err)
	}
	defer func() {
		for _, sub := range subs {
			sub.Unsubscribe()
		}
	}()

	artifact, err := dispatcher.DispatchWithResult[ExportWorkbook, export.Artifact](
		context.Background(),
		ExportWorkbook{Dataset: salesDataset()},
	)
	if err != nil {
		t.Fatalf("dispatch workbook: %v", err)
	}
	if artifact.Filename != "Sales_Report_2024-01-15.xlsx" {
		t.Fatalf("unexpected filename %q", artifact.Filename)
	}
	if len(artifact.Data) == 0 {
		t.Fatalf("expected workbook bytes")
	}
}

func TestRegisterHandlers_RequiresExporter(t *testing.T) {
	if _, err := RegisterHandlers(nil, nil); err == nil {
		t.Fatalf("expected error")
	}
}

func TestReportIDContext(t *testing.T) {
	ctx := context.Background()
	if ReportIDFromContext(ctx) != "" {
		t.Fatalf("expected no report ID")
	}
	if WithReportID(ctx, "") != ctx {
		t.Fatalf("expected empty ID to leave context unchanged")
	}
	if got := ReportIDFromContext(WithReportID(ctx, "r1")); got != "r1" {
		t.Fatalf("expected r1, got %q", got)
	}
}

package exportjob

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goliatone/go-command/dispatcher"
	job "github.com/goliatone/go-job"
	reportcmd "github.com/goliatone/go-report-export/command"
	"github.com/goliatone/go-report-export/export"
)

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

func captureScheduler(captured **job.ExecutionMessage) *Scheduler {
	return NewScheduler(Config{
		Enqueuer: EnqueuerFunc(func(ctx context.Context, msg *job.ExecutionMessage) error {
			*captured = msg
			return nil
		}),
		IDGenerator: func() string { return "r1" },
	})
}

func TestReportTask_ExecutesQueuedWorkbook(t *testing.T) {
	store := export.NewMemoryStore()
	exp, err := export.NewExporter(export.Config{
		Store:       store,
		Now:         func() time.Time { return time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC) },
		IDGenerator: func() string { return "a1" },
	})
	if err != nil {
		t.Fatalf("exporter: %v", err)
	}
	sub := dispatcher.SubscribeCommand(reportcmd.NewExportWorkbookHandler(exp))
	defer sub.Unsubscribe()

	var msg *job.ExecutionMessage
	reportID, err := captureScheduler(&msg).RequestReport(context.Background(), Request{
		Format:  export.FormatXLSX,
		Dataset: salesDataset(),
	})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if reportID != "r1" || msg == nil {
		t.Fatalf("expected queued message, got id=%q msg=%v", reportID, msg)
	}
	if msg.JobID != DefaultReportTaskID || msg.ScriptPath != DefaultReportTaskPath {
		t.Fatalf("unexpected message routing %+v", msg)
	}

	task := NewReportTask(TaskConfig{})
	if err := task.Execute(context.Background(), msg); err != nil {
		t.Fatalf("execute: %v", err)
	}

	keys := store.Keys()
	if len(keys) != 1 || keys[0] != "a1/Sales_Report_2024-01-15.xlsx" {
		t.Fatalf("unexpected stored artifacts %v", keys)
	}
}

func TestReportTask_GetHandlerUsesMessageBuilder(t *testing.T) {
	var got Payload
	task := NewReportTask(TaskConfig{
		Dispatch: func(ctx context.Context, payload Payload) (export.Artifact, error) {
			got = payload
			return export.Artifact{Filename: "Sales_Report_1-15-2024.pdf"}, nil
		},
		MessageBuilder: func(ctx context.Context) (*job.ExecutionMessage, error) {
			var msg *job.ExecutionMessage
			if _, err := captureScheduler(&msg).RequestReport(ctx, Request{Format: export.FormatPDF, Dataset: salesDataset()}); err != nil {
				return nil, err
			}
			return msg, nil
		},
	})

	if err := task.GetHandler()(); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if got.ReportID != "r1" || got.Format != export.FormatPDF || got.Dataset.Title != "Sales Report" {
		t.Fatalf("unexpected payload %+v", got)
	}
	amount, ok := got.Dataset.Rows[0]["amount"].(interface{ String() string })
	if !ok || amount.String() != "100" {
		t.Fatalf("expected numeric cell kept as json number, got %#v", got.Dataset.Rows[0]["amount"])
	}

	if err := NewReportTask(TaskConfig{}).GetHandler()(); err == nil {
		t.Fatalf("expected error without message builder")
	}
}

func TestReportTask_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	task := NewReportTask(TaskConfig{
		RetryPolicy: RetryPolicy{MaxRetries: 2},
		Dispatch: func(ctx context.Context, payload Payload) (export.Artifact, error) {
			if calls.Add(1) == 1 {
				return export.Artifact{}, export.NewError(export.KindPersistence, "disk busy", nil)
			}
			return export.Artifact{}, nil
		},
	})

	msg := &job.ExecutionMessage{Parameters: map[string]any{"payload": Payload{ReportID: "r1", Format: export.FormatXLSX}}}
	if err := task.Execute(context.Background(), msg); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected one retry, got %d calls", calls.Load())
	}
}

func TestReportTask_DispatchCarriesReportID(t *testing.T) {
	var seen []string
	task := NewReportTask(TaskConfig{
		RetryPolicy: RetryPolicy{MaxRetries: 1},
		Dispatch: func(ctx context.Context, payload Payload) (export.Artifact, error) {
			seen = append(seen, reportcmd.ReportIDFromContext(ctx))
			if len(seen) == 1 {
				return export.Artifact{}, export.NewError(export.KindPersistence, "disk busy", nil)
			}
			return export.Artifact{}, nil
		},
	})

	msg := &job.ExecutionMessage{Parameters: map[string]any{"payload": Payload{ReportID: "r7", Format: export.FormatPDF}}}
	if err := task.Execute(context.Background(), msg); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(seen) != 2 || seen[0] != "r7" || seen[1] != "r7" {
		t.Fatalf("expected report ID on every attempt, got %v", seen)
	}
}

func TestReportTask_DoesNotRetryBadInput(t *testing.T) {
	var calls atomic.Int32
	failure := export.NewError(export.KindFormatting, "bad cell", nil)
	task := NewReportTask(TaskConfig{
		RetryPolicy: RetryPolicy{MaxRetries: 3},
		Dispatch: func(ctx context.Context, payload Payload) (export.Artifact, error) {
			calls.Add(1)
			return export.Artifact{}, failure
		},
	})

	msg := &job.ExecutionMessage{Parameters: map[string]any{"payload": &Payload{ReportID: "r1", Format: export.FormatPDF}}}
	if err := task.Execute(context.Background(), msg); !errors.Is(err, failure) {
		t.Fatalf("expected formatting failure, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected no retry, got %d calls", calls.Load())
	}
}

func TestReportTask_Cancel(t *testing.T) {
	registry := NewCancelRegistry()
	started := make(chan struct{})
	task := NewReportTask(TaskConfig{
		CancelRegistry: registry,
		Dispatch: func(ctx context.Context, payload Payload) (export.Artifact, error) {
			close(started)
			<-ctx.Done()
			return export.Artifact{}, ctx.Err()
		},
	})

	done := make(chan error, 1)
	go func() {
		msg := &job.ExecutionMessage{Parameters: map[string]any{"payload": Payload{ReportID: "r1", Format: export.FormatXLSX}}}
		done <- task.Execute(context.Background(), msg)
	}()

	<-started
	if err := registry.Cancel("r1"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("task did not stop")
	}

	if err := registry.Cancel("r1"); export.KindFromError(err) != export.KindNotFound {
		t.Fatalf("expected released registration, got %v", err)
	}
}

func TestReportTask_InvalidPayload(t *testing.T) {
	task := NewReportTask(TaskConfig{})
	cases := []*job.ExecutionMessage{
		nil,
		{Parameters: map[string]any{}},
		{Parameters: map[string]any{"payload": ""}},
		{Parameters: map[string]any{"payload": "{"}},
		{Parameters: map[string]any{"payload": `{"report_id":"r1","format":"csv"}`}},
		{Parameters: map[string]any{"payload": `{"format":"pdf"}`}},
	}
	for i, msg := range cases {
		if err := task.Execute(context.Background(), msg); export.KindFromError(err) != export.KindValidation {
			t.Fatalf("case %d: expected validation error, got %v", i, err)
		}
	}
}

func TestScheduler_RequestReport(t *testing.T) {
	var msg *job.ExecutionMessage
	scheduler := captureScheduler(&msg)

	if _, err := scheduler.RequestReport(context.Background(), Request{Format: "csv", Dataset: salesDataset()}); export.KindFromError(err) != export.KindValidation {
		t.Fatalf("expected validation error for format, got %v", err)
	}
	if _, err := scheduler.RequestReport(context.Background(), Request{Format: export.FormatPDF}); export.KindFromError(err) != export.KindValidation {
		t.Fatalf("expected validation error for title, got %v", err)
	}

	if _, err := scheduler.RequestReport(context.Background(), Request{
		Format:         export.FormatPDF,
		Dataset:        salesDataset(),
		IdempotencyKey: "sales-2024-01",
	}); err != nil {
		t.Fatalf("request: %v", err)
	}
	if msg.IdempotencyKey != "sales-2024-01" || msg.DedupPolicy != job.DedupPolicyMerge {
		t.Fatalf("expected dedup settings, got %+v", msg)
	}

	failing := NewScheduler(Config{Enqueuer: EnqueuerFunc(func(context.Context, *job.ExecutionMessage) error {
		return errors.New("queue down")
	})})
	if _, err := failing.RequestReport(context.Background(), Request{Format: export.FormatPDF, Dataset: salesDataset()}); export.KindFromError(err) != export.KindPersistence {
		t.Fatalf("expected persistence error, got %v", err)
	}

	if _, err := NewScheduler(Config{}).RequestReport(context.Background(), Request{}); export.KindFromError(err) != export.KindInternal {
		t.Fatalf("expected missing enqueuer error, got %v", err)
	}
}

func TestComputeBackoffDelay(t *testing.T) {
	fixed := job.BackoffConfig{Strategy: job.BackoffFixed, Interval: 100 * time.Millisecond}
	if got := computeBackoffDelay(3, fixed); got != 100*time.Millisecond {
		t.Fatalf("expected fixed delay, got %v", got)
	}

	exponential := job.BackoffConfig{Strategy: job.BackoffExponential, Interval: 100 * time.Millisecond, MaxInterval: time.Second}
	if got := computeBackoffDelay(3, exponential); got != 400*time.Millisecond {
		t.Fatalf("expected doubled delay, got %v", got)
	}
	if got := computeBackoffDelay(10, exponential); got != time.Second {
		t.Fatalf("expected capped delay, got %v", got)
	}
	if got := computeBackoffDelay(1, job.BackoffConfig{}); got != 0 {
		t.Fatalf("expected no delay without strategy, got %v", got)
	}
}

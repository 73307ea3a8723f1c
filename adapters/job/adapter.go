package exportjob

import (
	"context"
	"strings"

	"github.com/google/uuid"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-report-export/export"
)

// Enqueuer delivers execution messages to go-job.
type Enqueuer interface {
	Enqueue(ctx context.Context, msg *job.ExecutionMessage) error
}

// EnqueuerFunc adapts a function to an Enqueuer.
type EnqueuerFunc func(ctx context.Context, msg *job.ExecutionMessage) error

func (f EnqueuerFunc) Enqueue(ctx context.Context, msg *job.ExecutionMessage) error {
	if f == nil {
		return export.NewError(export.KindInternal, "enqueuer is nil", nil)
	}
	return f(ctx, msg)
}

// Config configures the report scheduler.
type Config struct {
	Enqueuer    Enqueuer
	TaskID      string
	TaskPath    string
	Logger      export.Logger
	IDGenerator func() string
}

// Request describes a background report export.
type Request struct {
	Format  export.Format
	Dataset export.Dataset
	// IdempotencyKey merges duplicate submissions in the job queue.
	IdempotencyKey string
}

// Scheduler enqueues report exports for a ReportTask.
type Scheduler struct {
	enqueuer Enqueuer
	taskID   string
	taskPath string
	logger   export.Logger
	newID    func() string
}

// NewScheduler creates a report scheduler.
func NewScheduler(cfg Config) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = export.NopLogger{}
	}
	taskID := cfg.TaskID
	if taskID == "" {
		taskID = DefaultReportTaskID
	}
	taskPath := cfg.TaskPath
	if taskPath == "" {
		taskPath = DefaultReportTaskPath
	}
	newID := cfg.IDGenerator
	if newID == nil {
		newID = uuid.NewString
	}

	return &Scheduler{
		enqueuer: cfg.Enqueuer,
		taskID:   taskID,
		taskPath: taskPath,
		logger:   logger,
		newID:    newID,
	}
}

// RequestReport enqueues req and returns the report ID the task will log.
func (s *Scheduler) RequestReport(ctx context.Context, req Request) (string, error) {
	if s == nil {
		return "", export.NewError(export.KindInternal, "scheduler is nil", nil)
	}
	if s.enqueuer == nil {
		return "", export.NewError(export.KindInternal, "job enqueuer not configured", nil)
	}
	if err := validateFormat(req.Format); err != nil {
		return "", err
	}
	if strings.TrimSpace(req.Dataset.Title) == "" {
		return "", export.NewError(export.KindValidation, "report title is required", nil)
	}

	payload := Payload{
		ReportID: s.newID(),
		Format:   req.Format,
		Dataset:  req.Dataset,
	}
	encoded, err := encodePayload(payload)
	if err != nil {
		return "", err
	}

	msg := &job.ExecutionMessage{
		JobID:      s.taskID,
		ScriptPath: s.taskPath,
		Parameters: map[string]any{"payload": encoded},
	}
	if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
		msg.IdempotencyKey = key
		msg.DedupPolicy = job.DedupPolicyMerge
	}

	if err := s.enqueuer.Enqueue(ctx, msg); err != nil {
		s.logger.Errorf("report %s enqueue failed: %v", payload.ReportID, err)
		return "", export.NewError(export.KindPersistence, "enqueue report", err)
	}
	s.logger.Debugf("report %s queued: format=%s title=%q", payload.ReportID, req.Format, req.Dataset.Title)
	return payload.ReportID, nil
}

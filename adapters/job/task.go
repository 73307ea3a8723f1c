package exportjob

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/goliatone/go-command/dispatcher"
	errorslib "github.com/goliatone/go-errors"
	job "github.com/goliatone/go-job"
	reportcmd "github.com/goliatone/go-report-export/command"
	"github.com/goliatone/go-report-export/export"
)

const (
	DefaultReportTaskID   = "report:export"
	DefaultReportTaskPath = "report:export"
)

var (
	backoffRand   = rand.New(rand.NewSource(time.Now().UnixNano()))
	backoffRandMu sync.Mutex
)

// Payload captures the job execution input.
type Payload struct {
	ReportID string         `json:"report_id"`
	Format   export.Format  `json:"format"`
	Dataset  export.Dataset `json:"dataset"`
}

// MessageBuilderFunc builds an execution message for non-queue paths.
type MessageBuilderFunc func(ctx context.Context) (*job.ExecutionMessage, error)

// Dispatch runs one report export for a decoded payload.
type Dispatch func(ctx context.Context, payload Payload) (export.Artifact, error)

// TaskConfig configures the report export task.
type TaskConfig struct {
	ID             string
	Path           string
	Config         job.Config
	HandlerOptions job.HandlerOptions
	RetryPolicy    RetryPolicy
	CancelRegistry *CancelRegistry
	Logger         export.Logger
	Dispatch       Dispatch
	MessageBuilder MessageBuilderFunc
}

// ReportTask executes queued report exports through the command bus.
type ReportTask struct {
	id             string
	path           string
	config         job.Config
	handlerOptions job.HandlerOptions
	retryPolicy    RetryPolicy
	cancelRegistry *CancelRegistry
	logger         export.Logger
	dispatch       Dispatch
	messageBuilder MessageBuilderFunc
}

// NewReportTask creates a report export task. Without a Dispatch the task
// sends ExportDocument/ExportWorkbook commands on the global dispatcher.
func NewReportTask(cfg TaskConfig) *ReportTask {
	logger := cfg.Logger
	if logger == nil {
		logger = export.NopLogger{}
	}
	id := cfg.ID
	if id == "" {
		id = DefaultReportTaskID
	}
	path := cfg.Path
	if path == "" {
		path = DefaultReportTaskPath
	}
	dispatch := cfg.Dispatch
	if dispatch == nil {
		dispatch = dispatchCommand
	}

	return &ReportTask{
		id:             id,
		path:           path,
		config:         cfg.Config,
		handlerOptions: cfg.HandlerOptions,
		retryPolicy:    cfg.RetryPolicy,
		cancelRegistry: cfg.CancelRegistry,
		logger:         logger,
		dispatch:       dispatch,
		messageBuilder: cfg.MessageBuilder,
	}
}

// GetID returns the task identifier.
func (t *ReportTask) GetID() string { return t.id }

// GetHandler returns a handler for non-queue execution paths.
func (t *ReportTask) GetHandler() func() error {
	return func() error {
		if t == nil {
			return export.NewError(export.KindInternal, "task is nil", nil)
		}
		if t.messageBuilder == nil {
			return export.NewError(export.KindInternal, "job message builder not configured", nil)
		}

		ctx := context.Background()
		msg, err := t.messageBuilder(ctx)
		if err != nil {
			return err
		}
		if msg == nil {
			return export.NewError(export.KindValidation, "execution message is required", nil)
		}
		return t.Execute(ctx, msg)
	}
}

// GetHandlerConfig returns scheduler options for the task.
func (t *ReportTask) GetHandlerConfig() job.HandlerOptions { return t.handlerOptions }

// GetConfig returns task config defaults.
func (t *ReportTask) GetConfig() job.Config { return t.config }

// GetPath returns the task path.
func (t *ReportTask) GetPath() string { return t.path }

// GetEngine returns nil because this task is code-driven.
func (t *ReportTask) GetEngine() job.Engine { return nil }

// Execute runs the export described by msg, retrying transient failures.
func (t *ReportTask) Execute(ctx context.Context, msg *job.ExecutionMessage) error {
	if t == nil {
		return export.NewError(export.KindInternal, "task is nil", nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	payload, err := decodePayload(msg)
	if err != nil {
		return err
	}
	if payload.ReportID == "" {
		return export.NewError(export.KindValidation, "report ID is required", nil)
	}
	if err := validateFormat(payload.Format); err != nil {
		return err
	}

	execCtx := ctx
	if t.cancelRegistry != nil {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithCancel(ctx)
		defer cancel()
		release := t.cancelRegistry.Register(payload.ReportID, cancel)
		defer release()
	}
	execCtx = reportcmd.WithReportID(execCtx, payload.ReportID)

	policy := t.retryPolicy
	attempt := 0
	for {
		if err := execCtx.Err(); err != nil {
			return err
		}

		artifact, err := t.dispatch(execCtx, payload)
		if err == nil {
			t.logger.Infof("report %s exported: format=%s file=%s key=%s",
				payload.ReportID, payload.Format, artifact.Filename, artifact.Ref.Key)
			return nil
		}

		if !policy.shouldRetry(err) || attempt >= policy.MaxRetries {
			t.logger.Errorf("report %s failed after %d attempts: %v", payload.ReportID, attempt+1, err)
			return err
		}

		attempt++
		t.logger.Debugf("report %s attempt %d failed, retrying: %v", payload.ReportID, attempt, err)
		delay := policy.backoffDelay(attempt)
		if delay > 0 {
			if serr := sleepWithContext(execCtx, delay); serr != nil {
				return serr
			}
		}
	}
}

func dispatchCommand(ctx context.Context, payload Payload) (export.Artifact, error) {
	var artifact export.Artifact
	var err error
	switch payload.Format {
	case export.FormatPDF:
		err = dispatcher.Dispatch(ctx, reportcmd.ExportDocument{Dataset: payload.Dataset, Result: &artifact})
	default:
		err = dispatcher.Dispatch(ctx, reportcmd.ExportWorkbook{Dataset: payload.Dataset, Result: &artifact})
	}
	return artifact, err
}

func validateFormat(format export.Format) error {
	switch format {
	case export.FormatPDF, export.FormatXLSX:
		return nil
	default:
		return export.NewError(export.KindValidation, "unsupported report format: "+string(format), nil)
	}
}

func encodePayload(payload Payload) (json.RawMessage, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, export.NewError(export.KindValidation, "payload is not serializable", err)
	}
	return json.RawMessage(raw), nil
}

func decodePayload(msg *job.ExecutionMessage) (Payload, error) {
	if msg == nil || msg.Parameters == nil {
		return Payload{}, export.NewError(export.KindValidation, "job payload is required", nil)
	}

	raw, ok := msg.Parameters["payload"]
	if !ok {
		return Payload{}, export.NewError(export.KindValidation, "job payload missing", nil)
	}

	switch value := raw.(type) {
	case Payload:
		return value, nil
	case *Payload:
		if value == nil {
			return Payload{}, export.NewError(export.KindValidation, "job payload is nil", nil)
		}
		return *value, nil
	case json.RawMessage:
		return unmarshalPayload(value)
	case []byte:
		return unmarshalPayload(value)
	case string:
		return unmarshalPayload([]byte(value))
	default:
		data, err := json.Marshal(value)
		if err != nil {
			return Payload{}, export.NewError(export.KindValidation, "job payload is invalid", err)
		}
		return unmarshalPayload(data)
	}
}

// unmarshalPayload keeps numeric cells as json.Number.
func unmarshalPayload(data []byte) (Payload, error) {
	if len(data) == 0 {
		return Payload{}, export.NewError(export.KindValidation, "job payload is empty", nil)
	}
	var payload Payload
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	if err := decoder.Decode(&payload); err != nil {
		return Payload{}, export.NewError(export.KindValidation, "job payload is invalid", err)
	}
	return payload, nil
}

// RetryPolicy determines retry behavior for retryable errors.
type RetryPolicy struct {
	MaxRetries int
	Backoff    job.BackoffConfig
	Retryable  func(error) bool
}

func (p RetryPolicy) shouldRetry(err error) bool {
	if err == nil || p.MaxRetries <= 0 {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if p.Retryable != nil {
		return p.Retryable(err)
	}
	return defaultRetryable(err)
}

func (p RetryPolicy) backoffDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return computeBackoffDelay(attempt, p.Backoff)
}

// defaultRetryable retries timeouts and storage failures. Bad input and
// layout failures repeat identically and are not retried.
func defaultRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errorslib.IsRetryableError(err) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	switch export.KindFromError(err) {
	case export.KindTimeout, export.KindPersistence:
		return true
	}
	return false
}

func computeBackoffDelay(attempt int, cfg job.BackoffConfig) time.Duration {
	if attempt <= 0 {
		return 0
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}

	maxInterval := cfg.MaxInterval
	if maxInterval <= 0 {
		maxInterval = 5 * time.Second
	}

	switch cfg.Strategy {
	case job.BackoffFixed:
		return applyJitter(interval, cfg.Jitter)
	case job.BackoffExponential:
		delay := interval
		for i := 1; i < attempt; i++ {
			delay *= 2
			if delay > maxInterval {
				delay = maxInterval
				break
			}
		}
		return applyJitter(delay, cfg.Jitter)
	default:
		return 0
	}
}

func applyJitter(delay time.Duration, jitter bool) time.Duration {
	if !jitter || delay <= 0 {
		return delay
	}
	// +/-50%
	half := float64(delay) * 0.5
	backoffRandMu.Lock()
	offset := (backoffRand.Float64()*2 - 1) * half
	backoffRandMu.Unlock()
	jittered := float64(delay) + offset
	if jittered < 0 {
		return 0
	}
	return time.Duration(jittered)
}

func sleepWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

package exportjob

import (
	"context"
	"sync"

	"github.com/goliatone/go-report-export/export"
)

// CancelRegistry tracks running report jobs for cancellation.
type CancelRegistry struct {
	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// NewCancelRegistry creates an empty registry.
func NewCancelRegistry() *CancelRegistry {
	return &CancelRegistry{cancels: make(map[string]context.CancelFunc)}
}

// Register associates a cancel func with a report ID.
func (r *CancelRegistry) Register(reportID string, cancel context.CancelFunc) func() {
	if r == nil || reportID == "" || cancel == nil {
		return func() {}
	}
	r.mu.Lock()
	r.cancels[reportID] = cancel
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.cancels, reportID)
		r.mu.Unlock()
	}
}

// Cancel stops a running report export.
func (r *CancelRegistry) Cancel(reportID string) error {
	if r == nil {
		return export.NewError(export.KindInternal, "cancel registry is nil", nil)
	}
	if reportID == "" {
		return export.NewError(export.KindValidation, "report ID is required", nil)
	}

	r.mu.Lock()
	cancel, ok := r.cancels[reportID]
	r.mu.Unlock()
	if !ok {
		return export.NewError(export.KindNotFound, "report not running", nil)
	}
	cancel()
	return nil
}

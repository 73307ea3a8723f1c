package command

import "context"

type reportIDKey struct{}

// WithReportID tags ctx with the queued report an export runs for.
func WithReportID(ctx context.Context, reportID string) context.Context {
	if reportID == "" {
		return ctx
	}
	return context.WithValue(ctx, reportIDKey{}, reportID)
}

// ReportIDFromContext returns the ID set by WithReportID, or "".
func ReportIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(reportIDKey{}).(string)
	return id
}

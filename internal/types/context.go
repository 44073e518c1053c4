package types

import "context"

// Context Keys
type contextKey string

const runIDKey contextKey = "run_id"

// WithRunID stores the fetch-run ID in the context. The run ID is generated
// once per scheduler run and propagated to outbound requests and log entries
// so that a single run can be correlated across vendors.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey, id)
}

// GetRunID retrieves the fetch-run ID from the context.
// Returns the empty string if no run ID has been set.
func GetRunID(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey).(string)
	return id
}

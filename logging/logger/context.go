package logger

import (
	"context"

	"github.com/google/uuid"
)

type ctxKey string

const (
	traceKey = "trace_id"
	jobKey   = "job_id"

	traceCtxKey ctxKey = traceKey
	jobCtxKey   ctxKey = jobKey
)

// getTraceID gets a trace ID from the context.
func getTraceID(ctx context.Context) string {
	if id, ok := ctx.Value(traceCtxKey).(string); ok {
		return id
	}
	return ""
}

// WithTraceID sets a trace ID on the context.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceCtxKey, traceID)
}

// EnsureTraceID ensures that a trace ID exists in the context.
func EnsureTraceID(ctx context.Context) (context.Context, string) {
	if id := getTraceID(ctx); id != "" {
		return ctx, id
	}
	id := uuid.NewString()
	return WithTraceID(ctx, id), id
}

// WithJobID tags every entry logged with ctx with the job id.
func WithJobID(ctx context.Context, jobID string) context.Context {
	return context.WithValue(ctx, jobCtxKey, jobID)
}

func getJobID(ctx context.Context) string {
	if id, ok := ctx.Value(jobCtxKey).(string); ok {
		return id
	}
	return ""
}

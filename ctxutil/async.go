// Package ctxutil holds context helpers shared by the engine and scheduler.
package ctxutil

import (
	"context"
	"time"
)

const (
	// DefaultAsyncTimeout is the default timeout for detached operations
	DefaultAsyncTimeout = 5 * time.Second
)

// WithAsyncContext returns a context that keeps the values of parent (trace
// and job ids) but is not cancelled with it. It expires after timeout.
func WithAsyncContext(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = DefaultAsyncTimeout
	}
	return context.WithTimeout(context.WithoutCancel(parent), timeout)
}

// WithAsyncContextDefault creates an async context with default timeout
func WithAsyncContextDefault(parent context.Context) (context.Context, context.CancelFunc) {
	return WithAsyncContext(parent, DefaultAsyncTimeout)
}

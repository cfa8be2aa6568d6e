package ctxutil

import (
	"context"
	"testing"
	"time"
)

type key struct{}

func TestWithAsyncContextOutlivesParent(t *testing.T) {
	parent, cancel := context.WithCancel(context.WithValue(context.Background(), key{}, "job-1"))
	cancel()

	ctx, done := WithAsyncContext(parent, time.Minute)
	defer done()

	if err := ctx.Err(); err != nil {
		t.Fatalf("detached context cancelled: %v", err)
	}
	if ctx.Value(key{}) != "job-1" {
		t.Error("values not preserved")
	}
	if _, ok := ctx.Deadline(); !ok {
		t.Error("expected a deadline")
	}
}

func TestWithAsyncContextDefaultTimeout(t *testing.T) {
	ctx, done := WithAsyncContext(context.Background(), 0)
	defer done()

	deadline, ok := ctx.Deadline()
	if !ok {
		t.Fatal("expected a deadline")
	}
	if left := time.Until(deadline); left <= 0 || left > DefaultAsyncTimeout {
		t.Errorf("deadline in %v", left)
	}
}

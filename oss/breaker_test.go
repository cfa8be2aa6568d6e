package oss

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sony/gobreaker"
)

type failingStore struct {
	*Memory
	calls int
}

func (f *failingStore) Stat(ctx context.Context, loc Location) (*Object, error) {
	f.calls++
	return nil, newError("head", loc, KindTransient, io.ErrUnexpectedEOF)
}

func TestBreakerOpensOnTransientFailures(t *testing.T) {
	inner := &failingStore{Memory: NewMemory()}
	st := DefaultBreakerSettings("test")
	st.Timeout = time.Minute
	store := WithBreaker(inner, st)
	ctx := context.Background()
	loc := MustParseLocation("b/k")

	for i := 0; i < 3; i++ {
		if _, err := store.Stat(ctx, loc); err == nil {
			t.Fatal("expected error")
		}
	}
	_, err := store.Stat(ctx, loc)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open circuit, got %v", err)
	}
	if !errors.Is(err, ErrTransient) {
		t.Errorf("expected open circuit to be reported as transient, got %v", err)
	}
	if inner.calls != 3 {
		t.Errorf("expected 3 calls to reach the store, got %d", inner.calls)
	}
}

func TestBreakerIgnoresNotFound(t *testing.T) {
	store := WithBreaker(NewMemory(), DefaultBreakerSettings("test"))
	ctx := context.Background()
	loc := MustParseLocation("b/missing")

	for i := 0; i < 5; i++ {
		if err := store.Delete(ctx, loc); !IsNotFound(err) {
			t.Fatalf("attempt %d: expected not found, got %v", i, err)
		}
	}
}

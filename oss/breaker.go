package oss

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sony/gobreaker"
)

// DefaultBreakerSettings trips after at least 3 calls with a 60% failure
// ratio. Missing objects and permission errors are caller mistakes, not
// service health signals, so they count as successes.
func DefaultBreakerSettings(name string) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        "oss-" + name,
		MaxRequests: 5,
		Interval:    30 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, ErrPermission)
		},
	}
}

// breakerStore fails fast while the wrapped store looks unhealthy.
// It never retries.
type breakerStore struct {
	next Interface
	cb   *gobreaker.CircuitBreaker
}

// WithBreaker decorates store with a circuit breaker.
func WithBreaker(store Interface, st gobreaker.Settings) Interface {
	return &breakerStore{next: store, cb: gobreaker.NewCircuitBreaker(st)}
}

func (b *breakerStore) do(op string, loc Location, fn func() (any, error)) (any, error) {
	v, err := b.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, newError(op, loc, KindTransient, fmt.Errorf("circuit %s: %w", b.cb.Name(), err))
	}
	return v, err
}

func (b *breakerStore) GetStream(ctx context.Context, loc Location) (io.ReadCloser, error) {
	v, err := b.do("get", loc, func() (any, error) { return b.next.GetStream(ctx, loc) })
	if err != nil {
		return nil, err
	}
	return v.(io.ReadCloser), nil
}

func (b *breakerStore) Stat(ctx context.Context, loc Location) (*Object, error) {
	v, err := b.do("head", loc, func() (any, error) { return b.next.Stat(ctx, loc) })
	if err != nil {
		return nil, err
	}
	return v.(*Object), nil
}

func (b *breakerStore) Put(ctx context.Context, loc Location, r io.Reader, size int64) (*Object, error) {
	v, err := b.do("put", loc, func() (any, error) { return b.next.Put(ctx, loc, r, size) })
	if err != nil {
		return nil, err
	}
	return v.(*Object), nil
}

func (b *breakerStore) Delete(ctx context.Context, loc Location) error {
	_, err := b.do("delete", loc, func() (any, error) { return nil, b.next.Delete(ctx, loc) })
	return err
}

func (b *breakerStore) Copy(ctx context.Context, src, dst Location) error {
	_, err := b.do("copy", src, func() (any, error) { return nil, b.next.Copy(ctx, src, dst) })
	return err
}

func (b *breakerStore) CreateMultipartUpload(ctx context.Context, dst Location) (string, error) {
	v, err := b.do("create multipart", dst, func() (any, error) { return b.next.CreateMultipartUpload(ctx, dst) })
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (b *breakerStore) UploadPart(ctx context.Context, dst Location, uploadID string, n int32, data []byte) (Part, error) {
	v, err := b.do("upload part", dst, func() (any, error) { return b.next.UploadPart(ctx, dst, uploadID, n, data) })
	if err != nil {
		return Part{}, err
	}
	return v.(Part), nil
}

func (b *breakerStore) CompleteMultipartUpload(ctx context.Context, dst Location, uploadID string, parts []Part) error {
	_, err := b.do("complete multipart", dst, func() (any, error) {
		return nil, b.next.CompleteMultipartUpload(ctx, dst, uploadID, parts)
	})
	return err
}

// AbortMultipartUpload bypasses the breaker: cleanup must still be
// attempted while the circuit is open.
func (b *breakerStore) AbortMultipartUpload(ctx context.Context, dst Location, uploadID string) error {
	return b.next.AbortMultipartUpload(ctx, dst, uploadID)
}

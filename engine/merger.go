package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ncobase/blobjob/ctxutil"
	"github.com/ncobase/blobjob/logging/logger"
	"github.com/ncobase/blobjob/oss"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// PartThreshold is the accumulated size above which a part is uploaded.
// It sits just over the 5 MiB minimum so that every part but the last is
// large enough.
const PartThreshold = oss.MinPartSize + 100

// DefaultChunkSize is the read size used on source streams.
const DefaultChunkSize = 64 << 10

// abortTimeout bounds the cleanup of a failed upload.
const abortTimeout = 30 * time.Second

// MergeOption configures a Merger.
type MergeOption func(*Merger)

// WithChunkSize sets the read size used on source streams.
func WithChunkSize(n int) MergeOption {
	return func(m *Merger) {
		if n > 0 {
			m.chunkSize = n
		}
	}
}

// Merger concatenates source objects into a destination object.
type Merger struct {
	store     oss.Interface
	chunkSize int
}

// NewMerger creates a merger over store.
func NewMerger(store oss.Interface, opts ...MergeOption) *Merger {
	m := &Merger{store: store, chunkSize: DefaultChunkSize}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// partWriter accumulates bytes and uploads them as numbered parts.
type partWriter struct {
	store    oss.Interface
	dst      oss.Location
	uploadID string
	acc      []byte
	next     int32
	parts    []oss.Part
	written  int64
}

func (w *partWriter) write(ctx context.Context, p []byte) error {
	w.acc = append(w.acc, p...)
	if len(w.acc) > PartThreshold {
		return w.flush(ctx)
	}
	return nil
}

func (w *partWriter) flush(ctx context.Context) error {
	if w.next > oss.MaxParts {
		return fmt.Errorf("merge into %s exceeds %d parts", w.dst, oss.MaxParts)
	}
	part, err := w.store.UploadPart(ctx, w.dst, w.uploadID, w.next, w.acc)
	if err != nil {
		return err
	}
	w.parts = append(w.parts, part)
	w.written += int64(len(w.acc))
	w.next++
	w.acc = w.acc[:0]
	return nil
}

// Merge writes the concatenation of sources, in order, to destination.
// On failure the multipart upload is aborted and nothing is written.
func (m *Merger) Merge(ctx context.Context, sources []oss.Location, destination oss.Location) (err error) {
	ctx, span := tracer.Start(ctx, "engine.Merge", trace.WithAttributes(
		attribute.String("merge.destination", destination.String()),
		attribute.Int("merge.sources", len(sources)),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	uploadID, err := m.store.CreateMultipartUpload(ctx, destination)
	if err != nil {
		return err
	}

	w := &partWriter{
		store:    m.store,
		dst:      destination,
		uploadID: uploadID,
		acc:      make([]byte, 0, PartThreshold+m.chunkSize),
		next:     1,
	}

	if err := m.copySources(ctx, w, sources); err != nil {
		return m.abort(ctx, w, err)
	}
	if len(w.acc) > 0 {
		if err := w.flush(ctx); err != nil {
			return m.abort(ctx, w, err)
		}
	}

	if len(w.parts) == 0 {
		// nothing to complete with, S3 rejects an empty part list
		if err := m.store.AbortMultipartUpload(ctx, destination, uploadID); err != nil {
			return err
		}
		if _, err := m.store.Put(ctx, destination, bytes.NewReader(nil), 0); err != nil {
			return err
		}
		logger.Infof(ctx, "merged %d empty sources into %s", len(sources), destination)
		return nil
	}

	if err := m.store.CompleteMultipartUpload(ctx, destination, uploadID, w.parts); err != nil {
		return m.abort(ctx, w, err)
	}

	span.SetAttributes(
		attribute.Int("merge.parts", len(w.parts)),
		attribute.Int64("merge.bytes", w.written),
	)
	logger.WithFields(ctx, logrus.Fields{
		"destination": destination.String(),
		"sources":     len(sources),
		"parts":       len(w.parts),
		"bytes":       w.written,
	}).Info("merge completed")
	return nil
}

func (m *Merger) copySources(ctx context.Context, w *partWriter, sources []oss.Location) error {
	buf := make([]byte, m.chunkSize)
	for _, src := range sources {
		if err := m.copySource(ctx, w, src, buf); err != nil {
			return err
		}
	}
	return nil
}

func (m *Merger) copySource(ctx context.Context, w *partWriter, src oss.Location, buf []byte) error {
	rc, err := m.store.GetStream(ctx, src)
	if err != nil {
		return err
	}
	defer rc.Close()

	for {
		n, rerr := rc.Read(buf)
		if n > 0 {
			if err := w.write(ctx, buf[:n]); err != nil {
				return err
			}
		}
		if errors.Is(rerr, io.EOF) {
			return nil
		}
		if rerr != nil {
			return fmt.Errorf("read %s: %w", src, rerr)
		}
	}
}

// abort discards the upload and returns cause, joined with the abort
// failure if there is one. It runs even when ctx is already cancelled.
func (m *Merger) abort(ctx context.Context, w *partWriter, cause error) error {
	actx, cancel := ctxutil.WithAsyncContext(ctx, abortTimeout)
	defer cancel()

	if err := m.store.AbortMultipartUpload(actx, w.dst, w.uploadID); err != nil {
		logger.Errorf(ctx, "failed to abort upload %s to %s: %v", w.uploadID, w.dst, err)
		return errors.Join(cause, fmt.Errorf("abort upload: %w", err))
	}
	logger.Warnf(ctx, "aborted merge into %s after %d parts: %v", w.dst, len(w.parts), cause)
	return cause
}

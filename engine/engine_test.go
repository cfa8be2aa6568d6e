package engine

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/ncobase/blobjob/oss"
)

// recordingStore wraps the in-memory store, records multipart traffic and
// injects failures.
type recordingStore struct {
	*oss.Memory

	mu        sync.Mutex
	parts     []oss.Part
	aborts    int
	completes int
	puts      int

	failGet    map[oss.Location]error
	failDelete error
	failPart   int32 // part number that fails, 0 for none
	failAbort  error
}

func newRecordingStore() *recordingStore {
	return &recordingStore{Memory: oss.NewMemory(), failGet: map[oss.Location]error{}}
}

func (s *recordingStore) GetStream(ctx context.Context, loc oss.Location) (io.ReadCloser, error) {
	if err, ok := s.failGet[loc]; ok {
		return nil, err
	}
	return s.Memory.GetStream(ctx, loc)
}

func (s *recordingStore) Put(ctx context.Context, loc oss.Location, r io.Reader, size int64) (*oss.Object, error) {
	s.mu.Lock()
	s.puts++
	s.mu.Unlock()
	return s.Memory.Put(ctx, loc, r, size)
}

func (s *recordingStore) Delete(ctx context.Context, loc oss.Location) error {
	if s.failDelete != nil {
		return s.failDelete
	}
	return s.Memory.Delete(ctx, loc)
}

func (s *recordingStore) UploadPart(ctx context.Context, dst oss.Location, uploadID string, n int32, data []byte) (oss.Part, error) {
	if s.failPart != 0 && n == s.failPart {
		return oss.Part{}, errors.New("part upload failed")
	}
	p, err := s.Memory.UploadPart(ctx, dst, uploadID, n, data)
	if err == nil {
		s.mu.Lock()
		s.parts = append(s.parts, p)
		s.mu.Unlock()
	}
	return p, err
}

func (s *recordingStore) CompleteMultipartUpload(ctx context.Context, dst oss.Location, uploadID string, parts []oss.Part) error {
	s.mu.Lock()
	s.completes++
	s.mu.Unlock()
	return s.Memory.CompleteMultipartUpload(ctx, dst, uploadID, parts)
}

func (s *recordingStore) AbortMultipartUpload(ctx context.Context, dst oss.Location, uploadID string) error {
	s.mu.Lock()
	s.aborts++
	s.mu.Unlock()
	if s.failAbort != nil {
		return s.failAbort
	}
	return s.Memory.AbortMultipartUpload(ctx, dst, uploadID)
}

func put(t *testing.T, s oss.Interface, loc string, data []byte) {
	t.Helper()
	if _, err := s.Put(context.Background(), oss.MustParseLocation(loc), bytes.NewReader(data), int64(len(data))); err != nil {
		t.Fatalf("put %s: %v", loc, err)
	}
}

func get(t *testing.T, s oss.Interface, loc string) []byte {
	t.Helper()
	rc, err := s.GetStream(context.Background(), oss.MustParseLocation(loc))
	if err != nil {
		t.Fatalf("get %s: %v", loc, err)
	}
	defer rc.Close()
	b, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read %s: %v", loc, err)
	}
	return b
}

func exists(s oss.Interface, loc string) bool {
	_, err := s.Stat(context.Background(), oss.MustParseLocation(loc))
	return err == nil
}

// pattern returns n bytes whose content depends on seed and position, so
// misordered or duplicated chunks are detected.
func pattern(seed byte, n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = seed + byte(i%251)
	}
	return b
}

func locs(list ...string) []oss.Location {
	out := make([]oss.Location, len(list))
	for i, s := range list {
		out[i] = oss.MustParseLocation(s)
	}
	return out
}

func contains(err error, sub string) bool {
	return err != nil && strings.Contains(err.Error(), sub)
}

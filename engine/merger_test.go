package engine

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/ncobase/blobjob/oss"
)

func TestMergeSmallSourcesSinglePart(t *testing.T) {
	s := newRecordingStore()
	put(t, s, "in/a", []byte("AAAA"))
	put(t, s, "in/b", []byte("BBBB"))
	put(t, s, "in/c", []byte("CCCC"))

	err := NewMerger(s).Merge(context.Background(), locs("in/a", "in/b", "in/c"), oss.MustParseLocation("out/all"))
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if got := get(t, s, "out/all"); string(got) != "AAAABBBBCCCC" {
		t.Errorf("content = %q", got)
	}
	if len(s.parts) != 1 || s.parts[0].Number != 1 || s.parts[0].Size != 12 {
		t.Errorf("parts = %+v", s.parts)
	}
	if s.completes != 1 || s.aborts != 0 {
		t.Errorf("completes = %d, aborts = %d", s.completes, s.aborts)
	}
}

func TestMergeLargeSourceSplitsParts(t *testing.T) {
	s := newRecordingStore()
	big := pattern(7, 2*PartThreshold+12345)
	tail := pattern(99, 1000)
	put(t, s, "in/big", big)
	put(t, s, "in/tail", tail)

	err := NewMerger(s, WithChunkSize(1<<20)).Merge(context.Background(), locs("in/big", "in/tail"), oss.MustParseLocation("out/merged"))
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}

	want := append(append([]byte{}, big...), tail...)
	if got := get(t, s, "out/merged"); !bytes.Equal(got, want) {
		t.Fatalf("content mismatch: got %d bytes, want %d", len(got), len(want))
	}

	if len(s.parts) < 2 {
		t.Fatalf("expected at least 2 parts, got %d", len(s.parts))
	}
	var total int64
	for i, p := range s.parts {
		if p.Number != int32(i+1) {
			t.Errorf("part %d has number %d", i, p.Number)
		}
		if i < len(s.parts)-1 && p.Size <= PartThreshold {
			t.Errorf("non-final part %d is %d bytes, want > %d", p.Number, p.Size, PartThreshold)
		}
		total += p.Size
	}
	if total != int64(len(want)) {
		t.Errorf("parts carry %d bytes, want %d", total, len(want))
	}
}

func TestMergeEmptySourceInMiddle(t *testing.T) {
	s := newRecordingStore()
	put(t, s, "in/a", []byte("first-"))
	put(t, s, "in/empty", nil)
	put(t, s, "in/c", []byte("last"))

	err := NewMerger(s, WithChunkSize(3)).Merge(context.Background(), locs("in/a", "in/empty", "in/c"), oss.MustParseLocation("out/x"))
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if got := get(t, s, "out/x"); string(got) != "first-last" {
		t.Errorf("content = %q", got)
	}
}

func TestMergeAllEmptyWritesEmptyObject(t *testing.T) {
	s := newRecordingStore()
	put(t, s, "in/a", nil)
	put(t, s, "in/b", nil)
	puts := s.puts

	err := NewMerger(s).Merge(context.Background(), locs("in/a", "in/b"), oss.MustParseLocation("out/empty"))
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if got := get(t, s, "out/empty"); len(got) != 0 {
		t.Errorf("expected empty object, got %d bytes", len(got))
	}
	if len(s.parts) != 0 || s.completes != 0 {
		t.Errorf("parts = %d, completes = %d", len(s.parts), s.completes)
	}
	if s.puts != puts+1 {
		t.Errorf("expected one put for the empty object")
	}
	if s.PendingUploads() != 0 {
		t.Errorf("upload left pending")
	}
}

func TestMergeMissingSourceAborts(t *testing.T) {
	s := newRecordingStore()
	put(t, s, "in/a", []byte("AAAA"))

	err := NewMerger(s).Merge(context.Background(), locs("in/a", "in/missing"), oss.MustParseLocation("out/x"))
	if !oss.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if s.aborts != 1 || s.PendingUploads() != 0 {
		t.Errorf("aborts = %d, pending = %d", s.aborts, s.PendingUploads())
	}
	if exists(s, "out/x") {
		t.Error("destination must not be written")
	}
}

func TestMergePartFailureAborts(t *testing.T) {
	s := newRecordingStore()
	s.failPart = 2
	put(t, s, "in/big", pattern(1, PartThreshold+500))
	put(t, s, "in/more", pattern(2, PartThreshold+500))

	err := NewMerger(s).Merge(context.Background(), locs("in/big", "in/more"), oss.MustParseLocation("out/x"))
	if !contains(err, "part upload failed") {
		t.Fatalf("unexpected error %v", err)
	}
	if s.aborts != 1 || s.PendingUploads() != 0 {
		t.Errorf("aborts = %d, pending = %d", s.aborts, s.PendingUploads())
	}
}

func TestMergeAbortFailureIsJoined(t *testing.T) {
	s := newRecordingStore()
	cause := errors.New("read denied")
	s.failGet[oss.MustParseLocation("in/a")] = cause
	s.failAbort = errors.New("abort denied")

	err := NewMerger(s).Merge(context.Background(), locs("in/a"), oss.MustParseLocation("out/x"))
	if !errors.Is(err, cause) {
		t.Errorf("cause lost: %v", err)
	}
	if !contains(err, "abort denied") {
		t.Errorf("abort failure lost: %v", err)
	}
}

func TestMergeAbortsAfterCancel(t *testing.T) {
	s := newRecordingStore()
	ctx, cancel := context.WithCancel(context.Background())
	s.failGet[oss.MustParseLocation("in/a")] = context.Canceled
	cancel()

	err := NewMerger(s).Merge(ctx, locs("in/a"), oss.MustParseLocation("out/x"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if s.PendingUploads() != 0 {
		t.Error("upload must be aborted with a cancelled context")
	}
}

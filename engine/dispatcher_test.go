package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/ncobase/blobjob/job"
	"github.com/ncobase/blobjob/oss"
)

func TestDispatchCopy(t *testing.T) {
	s := newRecordingStore()
	put(t, s, "in/a/b/c", []byte("data"))

	err := NewDispatcher(s).Execute(context.Background(), job.Step{
		Name: "copy", Action: job.ActionCopy, Source: "in/a/b/c", Destination: "out/x/y",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if string(get(t, s, "out/x/y")) != "data" {
		t.Error("destination not written")
	}
	if !exists(s, "in/a/b/c") {
		t.Error("copy must keep the source")
	}
}

func TestDispatchMove(t *testing.T) {
	s := newRecordingStore()
	put(t, s, "in/a", []byte("data"))

	err := NewDispatcher(s).Execute(context.Background(), job.Step{
		Name: "move", Action: job.ActionMove, Source: "in/a", Destination: "out/a",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if exists(s, "in/a") || !exists(s, "out/a") {
		t.Error("move must relocate the object")
	}
}

func TestDispatchMoveReportsDeleteFailure(t *testing.T) {
	s := newRecordingStore()
	put(t, s, "in/a", []byte("data"))
	s.failDelete = errors.New("access denied")

	err := NewDispatcher(s).Execute(context.Background(), job.Step{
		Name: "move", Action: job.ActionMove, Source: "in/a", Destination: "out/a",
	})
	if !errors.Is(err, s.failDelete) {
		t.Fatalf("delete failure swallowed: %v", err)
	}
	if !exists(s, "out/a") {
		t.Error("copy should have happened before the failed delete")
	}
}

func TestDispatchDelete(t *testing.T) {
	s := newRecordingStore()
	put(t, s, "in/a", []byte("data"))
	d := NewDispatcher(s)

	if err := d.Execute(context.Background(), job.Step{Action: job.ActionDelete, Source: "in/a", Destination: "ignored/x"}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if exists(s, "in/a") {
		t.Error("object not deleted")
	}

	err := d.Execute(context.Background(), job.Step{Action: job.ActionDelete, Source: "in/a"})
	if !oss.IsNotFound(err) {
		t.Errorf("deleting a missing object: %v", err)
	}
}

func TestDispatchMerge(t *testing.T) {
	s := newRecordingStore()
	put(t, s, "in/1", []byte("one,"))
	put(t, s, "in/2", []byte("two"))

	err := NewDispatcher(s).Execute(context.Background(), job.Step{
		Action: job.ActionMerge, Sources: []string{"in/1", "in/2"}, Destination: "out/both",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if string(get(t, s, "out/both")) != "one,two" {
		t.Error("unexpected merge output")
	}
}

func TestDispatchMergeBadLocationStartsNoUpload(t *testing.T) {
	s := newRecordingStore()
	put(t, s, "in/1", []byte("one"))

	err := NewDispatcher(s).Execute(context.Background(), job.Step{
		Action: job.ActionMerge, Sources: []string{"in/1", "nokey"}, Destination: "out/both",
	})
	if !contains(err, "sources[1]") {
		t.Fatalf("unexpected error %v", err)
	}
	if s.aborts != 0 || s.PendingUploads() != 0 {
		t.Error("no multipart upload should have been started")
	}
}

func TestDispatchErrorAndUnknown(t *testing.T) {
	d := NewDispatcher(newRecordingStore())

	if err := d.Execute(context.Background(), job.Step{Action: job.ActionError}); !errors.Is(err, job.ErrInjectedFault) {
		t.Errorf("ERROR step: %v", err)
	}
	if err := d.Execute(context.Background(), job.Step{Action: "RENAME"}); !errors.Is(err, job.ErrUnknownAction) {
		t.Errorf("unknown action: %v", err)
	}
}

func TestDispatchRejectsBadLocations(t *testing.T) {
	d := NewDispatcher(newRecordingStore())
	tests := []job.Step{
		{Action: job.ActionCopy, Source: "bucket-only", Destination: "out/x"},
		{Action: job.ActionMove, Source: "in/a", Destination: "/x"},
		{Action: job.ActionDelete},
		{Action: job.ActionMerge, Sources: []string{"in/a"}, Destination: "out/"},
	}
	for _, s := range tests {
		if err := d.Execute(context.Background(), s); err == nil {
			t.Errorf("%s %+v: expected error", s.Action, s)
		}
	}
}

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ncobase/blobjob/job"
	"github.com/ncobase/blobjob/oss"
	"github.com/ncobase/blobjob/paging"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) (*Store, *oss.Memory) {
	t.Helper()
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rc.Close() })

	blobs := oss.NewMemory()
	s, err := New(rc, blobs, "jobs")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return s, blobs
}

func sampleJob() *job.Job {
	return &job.Job{
		Details: job.Details{
			Name:     "nightly",
			Schedule: "0 3 * * *",
			State:    job.StateEnabled,
		},
		Steps: []job.Step{
			{ID: 0, Name: "copy", Action: job.ActionCopy, Source: "a/x", Destination: "b/x"},
			{ID: 1, Name: "merge", Action: job.ActionMerge, Sources: []string{"a/1", "a/2"}, Destination: "b/all"},
		},
	}
}

func TestNewRequiresDependencies(t *testing.T) {
	rc := redis.NewClient(&redis.Options{Addr: "localhost:0"})
	defer rc.Close()
	if _, err := New(nil, oss.NewMemory(), "jobs"); err == nil {
		t.Error("expected error without redis")
	}
	if _, err := New(rc, nil, "jobs"); err == nil {
		t.Error("expected error without blob store")
	}
	if _, err := New(rc, oss.NewMemory(), ""); err == nil {
		t.Error("expected error without bucket")
	}
}

func TestPutJobRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, blobs := newTestStore(t)

	in := sampleJob()
	in.ValidationState = job.Valid
	stored, err := s.PutJob(ctx, in)
	if err != nil {
		t.Fatalf("PutJob: %v", err)
	}
	if stored.ID == "" {
		t.Fatal("expected generated id")
	}
	if stored.ValidationState != job.Validating {
		t.Errorf("validation state = %s, want VALIDATING", stored.ValidationState)
	}
	if in.ID != "" {
		t.Error("PutJob must not modify its argument")
	}

	d, err := s.GetDetails(ctx, stored.ID)
	if err != nil {
		t.Fatalf("GetDetails: %v", err)
	}
	if d.Name != "nightly" || d.Schedule != "0 3 * * *" || d.State != job.StateEnabled {
		t.Errorf("unexpected details %+v", d)
	}
	if !d.Updated.Equal(s.now()) {
		t.Errorf("updated = %v", d.Updated)
	}

	steps, err := s.GetSteps(ctx, stored.ID)
	if err != nil {
		t.Fatalf("GetSteps: %v", err)
	}
	if len(steps) != 2 || steps[1].Action != job.ActionMerge || len(steps[1].Sources) != 2 {
		t.Errorf("unexpected steps %+v", steps)
	}

	if _, err := blobs.Stat(ctx, oss.Location{Bucket: "jobs", Key: stored.ID}); err != nil {
		t.Errorf("steps blob missing: %v", err)
	}
}

func TestPutJobKeepsID(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	in := sampleJob()
	in.ID = "fixed"
	stored, err := s.PutJob(ctx, in)
	if err != nil {
		t.Fatal(err)
	}
	if stored.ID != "fixed" {
		t.Errorf("id = %q", stored.ID)
	}
}

func TestPutJobResetsVerdict(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	stored, _ := s.PutJob(ctx, sampleJob())
	if err := s.SetValidationState(ctx, stored.ID, job.Invalid, "bad"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.PutJob(ctx, stored); err != nil {
		t.Fatal(err)
	}
	d, _ := s.GetDetails(ctx, stored.ID)
	if d.ValidationState != job.Validating || d.ValidationReason != "" {
		t.Errorf("verdict not reset: %+v", d)
	}
}

func TestMissingJob(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	if _, err := s.GetDetails(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetDetails err = %v", err)
	}
	if _, err := s.GetSteps(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetSteps err = %v", err)
	}
	if err := s.DeleteJob(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteJob err = %v", err)
	}
	if err := s.SetValidationState(ctx, "nope", job.Valid, ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetValidationState err = %v", err)
	}
}

func TestSetStates(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	stored, _ := s.PutJob(ctx, sampleJob())

	if err := s.SetValidationState(ctx, stored.ID, job.Invalid, "steps[0]: bad"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetState(ctx, stored.ID, job.StateDisabled); err != nil {
		t.Fatal(err)
	}
	if err := s.SetState(ctx, stored.ID, "PAUSED"); err == nil {
		t.Error("expected error for unknown state")
	}

	d, _ := s.GetDetails(ctx, stored.ID)
	if d.ValidationState != job.Invalid || d.ValidationReason != "steps[0]: bad" {
		t.Errorf("verdict = %s %q", d.ValidationState, d.ValidationReason)
	}
	if d.State != job.StateDisabled {
		t.Errorf("state = %s", d.State)
	}
}

func TestDeleteJob(t *testing.T) {
	ctx := context.Background()
	s, blobs := newTestStore(t)
	stored, _ := s.PutJob(ctx, sampleJob())

	if err := s.DeleteJob(ctx, stored.ID); err != nil {
		t.Fatalf("DeleteJob: %v", err)
	}
	if _, err := s.GetDetails(ctx, stored.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("details still present: %v", err)
	}
	if _, err := blobs.Stat(ctx, oss.Location{Bucket: "jobs", Key: stored.ID}); !oss.IsNotFound(err) {
		t.Errorf("steps blob still present: %v", err)
	}
	list, _, _ := s.ListJobs(ctx, "", 10)
	if len(list) != 0 {
		t.Errorf("index still lists %d jobs", len(list))
	}
}

func TestListJobsPaginates(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	for _, id := range []string{"c", "a", "e", "b", "d"} {
		j := sampleJob()
		j.ID = id
		if _, err := s.PutJob(ctx, j); err != nil {
			t.Fatal(err)
		}
	}

	var got []string
	cursor := ""
	pages := 0
	for {
		list, next, err := s.ListJobs(ctx, cursor, 2)
		if err != nil {
			t.Fatal(err)
		}
		pages++
		for _, d := range list {
			got = append(got, d.ID)
		}
		if next == "" {
			break
		}
		cursor = next
	}

	want := []string{"a", "b", "c", "d", "e"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
	if pages != 3 {
		t.Errorf("pages = %d, want 3", pages)
	}
	if _, _, err := s.ListJobs(ctx, "not a cursor!", 2); !errors.Is(err, paging.ErrInvalidCursor) {
		t.Errorf("bad cursor err = %v", err)
	}
}

package engine

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/ncobase/blobjob/job"
	"github.com/ncobase/blobjob/oss"
)

type recordingObserver struct {
	started   int
	succeeded []int
	failed    []int
	completed int
	aborted   []error
}

func (o *recordingObserver) RunStarted(context.Context, job.Run) { o.started++ }

func (o *recordingObserver) StepSucceeded(_ context.Context, _ job.Run, s job.Step) {
	o.succeeded = append(o.succeeded, s.ID)
}

func (o *recordingObserver) StepFailed(_ context.Context, _ job.Run, s job.Step, _ error) {
	o.failed = append(o.failed, s.ID)
}

func (o *recordingObserver) RunCompleted(context.Context, job.Run) { o.completed++ }

func (o *recordingObserver) RunAborted(_ context.Context, _ job.Run, err error) {
	o.aborted = append(o.aborted, err)
}

func threeSteps() []job.Step {
	return []job.Step{
		{ID: 10, Name: "copy", Action: job.ActionCopy, Source: "in/a", Destination: "work/a"},
		{ID: 11, Name: "merge", Action: job.ActionMerge, Sources: []string{"work/a", "in/b"}, Destination: "out/ab"},
		{ID: 12, Name: "cleanup", Action: job.ActionDelete, Source: "work/a"},
	}
}

func seeded(t *testing.T) *recordingStore {
	s := newRecordingStore()
	put(t, s, "in/a", []byte("AAAA"))
	put(t, s, "in/b", []byte("BBBB"))
	return s
}

func TestAdvanceIncrementsCurrentOnly(t *testing.T) {
	r := NewRunner(NewDispatcher(seeded(t)))
	run := job.NewRun("job-1", "nightly", threeSteps())
	before := run

	next, err := r.Advance(context.Background(), run)
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if next.Current != 1 {
		t.Errorf("current = %d, want 1", next.Current)
	}
	want := before
	want.Current = 1
	if !reflect.DeepEqual(next, want) {
		t.Errorf("advance changed more than current: %+v", next)
	}
	if !reflect.DeepEqual(run, before) {
		t.Error("input run was mutated")
	}
}

func TestAdvanceDoneRun(t *testing.T) {
	r := NewRunner(NewDispatcher(seeded(t)))
	run := job.NewRun("job-1", "nightly", threeSteps())
	run.Current = run.StepCount

	got, err := r.Advance(context.Background(), run)
	if !errors.Is(err, job.ErrStepIndexOutOfRange) {
		t.Fatalf("err = %v", err)
	}
	if !reflect.DeepEqual(got, run) {
		t.Error("run changed on out of range")
	}

	run.Current = -1
	if _, err := r.Advance(context.Background(), run); !errors.Is(err, job.ErrStepIndexOutOfRange) {
		t.Errorf("negative current: %v", err)
	}

	empty := job.NewRun("job-2", "empty", nil)
	if _, err := r.Advance(context.Background(), empty); !errors.Is(err, job.ErrStepIndexOutOfRange) {
		t.Errorf("empty run: %v", err)
	}
}

func TestAdvanceFailureKeepsCurrent(t *testing.T) {
	r := NewRunner(NewDispatcher(newRecordingStore()))
	run := job.NewRun("job-1", "cleanup", []job.Step{
		{ID: 4, Name: "drop", Action: job.ActionDelete, Source: "in/missing"},
	})

	got, err := r.Advance(context.Background(), run)
	if !oss.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	var se *job.StepError
	if !errors.As(err, &se) || se.StepID != 4 || se.StepName != "drop" {
		t.Errorf("step context missing: %v", err)
	}
	if got.Current != 0 {
		t.Errorf("current = %d, want 0", got.Current)
	}
}

func TestAdvanceInjectedFault(t *testing.T) {
	r := NewRunner(NewDispatcher(seeded(t)))
	steps := threeSteps()
	steps = append([]job.Step{{ID: 1, Name: "boom", Action: job.ActionError}}, steps...)

	_, err := r.Advance(context.Background(), job.NewRun("job-1", "faulty", steps))
	if !errors.Is(err, job.ErrInjectedFault) {
		t.Fatalf("err = %v", err)
	}
}

func TestAdvanceStepCountMismatch(t *testing.T) {
	r := NewRunner(NewDispatcher(seeded(t)))
	run := job.NewRun("job-1", "nightly", threeSteps())
	run.StepCount = 5
	if _, err := r.Advance(context.Background(), run); err == nil {
		t.Error("expected error for inconsistent run")
	}
}

func TestRunToCompletion(t *testing.T) {
	s := seeded(t)
	r := NewRunner(NewDispatcher(s))
	obs := &recordingObserver{}

	final, err := r.RunToCompletion(context.Background(), job.NewRun("job-1", "nightly", threeSteps()), obs)
	if err != nil {
		t.Fatalf("RunToCompletion: %v", err)
	}
	if !final.Done() {
		t.Errorf("current = %d", final.Current)
	}
	if string(get(t, s, "out/ab")) != "AAAABBBB" {
		t.Error("unexpected merge output")
	}
	if exists(s, "work/a") {
		t.Error("cleanup step did not run")
	}
	if obs.started != 1 || obs.completed != 1 || !reflect.DeepEqual(obs.succeeded, []int{10, 11, 12}) {
		t.Errorf("observer = %+v", obs)
	}
}

func TestRunToCompletionHaltsOnFailure(t *testing.T) {
	s := seeded(t)
	r := NewRunner(NewDispatcher(s))
	obs := &recordingObserver{}
	steps := threeSteps()
	steps[1].Action = job.ActionError

	final, err := r.RunToCompletion(context.Background(), job.NewRun("job-1", "nightly", steps), obs)
	if !errors.Is(err, job.ErrInjectedFault) {
		t.Fatalf("err = %v", err)
	}
	if final.Current != 1 {
		t.Errorf("current = %d, want 1", final.Current)
	}
	if !exists(s, "work/a") {
		t.Error("steps after the failure must not run")
	}
	if !reflect.DeepEqual(obs.failed, []int{11}) || obs.completed != 0 {
		t.Errorf("observer = %+v", obs)
	}
}

func TestRunToCompletionCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := NewRunner(NewDispatcher(seeded(t)))

	final, err := r.RunToCompletion(ctx, job.NewRun("job-1", "nightly", threeSteps()), nil)
	if !errors.Is(err, context.Canceled) || final.Current != 0 {
		t.Errorf("final = %d, err = %v", final.Current, err)
	}
}

// cancelAfter cancels the run context once n steps have executed.
type cancelAfter struct {
	exec   Executor
	n      int
	cancel context.CancelFunc
}

func (c *cancelAfter) Execute(ctx context.Context, s job.Step) error {
	err := c.exec.Execute(ctx, s)
	c.n--
	if c.n == 0 {
		c.cancel()
	}
	return err
}

func TestRunToCompletionCancelledBetweenSteps(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	exec := &cancelAfter{exec: NewDispatcher(seeded(t)), n: 1, cancel: cancel}
	obs := &recordingObserver{}

	final, err := NewRunner(exec).RunToCompletion(ctx, job.NewRun("job-1", "nightly", threeSteps()), obs)
	if !errors.Is(err, context.Canceled) || final.Current != 1 {
		t.Fatalf("final = %d, err = %v", final.Current, err)
	}
	if obs.started != 1 || !reflect.DeepEqual(obs.succeeded, []int{10}) || obs.completed != 0 {
		t.Errorf("observer = %+v", obs)
	}
	if len(obs.aborted) != 1 || !errors.Is(obs.aborted[0], context.Canceled) {
		t.Errorf("aborted = %v", obs.aborted)
	}
}

func TestRunToCompletionInconsistentRunIsAborted(t *testing.T) {
	run := job.NewRun("job-1", "nightly", threeSteps())
	run.StepCount = 5
	obs := &recordingObserver{}

	if _, err := NewRunner(NewDispatcher(seeded(t))).RunToCompletion(context.Background(), run, obs); err == nil {
		t.Fatal("expected error for inconsistent run")
	}
	if len(obs.aborted) != 1 || obs.completed != 0 || len(obs.failed) != 0 {
		t.Errorf("observer = %+v", obs)
	}
}

package engine

import (
	"context"
	"time"

	"github.com/ncobase/blobjob/job"
	"github.com/ncobase/blobjob/logging/logger"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Observer is notified of run progress by RunToCompletion.
type Observer interface {
	RunStarted(ctx context.Context, run job.Run)
	StepSucceeded(ctx context.Context, run job.Run, step job.Step)
	StepFailed(ctx context.Context, run job.Run, step job.Step, err error)
	RunCompleted(ctx context.Context, run job.Run)
	// RunAborted is called when the run stops between steps without a
	// step failing, for example because ctx was cancelled.
	RunAborted(ctx context.Context, run job.Run, err error)
}

// NopObserver ignores every notification.
type NopObserver struct{}

func (NopObserver) RunStarted(context.Context, job.Run) {}
func (NopObserver) StepSucceeded(context.Context, job.Run, job.Step) {}
func (NopObserver) StepFailed(context.Context, job.Run, job.Step, error) {}
func (NopObserver) RunCompleted(context.Context, job.Run) {}
func (NopObserver) RunAborted(context.Context, job.Run, error) {}

// Observers fans notifications out to every non-nil observer, in order.
func Observers(obs ...Observer) Observer {
	list := make(multiObserver, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			list = append(list, o)
		}
	}
	return list
}

type multiObserver []Observer

func (m multiObserver) RunStarted(ctx context.Context, run job.Run) {
	for _, o := range m {
		o.RunStarted(ctx, run)
	}
}

func (m multiObserver) StepSucceeded(ctx context.Context, run job.Run, step job.Step) {
	for _, o := range m {
		o.StepSucceeded(ctx, run, step)
	}
}

func (m multiObserver) StepFailed(ctx context.Context, run job.Run, step job.Step, err error) {
	for _, o := range m {
		o.StepFailed(ctx, run, step, err)
	}
}

func (m multiObserver) RunCompleted(ctx context.Context, run job.Run) {
	for _, o := range m {
		o.RunCompleted(ctx, run)
	}
}

func (m multiObserver) RunAborted(ctx context.Context, run job.Run, err error) {
	for _, o := range m {
		o.RunAborted(ctx, run, err)
	}
}

// Runner advances runs one step at a time.
type Runner struct {
	exec Executor
}

// NewRunner creates a runner executing steps with exec.
func NewRunner(exec Executor) *Runner {
	return &Runner{exec: exec}
}

// Advance executes the step at run.Current and returns the run positioned
// at the next step. On failure the input run is returned unchanged with
// an error wrapping the step and its cause. A run with no step left fails
// with job.ErrStepIndexOutOfRange.
func (r *Runner) Advance(ctx context.Context, run job.Run) (job.Run, error) {
	if err := run.Check(); err != nil {
		return run, err
	}
	step := run.CurrentStep()

	ctx = logger.WithJobID(ctx, run.ID)
	ctx, span := tracer.Start(ctx, "engine.Advance", trace.WithAttributes(
		attribute.String("run.id", run.ID),
		attribute.Int("run.current", run.Current),
		attribute.Int("run.step_count", run.StepCount),
		attribute.Int("step.id", step.ID),
		attribute.String("step.action", string(step.Action)),
	))
	defer span.End()

	started := time.Now()
	fields := logrus.Fields{
		"step_id":   step.ID,
		"step_name": step.Name,
		"action":    string(step.Action),
		"current":   run.Current,
	}

	if err := r.exec.Execute(ctx, step); err != nil {
		err = job.WrapStep(step, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		fields["duration"] = time.Since(started).String()
		logger.WithFields(ctx, fields).WithError(err).Error("step failed")
		return run, err
	}

	fields["duration"] = time.Since(started).String()
	logger.WithFields(ctx, fields).Info("step completed")
	return run.Next(), nil
}

// RunToCompletion advances run until it is done or a step fails, and
// returns the last run reached. obs may be nil. Every run reported to
// RunStarted ends with exactly one of StepFailed, RunCompleted or RunAborted.
func (r *Runner) RunToCompletion(ctx context.Context, run job.Run, obs Observer) (job.Run, error) {
	if obs == nil {
		obs = NopObserver{}
	}
	ctx = logger.WithJobID(ctx, run.ID)

	obs.RunStarted(ctx, run)
	for !run.Done() {
		if err := ctx.Err(); err != nil {
			obs.RunAborted(ctx, run, err)
			return run, err
		}
		if err := run.Check(); err != nil {
			obs.RunAborted(ctx, run, err)
			return run, err
		}
		step := run.CurrentStep()
		next, err := r.Advance(ctx, run)
		if err != nil {
			obs.StepFailed(ctx, run, step, err)
			return run, err
		}
		run = next
		obs.StepSucceeded(ctx, run, step)
	}
	obs.RunCompleted(ctx, run)
	return run, nil
}

package scheduler

import (
	"context"

	"github.com/ncobase/blobjob/ctxutil"
	"github.com/ncobase/blobjob/engine"
	"github.com/ncobase/blobjob/events"
	"github.com/ncobase/blobjob/job"
	"github.com/ncobase/blobjob/logging/logger"
	"github.com/ncobase/blobjob/observes"
)

// eventObserver turns run progress into events and reports failed runs.
type eventObserver struct {
	publisher events.Publisher
}

// NewObserver returns an observer publishing run progress to p and
// reporting failed steps to sentry.
func NewObserver(p events.Publisher) engine.Observer {
	if p == nil {
		p = events.NewLogPublisher()
	}
	return &eventObserver{publisher: p}
}

func (o *eventObserver) publish(ctx context.Context, e events.Event, run job.Run) {
	e.JobName = run.Name
	e.Current = run.Current
	e.StepCount = run.StepCount
	// events of a cancelled run are still delivered
	pctx, cancel := ctxutil.WithAsyncContextDefault(ctx)
	defer cancel()
	if err := o.publisher.Publish(pctx, e); err != nil {
		logger.Warnf(ctx, "failed to publish %s: %v", e.Type, err)
	}
}

func (o *eventObserver) RunStarted(ctx context.Context, run job.Run) {
	o.publish(ctx, events.New(events.RunStarted, run.ID), run)
}

func (o *eventObserver) StepSucceeded(ctx context.Context, run job.Run, step job.Step) {
	o.publish(ctx, events.New(events.StepSucceeded, run.ID).WithStep(step.ID, step.Name), run)
}

func (o *eventObserver) StepFailed(ctx context.Context, run job.Run, step job.Step, err error) {
	e := events.New(events.StepFailed, run.ID).WithStep(step.ID, step.Name)
	e.Error = err.Error()
	o.publish(ctx, e, run)
	observes.CaptureRunFailure(ctx, run, err)
}

func (o *eventObserver) RunCompleted(ctx context.Context, run job.Run) {
	o.publish(ctx, events.New(events.RunCompleted, run.ID), run)
}

func (o *eventObserver) RunAborted(ctx context.Context, run job.Run, err error) {
	e := events.New(events.RunAborted, run.ID)
	e.Error = err.Error()
	o.publish(ctx, e, run)
	observes.CaptureRunFailure(ctx, run, err)
}

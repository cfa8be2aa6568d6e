// Package scheduler turns stored jobs into runs: it checks that a job may
// start, fires runs on the job's cron schedule and executes them on a
// worker pool, one run per job at a time.
package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/ncobase/blobjob/job"
)

var (
	// ErrNotValidated is returned when a job's steps are not VALID.
	ErrNotValidated = errors.New("job is not validated")
	// ErrDisabled is returned when a job is not ENABLED.
	ErrDisabled = errors.New("job is disabled")
	// ErrBusy is returned when a run of the job is already in flight.
	ErrBusy = errors.New("job already has a run in flight")
)

// JobSource loads jobs.
type JobSource interface {
	GetDetails(ctx context.Context, id string) (*job.Details, error)
	GetSteps(ctx context.Context, id string) ([]job.Step, error)
}

// Starter builds the first run of a job after checking it may run.
type Starter struct {
	src JobSource
}

// NewStarter creates a starter reading from src.
func NewStarter(src JobSource) *Starter {
	return &Starter{src: src}
}

// Start returns a run positioned at the first step. The job must be
// ENABLED and its steps VALID. The run id is the job id.
func (s *Starter) Start(ctx context.Context, id string) (job.Run, error) {
	d, err := s.src.GetDetails(ctx, id)
	if err != nil {
		return job.Run{}, err
	}
	if d.State != job.StateEnabled {
		return job.Run{}, fmt.Errorf("%w: %s is %s", ErrDisabled, id, d.State)
	}
	if d.ValidationState != job.Valid {
		return job.Run{}, fmt.Errorf("%w: %s is %s", ErrNotValidated, id, d.ValidationState)
	}

	steps, err := s.src.GetSteps(ctx, id)
	if err != nil {
		return job.Run{}, err
	}
	return job.NewRun(d.ID, d.Name, steps), nil
}

// newExecutionID identifies one execution of a run in logs and events.
func newExecutionID() string {
	return uuid.NewString()
}

package validation

import (
	"context"
	"errors"
	"fmt"

	"github.com/ncobase/blobjob/events"
	"github.com/ncobase/blobjob/job"
	"github.com/ncobase/blobjob/logging/logger"
)

// Repository is the part of the job store the service needs.
type Repository interface {
	GetRawSteps(ctx context.Context, id string) ([]byte, error)
	SetValidationState(ctx context.Context, id string, state job.ValidationState, reason string) error
}

// Service re-validates a job whenever its step list changes.
type Service struct {
	repo      Repository
	validator *StepValidator
	publisher events.Publisher
}

// NewService creates a validation service. A nil publisher logs events.
func NewService(repo Repository, v *StepValidator, p events.Publisher) (*Service, error) {
	if repo == nil {
		return nil, errors.New("job repository is required")
	}
	if v == nil {
		v = NewStepValidator()
	}
	if p == nil {
		p = events.NewLogPublisher()
	}
	return &Service{repo: repo, validator: v, publisher: p}, nil
}

// HandleStepsChanged marks the job VALIDATING, validates the stored step
// list and records the verdict. The verdict is returned even when the
// job.validated event cannot be published.
func (s *Service) HandleStepsChanged(ctx context.Context, jobID string) (Verdict, error) {
	ctx = logger.WithJobID(ctx, jobID)

	if err := s.repo.SetValidationState(ctx, jobID, job.Validating, ""); err != nil {
		return Verdict{}, fmt.Errorf("failed to mark job %s as validating: %w", jobID, err)
	}

	raw, err := s.repo.GetRawSteps(ctx, jobID)
	if err != nil {
		return Verdict{}, fmt.Errorf("failed to load steps of job %s: %w", jobID, err)
	}

	verdict := s.validator.ValidateJSON(raw)
	if err := s.repo.SetValidationState(ctx, jobID, verdict.State, verdict.Reason); err != nil {
		return Verdict{}, fmt.Errorf("failed to store verdict of job %s: %w", jobID, err)
	}

	if verdict.Valid() {
		logger.Infof(ctx, "job validated")
	} else {
		logger.Warnf(ctx, "job rejected: %s", verdict.Reason)
	}

	e := events.New(events.JobValidated, jobID)
	e.State = string(verdict.State)
	e.Error = verdict.Reason
	if err := s.publisher.Publish(ctx, e); err != nil {
		logger.Errorf(ctx, "failed to publish %s: %v", e.Type, err)
	}
	return verdict, nil
}

// Handle adapts the service to events.StepsChangedHandler.
func (s *Service) Handle(ctx context.Context, jobID string) error {
	_, err := s.HandleStepsChanged(ctx, jobID)
	return err
}

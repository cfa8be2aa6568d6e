package events

import (
	"context"

	"github.com/ncobase/blobjob/logging/logger"
	"github.com/sirupsen/logrus"
)

// LogPublisher writes events to the standard logger.
type LogPublisher struct{}

// NewLogPublisher returns a publisher that only logs.
func NewLogPublisher() *LogPublisher { return &LogPublisher{} }

func (LogPublisher) Publish(ctx context.Context, e Event) error {
	fields := logrus.Fields{
		"event":      e.Type,
		"event_id":   e.ID,
		"current":    e.Current,
		"step_count": e.StepCount,
	}
	if e.StepID != nil {
		fields["step_id"] = *e.StepID
		fields["step_name"] = e.StepName
	}
	if e.State != "" {
		fields["state"] = e.State
	}
	if e.Error != "" {
		fields["error"] = e.Error
	}
	logger.WithFields(logger.WithJobID(ctx, e.JobID), fields).Info("event")
	return nil
}

func (LogPublisher) Close() error { return nil }

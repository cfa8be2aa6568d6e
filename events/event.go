// Package events publishes job lifecycle events and consumes step list
// change notifications.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Type names an event.
type Type string

const (
	RunStarted    Type = "run.started"
	StepSucceeded Type = "step.succeeded"
	StepFailed    Type = "step.failed"
	RunCompleted  Type = "run.completed"
	RunAborted    Type = "run.aborted"
	JobValidated  Type = "job.validated"
)

// Event is the JSON document written to the broker.
type Event struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	JobID     string    `json:"jobId"`
	JobName   string    `json:"jobName,omitempty"`
	StepID    *int      `json:"stepId,omitempty"`
	StepName  string    `json:"stepName,omitempty"`
	Current   int       `json:"current"`
	StepCount int       `json:"stepCount"`
	State     string    `json:"state,omitempty"`
	Error     string    `json:"error,omitempty"`
	Time      time.Time `json:"time"`
}

// New creates an event of type t for jobID.
func New(t Type, jobID string) Event {
	return Event{
		ID:    uuid.NewString(),
		Type:  t,
		JobID: jobID,
		Time:  time.Now().UTC(),
	}
}

// WithStep sets the step fields.
func (e Event) WithStep(id int, name string) Event {
	e.StepID = &id
	e.StepName = name
	return e
}

// Marshal encodes the event.
func (e Event) Marshal() ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event %s: %w", e.Type, err)
	}
	return b, nil
}

// Publisher delivers events to a broker.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Config selects and configures the publisher.
type Config struct {
	Provider       string        // kafka, rabbitmq or log
	Brokers        []string      // kafka brokers
	Topic          string        // kafka topic or rabbitmq routing key prefix
	URL            string        // amqp url
	Exchange       string        // rabbitmq exchange
	ValidateTopic  string        // kafka topic carrying step list changes
	GroupID        string        // kafka consumer group
	PublishTimeout time.Duration // per publish, including confirmation
}

// NewPublisher builds the configured publisher. Unknown or empty providers
// fall back to logging.
func NewPublisher(cfg *Config) (Publisher, error) {
	if cfg == nil {
		return NewLogPublisher(), nil
	}
	switch cfg.Provider {
	case "kafka":
		return NewKafkaPublisher(cfg)
	case "rabbitmq":
		return NewRabbitMQPublisher(cfg)
	case "", "log", "none":
		return NewLogPublisher(), nil
	default:
		return nil, fmt.Errorf("unsupported events provider: %s", cfg.Provider)
	}
}

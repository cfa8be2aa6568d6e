package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ncobase/blobjob/logging/logger"
	"github.com/segmentio/kafka-go"
)

// StepsChangedHandler is called with the id of a job whose step list changed.
type StepsChangedHandler func(ctx context.Context, jobID string) error

// stepsChanged is the payload of a steps-changed message.
type stepsChanged struct {
	JobID string `json:"jobId"`
}

// ParseStepsChanged extracts the job id from a steps-changed message. The
// JSON body wins; the message key is the fallback.
func ParseStepsChanged(key, value []byte) (string, error) {
	if len(value) > 0 {
		var msg stepsChanged
		if err := json.Unmarshal(value, &msg); err == nil && msg.JobID != "" {
			return msg.JobID, nil
		}
	}
	if id := strings.TrimSpace(string(key)); id != "" {
		return id, nil
	}
	return "", errors.New("steps-changed message carries no job id")
}

// KafkaConsumer reads steps-changed notifications from a topic.
type KafkaConsumer struct {
	reader  *kafka.Reader
	handler StepsChangedHandler
}

// NewKafkaConsumer creates a consumer for cfg.ValidateTopic.
func NewKafkaConsumer(cfg *Config, h StepsChangedHandler) (*KafkaConsumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	if cfg.ValidateTopic == "" {
		return nil, errors.New("kafka validate topic is required")
	}
	if h == nil {
		return nil, errors.New("steps-changed handler is required")
	}
	groupID := cfg.GroupID
	if groupID == "" {
		groupID = "blobjob-validator"
	}
	return &KafkaConsumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  cfg.Brokers,
			Topic:    cfg.ValidateTopic,
			GroupID:  groupID,
			MinBytes: 1,
			MaxBytes: 10e6,
		}),
		handler: h,
	}, nil
}

// Run consumes until ctx is cancelled. Handler failures are logged and the
// message is committed anyway; a re-validation is triggered by the next
// change.
func (c *KafkaConsumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to fetch message: %w", err)
		}
		c.handle(ctx, msg)
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			logger.Warnf(ctx, "failed to commit offset %d: %v", msg.Offset, err)
		}
	}
}

func (c *KafkaConsumer) handle(ctx context.Context, msg kafka.Message) {
	jobID, err := ParseStepsChanged(msg.Key, msg.Value)
	if err != nil {
		logger.Warnf(ctx, "skipping message at offset %d: %v", msg.Offset, err)
		return
	}
	ctx = logger.WithJobID(ctx, jobID)
	if err := c.handler(ctx, jobID); err != nil {
		logger.Errorf(ctx, "failed to handle steps change: %v", err)
	}
}

// Close closes the reader.
func (c *KafkaConsumer) Close() error {
	return c.reader.Close()
}

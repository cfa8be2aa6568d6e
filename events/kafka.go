package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaPublisher writes events to a topic keyed by job id, so all events of
// a job land on one partition in order.
type KafkaPublisher struct {
	writer  *kafka.Writer
	timeout time.Duration
}

// NewKafkaPublisher creates a Kafka publisher.
func NewKafkaPublisher(cfg *Config) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka topic is required")
	}
	timeout := cfg.PublishTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 10 * time.Millisecond,
			RequiredAcks: kafka.RequireAll,
			Async:        false,
		},
		timeout: timeout,
	}, nil
}

// Publish writes one event.
func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	body, err := e.Marshal()
	if err != nil {
		return err
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err = p.writer.WriteMessages(timeoutCtx, kafka.Message{
		Key:   []byte(e.JobID),
		Value: body,
		Time:  e.Time,
	})
	if err != nil {
		return fmt.Errorf("failed to publish %s to kafka: %w", e.Type, err)
	}
	return nil
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

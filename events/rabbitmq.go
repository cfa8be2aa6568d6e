package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitMQPublisher publishes events to a topic exchange with routing key
// "<topic>.<event type>".
type RabbitMQPublisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	publish  publishFunc
	exchange string
	prefix   string
	timeout  time.Duration
}

// confirmation is the broker acknowledgement of one published message.
type confirmation interface {
	WaitContext(ctx context.Context) (bool, error)
}

type publishFunc func(ctx context.Context, exchange, key string, msg amqp.Publishing) (confirmation, error)

// deferredPublish publishes on a channel in confirm mode. Each message gets
// its own confirmation, so a late ack is never read by a later publish.
func deferredPublish(ch *amqp.Channel) publishFunc {
	return func(ctx context.Context, exchange, key string, msg amqp.Publishing) (confirmation, error) {
		dc, err := ch.PublishWithDeferredConfirmWithContext(
			ctx,
			exchange, // exchange
			key,      // routing key
			false,    // mandatory
			false,    // immediate
			msg,
		)
		if err != nil {
			return nil, err
		}
		if dc == nil {
			return nil, errors.New("channel is not in confirm mode")
		}
		return dc, nil
	}
}

// NewRabbitMQPublisher dials the broker and declares the exchange.
func NewRabbitMQPublisher(cfg *Config) (*RabbitMQPublisher, error) {
	if cfg.URL == "" {
		return nil, errors.New("rabbitmq url is required")
	}
	exchange := cfg.Exchange
	if exchange == "" {
		exchange = "blobjob"
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchange, // exchange name
		"topic",  // exchange type
		true,     // durable
		false,    // auto-delete
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	if err := ch.Confirm(false); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to put channel in confirm mode: %w", err)
	}

	timeout := cfg.PublishTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RabbitMQPublisher{
		conn:     conn,
		ch:       ch,
		publish:  deferredPublish(ch),
		exchange: exchange,
		prefix:   cfg.Topic,
		timeout:  timeout,
	}, nil
}

func (p *RabbitMQPublisher) routingKey(t Type) string {
	if p.prefix == "" {
		return string(t)
	}
	return p.prefix + "." + string(t)
}

// Publish sends one event and waits for the broker confirmation.
func (p *RabbitMQPublisher) Publish(ctx context.Context, e Event) error {
	body, err := e.Marshal()
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn != nil && p.conn.IsClosed() {
		return errors.New("rabbitmq connection is not available")
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	dc, err := p.publish(ctx, p.exchange, p.routingKey(e.Type), amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    e.ID,
		Timestamp:    e.Time,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	acked, err := dc.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("publish confirmation: %w", err)
	}
	if !acked {
		return fmt.Errorf("broker rejected event %s", e.ID)
	}
	return nil
}

// Close closes the channel and connection.
func (p *RabbitMQPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.ch.Close()
	return p.conn.Close()
}

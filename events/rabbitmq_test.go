package events

import (
	"context"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// fakeConfirm resolves with the value sent on ack.
type fakeConfirm struct {
	ack chan bool
}

func (c *fakeConfirm) WaitContext(ctx context.Context) (bool, error) {
	select {
	case ok := <-c.ack:
		return ok, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

type fakeBroker struct {
	keys      []string
	published chan *fakeConfirm
}

func (b *fakeBroker) publish(_ context.Context, _, key string, _ amqp.Publishing) (confirmation, error) {
	c := &fakeConfirm{ack: make(chan bool, 1)}
	b.keys = append(b.keys, key)
	b.published <- c
	return c, nil
}

func TestRabbitMQConfirmsArePerMessage(t *testing.T) {
	b := &fakeBroker{published: make(chan *fakeConfirm, 3)}
	p := &RabbitMQPublisher{publish: b.publish, exchange: "blobjob", prefix: "jobs", timeout: 20 * time.Millisecond}
	ctx := context.Background()

	// first message is not confirmed in time
	if err := p.Publish(ctx, New(RunStarted, "j1")); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("first publish err = %v", err)
	}
	late := <-b.published
	late.ack <- true
	p.timeout = 5 * time.Second

	done := make(chan error, 1)
	go func() { done <- p.Publish(ctx, New(StepSucceeded, "j1")) }()
	(<-b.published).ack <- false
	if err := <-done; err == nil {
		t.Fatal("rejected publish took the late ack of the previous message")
	}

	go func() { done <- p.Publish(ctx, New(RunCompleted, "j1")) }()
	(<-b.published).ack <- true
	if err := <-done; err != nil {
		t.Fatalf("acked publish: %v", err)
	}

	want := []string{"jobs.run.started", "jobs.step.succeeded", "jobs.run.completed"}
	for i, k := range want {
		if b.keys[i] != k {
			t.Errorf("key[%d] = %q, want %q", i, b.keys[i], k)
		}
	}
}

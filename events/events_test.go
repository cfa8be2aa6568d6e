package events

import (
	"context"
	"encoding/json"
	"testing"
)

func TestNewPublisherSelectsProvider(t *testing.T) {
	for _, cfg := range []*Config{nil, {}, {Provider: "log"}, {Provider: "none"}} {
		p, err := NewPublisher(cfg)
		if err != nil {
			t.Fatalf("NewPublisher(%+v): %v", cfg, err)
		}
		if _, ok := p.(*LogPublisher); !ok {
			t.Errorf("NewPublisher(%+v) = %T, want *LogPublisher", cfg, p)
		}
	}

	if _, err := NewPublisher(&Config{Provider: "nats"}); err == nil {
		t.Error("expected error for unknown provider")
	}
	if _, err := NewPublisher(&Config{Provider: "kafka"}); err == nil {
		t.Error("expected error for kafka without brokers")
	}
	if _, err := NewPublisher(&Config{Provider: "rabbitmq"}); err == nil {
		t.Error("expected error for rabbitmq without url")
	}
}

func TestKafkaPublisherDefaults(t *testing.T) {
	p, err := NewKafkaPublisher(&Config{Brokers: []string{"localhost:9092"}, Topic: "jobs"})
	if err != nil {
		t.Fatalf("NewKafkaPublisher: %v", err)
	}
	defer p.Close()
	if p.writer.Topic != "jobs" {
		t.Errorf("topic = %q", p.writer.Topic)
	}
	if p.timeout <= 0 {
		t.Errorf("timeout not defaulted: %v", p.timeout)
	}
}

func TestEventMarshal(t *testing.T) {
	e := New(StepFailed, "job-1").WithStep(3, "merge logs")
	e.Error = "boom"
	b, err := e.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]any
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatal(err)
	}
	if got["type"] != "step.failed" || got["jobId"] != "job-1" {
		t.Errorf("unexpected payload %s", b)
	}
	if got["stepId"].(float64) != 3 || got["stepName"] != "merge logs" {
		t.Errorf("step fields missing in %s", b)
	}
	if e.ID == "" || e.Time.IsZero() {
		t.Error("id and time must be set")
	}
}

func TestEventOmitsStepWhenUnset(t *testing.T) {
	b, _ := New(RunStarted, "job-1").Marshal()
	var got map[string]any
	_ = json.Unmarshal(b, &got)
	if _, ok := got["stepId"]; ok {
		t.Errorf("stepId should be omitted: %s", b)
	}
}

func TestLogPublisher(t *testing.T) {
	p := NewLogPublisher()
	if err := p.Publish(context.Background(), New(RunCompleted, "job-1")); err != nil {
		t.Fatal(err)
	}
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestParseStepsChanged(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		want    string
		wantErr bool
	}{
		{name: "body", value: `{"jobId":"a"}`, want: "a"},
		{name: "body wins over key", key: "b", value: `{"jobId":"a"}`, want: "a"},
		{name: "key fallback", key: "b", value: `not json`, want: "b"},
		{name: "empty body id", key: " c ", value: `{"jobId":""}`, want: "c"},
		{name: "nothing", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseStepsChanged([]byte(tt.key), []byte(tt.value))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewKafkaConsumerRequiresSettings(t *testing.T) {
	h := func(context.Context, string) error { return nil }
	if _, err := NewKafkaConsumer(&Config{}, h); err == nil {
		t.Error("expected error without brokers")
	}
	if _, err := NewKafkaConsumer(&Config{Brokers: []string{"x:9092"}}, h); err == nil {
		t.Error("expected error without topic")
	}
	if _, err := NewKafkaConsumer(&Config{Brokers: []string{"x:9092"}, ValidateTopic: "t"}, nil); err == nil {
		t.Error("expected error without handler")
	}
	c, err := NewKafkaConsumer(&Config{Brokers: []string{"x:9092"}, ValidateTopic: "t"}, h)
	if err != nil {
		t.Fatal(err)
	}
	_ = c.Close()
}

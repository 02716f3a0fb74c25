package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
)

type fakeChannel struct {
	publishFn func(ctx context.Context, exchange, key string, msg amqp.Publishing) error
	closed    bool
}

func (c *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	if c.publishFn != nil {
		return c.publishFn(ctx, exchange, key, msg)
	}
	return nil
}

func (c *fakeChannel) Close() error {
	c.closed = true
	return nil
}

func newTestPublisher(ch *fakeChannel, openErr error) *RabbitMQPublisher {
	return &RabbitMQPublisher{
		exchange: "activity.events",
		openChannel: func(ctx context.Context) (publishChannel, error) {
			if openErr != nil {
				return nil, openErr
			}
			return ch, nil
		},
	}
}

func sampleEvent() InstructionEvent {
	return InstructionEvent{
		EID:    InstructionEventID,
		ETS:    1767225600000,
		MID:    "LP.1767225600000.mid-1",
		Object: EventObject{ID: "A1", Type: "Competency Framework"},
		EData: EventData{
			Action:     ActionBatchCreate,
			BatchID:    "B1",
			ActivityID: "A1",
			Iteration:  1,
		},
	}
}

func TestRabbitMQPublisher_Publish(t *testing.T) {
	t.Parallel()

	var gotExchange, gotKey string
	var gotMsg amqp.Publishing
	ch := &fakeChannel{
		publishFn: func(ctx context.Context, exchange, key string, msg amqp.Publishing) error {
			gotExchange, gotKey, gotMsg = exchange, key, msg
			return nil
		},
	}

	if err := newTestPublisher(ch, nil).Publish(context.Background(), "B1", "activity.batch", sampleEvent()); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	if gotExchange != "activity.events" || gotKey != "activity.batch" {
		t.Fatalf("published to %s/%s, want activity.events/activity.batch", gotExchange, gotKey)
	}
	if gotMsg.MessageId != "LP.1767225600000.mid-1" {
		t.Fatalf("MessageId = %q, want event mid", gotMsg.MessageId)
	}
	if gotMsg.Headers[partitionKeyHeader] != "B1" {
		t.Fatalf("partition key header = %v, want B1", gotMsg.Headers[partitionKeyHeader])
	}
	if gotMsg.DeliveryMode != amqp.Persistent {
		t.Fatalf("DeliveryMode = %d, want persistent", gotMsg.DeliveryMode)
	}
	if !ch.closed {
		t.Fatal("channel should be closed after publish")
	}

	var body map[string]any
	if err := json.Unmarshal(gotMsg.Body, &body); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	edata, _ := body["edata"].(map[string]any)
	if body["eid"] != InstructionEventID || edata["action"] != ActionBatchCreate {
		t.Fatalf("body = %v, want BE_JOB_REQUEST batch-create", body)
	}
	if _, ok := edata["userIds"]; ok {
		t.Fatal("unset optional edata fields must be omitted")
	}
}

func TestRabbitMQPublisher_PublishErrors(t *testing.T) {
	t.Parallel()

	invalid := sampleEvent()
	invalid.EData.BatchID = ""

	tests := []struct {
		name    string
		pub     *RabbitMQPublisher
		topic   string
		event   InstructionEvent
		wantErr string
	}{
		{name: "uninitialized", pub: &RabbitMQPublisher{}, topic: "t", event: sampleEvent()},
		{name: "missing topic", pub: newTestPublisher(&fakeChannel{}, nil), topic: " ", event: sampleEvent()},
		{name: "invalid event", pub: newTestPublisher(&fakeChannel{}, nil), topic: "t", event: invalid},
		{name: "channel error", pub: newTestPublisher(nil, errors.New("broker down")), topic: "t", event: sampleEvent()},
		{
			name: "publish error",
			pub: newTestPublisher(&fakeChannel{publishFn: func(context.Context, string, string, amqp.Publishing) error {
				return errors.New("nack")
			}}, nil),
			topic: "t",
			event: sampleEvent(),
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if err := tt.pub.Publish(context.Background(), "B1", tt.topic, tt.event); err == nil {
				t.Fatal("Publish() error = nil, want error")
			}
		})
	}
}

func TestTopologyNormalized(t *testing.T) {
	t.Parallel()

	got := Topology{Exchange: " ex ", Topics: []string{"a", " a", "", "b"}}.normalized()
	if got.Exchange != "ex" || len(got.Topics) != 2 || got.Topics[0] != "a" || got.Topics[1] != "b" {
		t.Fatalf("normalized() = %+v, want ex with [a b]", got)
	}
}

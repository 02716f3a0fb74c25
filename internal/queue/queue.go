package queue

import (
	"context"
	"errors"
	"strings"
)

// ErrPublishBufferFull is returned when the async dispatcher cannot accept more events.
var ErrPublishBufferFull = errors.New("event buffer is full")

// EventPublisher sends instruction events to a topic. Events sharing a
// partition key are routed to the same ordering partition downstream.
type EventPublisher interface {
	Publish(ctx context.Context, partitionKey string, topic string, event InstructionEvent) error
	Close() error
}

const partitionKeyHeader = "x-partition-key"

// Topology names the exchange and the topics bound to it.
type Topology struct {
	Exchange string
	Topics   []string
}

func (t Topology) normalized() Topology {
	topics := make([]string, 0, len(t.Topics))
	seen := make(map[string]struct{}, len(t.Topics))
	for _, topic := range t.Topics {
		topic = strings.TrimSpace(topic)
		if topic == "" {
			continue
		}
		if _, ok := seen[topic]; ok {
			continue
		}
		seen[topic] = struct{}{}
		topics = append(topics, topic)
	}
	return Topology{Exchange: strings.TrimSpace(t.Exchange), Topics: topics}
}

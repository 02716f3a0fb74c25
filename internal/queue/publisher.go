package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

type publishChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type RabbitMQPublisher struct {
	exchange    string
	openChannel func(ctx context.Context) (publishChannel, error)
	close       func() error
}

func NewRabbitMQPublisher(client *RabbitMQ) *RabbitMQPublisher {
	if client == nil {
		return &RabbitMQPublisher{}
	}
	return &RabbitMQPublisher{
		exchange: client.Exchange(),
		openChannel: func(ctx context.Context) (publishChannel, error) {
			return client.channel(ctx)
		},
		close: client.Close,
	}
}

// Publish routes the event to topic on the configured exchange with persistent delivery.
func (p *RabbitMQPublisher) Publish(ctx context.Context, partitionKey string, topic string, event InstructionEvent) error {
	if p == nil || p.openChannel == nil {
		return fmt.Errorf("publisher is not initialized")
	}
	if strings.TrimSpace(topic) == "" {
		return fmt.Errorf("topic is required")
	}
	if err := event.Validate(); err != nil {
		return fmt.Errorf("invalid instruction event: %w", err)
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal instruction event: %w", err)
	}

	ch, err := p.openChannel(ctx)
	if err != nil {
		return err
	}
	defer ch.Close()

	publishing := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.UnixMilli(event.ETS).UTC(),
		MessageId:    event.MID,
		Headers:      amqp.Table{partitionKeyHeader: partitionKey},
		Body:         payload,
	}

	if err := ch.PublishWithContext(ctx, p.exchange, topic, false, false, publishing); err != nil {
		return fmt.Errorf("failed to publish event to topic %q: %w", topic, err)
	}

	return nil
}

func (p *RabbitMQPublisher) Close() error {
	if p == nil || p.close == nil {
		return nil
	}
	return p.close()
}

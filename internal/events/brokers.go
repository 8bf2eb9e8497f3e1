package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	kafkago "github.com/segmentio/kafka-go"

	"shoestore/pkg/kafka"
	"shoestore/pkg/rabbitmq"
)

// RabbitMQPublisher routes events to the order exchange keyed by event type.
type RabbitMQPublisher struct {
	client *rabbitmq.Client
}

// NewRabbitMQPublisher wraps a connected RabbitMQ client.
func NewRabbitMQPublisher(client *rabbitmq.Client) *RabbitMQPublisher {
	return &RabbitMQPublisher{client: client}
}

// PublishOrderEvent implements Publisher.
func (p *RabbitMQPublisher) PublishOrderEvent(_ context.Context, event OrderEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal order event: %w", err)
	}
	return p.client.Publish(event.Type, body)
}

// KafkaPublisher writes events keyed by order id so one order stays on one partition.
type KafkaPublisher struct {
	producer *kafka.Producer
}

// NewKafkaPublisher wraps a started Kafka producer.
func NewKafkaPublisher(producer *kafka.Producer) *KafkaPublisher {
	return &KafkaPublisher{producer: producer}
}

// PublishOrderEvent implements Publisher.
func (p *KafkaPublisher) PublishOrderEvent(ctx context.Context, event OrderEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal order event: %w", err)
	}
	return p.producer.Publish(ctx, []byte(event.OrderID), body,
		kafkago.Header{Key: "x-event-type", Value: []byte(event.Type)},
		kafkago.Header{Key: "x-event-version", Value: []byte(strconv.Itoa(event.Version))},
	)
}

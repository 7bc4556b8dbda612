package events

import (
	"context"

	"medigo/pkg/kafka"
	"medigo/pkg/rabbitmq"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/streadway/amqp"
)

// Broker names used for topology.
const (
	AMQPExchange     = "medigo.events"
	AMQPQueue        = "medigo.notifications"
	KafkaTopicPrefix = "medigo."
	ConsumerGroup    = "medigo-notifications"
)

// KafkaTopic maps an event type to its topic.
func KafkaTopic(eventType string) string {
	return KafkaTopicPrefix + eventType
}

// AMQPPublisher publishes events to the RabbitMQ topic exchange with the
// event type as routing key.
type AMQPPublisher struct {
	client *rabbitmq.Client
}

func NewAMQPPublisher(client *rabbitmq.Client) *AMQPPublisher {
	return &AMQPPublisher{client: client}
}

func (p *AMQPPublisher) Publish(ctx context.Context, e Event) error {
	body, err := Encode(e)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, e.Type, body)
}

// ConsumeAMQP feeds queued events to handle until ctx is done.
func ConsumeAMQP(ctx context.Context, client *rabbitmq.Client, handle HandlerFunc) error {
	return client.Consume(ctx, ConsumerGroup, func(msg amqp.Delivery) error {
		e, err := Decode(msg.Body)
		if err != nil {
			return err
		}
		return handle(ctx, e)
	})
}

// KafkaPublisher writes each event to its per-type topic, keyed by order
// or product id.
type KafkaPublisher struct {
	client *kafka.Client
}

func NewKafkaPublisher(client *kafka.Client) *KafkaPublisher {
	return &KafkaPublisher{client: client}
}

func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	body, err := Encode(e)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, KafkaTopic(e.Type), []byte(e.Key()), body)
}

// ConsumeKafka blocks, feeding events from every event topic to handle.
func ConsumeKafka(ctx context.Context, client *kafka.Client, handle HandlerFunc) error {
	topics := make([]string, 0, len(Types))
	for _, t := range Types {
		topics = append(topics, KafkaTopic(t))
	}
	return client.Consume(ctx, topics, func(msg kafkago.Message) error {
		e, err := Decode(msg.Value)
		if err != nil {
			return err
		}
		return handle(ctx, e)
	})
}

package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Config holds Kafka connection details.
type Config struct {
	Brokers []string
	GroupID string
	Logger  *zap.Logger
}

// Client publishes to any topic through one writer and consumes through
// consumer-group readers.
type Client struct {
	writer *kafka.Writer
	cfg    Config
	log    *zap.Logger
}

func NewClient(cfg Config) *Client {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Client{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Balancer:               &kafka.LeastBytes{},
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
		},
		cfg: cfg,
		log: cfg.Logger,
	}
}

// Message builds a keyed message for topic. Messages sharing a key land on
// the same partition, which keeps one order's events in sequence.
func Message(topic string, key, value []byte) kafka.Message {
	return kafka.Message{
		Topic: topic,
		Key:   key,
		Value: value,
		Time:  time.Now(),
	}
}

func (c *Client) Publish(ctx context.Context, topic string, key, value []byte) error {
	if err := c.writer.WriteMessages(ctx, Message(topic, key, value)); err != nil {
		return fmt.Errorf("failed to write message to %s: %w", topic, err)
	}
	return nil
}

// Consume reads topics as part of the configured consumer group and blocks
// until ctx is done. A message whose handler fails is logged and its offset
// committed anyway, so one bad event never stalls the partition.
func (c *Client) Consume(ctx context.Context, topics []string, handler func(msg kafka.Message) error) error {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     c.cfg.Brokers,
		GroupID:     c.cfg.GroupID,
		GroupTopics: topics,
	})
	defer reader.Close()
	return c.consume(ctx, reader, handler)
}

// fetcher is the part of *kafka.Reader the consume loop needs.
type fetcher interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

func (c *Client) consume(ctx context.Context, r fetcher, handler func(msg kafka.Message) error) error {
	for {
		msg, err := r.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return fmt.Errorf("failed to fetch message: %w", err)
		}
		if err := handler(msg); err != nil {
			c.log.Error("failed to process message, skipping",
				zap.String("topic", msg.Topic),
				zap.Int64("offset", msg.Offset),
				zap.Error(err),
			)
		}
		if err := r.CommitMessages(ctx, msg); err != nil {
			c.log.Warn("failed to commit offset", zap.String("topic", msg.Topic), zap.Error(err))
		}
	}
}

func (c *Client) Close() error {
	return c.writer.Close()
}

package kafka

import (
	"context"
	"encoding/json"

	"github.com/example/asset-lending/internal/infrastructure/store"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventHandler receives one decoded event
type EventHandler func(ctx context.Context, event store.Event) error

type Consumer struct {
	reader *kafka.Reader
	log    *zap.Logger
}

func NewConsumer(brokers []string, topic, groupID string, log *zap.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{reader: reader, log: log}
}

// Consume reads messages until ctx is done. Messages that cannot be decoded
// or handled are logged and skipped.
func (c *Consumer) Consume(ctx context.Context, handler EventHandler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				c.log.Error("failed to read message", zap.Error(err))
				continue
			}

			var event store.Event
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				c.log.Warn("skipping undecodable message",
					zap.ByteString("key", msg.Key),
					zap.Int64("offset", msg.Offset),
					zap.Error(err))
				continue
			}

			if err := handler(ctx, event); err != nil {
				c.log.Error("failed to handle event",
					zap.String("event_id", event.ID),
					zap.String("event_type", event.EventType),
					zap.Error(err))
			}
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

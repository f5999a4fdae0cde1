// Package kafka provides the Kafka producer and consumer used by the
// pipeline, backed by segmentio/kafka-go. Events travel as JSON.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/pulsewatch/social-pulse/pkg/config"
	"github.com/segmentio/kafka-go"
)

// MessageHandler processes one consumed message. A nil return commits the
// offset; an error leaves it uncommitted for redelivery.
type MessageHandler func(ctx context.Context, key []byte, value []byte) error

// Consumer reads ingest events from a single topic and dispatches them to a
// handler. It runs until its context is cancelled and closes the reader on
// the way out.
type Consumer struct {
	reader  *kafka.Reader
	logger  *slog.Logger
	handler MessageHandler
}

// NewConsumer creates a Consumer for the given topic and handler.
func NewConsumer(cfg config.KafkaConfig, topic string, handler MessageHandler) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers: cfg.Brokers,
		Topic:   topic,
		GroupID: cfg.ConsumerGroup,
		// Ingest events are a few hundred bytes of JSON; fetches return as
		// soon as one is available instead of waiting to fill a batch.
		MinBytes: 1,
		MaxBytes: 1 << 20,
		// Live counters track ingestion from service start onward; history
		// is already queryable in Postgres.
		StartOffset: kafka.LastOffset,
	})

	return &Consumer{
		reader:  r,
		logger:  slog.Default().With("component", "kafka-consumer", "topic", topic),
		handler: handler,
	}
}

// Start consumes until ctx is cancelled. Offsets are committed only after
// the handler returns nil, so a crash between handling and commit redelivers
// the event; handlers must tolerate replays.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consuming ingest events")
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer stopping")
				return c.reader.Close()
			}
			c.logger.Error("failed to fetch message", "error", err)
			continue
		}

		if err := c.handler(ctx, msg.Key, msg.Value); err != nil {
			c.logger.Error("handler failed, offset left uncommitted",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
			continue
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Error("failed to commit offset",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
		}
	}
}

// DecodeJSON unmarshals a message value into T.
func DecodeJSON[T any](value []byte) (T, error) {
	var result T
	if err := json.Unmarshal(value, &result); err != nil {
		return result, fmt.Errorf("decoding kafka message: %w", err)
	}
	return result, nil
}

package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"forest-fashion/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// messageWriter is the part of kafka.Writer the producer uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	writer messageWriter
}

// NewProducer creates a new Kafka producer
func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		MaxAttempts:            3,
		WriteTimeout:           10 * time.Second,
		ReadTimeout:            10 * time.Second,
		AllowAutoTopicCreation: true,
	}

	return &Producer{writer: writer}
}

// PublishEvent publishes an event to Kafka. Messages sharing a key land on
// the same partition, so events of one order stay ordered.
func (p *Producer) PublishEvent(ctx context.Context, key, eventType string, event interface{}) error {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:     []byte(key),
		Value:   eventBytes,
		Time:    time.Now(),
		Headers: []kafka.Header{{Key: "event-type", Value: []byte(eventType)}},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}

	util.GetLogger().Debug("Published event", zap.String("key", key), zap.String("event_type", eventType))
	return nil
}

// Close closes the producer
func (p *Producer) Close() error {
	return p.writer.Close()
}

// messageReader is the part of kafka.Reader the consumer uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer represents a Kafka consumer
type Consumer struct {
	reader     messageReader
	topic      string
	minBackoff time.Duration
	maxBackoff time.Duration
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: time.Second,
		StartOffset:    kafka.FirstOffset,
	})

	return &Consumer{
		reader:     reader,
		topic:      topic,
		minBackoff: 200 * time.Millisecond,
		maxBackoff: 30 * time.Second,
	}
}

// Close closes the consumer
func (c *Consumer) Close() error {
	return c.reader.Close()
}

// MessageHandler is a function type for handling messages
type MessageHandler func(ctx context.Context, msg kafka.Message) error

// StartConsuming fetches messages until ctx is cancelled. Messages are
// handled one at a time and committed only once the handler accepted them.
// A failing message is retried with backoff and blocks the ones behind it,
// so the group offset never moves past it. Malformed messages are logged
// and skipped.
func (c *Consumer) StartConsuming(ctx context.Context, handler MessageHandler) error {
	logger := util.GetLogger()
	logger.Info("Starting Kafka consumer", zap.String("topic", c.topic))

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("Consumer context cancelled, stopping")
				return ctx.Err()
			}
			logger.Error("Error fetching message", zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
			continue
		}

		if err := c.handle(ctx, handler, msg); err != nil {
			// not committed: fetched again after a restart or rebalance
			logger.Info("Consumer stopped with an unhandled message", zap.Int64("offset", msg.Offset))
			return err
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			logger.Error("Error committing message", zap.Error(err))
		}
	}
}

// handle runs the handler until it succeeds, the message turns out to be
// malformed, or ctx is cancelled.
func (c *Consumer) handle(ctx context.Context, handler MessageHandler, msg kafka.Message) error {
	logger := util.GetLogger()
	delay := c.minBackoff

	for attempt := 1; ; attempt++ {
		err := handler(ctx, msg)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrMalformedEvent) {
			logger.Error("Skipping malformed message",
				zap.Int64("offset", msg.Offset),
				zap.String("key", string(msg.Key)),
				zap.Error(err))
			return nil
		}

		logger.Warn("Error handling message, retrying",
			zap.Int64("offset", msg.Offset),
			zap.String("key", string(msg.Key)),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		if delay *= 2; delay > c.maxBackoff {
			delay = c.maxBackoff
		}
	}
}

// Package dlq provides dead-letter queue functionality for undeliverable notifications
package dlq

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/Sheliakhin-Golang-portfolio/gmail-push-webhook/internal/config"
	"github.com/Sheliakhin-Golang-portfolio/gmail-push-webhook/internal/types"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const maxDLQAttempts = 3

// messageWriter is the subset of *kafka.Writer used by Producer
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer handles publishing undeliverable notifications to the dead-letter queue
type Producer struct {
	writer messageWriter
	logger *zap.Logger
	topic  string
	pause  time.Duration
}

// NewProducer creates a new DLQ producer
func NewProducer(cfg *config.Config, logger *zap.Logger) (*Producer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if !cfg.DLQ.Enabled() {
		return nil, fmt.Errorf("DLQ topic is not configured")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.DLQ.Brokers...),
		Topic:        cfg.DLQ.Topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
	}

	return &Producer{
		writer: writer,
		logger: logger,
		topic:  cfg.DLQ.Topic,
		pause:  100 * time.Millisecond,
	}, nil
}

// Publish sends an undeliverable notification to the DLQ with metadata
func (p *Producer) Publish(ctx context.Context, d *types.Delivery, errorMsg string) error {
	if d == nil {
		return fmt.Errorf("delivery cannot be nil")
	}

	value, err := json.Marshal(d.Notification)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	// Build Kafka headers with metadata
	headers := []kafka.Header{
		{Key: "error_message", Value: []byte(errorMsg)},
		{Key: "timestamp", Value: []byte(time.Now().Format(time.RFC3339))},
	}
	if d.Meta != nil {
		headers = append(headers,
			kafka.Header{Key: "enqueued_at", Value: []byte(d.Meta.EnqueuedAt.Format(time.RFC3339Nano))},
			kafka.Header{Key: "retry_attempts", Value: []byte(strconv.Itoa(d.Meta.RetryAttempt))},
			kafka.Header{Key: "max_retries", Value: []byte(strconv.Itoa(d.Meta.MaxRetries))},
		)
	}

	msg := kafka.Message{
		Key:     []byte(d.Notification.EmailAddress),
		Value:   value,
		Headers: headers,
		Time:    time.Now(),
	}

	// Attempt to write to DLQ with a small number of retries
	var lastErr error
	for attempt := range maxDLQAttempts {
		lastErr = p.writer.WriteMessages(ctx, msg)
		if lastErr == nil {
			p.logger.Info("Notification published to DLQ",
				zap.String("dlq_topic", p.topic),
				zap.Int("retry_attempts", retryAttempts(d)),
				zap.String("error", errorMsg),
			)
			return nil
		}

		p.logger.Warn("Failed to publish to DLQ, will retry",
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", maxDLQAttempts),
			zap.Error(lastErr),
		)

		if attempt < maxDLQAttempts-1 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("publish to DLQ interrupted: %w", ctx.Err())
			case <-time.After(p.pause):
			}
		}
	}

	p.logger.Error("Failed to publish notification to DLQ after all attempts",
		zap.String("dlq_topic", p.topic),
		zap.Int("max_attempts", maxDLQAttempts),
		zap.Error(lastErr),
	)

	return fmt.Errorf("failed to publish to DLQ after %d attempts: %w", maxDLQAttempts, lastErr)
}

// Close closes the DLQ producer and releases resources
func (p *Producer) Close() error {
	if p.writer != nil {
		p.logger.Info("Closing DLQ producer")
		return p.writer.Close()
	}
	return nil
}

func retryAttempts(d *types.Delivery) int {
	if d.Meta == nil {
		return 0
	}
	return d.Meta.RetryAttempt
}

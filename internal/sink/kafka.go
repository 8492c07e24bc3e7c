package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Sheliakhin-Golang-portfolio/gmail-push-webhook/internal/config"
	"github.com/Sheliakhin-Golang-portfolio/gmail-push-webhook/internal/retry"
	"github.com/Sheliakhin-Golang-portfolio/gmail-push-webhook/internal/types"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// messageWriter is the subset of *kafka.Writer used by KafkaSink
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes notifications to a Kafka topic as JSON, keyed by
// email address so that one mailbox's notifications stay ordered within a
// partition.
type KafkaSink struct {
	writer messageWriter
	logger *zap.Logger
	topic  string
}

// NewKafkaSink creates a KafkaSink for cfg.Kafka
func NewKafkaSink(cfg *config.Config, logger *zap.Logger) (*KafkaSink, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if len(cfg.Kafka.Brokers) == 0 || cfg.Kafka.Topic == "" {
		return nil, fmt.Errorf("kafka brokers and topic are required")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Kafka.Brokers...),
		Topic:        cfg.Kafka.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
	}

	return &KafkaSink{
		writer: writer,
		logger: logger,
		topic:  cfg.Kafka.Topic,
	}, nil
}

// Deliver writes n to the topic. Encoding failures are permanent;
// write failures are returned as-is for the caller to retry.
func (s *KafkaSink) Deliver(ctx context.Context, n types.Notification) error {
	value, err := json.Marshal(n)
	if err != nil {
		return retry.Permanent(fmt.Errorf("encode notification: %w", err))
	}

	msg := kafka.Message{
		Key:   []byte(n.EmailAddress),
		Value: value,
		Headers: []kafka.Header{
			{Key: "content-type", Value: []byte("application/json")},
		},
		Time: time.Now(),
	}

	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write notification to %s: %w", s.topic, err)
	}

	s.logger.Debug("Notification published",
		zap.String("topic", s.topic),
		zap.String("history_id", n.HistoryID),
	)
	return nil
}

// Close closes the Kafka writer and releases resources
func (s *KafkaSink) Close() error {
	if s.writer != nil {
		s.logger.Info("Closing Kafka sink")
		return s.writer.Close()
	}
	return nil
}

package dlq

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/Sheliakhin-Golang-portfolio/gmail-push-webhook/internal/config"
	"github.com/Sheliakhin-Golang-portfolio/gmail-push-webhook/internal/pipeline"
	"github.com/Sheliakhin-Golang-portfolio/gmail-push-webhook/internal/retry"
	"github.com/Sheliakhin-Golang-portfolio/gmail-push-webhook/internal/sink"
	"github.com/Sheliakhin-Golang-portfolio/gmail-push-webhook/internal/types"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// messageReader is the subset of *kafka.Reader used by Redriver
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// RedriveStats summarizes a redrive run
type RedriveStats struct {
	Redriven int
	Skipped  int
}

// Redriver consumes the DLQ topic and delivers every notification on it to
// a sink again. Offsets are committed only after a successful delivery or
// when the message is unreadable, so a failed run resumes where it stopped.
type Redriver struct {
	reader     messageReader
	downstream sink.Sink
	retryCfg   config.RetryConfig
	logger     *zap.Logger
	// idle ends Run when no message arrives within it; zero waits forever
	idle time.Duration
}

// NewRedriver creates a Redriver reading cfg.DLQ with consumer group cfg.DLQ.GroupID
func NewRedriver(cfg *config.Config, downstream sink.Sink, logger *zap.Logger, idle time.Duration) (*Redriver, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if downstream == nil || logger == nil {
		return nil, fmt.Errorf("downstream sink and logger are required")
	}
	if !cfg.DLQ.Enabled() {
		return nil, fmt.Errorf("DLQ topic is not configured")
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.DLQ.Brokers,
		Topic:          cfg.DLQ.Topic,
		GroupID:        cfg.DLQ.GroupID,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		CommitInterval: 0,    // Manual commit only
	})

	return &Redriver{
		reader:     reader,
		downstream: downstream,
		retryCfg:   cfg.Retry,
		logger:     logger,
		idle:       idle,
	}, nil
}

// Run redrives messages until ctx is cancelled, the topic stays idle for the
// configured duration, or a delivery fails after all retries.
func (r *Redriver) Run(ctx context.Context) (RedriveStats, error) {
	var stats RedriveStats

	for {
		msg, err := r.fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				r.logger.Info("Redrive stopped due to context cancellation",
					zap.Int("redriven", stats.Redriven),
					zap.Int("skipped", stats.Skipped),
				)
				return stats, nil
			}
			if errors.Is(err, context.DeadlineExceeded) {
				r.logger.Info("DLQ idle, redrive finished",
					zap.Int("redriven", stats.Redriven),
					zap.Int("skipped", stats.Skipped),
				)
				return stats, nil
			}
			return stats, fmt.Errorf("fetch from DLQ: %w", err)
		}

		n, err := readNotification(msg.Value)
		if err != nil {
			r.logger.Error("Skipping unreadable DLQ message",
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Error(err),
			)
			stats.Skipped++
			if err := r.commit(ctx, msg); err != nil {
				return stats, err
			}
			continue
		}

		err = retry.DoWithRetry(ctx, &r.retryCfg, func(ctx context.Context) error {
			return r.downstream.Deliver(ctx, *n)
		}, func(attempt int, err error, delay time.Duration) {
			r.logger.Warn("Redelivery failed, will retry",
				zap.Int64("offset", msg.Offset),
				zap.Int("attempt", attempt+1),
				zap.Duration("delay", delay),
				zap.Error(err),
			)
		})
		if err != nil {
			if ctx.Err() != nil {
				return stats, nil
			}
			return stats, fmt.Errorf("redeliver offset %d: %w", msg.Offset, err)
		}

		if err := r.commit(ctx, msg); err != nil {
			return stats, err
		}
		stats.Redriven++

		r.logger.Info("Redrove notification",
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.String("error_message", header(msg, "error_message")),
		)
	}
}

func (r *Redriver) fetch(ctx context.Context) (kafka.Message, error) {
	if r.idle <= 0 {
		return r.reader.FetchMessage(ctx)
	}
	fetchCtx, cancel := context.WithTimeout(ctx, r.idle)
	defer cancel()
	return r.reader.FetchMessage(fetchCtx)
}

func (r *Redriver) commit(ctx context.Context, msg kafka.Message) error {
	// Commit even when ctx is cancelled so a delivered message is not redriven twice.
	if err := r.reader.CommitMessages(context.WithoutCancel(ctx), msg); err != nil {
		return fmt.Errorf("commit offset %d: %w", msg.Offset, err)
	}
	return nil
}

// Close closes the Kafka reader
func (r *Redriver) Close() error {
	if r.reader != nil {
		r.logger.Info("Closing DLQ reader")
		if err := r.reader.Close(); err != nil {
			return fmt.Errorf("failed to close Kafka reader: %w", err)
		}
	}
	return nil
}

func header(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

var errValueNotUTF8 = errors.New("DLQ message value is not valid UTF-8")

// readNotification decodes a DLQ message value with the same exact-key rules
// the webhook applies to notification payloads.
func readNotification(value []byte) (*types.Notification, error) {
	if !utf8.Valid(value) {
		return nil, errValueNotUTF8
	}
	return pipeline.UnmarshalNotification(value)
}

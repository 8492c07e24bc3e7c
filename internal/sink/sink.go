// Package sink provides consumers for decoded Gmail notifications.
package sink

import (
	"context"

	"github.com/Sheliakhin-Golang-portfolio/gmail-push-webhook/internal/types"
	"go.uber.org/zap"
)

// Sink consumes one decoded notification per call.
type Sink interface {
	Deliver(ctx context.Context, n types.Notification) error
}

// Func adapts a plain function to the Sink interface.
type Func func(ctx context.Context, n types.Notification) error

// Deliver calls f(ctx, n).
func (f Func) Deliver(ctx context.Context, n types.Notification) error {
	return f(ctx, n)
}

// LogSink writes every notification to the log and never fails.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a LogSink
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Deliver logs the notification
func (s *LogSink) Deliver(_ context.Context, n types.Notification) error {
	s.logger.Info("Received Gmail notification",
		zap.String("email_address", n.EmailAddress),
		zap.String("history_id", n.HistoryID),
	)
	return nil
}

// Package retry provides retry logic with exponential backoff for sink deliveries
package retry

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/Sheliakhin-Golang-portfolio/gmail-push-webhook/internal/config"
)

// Errors
var (
	// ErrMaxRetriesExceeded is returned when all retry attempts have been exhausted
	ErrMaxRetriesExceeded = errors.New("maximum retry attempts exceeded")
)

// PermanentError marks a failure that retrying cannot fix.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	if e == nil || e.Err == nil {
		return "permanent failure"
	}
	return "permanent failure: " + e.Err.Error()
}

func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so DoWithRetry stops immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// Notify is called after a failed attempt, before waiting delay for the next one.
// attempt is zero-based.
type Notify func(attempt int, err error, delay time.Duration)

// DoWithRetry executes fn with retry logic according to the provided configuration.
// It returns ErrMaxRetriesExceeded joined with the last error if all retries fail,
// and the *PermanentError unchanged if fn reports one.
func DoWithRetry(ctx context.Context, cfg *config.RetryConfig, fn func(ctx context.Context) error, notify Notify) error {
	var err error

	for i := range cfg.MaxAttempts + 1 {
		// Check context before attempting
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err = fn(ctx)
		if err == nil {
			return nil
		}

		var perm *PermanentError
		if errors.As(err, &perm) {
			return err
		}

		// If this was the last attempt, break the loop
		if i == cfg.MaxAttempts {
			break
		}

		delay := calculateBackoff(cfg, i)
		if notify != nil {
			notify(i, err, delay)
		}

		// Wait with context cancellation support
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return errors.Join(ErrMaxRetriesExceeded, err)
}

// calculateBackoff computes the backoff delay for a given attempt
func calculateBackoff(cfg *config.RetryConfig, attempt int) time.Duration {
	// Exponential backoff: baseDelayMs * (multiplier ^ attempt)
	delay := time.Duration(float64(cfg.BaseDelayMs) * math.Pow(cfg.Multiplier, float64(attempt)))

	// Cap at MaxDelay; a huge exponent overflows to a negative duration
	if delay <= 0 || delay > cfg.MaxDelayMs {
		return cfg.MaxDelayMs
	}
	return delay
}

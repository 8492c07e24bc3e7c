// Package worker provides a fixed-size worker pool that drains the delivery queue into a sink
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Sheliakhin-Golang-portfolio/gmail-push-webhook/internal/config"
	"github.com/Sheliakhin-Golang-portfolio/gmail-push-webhook/internal/obs"
	"github.com/Sheliakhin-Golang-portfolio/gmail-push-webhook/internal/queue"
	"github.com/Sheliakhin-Golang-portfolio/gmail-push-webhook/internal/retry"
	"github.com/Sheliakhin-Golang-portfolio/gmail-push-webhook/internal/sink"
	"github.com/Sheliakhin-Golang-portfolio/gmail-push-webhook/internal/types"
	"go.uber.org/zap"
)

// DeadLetterPublisher receives deliveries that exhausted their retries
type DeadLetterPublisher interface {
	Publish(ctx context.Context, d *types.Delivery, errorMsg string) error
}

// Options configures a Pool. Metrics and DLQ are optional.
type Options struct {
	WorkerCount int
	Retry       config.RetryConfig
	Metrics     *obs.Metrics
	DLQ         DeadLetterPublisher
}

// Pool represents a fixed-size worker pool that delivers queued notifications
type Pool struct {
	workerCount int
	queue       *queue.Queue
	downstream  sink.Sink
	retryCfg    config.RetryConfig
	metrics     *obs.Metrics
	dlq         DeadLetterPublisher
	logger      *zap.Logger
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	started     bool
	mu          sync.Mutex
}

// NewPool creates a new worker pool
// opts.WorkerCount must be greater than 0
func NewPool(q *queue.Queue, downstream sink.Sink, logger *zap.Logger, opts Options) (*Pool, error) {
	if opts.WorkerCount <= 0 {
		return nil, fmt.Errorf("worker count must be greater than 0, got: %d", opts.WorkerCount)
	}
	if q == nil || downstream == nil || logger == nil {
		return nil, fmt.Errorf("queue, downstream sink and logger are required")
	}

	return &Pool{
		workerCount: opts.WorkerCount,
		queue:       q,
		downstream:  downstream,
		retryCfg:    opts.Retry,
		metrics:     opts.Metrics,
		dlq:         opts.DLQ,
		logger:      logger,
	}, nil
}

// Start launches the worker goroutines
// Workers keep the values of ctx but not its cancellation: they stop when
// the queue is closed and drained (Shutdown) or when Stop is called.
// Returns an error if the pool is already started
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return ErrPoolAlreadyStarted
	}

	p.logger.Info("Starting worker pool",
		zap.Int("workerCount", p.workerCount),
	)

	p.ctx, p.cancel = context.WithCancel(context.WithoutCancel(ctx))
	p.started = true

	for i := range p.workerCount {
		p.wg.Add(1)
		go p.worker(p.ctx, i)
	}

	return nil
}

// worker is the main loop for a single worker goroutine
func (p *Pool) worker(ctx context.Context, workerID int) {
	defer p.wg.Done()

	p.logger.Debug("Worker started",
		zap.Int("workerID", workerID),
	)

	for {
		d, err := p.queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				p.logger.Debug("Worker stopping due to pool cancellation",
					zap.Int("workerID", workerID),
				)
				return
			}
			if errors.Is(err, queue.ErrQueueClosed) {
				p.logger.Debug("Worker stopping due to queue closed",
					zap.Int("workerID", workerID),
				)
				return
			}

			p.logger.Error("Failed to dequeue delivery",
				zap.Error(err),
				zap.Int("workerID", workerID),
			)
			continue
		}

		p.deliver(ctx, d, workerID)
	}
}

// deliver hands one delivery to the downstream sink, retrying with
// backoff and dead-lettering it when retries run out
func (p *Pool) deliver(ctx context.Context, d *types.Delivery, workerID int) {
	if d.Meta == nil {
		d.Meta = &types.DeliveryMeta{EnqueuedAt: time.Now(), MaxRetries: p.retryCfg.MaxAttempts}
	}

	notify := func(attempt int, err error, delay time.Duration) {
		d.Meta.RetryAttempt = attempt + 1
		if p.metrics != nil {
			p.metrics.IncrementRetryAttempts()
		}
		p.logger.Warn("Delivery failed, will retry",
			zap.Error(err),
			zap.Int("workerID", workerID),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
		)
	}

	err := retry.DoWithRetry(ctx, &p.retryCfg, func(ctx context.Context) error {
		return p.downstream.Deliver(ctx, d.Notification)
	}, notify)
	if err == nil {
		if p.metrics != nil {
			p.metrics.IncrementDeliveries()
		}
		p.logger.Debug("Notification delivered",
			zap.Int("workerID", workerID),
			zap.String("history_id", d.Notification.HistoryID),
			zap.Duration("latency", time.Since(d.Meta.EnqueuedAt)),
		)
		return
	}

	if ctx.Err() != nil {
		p.logger.Warn("Delivery abandoned due to pool cancellation",
			zap.Int("workerID", workerID),
			zap.String("history_id", d.Notification.HistoryID),
		)
		return
	}

	if p.metrics != nil {
		p.metrics.IncrementRetryExhausted()
	}
	p.logger.Error("Delivery failed permanently",
		zap.Error(err),
		zap.Int("workerID", workerID),
		zap.Int("retryAttempts", d.Meta.RetryAttempt),
		zap.String("history_id", d.Notification.HistoryID),
	)

	if p.dlq == nil {
		return
	}
	if dlqErr := p.dlq.Publish(ctx, d, err.Error()); dlqErr != nil {
		p.logger.Error("Notification lost: DLQ publish failed",
			zap.Error(dlqErr),
			zap.Int("workerID", workerID),
			zap.String("history_id", d.Notification.HistoryID),
		)
		return
	}
	if p.metrics != nil {
		p.metrics.IncrementDLQMessages()
	}
}

// Shutdown closes the queue and waits for the workers to drain it.
// If ctx ends first, in-flight deliveries are cancelled via Stop and
// ctx.Err() is returned.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.queue.Close()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return p.Stop()
	case <-ctx.Done():
		p.logger.Warn("Worker pool drain timed out, cancelling in-flight deliveries",
			zap.Int("queueDepth", p.queue.Depth()),
		)
		if err := p.Stop(); err != nil {
			return err
		}
		return ctx.Err()
	}
}

// Stop cancels the workers and waits for them to exit
func (p *Pool) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return nil
	}
	p.started = false

	p.logger.Info("Stopping worker pool",
		zap.Int("workerCount", p.workerCount),
	)

	if p.cancel != nil {
		p.cancel()
	}

	p.wg.Wait()

	p.logger.Info("Worker pool stopped",
		zap.Int("workerCount", p.workerCount),
	)

	p.ctx = nil
	p.cancel = nil

	return nil
}

// Errors
var (
	ErrPoolAlreadyStarted = &PoolError{msg: "worker pool is already started"}
)

// PoolError represents a worker pool operation error
type PoolError struct {
	msg string
}

func (e *PoolError) Error() string {
	return e.msg
}

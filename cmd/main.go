// Package main is the entry point for the Gmail push webhook.
// The service receives Pub/Sub push deliveries carrying Gmail watch
// notifications, decodes them and hands them to a downstream sink through a
// bounded queue with retries and a dead-letter queue.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/Sheliakhin-Golang-portfolio/gmail-push-webhook/internal/config"
	"github.com/Sheliakhin-Golang-portfolio/gmail-push-webhook/internal/dlq"
	"github.com/Sheliakhin-Golang-portfolio/gmail-push-webhook/internal/logger"
	"github.com/Sheliakhin-Golang-portfolio/gmail-push-webhook/internal/obs"
	"github.com/Sheliakhin-Golang-portfolio/gmail-push-webhook/internal/queue"
	"github.com/Sheliakhin-Golang-portfolio/gmail-push-webhook/internal/sink"
	"github.com/Sheliakhin-Golang-portfolio/gmail-push-webhook/internal/webhook"
	"github.com/Sheliakhin-Golang-portfolio/gmail-push-webhook/internal/worker"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const drainTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	log = log.With(zap.String("service", cfg.Service.Name))
	log.Info("Configuration loaded",
		zap.String("webhook_path", cfg.HTTP.Path),
		zap.String("sink_mode", cfg.Sink.Mode),
		zap.Bool("require_non_empty", cfg.Pipeline.RequireNonEmpty),
		zap.Bool("dlq_enabled", cfg.DLQ.Enabled()),
	)

	metrics := obs.NewMetrics(cfg.Service.Name, prometheus.DefaultRegisterer)

	downstream, closeDownstream, err := newDownstream(cfg, log)
	if err != nil {
		return err
	}
	defer closeDownstream()

	opts := worker.Options{
		WorkerCount: cfg.Sink.WorkerCount,
		Retry:       cfg.Retry,
		Metrics:     metrics,
	}
	if cfg.DLQ.Enabled() {
		producer, err := dlq.NewProducer(cfg, log)
		if err != nil {
			return fmt.Errorf("failed to create DLQ producer: %w", err)
		}
		defer func() {
			if err := producer.Close(); err != nil {
				log.Warn("Failed to close DLQ producer", zap.Error(err))
			}
		}()
		opts.DLQ = producer
	}

	q := queue.NewQueue(cfg.Sink.QueueSize, metrics)
	pool, err := worker.NewPool(q, downstream, log, opts)
	if err != nil {
		return fmt.Errorf("failed to create worker pool: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := pool.Start(ctx); err != nil {
		return fmt.Errorf("failed to start worker pool: %w", err)
	}

	handler := webhook.NewHandler(sink.NewAsync(q, cfg.Retry.MaxAttempts), log, webhook.Options{
		RequireNonEmpty: cfg.Pipeline.RequireNonEmpty,
		MaxBodyBytes:    cfg.HTTP.MaxBodyBytes,
		Metrics:         metrics,
	})
	server := webhook.NewServer(cfg.HTTP, webhook.NewRouter(cfg.HTTP.Path, handler, log))

	var wg sync.WaitGroup
	errCh := make(chan error, 2)

	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := obs.Serve(ctx, server, "webhook", log); err != nil {
			errCh <- err
		}
	}()
	go func() {
		defer wg.Done()
		if err := obs.StartMetricsServer(ctx, cfg.Metrics.Port, prometheus.DefaultGatherer, log); err != nil {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	case runErr = <-errCh:
		log.Error("Server failed", zap.Error(runErr))
		stop()
	}

	// Servers stop accepting pushes before the queue is closed.
	wg.Wait()

	drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if err := pool.Shutdown(drainCtx); err != nil {
		log.Warn("Worker pool did not drain in time", zap.Error(err))
	}

	log.Info("Shutdown complete")
	return runErr
}

// newDownstream builds the sink the worker pool delivers to, along with a
// function releasing its resources.
func newDownstream(cfg *config.Config, log *zap.Logger) (sink.Sink, func(), error) {
	switch cfg.Sink.Mode {
	case config.SinkModeKafka:
		ks, err := sink.NewKafkaSink(cfg, log)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create kafka sink: %w", err)
		}
		return ks, func() {
			if err := ks.Close(); err != nil {
				log.Warn("Failed to close kafka sink", zap.Error(err))
			}
		}, nil
	default:
		return sink.NewLogSink(log), func() {}, nil
	}
}

// Command redrive replays dead-lettered Gmail notifications into the
// configured downstream sink. It shares the webhook's environment
// configuration and exits once the DLQ has been idle for -idle.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sheliakhin-Golang-portfolio/gmail-push-webhook/internal/config"
	"github.com/Sheliakhin-Golang-portfolio/gmail-push-webhook/internal/dlq"
	"github.com/Sheliakhin-Golang-portfolio/gmail-push-webhook/internal/logger"
	"github.com/Sheliakhin-Golang-portfolio/gmail-push-webhook/internal/sink"
	"go.uber.org/zap"
)

func main() {
	idle := flag.Duration("idle", 30*time.Second, "Stop after the DLQ has been idle this long (0 = run until interrupted)")
	flag.Parse()

	if err := run(*idle); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func run(idle time.Duration) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	var downstream sink.Sink = sink.NewLogSink(log)
	if cfg.Sink.Mode == config.SinkModeKafka {
		ks, err := sink.NewKafkaSink(cfg, log)
		if err != nil {
			return fmt.Errorf("failed to create kafka sink: %w", err)
		}
		defer ks.Close()
		downstream = ks
	}

	redriver, err := dlq.NewRedriver(cfg, downstream, log, idle)
	if err != nil {
		return fmt.Errorf("failed to create redriver: %w", err)
	}
	defer redriver.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("Starting DLQ redrive",
		zap.String("dlq_topic", cfg.DLQ.Topic),
		zap.String("group_id", cfg.DLQ.GroupID),
		zap.String("sink_mode", cfg.Sink.Mode),
		zap.Duration("idle", idle),
	)

	stats, err := redriver.Run(ctx)
	log.Info("DLQ redrive finished",
		zap.Int("redriven", stats.Redriven),
		zap.Int("skipped", stats.Skipped),
	)
	return err
}

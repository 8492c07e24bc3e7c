// Package obs provides observability functionality including metrics and HTTP endpoints
package obs

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// shutdownTimeout bounds graceful shutdown of every server started by Serve
const shutdownTimeout = 5 * time.Second

// StartMetricsServer starts an HTTP server that exposes Prometheus metrics
// The server listens on the specified port and exposes the /metrics endpoint
// It respects context cancellation for graceful shutdown
func StartMetricsServer(ctx context.Context, port string, gatherer prometheus.Gatherer, logger *zap.Logger) error {
	// Validate port
	portNum, err := strconv.Atoi(port)
	if err != nil || portNum <= 0 || portNum > 65535 {
		return fmt.Errorf("invalid port: %s", port)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return Serve(ctx, server, "metrics", logger)
}

// Serve runs server until ctx is cancelled or the listener fails.
// On cancellation it shuts the server down gracefully, letting in-flight
// requests finish within shutdownTimeout.
func Serve(ctx context.Context, server *http.Server, name string, logger *zap.Logger) error {
	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server",
			zap.String("server", name),
			zap.String("address", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for context cancellation or server error
	select {
	case <-ctx.Done():
		logger.Info("Shutting down HTTP server", zap.String("server", name))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Error shutting down HTTP server", zap.String("server", name), zap.Error(err))
			return fmt.Errorf("error shutting down %s server: %w", name, err)
		}
		logger.Info("HTTP server stopped gracefully", zap.String("server", name))
		return nil
	case err := <-serverErr:
		return fmt.Errorf("%s server error: %w", name, err)
	}
}

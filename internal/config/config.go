// Package config provides configuration for the application
package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Sink modes
const (
	SinkModeLog   = "log"
	SinkModeKafka = "kafka"
)

// Config holds all configuration for the application
type Config struct {
	Service  ServiceConfig
	Logging  LoggingConfig
	HTTP     HTTPConfig
	Metrics  MetricsConfig
	Pipeline PipelineConfig
	Sink     SinkConfig
	Kafka    KafkaConfig
	DLQ      DLQConfig
	Retry    RetryConfig
}

// ServiceConfig holds service settings
type ServiceConfig struct {
	Name string
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level string
}

// HTTPConfig holds webhook server settings
type HTTPConfig struct {
	Port         string
	Path         string
	MaxBodyBytes int64
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// MetricsConfig holds metrics server settings
type MetricsConfig struct {
	Port string
}

// PipelineConfig holds decode pipeline settings
type PipelineConfig struct {
	// RequireNonEmpty rejects notifications with a blank email address or history ID
	RequireNonEmpty bool
}

// SinkConfig selects where decoded notifications go
type SinkConfig struct {
	Mode        string
	QueueSize   int
	WorkerCount int
}

// KafkaConfig holds Kafka connection settings for the notification sink
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// DLQConfig holds dead-letter queue settings.
// An empty Topic disables the DLQ.
type DLQConfig struct {
	Brokers []string
	Topic   string
	// GroupID is the consumer group used when redriving the DLQ
	GroupID string
}

// Enabled reports whether a DLQ topic is configured
func (c DLQConfig) Enabled() bool {
	return c.Topic != ""
}

// RetryConfig holds retry settings for sink deliveries
type RetryConfig struct {
	MaxAttempts int
	BaseDelayMs time.Duration
	MaxDelayMs  time.Duration
	Multiplier  float64
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (optional)
	godotenv.Load()

	cfg := &Config{}
	var err error

	// Service configuration
	cfg.Service.Name = getEnv("SERVICE_NAME", "gmail-push-webhook")

	// Logging configuration
	cfg.Logging.Level = getEnv("LOG_LEVEL", "info")

	// HTTP configuration
	cfg.HTTP.Port = getEnv("HTTP_PORT", "8080")
	if err := validatePort("HTTP_PORT", cfg.HTTP.Port); err != nil {
		return nil, err
	}
	cfg.HTTP.Path = getEnv("WEBHOOK_PATH", "/gmail-event")
	if err := validatePath("WEBHOOK_PATH", cfg.HTTP.Path); err != nil {
		return nil, err
	}
	maxBody, err := getInt("HTTP_MAX_BODY_BYTES", 1<<20)
	if err != nil {
		return nil, err
	}
	if maxBody <= 0 {
		return nil, fmt.Errorf("HTTP_MAX_BODY_BYTES must be greater than 0, got: %d", maxBody)
	}
	cfg.HTTP.MaxBodyBytes = int64(maxBody)
	if cfg.HTTP.ReadTimeout, err = getDuration("HTTP_READ_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.HTTP.WriteTimeout, err = getDuration("HTTP_WRITE_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.HTTP.IdleTimeout, err = getDuration("HTTP_IDLE_TIMEOUT", 120*time.Second); err != nil {
		return nil, err
	}

	// Metrics configuration
	cfg.Metrics.Port = getEnv("METRICS_PORT", "9090")
	if err := validatePort("METRICS_PORT", cfg.Metrics.Port); err != nil {
		return nil, err
	}
	if cfg.Metrics.Port == cfg.HTTP.Port {
		return nil, fmt.Errorf("METRICS_PORT must differ from HTTP_PORT (%s)", cfg.HTTP.Port)
	}

	// Pipeline configuration
	if cfg.Pipeline.RequireNonEmpty, err = getBool("PIPELINE_REQUIRE_NON_EMPTY", false); err != nil {
		return nil, err
	}

	// Sink configuration
	cfg.Sink.Mode = strings.ToLower(getEnv("SINK_MODE", SinkModeLog))
	if cfg.Sink.Mode != SinkModeLog && cfg.Sink.Mode != SinkModeKafka {
		return nil, fmt.Errorf("SINK_MODE must be %q or %q, got: %s", SinkModeLog, SinkModeKafka, cfg.Sink.Mode)
	}
	if cfg.Sink.QueueSize, err = getInt("QUEUE_SIZE", 1000); err != nil {
		return nil, err
	}
	if cfg.Sink.QueueSize <= 0 {
		return nil, fmt.Errorf("QUEUE_SIZE must be greater than 0, got: %d", cfg.Sink.QueueSize)
	}
	if cfg.Sink.WorkerCount, err = getInt("WORKER_COUNT", 4); err != nil {
		return nil, err
	}
	if cfg.Sink.WorkerCount <= 0 {
		return nil, fmt.Errorf("WORKER_COUNT must be greater than 0, got: %d", cfg.Sink.WorkerCount)
	}

	// Kafka configuration
	cfg.Kafka.Brokers = splitList(os.Getenv("KAFKA_BROKERS"))
	cfg.Kafka.Topic = os.Getenv("KAFKA_TOPIC")
	if cfg.Sink.Mode == SinkModeKafka {
		if len(cfg.Kafka.Brokers) == 0 {
			return nil, fmt.Errorf("KAFKA_BROKERS is required when SINK_MODE=%s", SinkModeKafka)
		}
		if cfg.Kafka.Topic == "" {
			return nil, fmt.Errorf("KAFKA_TOPIC is required when SINK_MODE=%s", SinkModeKafka)
		}
	}

	// DLQ configuration
	cfg.DLQ.Topic = os.Getenv("DLQ_TOPIC")
	cfg.DLQ.Brokers = splitList(os.Getenv("DLQ_BROKERS"))
	cfg.DLQ.GroupID = getEnv("DLQ_REDRIVE_GROUP_ID", cfg.Service.Name+"-redrive")
	if len(cfg.DLQ.Brokers) == 0 {
		cfg.DLQ.Brokers = cfg.Kafka.Brokers
	}
	if cfg.DLQ.Enabled() && len(cfg.DLQ.Brokers) == 0 {
		return nil, fmt.Errorf("DLQ_BROKERS or KAFKA_BROKERS is required when DLQ_TOPIC is set")
	}

	// Retry configuration
	if cfg.Retry.MaxAttempts, err = getInt("RETRY_MAX_ATTEMPTS", 3); err != nil {
		return nil, err
	}
	if cfg.Retry.MaxAttempts < 0 {
		return nil, fmt.Errorf("RETRY_MAX_ATTEMPTS must not be negative, got: %d", cfg.Retry.MaxAttempts)
	}
	baseDelay, err := getInt("RETRY_BASE_DELAY_MS", 100)
	if err != nil {
		return nil, err
	}
	maxDelay, err := getInt("RETRY_MAX_DELAY_MS", 5000)
	if err != nil {
		return nil, err
	}
	if baseDelay <= 0 || maxDelay < baseDelay {
		return nil, fmt.Errorf("retry delays must satisfy 0 < RETRY_BASE_DELAY_MS <= RETRY_MAX_DELAY_MS, got: %d, %d", baseDelay, maxDelay)
	}
	cfg.Retry.BaseDelayMs = time.Duration(baseDelay) * time.Millisecond
	cfg.Retry.MaxDelayMs = time.Duration(maxDelay) * time.Millisecond
	if cfg.Retry.Multiplier, err = getFloat("RETRY_MULTIPLIER", 2.0); err != nil {
		return nil, err
	}
	if cfg.Retry.Multiplier < 1 {
		return nil, fmt.Errorf("RETRY_MULTIPLIER must be at least 1, got: %v", cfg.Retry.Multiplier)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got: %s", key, value)
	}
	return n, nil
}

func getFloat(key string, defaultValue float64) (float64, error) {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number, got: %s", key, value)
	}
	return f, nil
}

func getBool(key string, defaultValue bool) (bool, error) {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean, got: %s", key, value)
	}
	return b, nil
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration, got: %s", key, value)
	}
	return d, nil
}

func validatePort(key, port string) error {
	portNum, err := strconv.Atoi(port)
	if err != nil || portNum <= 0 || portNum > 65535 {
		return fmt.Errorf("%s is not a valid port: %s", key, port)
	}
	return nil
}

// splitList parses a comma-separated list, dropping empty entries
func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// pathPattern admits absolute paths built from unreserved URL characters,
// which is what http.ServeMux accepts as a literal route.
var pathPattern = regexp.MustCompile(`^/([A-Za-z0-9._~-]+/?)*$`)

// validatePath rejects paths the router could not register verbatim:
// whitespace, wildcards, percent escapes and dot segments.
func validatePath(name, path string) error {
	if !strings.HasPrefix(path, "/") {
		return fmt.Errorf("%s must start with '/', got: %s", name, path)
	}
	if !pathPattern.MatchString(path) {
		return fmt.Errorf("%s may only contain letters, digits, '-', '.', '_', '~' and '/', got: %q", name, path)
	}
	for _, segment := range strings.Split(path, "/") {
		if segment == "." || segment == ".." {
			return fmt.Errorf("%s must not contain dot segments, got: %s", name, path)
		}
	}
	return nil
}

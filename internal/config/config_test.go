package config

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configKeys = []string{
	"SERVICE_NAME", "LOG_LEVEL",
	"HTTP_PORT", "WEBHOOK_PATH", "HTTP_MAX_BODY_BYTES",
	"HTTP_READ_TIMEOUT", "HTTP_WRITE_TIMEOUT", "HTTP_IDLE_TIMEOUT",
	"METRICS_PORT", "PIPELINE_REQUIRE_NON_EMPTY",
	"SINK_MODE", "QUEUE_SIZE", "WORKER_COUNT",
	"KAFKA_BROKERS", "KAFKA_TOPIC", "DLQ_BROKERS", "DLQ_TOPIC", "DLQ_REDRIVE_GROUP_ID",
	"RETRY_MAX_ATTEMPTS", "RETRY_BASE_DELAY_MS", "RETRY_MAX_DELAY_MS", "RETRY_MULTIPLIER",
}

// clearEnv blanks every variable Load reads; t.Setenv restores them afterwards.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configKeys {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "gmail-push-webhook", cfg.Service.Name)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "8080", cfg.HTTP.Port)
	assert.Equal(t, "/gmail-event", cfg.HTTP.Path)
	assert.Equal(t, int64(1<<20), cfg.HTTP.MaxBodyBytes)
	assert.Equal(t, 5*time.Second, cfg.HTTP.ReadTimeout)
	assert.Equal(t, 10*time.Second, cfg.HTTP.WriteTimeout)
	assert.Equal(t, 120*time.Second, cfg.HTTP.IdleTimeout)
	assert.Equal(t, "9090", cfg.Metrics.Port)
	assert.False(t, cfg.Pipeline.RequireNonEmpty)
	assert.Equal(t, SinkModeLog, cfg.Sink.Mode)
	assert.Equal(t, 1000, cfg.Sink.QueueSize)
	assert.Equal(t, 4, cfg.Sink.WorkerCount)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.False(t, cfg.DLQ.Enabled())
	assert.Equal(t, "gmail-push-webhook-redrive", cfg.DLQ.GroupID)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 100*time.Millisecond, cfg.Retry.BaseDelayMs)
	assert.Equal(t, 5*time.Second, cfg.Retry.MaxDelayMs)
	assert.InDelta(t, 2.0, cfg.Retry.Multiplier, 1e-9)
}

func TestLoad_KafkaSink(t *testing.T) {
	clearEnv(t)
	t.Setenv("SINK_MODE", "KAFKA")
	t.Setenv("KAFKA_BROKERS", " broker-1:9092, ,broker-2:9092 ")
	t.Setenv("KAFKA_TOPIC", "gmail-notifications")
	t.Setenv("DLQ_TOPIC", "gmail-notifications-dlq")
	t.Setenv("PIPELINE_REQUIRE_NON_EMPTY", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, SinkModeKafka, cfg.Sink.Mode)
	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "gmail-notifications", cfg.Kafka.Topic)
	assert.True(t, cfg.DLQ.Enabled())
	assert.Equal(t, cfg.Kafka.Brokers, cfg.DLQ.Brokers, "DLQ brokers default to the sink brokers")
	assert.True(t, cfg.Pipeline.RequireNonEmpty)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "kafka_without_brokers", env: map[string]string{"SINK_MODE": "kafka", "KAFKA_TOPIC": "t"}},
		{name: "kafka_without_topic", env: map[string]string{"SINK_MODE": "kafka", "KAFKA_BROKERS": "b:9092"}},
		{name: "unknown_sink_mode", env: map[string]string{"SINK_MODE": "pubsub"}},
		{name: "dlq_without_brokers", env: map[string]string{"DLQ_TOPIC": "dlq"}},
		{name: "bad_http_port", env: map[string]string{"HTTP_PORT": "70000"}},
		{name: "same_ports", env: map[string]string{"HTTP_PORT": "9090"}},
		{name: "relative_path", env: map[string]string{"WEBHOOK_PATH": "gmail-event"}},
		{name: "path_with_space", env: map[string]string{"WEBHOOK_PATH": "/gmail event"}},
		{name: "path_with_open_brace", env: map[string]string{"WEBHOOK_PATH": "/gmail-{event"}},
		{name: "path_with_wildcard", env: map[string]string{"WEBHOOK_PATH": "/gmail/{id}"}},
		{name: "path_with_percent_escape", env: map[string]string{"WEBHOOK_PATH": "/gmail%20event"}},
		{name: "path_with_dot_segment", env: map[string]string{"WEBHOOK_PATH": "/hooks/../gmail"}},
		{name: "path_with_empty_segment", env: map[string]string{"WEBHOOK_PATH": "/hooks//gmail"}},
		{name: "zero_body_limit", env: map[string]string{"HTTP_MAX_BODY_BYTES": "0"}},
		{name: "bad_timeout", env: map[string]string{"HTTP_READ_TIMEOUT": "soon"}},
		{name: "bad_bool", env: map[string]string{"PIPELINE_REQUIRE_NON_EMPTY": "maybe"}},
		{name: "zero_workers", env: map[string]string{"WORKER_COUNT": "0"}},
		{name: "negative_retries", env: map[string]string{"RETRY_MAX_ATTEMPTS": "-1"}},
		{name: "inverted_delays", env: map[string]string{"RETRY_BASE_DELAY_MS": "500", "RETRY_MAX_DELAY_MS": "100"}},
		{name: "small_multiplier", env: map[string]string{"RETRY_MULTIPLIER": "0.5"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := Load()
			assert.Error(t, err)
			assert.Nil(t, cfg)
		})
	}
}

func TestLoad_AcceptedPathsRegisterOnServeMux(t *testing.T) {
	paths := []string{"/", "/gmail-event", "/hooks/v1/gmail.push", "/gmail~event_1/"}

	for _, path := range paths {
		t.Run(path, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("WEBHOOK_PATH", path)

			cfg, err := Load()
			require.NoError(t, err)
			assert.Equal(t, path, cfg.HTTP.Path)
			assert.NotPanics(t, func() {
				http.NewServeMux().Handle("POST "+cfg.HTTP.Path, http.NotFoundHandler())
			})
		})
	}
}

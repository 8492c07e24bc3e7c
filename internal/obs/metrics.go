// Package obs provides observability functionality including metrics and HTTP endpoints
package obs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Webhook request outcomes, used as the "outcome" label
const (
	OutcomeAccepted   = "accepted"
	OutcomeRejected   = "rejected"
	OutcomeSinkFailed = "sink_failed"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	WebhookRequestsTotal     *prometheus.CounterVec
	DecodeFailuresTotal      *prometheus.CounterVec
	WebhookRequestDuration   prometheus.Histogram
	SuspiciousNotifications  prometheus.Counter
	QueueDepth               prometheus.Gauge
	NotificationsQueuedTotal prometheus.Counter
	DeliveriesTotal          prometheus.Counter
	RetryAttemptsTotal       prometheus.Counter
	RetryExhaustedTotal      prometheus.Counter
	DLQMessagesTotal         prometheus.Counter
}

// NewMetrics creates and initializes a new Metrics instance.
// All metrics are registered with reg; pass prometheus.DefaultRegisterer in
// production and a fresh prometheus.NewRegistry() in tests.
func NewMetrics(serviceName string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	labels := prometheus.Labels{"service": serviceName}

	return &Metrics{
		WebhookRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "webhook_requests_total",
			Help:        "Total number of push requests received, by outcome",
			ConstLabels: labels,
		}, []string{"outcome"}),
		DecodeFailuresTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "decode_failures_total",
			Help:        "Total number of push requests rejected by the decode pipeline, by error kind",
			ConstLabels: labels,
		}, []string{"kind"}),
		WebhookRequestDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:        "webhook_request_duration_seconds",
			Help:        "Time spent handling a push request, including the sink hand-off",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: labels,
		}),
		SuspiciousNotifications: factory.NewCounter(prometheus.CounterOpts{
			Name:        "suspicious_notifications_total",
			Help:        "Total number of accepted notifications with a blank email address or history ID",
			ConstLabels: labels,
		}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "queue_depth",
			Help:        "Current depth of the internal delivery queue",
			ConstLabels: labels,
		}),
		NotificationsQueuedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name:        "notifications_queued_total",
			Help:        "Total number of notifications placed on the internal delivery queue",
			ConstLabels: labels,
		}),
		DeliveriesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name:        "notifications_delivered_total",
			Help:        "Total number of notifications successfully delivered to the downstream sink",
			ConstLabels: labels,
		}),
		RetryAttemptsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name:        "retry_attempts_total",
			Help:        "Total number of retry attempts for failed deliveries",
			ConstLabels: labels,
		}),
		RetryExhaustedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name:        "retry_exhausted_total",
			Help:        "Total number of deliveries that exhausted all retry attempts",
			ConstLabels: labels,
		}),
		DLQMessagesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name:        "dlq_messages_total",
			Help:        "Total number of notifications sent to the dead-letter queue",
			ConstLabels: labels,
		}),
	}
}

// ObserveRequest records the outcome of one webhook request
func (m *Metrics) ObserveRequest(outcome string, seconds float64) {
	m.WebhookRequestsTotal.WithLabelValues(outcome).Inc()
	m.WebhookRequestDuration.Observe(seconds)
}

// IncrementDecodeFailures increments the decode failures counter for kind by 1
func (m *Metrics) IncrementDecodeFailures(kind string) {
	m.DecodeFailuresTotal.WithLabelValues(kind).Inc()
}

// IncrementSuspicious increments the suspicious notifications counter by 1
func (m *Metrics) IncrementSuspicious() {
	m.SuspiciousNotifications.Inc()
}

// IncrementNotificationsQueued increments the queued notifications counter by 1
func (m *Metrics) IncrementNotificationsQueued() {
	m.NotificationsQueuedTotal.Inc()
}

// IncrementDeliveries increments the delivered notifications counter by 1
func (m *Metrics) IncrementDeliveries() {
	m.DeliveriesTotal.Inc()
}

// IncrementQueueDepth increments the queue depth gauge metric by 1
func (m *Metrics) IncrementQueueDepth() {
	m.QueueDepth.Inc()
}

// DecrementQueueDepth decrements the queue depth gauge metric by 1
func (m *Metrics) DecrementQueueDepth() {
	m.QueueDepth.Dec()
}

// NullifyQueueDepth sets the queue depth gauge metric to 0
func (m *Metrics) NullifyQueueDepth() {
	m.QueueDepth.Set(0)
}

// IncrementRetryAttempts increments the retry attempts counter by 1
func (m *Metrics) IncrementRetryAttempts() {
	m.RetryAttemptsTotal.Inc()
}

// IncrementDLQMessages increments the DLQ messages counter by 1
func (m *Metrics) IncrementDLQMessages() {
	m.DLQMessagesTotal.Inc()
}

// IncrementRetryExhausted increments the retry exhausted counter by 1
func (m *Metrics) IncrementRetryExhausted() {
	m.RetryExhaustedTotal.Inc()
}

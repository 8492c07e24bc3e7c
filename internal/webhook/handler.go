// Package webhook exposes the Pub/Sub push endpoint that receives Gmail notifications.
package webhook

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/Sheliakhin-Golang-portfolio/gmail-push-webhook/internal/obs"
	"github.com/Sheliakhin-Golang-portfolio/gmail-push-webhook/internal/pipeline"
	"github.com/Sheliakhin-Golang-portfolio/gmail-push-webhook/internal/sink"
	"go.uber.org/zap"
)

// Response bodies never echo internal error text.
const (
	msgInvalidPush   = "invalid push message"
	msgSinkFailure   = "failed to process notification"
	defaultBodyLimit = 1 << 20
)

// statusByKind maps every pipeline failure kind to the HTTP status returned
// to the push subscription.
var statusByKind = map[pipeline.Kind]int{
	pipeline.KindMalformedEnvelope:          http.StatusBadRequest,
	pipeline.KindInvalidEncoding:            http.StatusBadRequest,
	pipeline.KindInvalidNotificationPayload: http.StatusBadRequest,
}

// StatusFor returns the HTTP status for a pipeline error.
// Errors without a known kind map to 400.
func StatusFor(err error) int {
	if kind, ok := pipeline.KindOf(err); ok {
		if status, ok := statusByKind[kind]; ok {
			return status
		}
	}
	return http.StatusBadRequest
}

// Handler decodes push requests and hands notifications to a sink.
// It holds no per-request state and is safe for concurrent use.
type Handler struct {
	decoder      pipeline.Decoder
	sink         sink.Sink
	logger       *zap.Logger
	metrics      *obs.Metrics
	maxBodyBytes int64
}

// Options configures a Handler. Metrics is optional.
type Options struct {
	RequireNonEmpty bool
	MaxBodyBytes    int64
	Metrics         *obs.Metrics
}

// NewHandler creates a Handler delivering to s
func NewHandler(s sink.Sink, logger *zap.Logger, opts Options) *Handler {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultBodyLimit
	}
	return &Handler{
		decoder:      pipeline.Decoder{RequireNonEmpty: opts.RequireNonEmpty},
		sink:         s,
		logger:       logger,
		metrics:      opts.Metrics,
		maxBodyBytes: opts.MaxBodyBytes,
	}
}

// ServeHTTP handles POST <webhook path>
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	log := h.logger.With(zap.String("request_id", GetRequestID(r.Context())))

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		h.reject(w, log, pipeline.NewReadError(err), start)
		return
	}

	res, err := h.decoder.Decode(body)
	if err != nil {
		h.reject(w, log, err, start)
		return
	}

	env, n := res.Envelope, res.Notification
	log = log.With(
		zap.String("message_id", env.Message.MessageID),
		zap.String("subscription", env.Subscription),
	)

	if blank := pipeline.BlankFields(n); len(blank) > 0 {
		if h.metrics != nil {
			h.metrics.IncrementSuspicious()
		}
		log.Warn("Accepted notification with blank fields", zap.Strings("fields", blank))
	}

	if err := h.sink.Deliver(r.Context(), *n); err != nil {
		log.Error("Sink rejected notification", zap.Error(err))
		h.observe(obs.OutcomeSinkFailed, start)
		writeError(w, http.StatusInternalServerError, msgSinkFailure)
		return
	}

	log.Debug("Notification accepted",
		zap.String("email_address", n.EmailAddress),
		zap.String("history_id", n.HistoryID),
		zap.String("publish_time", env.Message.PublishTime),
	)
	h.observe(obs.OutcomeAccepted, start)
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) reject(w http.ResponseWriter, log *zap.Logger, err error, start time.Time) {
	kind, _ := pipeline.KindOf(err)
	stage := ""
	var de *pipeline.DecodeError
	if errors.As(err, &de) {
		stage = de.Stage
	}

	log.Warn("Rejected push message",
		zap.String("error_kind", kind.String()),
		zap.String("stage", stage),
		zap.Error(err),
	)
	if h.metrics != nil {
		h.metrics.IncrementDecodeFailures(kind.String())
	}
	h.observe(obs.OutcomeRejected, start)
	writeError(w, StatusFor(err), msgInvalidPush)
}

func (h *Handler) observe(outcome string, start time.Time) {
	if h.metrics != nil {
		h.metrics.ObserveRequest(outcome, time.Since(start).Seconds())
	}
}

// writeJSON writes a JSON response with the given status code and data.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

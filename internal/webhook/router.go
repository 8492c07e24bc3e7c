package webhook

import (
	"net/http"

	"github.com/Sheliakhin-Golang-portfolio/gmail-push-webhook/internal/config"
	"go.uber.org/zap"
)

// NewRouter registers the push endpoint at POST path and a liveness probe
// at GET /healthz. Other methods on path get 405 from the mux.
func NewRouter(path string, h *Handler, logger *zap.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("POST "+path, h)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return RequestID(AccessLog(logger)(Recover(logger)(mux)))
}

// NewServer builds the webhook HTTP server from cfg
func NewServer(cfg config.HTTPConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}

package api

import (
	"log/slog"
	"net/http"
)

// NewRouter mounts the handlers and wraps them with request id, recovery
// and access logging.
func NewRouter(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/policy/evaluate", h.Evaluate)
	mux.HandleFunc("GET /v1/policy", h.Policy)
	mux.HandleFunc("GET /v1/audit/{correlation_id}", h.Audit)
	mux.HandleFunc("GET /v1/audit/{correlation_id}/verify", h.VerifyAudit)
	mux.HandleFunc("GET /v1/audit/{correlation_id}/pack", h.Pack)
	mux.HandleFunc("GET /healthz", h.Health)
	if h.Metrics != nil {
		mux.Handle("GET /metrics", h.Metrics.Handler())
	}
	return withRequestContext(logger, withRecovery(withAccessLog(mux)))
}

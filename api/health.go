package api

import (
	"net/http"

	"github.com/longtime/assistant/internal/log"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	readiness func() bool
	logger    log.Logger
}

// NewHealthHandler creates a new health handler. readiness reports
// whether the embedding model has loaded; nil means "not ready".
func NewHealthHandler(readiness func() bool, logger log.Logger) *HealthHandler {
	return &HealthHandler{readiness: readiness, logger: logger}
}

// RegisterRoutes registers health routes on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.liveness)
	mux.HandleFunc("GET /ready", h.readinessProbe)
}

// liveness returns 200 OK if the process is alive.
func (h *HealthHandler) liveness(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// readinessProbe always returns 200 once the server is serving — the
// assistant degrades gracefully without the embedding model — but
// reports the embedder state so operators can see which tier is live.
func (h *HealthHandler) readinessProbe(w http.ResponseWriter, _ *http.Request) {
	ready := h.readiness != nil && h.readiness()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ready",
		"embedder_ready": ready,
	})
}

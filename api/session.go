package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/longtime/assistant/internal/log"
	"github.com/longtime/assistant/internal/session"
)

// SessionHandler handles session-related HTTP endpoints.
type SessionHandler struct {
	store  *session.Store
	logger log.Logger
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(store *session.Store, logger log.Logger) *SessionHandler {
	return &SessionHandler{store: store, logger: logger}
}

// RegisterRoutes registers session routes on the given mux.
func (h *SessionHandler) RegisterRoutes(mux *http.ServeMux) {
	if h.store == nil {
		if h.logger != nil {
			h.logger.Warn("SessionHandler: store is nil, session endpoints not registered")
		}
		return
	}
	mux.HandleFunc("GET /sessions", h.list)
	mux.HandleFunc("POST /sessions", h.create)
}

// list returns all known session IDs with their turn counts.
func (h *SessionHandler) list(w http.ResponseWriter, _ *http.Request) {
	ids := h.store.Sessions()

	type sessionInfo struct {
		SessionID string `json:"session_id"`
		Turns     int    `json:"turns"`
	}
	sessions := make([]sessionInfo, 0, len(ids))
	for _, id := range ids {
		sessions = append(sessions, sessionInfo{SessionID: id, Turns: h.store.Len(id)})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": sessions,
		"total":    len(sessions),
	})
}

// create allocates a fresh session ID. The store itself creates
// histories lazily, so this only hands out an identifier.
func (h *SessionHandler) create(w http.ResponseWriter, _ *http.Request) {
	id := uuid.NewString()
	h.store.History(id)
	h.logger.Debug("created session", "session_id", id)
	writeJSON(w, http.StatusCreated, map[string]string{"session_id": id})
}

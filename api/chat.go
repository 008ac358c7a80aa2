package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"unicode/utf8"

	"github.com/longtime/assistant/internal/assistant"
	"github.com/longtime/assistant/internal/completion"
	"github.com/longtime/assistant/internal/log"
)

// ChatService is the assistant capability the chat endpoint consumes.
type ChatService = assistant.Service

// ChatHandler handles the streaming chat endpoint.
//
// Request body: {"message": "...", "session_id": "..."}
// Response: SSE-style stream of data frames:
//
//	data: {"content": "<partial text>"}
//
// or, when every completion provider failed, a single terminal frame:
//
//	data: {"error": "<message>"}
type ChatHandler struct {
	service       *ChatService
	maxMessageLen int
	limiter       *RateLimiter
	logger        log.Logger
}

// NewChatHandler creates a chat handler.
func NewChatHandler(service *ChatService, maxMessageLen int, limiter *RateLimiter, logger log.Logger) *ChatHandler {
	return &ChatHandler{
		service:       service,
		maxMessageLen: maxMessageLen,
		limiter:       limiter,
		logger:        logger,
	}
}

// RegisterRoutes registers the chat route on the given mux.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	if h.service == nil {
		if h.logger != nil {
			h.logger.Warn("ChatHandler: service is nil, chat endpoint not registered")
		}
		return
	}

	handler := http.Handler(http.HandlerFunc(h.handleChat))
	if h.limiter != nil {
		handler = h.limiter.Middleware(handler)
	}
	mux.Handle("POST /chat", handler)
}

// ChatRequest is the request body for one chat turn.
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

// contentFrame and errorFrame are the SSE data payloads.
type contentFrame struct {
	Content string `json:"content"`
}

type errorFrame struct {
	Error string `json:"error"`
}

// handleChat handles one streaming chat turn.
//
// Input validation failures are rejected synchronously with a JSON
// error before any model work begins; once streaming has started,
// failures surface as a terminal error frame.
func (h *ChatHandler) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "missing_session_id", "session_id is required")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "missing_message", "message is required")
		return
	}
	// The limit counts characters, not bytes: Cyrillic input takes two
	// bytes per character and must not lose half the budget.
	if h.maxMessageLen > 0 && utf8.RuneCountInString(req.Message) > h.maxMessageLen {
		writeError(w, http.StatusBadRequest, "message_too_long",
			fmt.Sprintf("message exceeds %d characters", h.maxMessageLen))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.logger.Error("streaming not supported")
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // disable nginx buffering

	ctx := r.Context()
	h.logger.Info("chat stream started", "session_id", req.SessionID)

	err := h.service.Respond(ctx, req.SessionID, req.Message, func(text string) {
		// Client disconnects cancel ctx; Respond notices on its next
		// network operation, so frames written here are best-effort.
		h.writeFrame(w, flusher, contentFrame{Content: text})
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			h.logger.Info("client disconnected", "session_id", req.SessionID)
			return
		}
		h.logger.Error("chat turn failed", "session_id", req.SessionID, "error", err)
		if errors.Is(err, completion.ErrAllProvidersFailed) {
			h.writeFrame(w, flusher, errorFrame{Error: "All models failed"})
		} else {
			h.writeFrame(w, flusher, errorFrame{Error: "response generation failed"})
		}
		return
	}

	h.logger.Info("chat stream completed", "session_id", req.SessionID)
}

// writeFrame writes one SSE data frame and flushes it.
func (h *ChatHandler) writeFrame(w http.ResponseWriter, flusher http.Flusher, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("failed to marshal SSE frame", "error", err)
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}

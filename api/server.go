// Package api provides the HTTP REST API for the support assistant.
//
// Endpoints:
//
//	POST   /chat         - streaming chat turn (SSE data frames)
//	GET    /cache/stats  - response cache statistics
//	DELETE /cache        - invalidate the response cache
//	GET    /sessions     - list known session IDs
//	POST   /sessions     - create a session ID
//	GET    /health       - liveness probe
//	GET    /ready        - readiness probe (reports embedder state)
//
// File structure:
//   - server.go: HTTP server setup and lifecycle
//   - middleware.go: logging, recovery, middleware chaining
//   - ratelimit.go: per-identity chat rate limiting
//   - chat.go: chat endpoint (SSE streaming)
//   - cache.go: cache management endpoints
//   - session.go: session endpoints
//   - health.go: health probes
//   - response.go: JSON response helpers
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/longtime/assistant/internal/log"
	"github.com/longtime/assistant/internal/session"
)

// Server timeouts.
const (
	// DefaultAddr is the default address for the HTTP server.
	DefaultAddr = "127.0.0.1:8600"

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout guards against Slowloris-style clients.
	ReadHeaderTimeout = 10 * time.Second

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout = 30 * time.Second

	// WriteTimeout is generous because completions stream over SSE.
	WriteTimeout = 5 * time.Minute

	// IdleTimeout applies to keep-alive connections.
	IdleTimeout = 2 * time.Minute
)

// ServerConfig carries the dependencies of the API server.
type ServerConfig struct {
	Assistant *ChatService // see chat.go; nil disables /chat
	Cache     CacheManager // see cache.go; nil disables cache endpoints
	Sessions  *session.Store
	Readiness func() bool // embedder readiness, reported by /ready
	Logger    log.Logger

	// MaxMessageLen rejects oversized chat messages. Zero disables the check.
	MaxMessageLen int

	// RateLimiter limits /chat per client identity; nil disables limiting.
	RateLimiter *RateLimiter
}

// Server is the HTTP server for the assistant API.
type Server struct {
	mux    *http.ServeMux
	logger log.Logger
}

// NewServer creates an HTTP server with all routes registered.
func NewServer(cfg ServerConfig) *Server {
	if cfg.Logger == nil {
		cfg.Logger = log.NewNop()
	}

	mux := http.NewServeMux()
	s := &Server{mux: mux, logger: cfg.Logger}

	NewHealthHandler(cfg.Readiness, cfg.Logger).RegisterRoutes(mux)
	NewSessionHandler(cfg.Sessions, cfg.Logger).RegisterRoutes(mux)
	NewCacheHandler(cfg.Cache, cfg.Logger).RegisterRoutes(mux)
	NewChatHandler(cfg.Assistant, cfg.MaxMessageLen, cfg.RateLimiter, cfg.Logger).RegisterRoutes(mux)

	return s
}

// Handler returns the HTTP handler with middleware applied.
// Middleware order: recovery → logging → handler.
func (s *Server) Handler() http.Handler {
	return chain(s.mux, recoveryMiddleware(s.logger), loggingMiddleware(s.logger))
}

// Run starts the HTTP server and blocks until the context is
// cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down server: %w", err)
		}
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

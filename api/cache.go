package api

import (
	"net/http"

	"github.com/longtime/assistant/internal/cache"
	"github.com/longtime/assistant/internal/log"
)

// CacheManager is the cache capability the management endpoints consume.
type CacheManager interface {
	Stats() cache.Stats
	Invalidate() error
}

// CacheHandler handles response-cache management endpoints.
type CacheHandler struct {
	cache  CacheManager
	logger log.Logger
}

// NewCacheHandler creates a cache management handler.
func NewCacheHandler(c CacheManager, logger log.Logger) *CacheHandler {
	return &CacheHandler{cache: c, logger: logger}
}

// RegisterRoutes registers cache routes on the given mux.
func (h *CacheHandler) RegisterRoutes(mux *http.ServeMux) {
	if h.cache == nil {
		if h.logger != nil {
			h.logger.Warn("CacheHandler: cache is nil, cache endpoints not registered")
		}
		return
	}
	mux.HandleFunc("GET /cache/stats", h.stats)
	mux.HandleFunc("DELETE /cache", h.invalidate)
}

// CacheStatsResponse is the response body of GET /cache/stats.
// Timestamps are unix seconds; null when the cache is empty.
type CacheStatsResponse struct {
	TotalEntries int      `json:"total_entries"`
	CacheSizeMB  float64  `json:"cache_size_mb"`
	OldestEntry  *float64 `json:"oldest_entry"`
	NewestEntry  *float64 `json:"newest_entry"`
}

func (h *CacheHandler) stats(w http.ResponseWriter, _ *http.Request) {
	s := h.cache.Stats()

	resp := CacheStatsResponse{
		TotalEntries: s.Count,
		CacheSizeMB:  float64(s.SizeBytes) / (1024 * 1024),
	}
	if s.Count > 0 {
		oldest, newest := s.OldestTimestamp, s.NewestTimestamp
		resp.OldestEntry = &oldest
		resp.NewestEntry = &newest
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *CacheHandler) invalidate(w http.ResponseWriter, _ *http.Request) {
	if err := h.cache.Invalidate(); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "invalidation_failed", "failed to invalidate cache")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

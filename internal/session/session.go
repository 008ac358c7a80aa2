// Package session provides the in-memory conversation history store.
//
// Histories are scoped by session ID and grow append-only for the
// lifetime of the process; nothing is persisted across restarts.
// There is deliberately no eviction: the store mirrors the behavior of
// the support assistant it serves, where sessions are short-lived
// browser tabs. Concurrent requests for the same session are not
// serialized; history updates are last-write-wins.
package session

import (
	"sync"

	"github.com/longtime/assistant/internal/log"
)

// Role constants define valid turn roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is a single conversation turn.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Store maps session IDs to conversation histories.
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	mu        sync.RWMutex
	histories map[string][]Turn
	logger    log.Logger
}

// NewStore creates an empty session store.
func NewStore(logger log.Logger) *Store {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{
		histories: make(map[string][]Turn),
		logger:    logger,
	}
}

// History returns a copy of the conversation history for the given
// session, creating an empty history on first access.
func (s *Store) History(sessionID string) []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.histories[sessionID]
	if !ok {
		s.histories[sessionID] = nil
		return nil
	}

	out := make([]Turn, len(h))
	copy(out, h)
	return out
}

// Append adds turns to the session's history in arrival order.
func (s *Store) Append(sessionID string, turns ...Turn) {
	if len(turns) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.histories[sessionID] = append(s.histories[sessionID], turns...)
	s.logger.Debug("appended turns", "session_id", sessionID, "count", len(turns))
}

// Len returns the number of turns recorded for the session.
// Unlike History, it does not create the session.
func (s *Store) Len(sessionID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.histories[sessionID])
}

// Sessions returns the IDs of all known sessions.
func (s *Store) Sessions() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.histories))
	for id := range s.histories {
		ids = append(ids, id)
	}
	return ids
}

// Package cache implements the semantic response cache for the chat
// assistant.
//
// Records are keyed by a SHA-256 hash of a composite string built from
// the question and the full conversation history; the same composite
// string is embedded to support lookup by cosine similarity rather
// than exact match. System instructions and the background context are
// hashed separately and must match exactly for a hit.
//
// This is not a general-purpose vector database: the record set is
// small, fully in memory, scanned linearly, and persisted to two flat
// artifacts (a JSON record store and a binary vector store) that are
// loaded together at startup.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/longtime/assistant/internal/embedding"
	"github.com/longtime/assistant/internal/log"
	"github.com/longtime/assistant/internal/session"
)

const (
	// DefaultLookupThreshold is the minimum similarity between the
	// incoming and stored composite embeddings for a cache hit. It is
	// deliberately much stricter than the FAQ threshold: a wrongly
	// reused answer is worse for a cache than for a discoverable FAQ.
	DefaultLookupThreshold = 0.95

	// DefaultHistoryThreshold is the minimum similarity between the
	// two conversation histories of a candidate hit.
	DefaultHistoryThreshold = 0.90

	// storeTimeout bounds the embedding work of one background store.
	storeTimeout = 30 * time.Second
)

// Embedder is the embedding capability the cache consumes.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Ready() bool
}

// Record is one cached (question, context, response) observation.
// Records are never mutated after creation; the conversation history
// snapshot is kept for the history-similarity guard and for audit.
type Record struct {
	Question    string         `json:"question"`
	Response    string         `json:"response"`
	SystemHash  string         `json:"system_hash"`
	ContextHash string         `json:"context_hash"`
	History     []session.Turn `json:"conversation_history"`
	Timestamp   float64        `json:"timestamp"`
}

// Stats summarizes cache contents for the management endpoint.
type Stats struct {
	Count           int
	SizeBytes       int64
	OldestTimestamp float64
	NewestTimestamp float64
}

// Option configures a Cache.
type Option func(*Cache)

// WithThresholds overrides the lookup and history thresholds.
// Non-positive values keep the defaults.
func WithThresholds(lookup, history float32) Option {
	return func(c *Cache) {
		if lookup > 0 {
			c.lookupThreshold = lookup
		}
		if history > 0 {
			c.historyThreshold = history
		}
	}
}

// Cache is the semantic response cache. The in-memory maps are
// authoritative; the persisted artifacts exist only to survive
// restarts. A single coarse lock serializes writers around disk I/O;
// lookups scan a snapshot so concurrent stores cannot mutate the
// collection mid-scan.
type Cache struct {
	dir      string
	embedder Embedder
	logger   log.Logger

	lookupThreshold  float32
	historyThreshold float32

	mu      sync.RWMutex
	records map[string]Record
	vectors map[string][]float32

	stores sync.WaitGroup
}

// New creates a cache persisting under dir and loads any prior state.
// Malformed or missing artifacts are treated as an empty cache; New
// never fails because of corrupt data.
func New(dir string, embedder Embedder, logger log.Logger, opts ...Option) (*Cache, error) {
	if logger == nil {
		logger = log.NewNop()
	}

	c := &Cache{
		dir:              dir,
		embedder:         embedder,
		logger:           logger,
		lookupThreshold:  DefaultLookupThreshold,
		historyThreshold: DefaultHistoryThreshold,
		records:          make(map[string]Record),
		vectors:          make(map[string][]float32),
	}
	for _, opt := range opts {
		opt(c)
	}

	if err := c.loadArtifacts(); err != nil {
		return nil, err
	}
	return c, nil
}

// Lookup returns the cached response for a semantically equivalent
// (question, history) under identical instructions and context.
// Any internal failure reports a miss.
func (c *Cache) Lookup(ctx context.Context, question, instructions, contextDoc string, history []session.Turn) (string, bool) {
	if !c.embedder.Ready() {
		return "", false
	}

	composite := compositeKey(question, history)
	qVec, err := c.embedder.Embed(ctx, composite)
	if err != nil {
		c.logger.Warn("cache lookup embedding failed", "error", err)
		return "", false
	}

	id, sim, ok := c.bestMatch(qVec)
	if !ok || sim < c.lookupThreshold {
		c.logger.Debug("cache miss", "best_similarity", sim)
		return "", false
	}

	c.mu.RLock()
	rec, ok := c.records[id]
	c.mu.RUnlock()
	if !ok {
		return "", false
	}

	// Instructions and background context must match exactly; only the
	// question/history side is subject to similarity matching.
	if rec.SystemHash != hashText(instructions) || rec.ContextHash != hashText(contextDoc) {
		return "", false
	}

	if !c.historiesSimilar(ctx, history, rec.History) {
		return "", false
	}

	c.logger.Info("cache hit", "cache_id", id, "similarity", sim)
	return rec.Response, true
}

// bestMatch scans a snapshot of the stored embeddings and returns the
// argmax cache_id with its similarity.
func (c *Cache) bestMatch(qVec []float32) (string, float32, bool) {
	c.mu.RLock()
	snapshot := make(map[string][]float32, len(c.vectors))
	for id, v := range c.vectors {
		snapshot[id] = v
	}
	c.mu.RUnlock()

	var (
		bestID  string
		bestSim float32
		found   bool
	)
	for id, v := range snapshot {
		if sim := embedding.CosineSimilarity(qVec, v); !found || sim > bestSim {
			bestID, bestSim, found = id, sim, true
		}
	}
	return bestID, bestSim, found
}

// historiesSimilar guards against reusing an answer given under a
// materially different conversation context: both histories must have
// equal length and their full-text embeddings must reach the history
// threshold. Two empty histories are trivially similar.
func (c *Cache) historiesSimilar(ctx context.Context, a, b []session.Turn) bool {
	if len(a) != len(b) {
		return false
	}
	if len(a) == 0 {
		return true
	}

	vecA, err := c.embedder.Embed(ctx, historyText(a))
	if err != nil {
		c.logger.Warn("history embedding failed", "error", err)
		return false
	}
	vecB, err := c.embedder.Embed(ctx, historyText(b))
	if err != nil {
		c.logger.Warn("history embedding failed", "error", err)
		return false
	}
	return embedding.CosineSimilarity(vecA, vecB) >= c.historyThreshold
}

// Store records a completed turn asynchronously. The embedding and
// disk work run on a background goroutine so the response path never
// waits on them; persistence failures are logged and swallowed.
func (c *Cache) Store(question, response, instructions, contextDoc string, history []session.Turn) {
	snapshot := make([]session.Turn, len(history))
	copy(snapshot, history)

	c.stores.Add(1)
	go func() {
		defer c.stores.Done()

		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		c.storeSync(ctx, question, response, instructions, contextDoc, snapshot)
	}()
}

func (c *Cache) storeSync(ctx context.Context, question, response, instructions, contextDoc string, history []session.Turn) {
	if !c.embedder.Ready() {
		c.logger.Debug("skipping cache store, embedder not ready")
		return
	}

	composite := compositeKey(question, history)
	vec, err := c.embedder.Embed(ctx, composite)
	if err != nil {
		c.logger.Warn("cache store embedding failed", "error", err)
		return
	}

	id := hashText(composite)
	rec := Record{
		Question:    question,
		Response:    response,
		SystemHash:  hashText(instructions),
		ContextHash: hashText(contextDoc),
		History:     history,
		Timestamp:   float64(time.Now().UnixNano()) / float64(time.Second),
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.records[id] = rec
	c.vectors[id] = vec
	if err := c.persistLocked(); err != nil {
		// Newly stored entries stay usable in memory; they are lost on
		// restart since persistence is not retried.
		c.logger.Warn("failed to persist cache", "error", err)
	}
}

// Flush blocks until all in-flight background stores have completed.
// Called on shutdown and by tests.
func (c *Cache) Flush() {
	c.stores.Wait()
}

// Invalidate clears all records and embeddings and removes the
// backing artifacts. There is no partial invalidation.
func (c *Cache) Invalidate() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.records = make(map[string]Record)
	c.vectors = make(map[string][]float32)

	if err := c.removeArtifactsLocked(); err != nil {
		return fmt.Errorf("removing cache artifacts: %w", err)
	}
	c.logger.Info("cache invalidated")
	return nil
}

// Stats reports entry count, on-disk size, and the timestamp range.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Stats{
		Count:     len(c.records),
		SizeBytes: c.artifactSizeLocked(),
	}
	for _, rec := range c.records {
		if s.OldestTimestamp == 0 || rec.Timestamp < s.OldestTimestamp {
			s.OldestTimestamp = rec.Timestamp
		}
		if rec.Timestamp > s.NewestTimestamp {
			s.NewestTimestamp = rec.Timestamp
		}
	}
	return s
}

// compositeKey derives the string that is both hashed (cache_id) and
// embedded (similarity key) for a (question, history) pair.
func compositeKey(question string, history []session.Turn) string {
	parts := make([]string, len(history))
	for i, t := range history {
		parts[i] = t.Role + ": " + t.Content
	}
	return "QUESTION: " + question + "\nCONTEXT: " + strings.Join(parts, " | ")
}

// historyText is the full-text representation embedded for the
// history-similarity guard.
func historyText(history []session.Turn) string {
	var b strings.Builder
	for _, t := range history {
		b.WriteString(t.Role)
		b.WriteString(": ")
		b.WriteString(t.Content)
		b.WriteString("\n")
	}
	return b.String()
}

func hashText(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

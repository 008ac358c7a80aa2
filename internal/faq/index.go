package faq

import (
	"context"
	"sync"

	"github.com/longtime/assistant/internal/embedding"
	"github.com/longtime/assistant/internal/log"
)

// DefaultThreshold is the minimum cosine similarity for a FAQ match.
const DefaultThreshold = 0.8

// Embedder is the embedding capability the index consumes.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Ready() bool
}

// Index answers questions by cosine similarity over the parsed FAQ
// entries. Question embeddings are computed once, lazily on first use
// (or eagerly via Warm once the model has loaded).
//
// Index is safe for concurrent use by multiple goroutines.
type Index struct {
	entries   []Entry
	embedder  Embedder
	threshold float32
	logger    log.Logger

	mu      sync.Mutex
	vectors [][]float32
}

// NewIndex creates an index over the given entries. A threshold <= 0
// selects DefaultThreshold.
func NewIndex(entries []Entry, embedder Embedder, threshold float32, logger log.Logger) *Index {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Index{
		entries:   entries,
		embedder:  embedder,
		threshold: threshold,
		logger:    logger,
	}
}

// Len returns the number of indexed entries.
func (ix *Index) Len() int {
	return len(ix.entries)
}

// Match returns the entry whose question is most similar to the given
// one, provided the similarity reaches the threshold. Ties break to
// the first entry in parse order. When the embedding model is not
// ready (or any embedding fails) Match reports no match so the caller
// falls through to the completion path.
func (ix *Index) Match(ctx context.Context, question string) (Entry, bool) {
	if len(ix.entries) == 0 || !ix.embedder.Ready() {
		return Entry{}, false
	}

	vectors, err := ix.questionVectors(ctx)
	if err != nil {
		ix.logger.Warn("failed to embed FAQ questions", "error", err)
		return Entry{}, false
	}

	qVec, err := ix.embedder.Embed(ctx, Normalize(question))
	if err != nil {
		ix.logger.Warn("failed to embed question", "error", err)
		return Entry{}, false
	}

	bestIdx := -1
	var bestSim float32
	for i, v := range vectors {
		if sim := embedding.CosineSimilarity(qVec, v); bestIdx < 0 || sim > bestSim {
			bestIdx, bestSim = i, sim
		}
	}

	if bestIdx < 0 || bestSim < ix.threshold {
		ix.logger.Debug("no FAQ match", "best_similarity", bestSim)
		return Entry{}, false
	}

	ix.logger.Info("FAQ match",
		"question", ix.entries[bestIdx].Question,
		"similarity", bestSim)
	return ix.entries[bestIdx], true
}

// Warm precomputes the question embeddings. Intended to run in the
// background once the embedding model finished loading so the first
// Match does not pay the batch-embedding cost.
func (ix *Index) Warm(ctx context.Context) {
	if len(ix.entries) == 0 || !ix.embedder.Ready() {
		return
	}
	if _, err := ix.questionVectors(ctx); err != nil {
		ix.logger.Warn("FAQ warm-up failed", "error", err)
		return
	}
	ix.logger.Info("FAQ questions embedded", "count", len(ix.entries))
}

// questionVectors returns the cached question embeddings, computing
// them on first call. A failed attempt leaves the cache empty so a
// later call retries.
func (ix *Index) questionVectors(ctx context.Context) ([][]float32, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.vectors != nil {
		return ix.vectors, nil
	}

	questions := make([]string, len(ix.entries))
	for i, e := range ix.entries {
		questions[i] = e.Question
	}

	vectors, err := ix.embedder.EmbedBatch(ctx, questions)
	if err != nil {
		return nil, err
	}
	ix.vectors = vectors
	return vectors, nil
}

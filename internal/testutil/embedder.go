// Package testutil provides shared test helpers: a deterministic stub
// embedder, an SSE frame parser, and a scripted completion provider.
package testutil

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"
	"unicode"
)

// stubDimension is the vector length of the stub embedder.
const stubDimension = 256

// StubEmbedder is a deterministic in-process embedding provider for
// tests. It produces bag-of-words vectors: each lowercased token is
// hashed into one of stubDimension buckets and counted. Identical
// texts therefore always embed identically, and texts sharing most of
// their tokens land close in cosine space — enough semantic structure
// to exercise threshold logic without a real model.
//
// Thread-safe for concurrent use.
type StubEmbedder struct {
	mu    sync.Mutex
	ready bool
	calls int
}

// NewStubEmbedder creates a ready stub embedder.
func NewStubEmbedder() *StubEmbedder {
	return &StubEmbedder{ready: true}
}

// SetReady toggles readiness, simulating a model that has not loaded.
func (e *StubEmbedder) SetReady(ready bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ready = ready
}

// Ready reports the simulated model state.
func (e *StubEmbedder) Ready() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ready
}

// Calls returns how many embedding requests were served.
func (e *StubEmbedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// Embed returns the bag-of-words vector for the text.
func (e *StubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	return bagOfWords(text), nil
}

// EmbedBatch embeds each text, order-preserving.
func (e *StubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		vecs[i] = v
	}
	return vecs, nil
}

func bagOfWords(text string) []float32 {
	vec := make([]float32, stubDimension)
	for _, token := range tokenize(text) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(token))
		vec[h.Sum32()%stubDimension]++
	}
	return vec
}

// tokenize lowercases and splits on anything that is not a letter or
// digit, so punctuation does not perturb similarity.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Package embedding wraps a sentence-embedding model behind an
// HTTP API and exposes it through a readiness-gated Loader.
//
// The underlying model is expensive to load (the backing server pulls
// and warms a sentence-transformer), so the Loader performs a single
// asynchronous warm-up at startup. Until the warm-up completes the
// provider reports "not ready" and callers are expected to fall back
// to the completion path instead of blocking.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/longtime/assistant/internal/log"
)

// ErrNotReady indicates the embedding model has not finished loading
// (or failed to load). Callers should treat this as "no result" and
// fall through to their next tier.
var ErrNotReady = errors.New("embedding model not ready")

// Provider turns text into fixed-length numeric vectors.
// Two vectors are comparable only if produced by the same provider
// and model version.
type Provider interface {
	// Embed returns the embedding vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns one vector per input text, order-preserving.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Config configures the HTTP embedding client.
type Config struct {
	// BaseURL is the OpenAI-compatible API root, e.g. "http://localhost:11434/v1".
	BaseURL string

	// Model is the embedding model identifier.
	Model string

	// APIKey is the bearer credential; empty means no Authorization header.
	APIKey string

	// Timeout bounds each embedding request. Default: 15s.
	Timeout time.Duration
}

// Client calls an OpenAI-compatible /embeddings endpoint.
type Client struct {
	baseURL    string
	model      string
	apiKey     string
	httpClient *http.Client
	logger     log.Logger
}

// NewClient creates an embedding client for the given endpoint.
func NewClient(cfg Config, logger log.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		model:      cfg.Model,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed returns the embedding vector for a single text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds all texts in one request. The result is parallel
// to the input: vecs[i] is the embedding of texts[i].
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	payload, err := json.Marshal(embeddingRequest{Model: c.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("embedding API status %d: %s", resp.StatusCode, string(body))
	}

	var parsed embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode embedding response: %w", err)
	}
	if len(parsed.Data) != len(texts) {
		return nil, fmt.Errorf("embedding API returned %d vectors for %d inputs", len(parsed.Data), len(texts))
	}

	// The API reports an index per vector; order by it so the result
	// stays parallel to the input.
	vecs := make([][]float32, len(texts))
	for _, d := range parsed.Data {
		if d.Index < 0 || d.Index >= len(vecs) {
			return nil, fmt.Errorf("embedding API returned out-of-range index %d", d.Index)
		}
		vecs[d.Index] = d.Embedding
	}
	for i, v := range vecs {
		if len(v) == 0 {
			return nil, fmt.Errorf("embedding API returned empty vector for input %d", i)
		}
	}
	return vecs, nil
}

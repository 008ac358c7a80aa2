// Package completion streams chat completions from an ordered list of
// OpenAI-compatible providers, falling back through the list until one
// succeeds.
//
// The ordering trades latency against availability: the most preferred
// (free or cheap) models are attempted first, falling through
// increasingly reliable paid providers down to a local model as the
// last resort. Once a model has started streaming content, no further
// candidates are tried.
package completion

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/longtime/assistant/internal/log"
)

// ErrAllProvidersFailed indicates every provider/model combination
// failed; the caller must treat the turn as failed and leave the
// conversation history unmodified.
var ErrAllProvidersFailed = errors.New("all completion providers failed")

// ErrStreamInterrupted indicates a stream failed after content had
// already been delivered to the caller. The fallback chain is not
// resumed in that case, since the partial output cannot be unsent.
var ErrStreamInterrupted = errors.New("completion stream interrupted")

// Message is one chat message in the provider wire format.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Provider is one tier of the fallback chain.
type Provider struct {
	// Name identifies the provider in logs.
	Name string

	// BaseURL is the OpenAI-compatible API root, e.g. "https://openrouter.ai/api/v1".
	BaseURL string

	// APIKey is the bearer credential; empty means no Authorization header.
	APIKey string

	// Models are tried in order within this provider.
	Models []string
}

// Option configures a Client.
type Option func(*Client)

// WithAttemptTimeout bounds each provider/model attempt, including the
// full stream. A timed-out attempt fails open to the next candidate.
func WithAttemptTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.attemptTimeout = d
		}
	}
}

// Client iterates providers and models in order, streaming from the
// first one that succeeds.
type Client struct {
	providers      []Provider
	httpClient     *http.Client
	attemptTimeout time.Duration
	logger         log.Logger
}

// NewClient creates a completion client over the given fallback chain.
func NewClient(providers []Provider, logger log.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = log.NewNop()
	}
	c := &Client{
		providers:      providers,
		httpClient:     &http.Client{},
		attemptTimeout: 2 * time.Minute,
		logger:         logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StreamCompletion requests a streamed completion for the messages,
// invoking onChunk for each content chunk as it arrives, and returns
// the full accumulated response.
//
// On any failure before content has streamed, the next model (then the
// next provider) is attempted. Total exhaustion of the chain returns
// ErrAllProvidersFailed. A failure after content has streamed returns
// ErrStreamInterrupted together with whatever accumulated.
func (c *Client) StreamCompletion(ctx context.Context, messages []Message, onChunk func(text string)) (string, error) {
	for _, provider := range c.providers {
		for _, model := range provider.Models {
			if err := ctx.Err(); err != nil {
				return "", fmt.Errorf("completion cancelled: %w", err)
			}

			c.logger.Info("trying completion model", "provider", provider.Name, "model", model)
			full, started, err := c.attempt(ctx, provider, model, messages, onChunk)
			if err == nil {
				c.logger.Info("completion succeeded", "provider", provider.Name, "model", model,
					"response_len", len(full))
				return full, nil
			}
			if started {
				c.logger.Error("stream interrupted mid-response",
					"provider", provider.Name, "model", model, "error", err)
				return full, fmt.Errorf("%w: %v", ErrStreamInterrupted, err)
			}
			c.logger.Warn("completion attempt failed",
				"provider", provider.Name, "model", model, "error", err)
		}
	}
	return "", ErrAllProvidersFailed
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

type chatChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// attempt runs a single streaming request. started reports whether any
// content chunk reached the caller before the error.
func (c *Client) attempt(ctx context.Context, provider Provider, model string, messages []Message, onChunk func(string)) (full string, started bool, err error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.attemptTimeout)
	defer cancel()

	payload, err := json.Marshal(chatRequest{Model: model, Messages: messages, Stream: true})
	if err != nil {
		return "", false, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost,
		provider.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if provider.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+provider.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", false, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", false, fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}

	var b strings.Builder
	sawDone := false

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			sawDone = true
			break
		}

		var chunk chatChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return b.String(), b.Len() > 0, fmt.Errorf("malformed stream chunk: %w", err)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		if content := chunk.Choices[0].Delta.Content; content != "" {
			b.WriteString(content)
			onChunk(content)
		}
	}
	if err := scanner.Err(); err != nil {
		return b.String(), b.Len() > 0, fmt.Errorf("reading stream: %w", err)
	}

	// A clean close with neither a terminator nor content is a broken
	// provider (an HTML error page, say), not an empty answer.
	if !sawDone && b.Len() == 0 {
		return "", false, errors.New("stream ended without content")
	}
	return b.String(), b.Len() > 0, nil
}

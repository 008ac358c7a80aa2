package config

import (
	"errors"
	"fmt"
)

// Sentinel errors for Go-idiomatic checking with errors.Is().
var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrInvalidAddr indicates the server address is empty.
	ErrInvalidAddr = errors.New("invalid server address")

	// ErrInvalidThreshold indicates a similarity threshold is out of range.
	ErrInvalidThreshold = errors.New("invalid similarity threshold")

	// ErrInvalidMaxMessageLen indicates the message length limit is invalid.
	ErrInvalidMaxMessageLen = errors.New("invalid max message length")

	// ErrNoProviders indicates the completion fallback chain is empty.
	ErrNoProviders = errors.New("no completion providers configured")

	// ErrInvalidProvider indicates a provider entry is malformed.
	ErrInvalidProvider = errors.New("invalid completion provider")

	// ErrInvalidEmbedding indicates the embedding configuration is malformed.
	ErrInvalidEmbedding = errors.New("invalid embedding configuration")

	// ErrInvalidRateLimit indicates the rate limit configuration is malformed.
	ErrInvalidRateLimit = errors.New("invalid rate limit configuration")
)

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	if c.Addr == "" {
		return fmt.Errorf("%w: addr cannot be empty", ErrInvalidAddr)
	}

	if c.MaxMessageLen < 1 {
		return fmt.Errorf("%w: must be positive, got %d", ErrInvalidMaxMessageLen, c.MaxMessageLen)
	}

	// Cosine similarity over (0, 1]: 0 would match everything, above 1
	// would never match.
	for name, t := range map[string]float32{
		"faq_threshold":     c.FAQThreshold,
		"cache_threshold":   c.CacheThreshold,
		"history_threshold": c.HistoryThreshold,
	} {
		if t <= 0 || t > 1 {
			return fmt.Errorf("%w: %s must be in (0, 1], got %.2f", ErrInvalidThreshold, name, t)
		}
	}

	if c.Embedding.BaseURL == "" {
		return fmt.Errorf("%w: base_url cannot be empty", ErrInvalidEmbedding)
	}
	if c.Embedding.Model == "" {
		return fmt.Errorf("%w: model cannot be empty", ErrInvalidEmbedding)
	}

	if len(c.Providers) == 0 {
		return ErrNoProviders
	}
	for i, p := range c.Providers {
		if p.BaseURL == "" {
			return fmt.Errorf("%w: providers[%d] base_url cannot be empty", ErrInvalidProvider, i)
		}
		if len(p.Models) == 0 {
			return fmt.Errorf("%w: providers[%d] (%s) has no models", ErrInvalidProvider, i, p.Name)
		}
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.PerSecond <= 0 {
			return fmt.Errorf("%w: per_second must be positive, got %.2f", ErrInvalidRateLimit, c.RateLimit.PerSecond)
		}
		if c.RateLimit.Burst < 1 {
			return fmt.Errorf("%w: burst must be at least 1, got %d", ErrInvalidRateLimit, c.RateLimit.Burst)
		}
		if c.RateLimit.Daily < 1 {
			return fmt.Errorf("%w: daily must be at least 1, got %d", ErrInvalidRateLimit, c.RateLimit.Daily)
		}
	}

	return nil
}

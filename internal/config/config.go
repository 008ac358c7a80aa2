// Package config provides application configuration with multi-source
// priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (ASSISTANT_ prefix, runtime override)
//  2. Config file (./config.yaml or ~/.assistant/config.yaml)
//  3. Default values
//
// Provider credentials are never stored in the config file: each
// provider names the environment variable holding its API key and the
// key is resolved at startup.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Defaults.
const (
	DefaultAddr             = "127.0.0.1:8600"
	DefaultDataDir          = "data"
	DefaultContextFile      = "context.md"
	DefaultInstructionsFile = "instructions.md"
	DefaultMaxMessageLen    = 1024

	DefaultFAQThreshold     = 0.8
	DefaultCacheThreshold   = 0.95
	DefaultHistoryThreshold = 0.90
)

// EmbeddingConfig configures the embedding provider endpoint.
type EmbeddingConfig struct {
	BaseURL   string        `mapstructure:"base_url" json:"base_url"`
	Model     string        `mapstructure:"model" json:"model"`
	APIKeyEnv string        `mapstructure:"api_key_env" json:"api_key_env"`
	Timeout   time.Duration `mapstructure:"timeout" json:"timeout"`
}

// ProviderConfig is one tier of the completion fallback chain.
type ProviderConfig struct {
	Name      string   `mapstructure:"name" json:"name"`
	BaseURL   string   `mapstructure:"base_url" json:"base_url"`
	APIKeyEnv string   `mapstructure:"api_key_env" json:"api_key_env"`
	Models    []string `mapstructure:"models" json:"models"`
}

// APIKey resolves the provider credential from the environment.
func (p ProviderConfig) APIKey() string {
	if p.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(p.APIKeyEnv)
}

// RateLimitConfig configures per-identity chat rate limiting.
type RateLimitConfig struct {
	Enabled   bool    `mapstructure:"enabled" json:"enabled"`
	PerSecond float64 `mapstructure:"per_second" json:"per_second"`
	Burst     int     `mapstructure:"burst" json:"burst"`
	Daily     int     `mapstructure:"daily" json:"daily"`
}

// Config stores application configuration.
type Config struct {
	// HTTP server address
	Addr string `mapstructure:"addr" json:"addr"`

	// DataDir holds the cache artifacts.
	DataDir string `mapstructure:"data_dir" json:"data_dir"`

	// Source documents for the system prompt and FAQ index.
	ContextFile      string `mapstructure:"context_file" json:"context_file"`
	InstructionsFile string `mapstructure:"instructions_file" json:"instructions_file"`

	// MaxMessageLen rejects oversized chat messages before any model work.
	MaxMessageLen int `mapstructure:"max_message_length" json:"max_message_length"`

	// Similarity thresholds (see internal/faq and internal/cache).
	FAQThreshold     float32 `mapstructure:"faq_threshold" json:"faq_threshold"`
	CacheThreshold   float32 `mapstructure:"cache_threshold" json:"cache_threshold"`
	HistoryThreshold float32 `mapstructure:"history_threshold" json:"history_threshold"`

	Embedding EmbeddingConfig  `mapstructure:"embedding" json:"embedding"`
	Providers []ProviderConfig `mapstructure:"providers" json:"providers"`
	RateLimit RateLimitConfig  `mapstructure:"rate_limit" json:"rate_limit"`

	// Log configuration
	LogJSON  bool   `mapstructure:"log_json" json:"log_json"`
	LogLevel string `mapstructure:"log_level" json:"log_level"`
}

// Load reads configuration from defaults, an optional config file,
// and the environment.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".assistant"))
	}

	v.SetEnvPrefix("ASSISTANT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// No config file is fine; defaults and env cover everything.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("addr", DefaultAddr)
	v.SetDefault("data_dir", DefaultDataDir)
	v.SetDefault("context_file", DefaultContextFile)
	v.SetDefault("instructions_file", DefaultInstructionsFile)
	v.SetDefault("max_message_length", DefaultMaxMessageLen)

	v.SetDefault("faq_threshold", DefaultFAQThreshold)
	v.SetDefault("cache_threshold", DefaultCacheThreshold)
	v.SetDefault("history_threshold", DefaultHistoryThreshold)

	v.SetDefault("embedding.base_url", "http://localhost:11434/v1")
	v.SetDefault("embedding.model", "all-minilm")
	v.SetDefault("embedding.timeout", 15*time.Second)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.per_second", 1.0)
	v.SetDefault("rate_limit.burst", 3)
	v.SetDefault("rate_limit.daily", 20)

	v.SetDefault("log_json", false)
	v.SetDefault("log_level", "info")

	// The default fallback chain mirrors production: free OpenRouter
	// models first, then the paid gateway, then a local model as the
	// last resort.
	v.SetDefault("providers", []map[string]any{
		{
			"name":        "openrouter",
			"base_url":    "https://openrouter.ai/api/v1",
			"api_key_env": "OPENAI_API_KEY",
			"models": []string{
				"openai/gpt-oss-20b:free",
				"qwen/qwen3-coder:free",
				"mistralai/mistral-small-3.2-24b-instruct:free",
			},
		},
		{
			"name":     "gateway",
			"base_url": "https://api.long-time.ru/v1",
			"models": []string{
				"deepseek-v3-250324",
				"chatgpt-4o-latest",
				"claude-sonnet-4-20250514",
				"grok-3-fast-latest",
				"gemini-2.5-flash",
			},
		},
		{
			"name":     "local",
			"base_url": "http://localhost:11434/v1",
			"models":   []string{"gemma3:12b"},
		},
	})
}

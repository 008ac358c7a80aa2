package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/longtime/assistant/api"
	"github.com/longtime/assistant/internal/assistant"
	"github.com/longtime/assistant/internal/cache"
	"github.com/longtime/assistant/internal/completion"
	"github.com/longtime/assistant/internal/config"
	"github.com/longtime/assistant/internal/embedding"
	"github.com/longtime/assistant/internal/faq"
	"github.com/longtime/assistant/internal/log"
	"github.com/longtime/assistant/internal/session"
)

// embeddingWarmupTimeout bounds the one-time background model load.
const embeddingWarmupTimeout = 2 * time.Minute

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the assistant HTTP server",
	RunE: func(_ *cobra.Command, _ []string) error {
		return runServe()
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe() error {
	// Local development keeps credentials in .env; absence is fine.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	logger := log.New(log.Config{
		Level: parseLogLevel(cfg.LogLevel),
		JSON:  cfg.LogJSON,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	instructions := readDocument(cfg.InstructionsFile, logger)
	contextDoc := readDocument(cfg.ContextFile, logger)

	// Embedding provider with background warm-up: the server starts
	// serving immediately and semantic tiers come online once (and if)
	// the model loads.
	embedClient := embedding.NewClient(embedding.Config{
		BaseURL: cfg.Embedding.BaseURL,
		Model:   cfg.Embedding.Model,
		APIKey:  os.Getenv(cfg.Embedding.APIKeyEnv),
		Timeout: cfg.Embedding.Timeout,
	}, logger.With("component", "embedding"))
	loader := embedding.NewLoader(embedClient, embeddingWarmupTimeout, logger.With("component", "embedding"))
	loader.Start()

	entries := faq.Parse(contextDoc)
	logger.Info("parsed FAQ entries", "count", len(entries))
	faqIndex := faq.NewIndex(entries, loader, cfg.FAQThreshold, logger.With("component", "faq"))

	// Precompute FAQ embeddings once the model is up so the first chat
	// turn does not pay the batch cost.
	go func() {
		<-loader.Done()
		faqIndex.Warm(ctx)
	}()

	responseCache, err := cache.New(
		filepath.Join(cfg.DataDir, "ai_response_cache"),
		loader,
		logger.With("component", "cache"),
		cache.WithThresholds(cfg.CacheThreshold, cfg.HistoryThreshold),
	)
	if err != nil {
		return fmt.Errorf("initializing response cache: %w", err)
	}
	defer responseCache.Flush()

	providers := make([]completion.Provider, 0, len(cfg.Providers))
	for _, p := range cfg.Providers {
		providers = append(providers, completion.Provider{
			Name:    p.Name,
			BaseURL: p.BaseURL,
			APIKey:  p.APIKey(),
			Models:  p.Models,
		})
	}
	completer := completion.NewClient(providers, logger.With("component", "completion"))

	sessions := session.NewStore(logger.With("component", "session"))

	service := assistant.New(faqIndex, responseCache, completer, sessions,
		instructions, contextDoc, logger.With("component", "assistant"))

	var limiter *api.RateLimiter
	if cfg.RateLimit.Enabled {
		limiter = api.NewRateLimiter(cfg.RateLimit.PerSecond, cfg.RateLimit.Burst,
			cfg.RateLimit.Daily, logger.With("component", "ratelimit"))
	}

	server := api.NewServer(api.ServerConfig{
		Assistant:     service,
		Cache:         responseCache,
		Sessions:      sessions,
		Readiness:     loader.Ready,
		Logger:        logger.With("component", "api"),
		MaxMessageLen: cfg.MaxMessageLen,
		RateLimiter:   limiter,
	})

	addr := cfg.Addr
	if serveAddr != "" {
		addr = serveAddr
	}
	logger.Info("assistant starting", "version", Version, "addr", addr)
	return server.Run(ctx, addr)
}

// readDocument loads a source document; a missing file degrades to an
// empty document (and therefore an empty FAQ index) rather than
// failing startup.
func readDocument(path string, logger log.Logger) string {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Warn("document not found, continuing without it", "path", path)
		} else {
			logger.Warn("failed to read document", "path", path, "error", err)
		}
		return ""
	}
	return string(data)
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

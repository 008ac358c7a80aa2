package embedding

import (
	"context"
	"sync"
	"time"

	"github.com/longtime/assistant/internal/log"
)

// warmupText is the probe text sent once to load the model.
const warmupText = "warmup"

// Loader gates a Provider behind a one-time asynchronous warm-up.
//
// Loading the model takes seconds, so the serving path must not block
// on it: Start launches a single background warm-up attempt and the
// rest of the system polls Ready. A failed warm-up is permanent; the
// Loader stays "not ready" and every Embed call returns ErrNotReady,
// pushing callers to the completion fallback. No retries are made.
//
// The ready state is a single-assignment future: err is written
// exactly once, before done is closed, so there is no loading/loaded
// flag race.
type Loader struct {
	provider Provider
	timeout  time.Duration
	logger   log.Logger

	start sync.Once
	done  chan struct{}
	err   error
}

// NewLoader wraps the provider. Start must be called before the
// Loader can become ready.
func NewLoader(provider Provider, timeout time.Duration, logger log.Logger) *Loader {
	if timeout <= 0 {
		timeout = time.Minute
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Loader{
		provider: provider,
		timeout:  timeout,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start launches the background warm-up. Subsequent calls are no-ops.
func (l *Loader) Start() {
	l.start.Do(func() {
		go l.warmup()
	})
}

func (l *Loader) warmup() {
	defer close(l.done)

	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()

	l.logger.Info("loading embedding model")
	began := time.Now()
	if _, err := l.provider.Embed(ctx, warmupText); err != nil {
		l.err = err
		l.logger.Warn("embedding model unavailable, semantic matching disabled", "error", err)
		return
	}
	l.logger.Info("embedding model loaded", "elapsed", time.Since(began))
}

// Ready reports whether the model finished loading successfully.
func (l *Loader) Ready() bool {
	select {
	case <-l.done:
		return l.err == nil
	default:
		return false
	}
}

// Done returns a channel closed once the warm-up attempt finished,
// successfully or not.
func (l *Loader) Done() <-chan struct{} {
	return l.done
}

// Embed forwards to the provider once ready, ErrNotReady otherwise.
func (l *Loader) Embed(ctx context.Context, text string) ([]float32, error) {
	if !l.Ready() {
		return nil, ErrNotReady
	}
	return l.provider.Embed(ctx, text)
}

// EmbedBatch forwards to the provider once ready, ErrNotReady otherwise.
func (l *Loader) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if !l.Ready() {
		return nil, ErrNotReady
	}
	return l.provider.EmbedBatch(ctx, texts)
}

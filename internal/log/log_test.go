package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriterText(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewWithWriter(&buf, Config{Level: slog.LevelInfo})

	logger.Info("server started", "addr", "127.0.0.1:8600")

	out := buf.String()
	assert.Contains(t, out, "server started")
	assert.Contains(t, out, "addr=127.0.0.1:8600")
}

func TestNewWithWriterJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewWithWriter(&buf, Config{JSON: true})

	logger.Info("cache hit", "similarity", 0.97)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "cache hit", entry["msg"])
	assert.InDelta(t, 0.97, entry["similarity"], 1e-6)
}

func TestLevelFiltering(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewWithWriter(&buf, Config{Level: slog.LevelWarn})

	logger.Debug("dropped")
	logger.Info("also dropped")
	logger.Warn("kept")

	out := buf.String()
	assert.NotContains(t, out, "dropped")
	assert.Contains(t, out, "kept")
}

func TestNopLoggerDiscards(t *testing.T) {
	t.Parallel()

	// Must not panic; output goes nowhere.
	logger := NewNop()
	logger.Info("discarded")
	logger.With("key", "value").Error("also discarded")
}

package cache

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Persisted artifact names. responses.json holds the structured
// records (human-inspectable); embeddings.gob holds the vectors keyed
// by the same cache_id. Both are loaded together at startup.
const (
	recordsFile = "responses.json"
	vectorsFile = "embeddings.gob"
)

// loadArtifacts restores prior cache state from disk. Corrupt or
// missing artifacts degrade to an empty cache; only a failure to
// create the cache directory is fatal.
func (c *Cache) loadArtifacts() error {
	if err := os.MkdirAll(c.dir, 0o750); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	records := make(map[string]Record)
	if data, err := os.ReadFile(c.recordsPath()); err == nil {
		if err := json.Unmarshal(data, &records); err != nil {
			c.logger.Warn("malformed cache records, starting empty", "error", err)
			records = make(map[string]Record)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		c.logger.Warn("unreadable cache records, starting empty", "error", err)
	}

	vectors := make(map[string][]float32)
	if data, err := os.ReadFile(c.vectorsPath()); err == nil {
		if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&vectors); err != nil {
			c.logger.Warn("malformed cache embeddings, starting empty", "error", err)
			vectors = make(map[string][]float32)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		c.logger.Warn("unreadable cache embeddings, starting empty", "error", err)
	}

	// The two artifacts must stay index-aligned by cache_id: a record
	// without its vector (or vice versa) cannot serve lookups.
	for id := range records {
		if _, ok := vectors[id]; !ok {
			delete(records, id)
		}
	}
	for id := range vectors {
		if _, ok := records[id]; !ok {
			delete(vectors, id)
		}
	}

	c.records = records
	c.vectors = vectors
	if len(records) > 0 {
		c.logger.Info("loaded cache", "entries", len(records))
	}
	return nil
}

// persistLocked writes both artifacts. Callers hold c.mu.
func (c *Cache) persistLocked() error {
	data, err := json.MarshalIndent(c.records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal records: %w", err)
	}
	if err := os.WriteFile(c.recordsPath(), data, 0o600); err != nil {
		return fmt.Errorf("write records: %w", err)
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(c.vectors); err != nil {
		return fmt.Errorf("encode embeddings: %w", err)
	}
	if err := os.WriteFile(c.vectorsPath(), buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("write embeddings: %w", err)
	}
	return nil
}

// removeArtifactsLocked deletes both artifacts. Callers hold c.mu.
func (c *Cache) removeArtifactsLocked() error {
	for _, path := range []string{c.recordsPath(), c.vectorsPath()} {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

// artifactSizeLocked returns the combined on-disk size. Callers hold
// c.mu (read or write).
func (c *Cache) artifactSizeLocked() int64 {
	var total int64
	for _, path := range []string{c.recordsPath(), c.vectorsPath()} {
		if info, err := os.Stat(path); err == nil {
			total += info.Size()
		}
	}
	return total
}

func (c *Cache) recordsPath() string { return filepath.Join(c.dir, recordsFile) }
func (c *Cache) vectorsPath() string { return filepath.Join(c.dir, vectorsFile) }

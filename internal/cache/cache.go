// Package cache persists finished PromptResults keyed by everything that
// could change them: artifact content, tier configuration, rubric version
// and pass threshold. A hit lets repeated batch invocations skip unchanged
// artifacts entirely.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/promptqa/prompteval/internal/models"
)

// Cache is a file-per-key JSON result cache rooted at dir. An empty dir
// disables it: every Get misses and every Put is a no-op.
type Cache struct {
	dir string
	mu  sync.Mutex
}

// New creates a cache rooted at dir.
func New(dir string) *Cache {
	return &Cache{dir: dir}
}

// Key derives the cache key for one (artifact, tier, rubric, threshold)
// combination. Any change to the artifact's content, the tier's models or
// run count, the rubric version or the threshold yields a new key.
func Key(art models.PromptArtifact, spec models.TierSpec, rubricVersion string, threshold float64) (string, error) {
	h := sha256.New()

	if err := writeString(h, art.ID); err != nil {
		return "", err
	}
	if err := writeString(h, art.RawContent); err != nil {
		return "", err
	}
	if err := writeString(h, rubricVersion); err != nil {
		return "", err
	}
	if _, err := fmt.Fprintf(h, "%g\x00", threshold); err != nil {
		return "", err
	}

	specJSON, err := json.Marshal(spec)
	if err != nil {
		return "", fmt.Errorf("marshaling tier spec: %w", err)
	}
	if _, err := h.Write(specJSON); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// Deterministic reports whether results for a tier spec are reproducible
// from the artifact alone. Model-backed methodologies sample live backends,
// so their cached results reflect one past evaluation, not a pure function
// of the inputs.
func Deterministic(spec models.TierSpec) bool {
	return !spec.Methodologies.Judged && !spec.Methodologies.Reproducibility
}

// Get retrieves a cached result if present.
func (c *Cache) Get(key string) (*models.PromptResult, bool) {
	if c.dir == "" {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.cachePath(key))
	if err != nil {
		// Cache miss
		return nil, false
	}

	var result models.PromptResult
	if err := json.Unmarshal(data, &result); err != nil {
		// Invalid cache entry, treat as miss
		return nil, false
	}

	return &result, true
}

// Put stores a result in the cache.
func (c *Cache) Put(key string, result *models.PromptResult) error {
	if c.dir == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling result: %w", err)
	}

	if err := os.WriteFile(c.cachePath(key), data, 0644); err != nil {
		return fmt.Errorf("writing cache file: %w", err)
	}

	return nil
}

// Clear removes all cached results. It refuses to delete a directory that
// contains anything other than .json cache files.
func (c *Cache) Clear() error {
	if c.dir == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := os.Stat(c.dir); os.IsNotExist(err) {
		return nil
	}

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return fmt.Errorf("reading cache directory: %w", err)
	}

	if len(entries) > 0 {
		hasValidCache := false
		for _, entry := range entries {
			if entry.IsDir() {
				return fmt.Errorf("cache directory contains subdirectories - refusing to delete for safety")
			}
			if filepath.Ext(entry.Name()) == ".json" {
				hasValidCache = true
			} else {
				return fmt.Errorf("cache directory contains non-cache files - refusing to delete for safety")
			}
		}
		if !hasValidCache {
			return fmt.Errorf("no valid cache files found in directory - refusing to delete for safety")
		}
	}

	return os.RemoveAll(c.dir)
}

// cachePath returns the file path for a cache key
func (c *Cache) cachePath(key string) string {
	return filepath.Join(c.dir, key+".json")
}

func writeString(w io.Writer, s string) error {
	// Null byte delimiter prevents hash collisions between adjacent fields
	_, err := w.Write([]byte(s + "\x00"))
	return err
}

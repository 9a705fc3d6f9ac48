package probe

import (
	"context"
	"sync"

	"github.com/promptqa/prompteval/internal/models"
)

// Store persists probe results between invocations. Implementations are safe
// for concurrent use; writes are last-writer-wins.
type Store interface {
	// Get returns the stored result for a model id. found is false when no
	// entry exists; staleness is the caller's concern.
	Get(ctx context.Context, modelID string) (result models.ProbeResult, found bool, err error)

	// Put stores a result, replacing any previous entry for the model.
	Put(ctx context.Context, result models.ProbeResult) error

	// Delete removes the entry for a model id. Missing entries are not an
	// error.
	Delete(ctx context.Context, modelID string) error

	// Close releases any underlying resources.
	Close() error
}

// MemoryStore is an in-process Store for tests and --no-cache runs.
type MemoryStore struct {
	mu      sync.RWMutex
	results map[string]models.ProbeResult
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{results: make(map[string]models.ProbeResult)}
}

func (s *MemoryStore) Get(_ context.Context, modelID string) (models.ProbeResult, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result, found := s.results[modelID]
	return result, found, nil
}

func (s *MemoryStore) Put(_ context.Context, result models.ProbeResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[result.ModelID] = result
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, modelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.results, modelID)
	return nil
}

func (s *MemoryStore) Close() error { return nil }

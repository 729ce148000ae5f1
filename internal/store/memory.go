// File: internal/store/memory.go
package store

import (
	"context"
	"fmt"
	"sync"

	jsoniter "github.com/json-iterator/go"

	"github.com/formweaver/formweaver/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// MemoryStore is an in-process BatchStore used for tests and ephemeral runs.
// State is deep-copied through the JSON codec on both save and load, so
// callers can never alias the stored batch.
type MemoryStore struct {
	mu      sync.RWMutex
	batches map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{batches: make(map[string][]byte)}
}

// Save implements schemas.BatchStore.
func (s *MemoryStore) Save(ctx context.Context, batchID string, batch *schemas.Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if batchID == "" {
		return fmt.Errorf("batch id must not be empty")
	}
	payload, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("failed to encode batch %s: %w", batchID, err)
	}
	s.mu.Lock()
	s.batches[batchID] = payload
	s.mu.Unlock()
	return nil
}

// LoadAll implements schemas.BatchStore.
func (s *MemoryStore) LoadAll(ctx context.Context) (map[string]*schemas.Batch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]*schemas.Batch, len(s.batches))
	for id, payload := range s.batches {
		var batch schemas.Batch
		if err := json.Unmarshal(payload, &batch); err != nil {
			return nil, fmt.Errorf("failed to decode batch %s: %w", id, err)
		}
		out[id] = &batch
	}
	return out, nil
}

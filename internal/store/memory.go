package store

import (
	"context"
	"encoding/json"
	"sync"

	"reconciliation-close-backend/internal/apperr"
)

// MemoryStore is the in-process backend used for local mode and tests.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]map[string][]byte)}
}

func (s *MemoryStore) Get(_ context.Context, collection, key string, out any) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	raw, ok := s.collections[collection][key]
	if !ok {
		return apperr.NotFound(collection, key)
	}
	return json.Unmarshal(raw, out)
}

func (s *MemoryStore) Put(_ context.Context, collection, key string, doc any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.collections[collection] == nil {
		s.collections[collection] = make(map[string][]byte)
	}
	s.collections[collection][key] = raw
	return nil
}

func (s *MemoryStore) List(_ context.Context, collection string) (map[string]json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]json.RawMessage, len(s.collections[collection]))
	for key, raw := range s.collections[collection] {
		out[key] = json.RawMessage(append([]byte(nil), raw...))
	}
	return out, nil
}

package memory

import (
	"context"
	"sync"
)

// InMemoryStore is a simple in-process store for local/dev use and tests.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
	saves   int
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string]Record)}
}

func (s *InMemoryStore) Load(_ context.Context, profileID string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[normalizeProfile(profileID)]
	if !ok {
		return DefaultRecord(), nil
	}
	return rec.Clone(), nil
}

func (s *InMemoryStore) Save(_ context.Context, profileID string, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[normalizeProfile(profileID)] = rec.Clone()
	s.saves++
	return nil
}

// Saves reports how many writes reached the store.
func (s *InMemoryStore) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}

func (s *InMemoryStore) Close() error { return nil }

// Package storage persists the tracker's entity sets through a pluggable
// key-value blob store. Each entity set lives under its own key as one JSON
// document; backends only ever see opaque blobs.
package storage

import (
	"context"
	"sync"
)

// Storage keys, one per persisted entity set.
const (
	KeyGifts   = "gift-tracker:gifts"
	KeyYears   = "gift-tracker:extra-years"
	KeyBudgets = "gift-tracker:budgets"
	KeyNames   = "gift-tracker:names"
)

// Keys lists every persisted key.
var Keys = []string{KeyGifts, KeyYears, KeyBudgets, KeyNames}

// BlobStore is the persistence collaborator contract: whole-blob load and
// save keyed by string. Implementations must treat a missing key as
// (nil, false, nil), not an error.
type BlobStore interface {
	Load(ctx context.Context, key string) (value []byte, ok bool, err error)
	Save(ctx context.Context, key string, value []byte) error
	Close() error
}

// MemoryStore is a map-backed BlobStore for tests and throwaway runs.
type MemoryStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

func (m *MemoryStore) Load(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.blobs[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (m *MemoryStore) Save(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryStore) Close() error { return nil }

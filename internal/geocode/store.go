package geocode

import (
	"context"
	"errors"
	"sync"

	"github.com/couchcryptid/forest-data-etl/internal/domain"
)

// ErrStoreCorrupt marks a store failure that recreating the store can fix:
// a corrupt file, a store that became read-only, or undecodable data.
var ErrStoreCorrupt = errors.New("geocode store corrupt")

// Store is a durable key-value store of geocode cache entries.
type Store interface {
	// Get returns the entry for key and whether it exists.
	Get(ctx context.Context, key string) (domain.GeocodeCacheEntry, bool, error)

	// Put creates or overwrites the entry under entry.Key.
	Put(ctx context.Context, entry domain.GeocodeCacheEntry) error

	// Reset discards all data and leaves an empty, writable store.
	Reset(ctx context.Context) error

	Close() error
}

// MemoryStore is a Store held in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]domain.GeocodeCacheEntry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]domain.GeocodeCacheEntry)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (domain.GeocodeCacheEntry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	return e, ok, nil
}

func (s *MemoryStore) Put(_ context.Context, entry domain.GeocodeCacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.Key] = entry
	return nil
}

func (s *MemoryStore) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]domain.GeocodeCacheEntry)
	return nil
}

func (s *MemoryStore) Close() error { return nil }

// Len returns the number of stored entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Package synccache implements the offline cache used by the driver client:
// a read-through reference cache (vehicles, templates, recent inspections,
// profile) refreshed from the remote store, plus a longer-lived local queue
// of drafts and completed-but-unsynced inspections.
//
// The cache is backend-agnostic: the Store interface is satisfied by an
// in-memory map for tests and single-process use, and by Redis for
// deployments that share the cache across app restarts.
package synccache

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// ErrMiss is returned by Store.Get when the key is absent.
var ErrMiss = errors.New("synccache: key not found")

// Store is the key-value backend of the cache. Writes are last-writer-wins;
// only one device/session is assumed active at a time, so no further
// coordination is required.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error

	// Keys returns all keys with the given prefix, in unspecified order.
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// =============================================================================
// In-Memory Store
// =============================================================================

// MemoryStore is a mutex-guarded map implementation of Store. It is the
// default backend and the substitute used throughout the tests.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.data[key]
	if !ok {
		return nil, ErrMiss
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

// Set implements Store.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := make([]byte, len(value))
	copy(stored, value)
	s.data[key] = stored
	return nil
}

// Delete implements Store. Deleting an absent key is a no-op.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)
	return nil
}

// Keys implements Store.
func (s *MemoryStore) Keys(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []string
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

package kvstore

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is an in-process Store used by tests and ephemeral runs.
// It keeps every record in a map and sorts keys on scan, so it satisfies
// the same ordering contract as the SQLite store.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string][]byte

	// failNext, when set, makes the next operation return this error.
	// Tests use it to simulate an unreachable store.
	failNext error
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string][]byte)}
}

// FailNext arranges for the next store operation to fail with err.
func (s *MemoryStore) FailNext(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = err
}

// takeFailure consumes and returns the pending injected error, if any.
// Caller must hold mu.
func (s *MemoryStore) takeFailure() error {
	err := s.failNext
	s.failNext = nil
	return err
}

// Put writes value under key, overwriting any existing record.
func (s *MemoryStore) Put(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return err
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	s.records[key] = cp
	return nil
}

// Get returns the value stored under key, or ErrKeyNotFound.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return nil, err
	}
	v, ok := s.records[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	cp := make([]byte, len(v))
	copy(cp, v)
	return cp, nil
}

// Delete removes the record under key. Deleting a missing key is a no-op.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return err
	}
	delete(s.records, key)
	return nil
}

// List returns all entries whose key starts with prefix, ordered by key.
func (s *MemoryStore) List(_ context.Context, prefix string) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(s.records))
	for k := range s.records {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	out := make([]Entry, 0, len(keys))
	for _, k := range keys {
		v := s.records[k]
		cp := make([]byte, len(v))
		copy(cp, v)
		out = append(out, Entry{Key: k, Value: cp})
	}
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }

// Package kvstore defines the durable key-value store boundary used to
// persist corpus records. The store is ordered and prefix-scannable: List
// returns every entry whose key starts with a prefix, in ascending key
// order, which is what the index rebuild and the wipe operation rely on.
//
// Two implementations are provided: a SQLite-backed store for production
// and an in-memory store for tests and ephemeral runs.
package kvstore

import (
	"context"
	"errors"
)

// ErrKeyNotFound is returned by Get when no record exists for the key.
var ErrKeyNotFound = errors.New("kvstore: key not found")

// Entry is a single key-value pair returned by a prefix scan.
type Entry struct {
	// Key is the full record key.
	Key string
	// Value is the raw record payload.
	Value []byte
}

// Store is the ordered durable key-value store consumed by the corpus and
// index packages. Implementations must be safe for concurrent use.
type Store interface {
	// Put writes value under key, overwriting any existing record.
	Put(ctx context.Context, key string, value []byte) error

	// Get returns the value stored under key, or ErrKeyNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes the record under key. Deleting a missing key is not
	// an error.
	Delete(ctx context.Context, key string) error

	// List returns all entries whose key starts with prefix, ordered by
	// key ascending. An empty prefix returns every record.
	List(ctx context.Context, prefix string) ([]Entry, error)

	// Close releases any resources held by the store.
	Close() error
}

// prefixEnd returns the smallest key strictly greater than every key that
// starts with prefix, for use as an exclusive upper scan bound. Returns ""
// when no such bound exists (prefix is empty or all 0xff).
func prefixEnd(prefix string) string {
	b := []byte(prefix)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] < 0xff {
			b[i]++
			return string(b[:i+1])
		}
	}
	return ""
}

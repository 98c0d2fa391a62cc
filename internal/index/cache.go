// Package index maintains the in-memory chunk index: a snapshot of every
// chunk record in the durable store, rebuilt wholesale whenever it is
// considered stale. Staleness is version- and time-gated: the snapshot is
// rebuilt when the durable corpus version counter no longer matches the one
// observed at the last build, when the snapshot's age exceeds the TTL, or
// when a caller forces it. Each process instance owns its own cache; cross-
// instance coherency is bounded by the TTL plus the version check, not by
// any shared in-memory structure or push channel.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/studyware/lectura/internal/corpus"
	"github.com/studyware/lectura/internal/kvstore"
	"github.com/studyware/lectura/internal/logging"
)

// DefaultTTL is the maximum snapshot age before a rebuild is triggered even
// when the version counter has not moved (covers clock-only staleness when
// another instance mutated the store and this one has not read the counter).
const DefaultTTL = 60 * time.Second

// Cache is the process-local materialization of all chunk records.
// It is safe for concurrent use; a rebuild replaces the snapshot atomically
// so readers never observe a partially built one.
type Cache struct {
	// store is the durable record store scanned on rebuild.
	store kvstore.Store
	// ttl is the maximum snapshot age before it is considered stale.
	ttl time.Duration
	// now is the clock, injectable for TTL tests.
	now func() time.Time

	mu sync.RWMutex
	// chunks is the current snapshot in rebuild-scan order. Nil until the
	// first successful rebuild.
	chunks []corpus.Chunk
	// loaded is true once a rebuild has succeeded and until Invalidate.
	loaded bool
	// version is the corpus version counter observed at scan start.
	version uint64
	// builtAt is when the current snapshot finished building.
	builtAt time.Time

	// onRebuild, when set, is called after every successful rebuild with the
	// trigger that caused it: "initial", "ttl", "version", or "forced".
	onRebuild func(trigger string)
}

// SetRebuildHook installs the rebuild observer. Call before the cache is in
// concurrent use.
func (c *Cache) SetRebuildHook(fn func(trigger string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onRebuild = fn
}

// New constructs a Cache over store. A non-positive ttl selects DefaultTTL.
func New(store kvstore.Store, ttl time.Duration) (*Cache, error) {
	if store == nil {
		return nil, fmt.Errorf("index: store must not be nil")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{store: store, ttl: ttl, now: time.Now}, nil
}

// Chunks returns the current snapshot, rebuilding it first when stale.
// The returned slice is the live snapshot, callers must not mutate it.
func (c *Cache) Chunks(ctx context.Context) ([]corpus.Chunk, error) {
	if err := c.Ensure(ctx); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.chunks, nil
}

// Ensure rebuilds the snapshot if it is stale, and is a no-op otherwise.
// When the rebuild fails and a previous snapshot exists, the previous
// snapshot stays in use and the error is still returned to the caller.
func (c *Cache) Ensure(ctx context.Context) error {
	reason, err := c.staleReason(ctx)
	if err != nil {
		// The staleness probe needs the durable version counter; if the
		// store is unreachable keep serving whatever we have.
		c.mu.RLock()
		haveSnapshot := c.loaded
		c.mu.RUnlock()
		if haveSnapshot {
			logging.FromContext(ctx).Warn("index: staleness probe failed, serving previous snapshot",
				slog.Any("error", err),
			)
			return nil
		}
		return err
	}
	if reason == "" {
		return nil
	}
	return c.rebuild(ctx, reason)
}

// staleReason reports why the snapshot must be rebuilt ("initial", "ttl",
// "version"), or "" when it is still fresh.
func (c *Cache) staleReason(ctx context.Context) (string, error) {
	c.mu.RLock()
	loaded := c.loaded
	builtAt := c.builtAt
	version := c.version
	c.mu.RUnlock()

	if !loaded {
		return "initial", nil
	}
	if c.now().Sub(builtAt) > c.ttl {
		return "ttl", nil
	}

	current, err := corpus.ReadVersion(ctx, c.store)
	if err != nil {
		return "", fmt.Errorf("index: %w", err)
	}
	if current != version {
		return "version", nil
	}
	return "", nil
}

// ForceRebuild scans the store and replaces the snapshot regardless of
// staleness.
func (c *Cache) ForceRebuild(ctx context.Context) error {
	return c.rebuild(ctx, "forced")
}

// rebuild replaces the snapshot. The version counter is read before the
// chunk scan, so the new snapshot reflects at least that version. Concurrent
// rebuilds each build a private slice and swap it in whole; the last one to
// finish wins.
func (c *Cache) rebuild(ctx context.Context, trigger string) error {
	log := logging.FromContext(ctx)
	start := c.now()

	version, err := corpus.ReadVersion(ctx, c.store)
	if err != nil {
		return fmt.Errorf("index: rebuild: %w", err)
	}

	entries, err := c.store.List(ctx, corpus.AllChunksPrefix())
	if err != nil {
		// Previous snapshot (if any) remains in use.
		return fmt.Errorf("index: rebuild scan: %w: %w", corpus.ErrStoreUnavailable, err)
	}

	chunks := make([]corpus.Chunk, 0, len(entries))
	for _, e := range entries {
		chunk, err := corpus.DecodeChunk(e.Value)
		if err != nil {
			return fmt.Errorf("index: rebuild %s: %w", e.Key, err)
		}
		chunks = append(chunks, chunk)
	}

	c.mu.Lock()
	c.chunks = chunks
	c.loaded = true
	c.version = version
	c.builtAt = c.now()
	hook := c.onRebuild
	c.mu.Unlock()

	if hook != nil {
		hook(trigger)
	}

	log.Debug("index: rebuilt",
		slog.String("trigger", trigger),
		slog.Int("chunks", len(chunks)),
		slog.Uint64("version", version),
		slog.Duration("took", c.now().Sub(start)),
	)
	return nil
}

// Invalidate discards the snapshot immediately. The next read rebuilds.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chunks = nil
	c.loaded = false
	c.version = 0
	c.builtAt = time.Time{}
}

// Info reports the snapshot's current state for diagnostics.
func (c *Cache) Info() (loaded bool, size int, version uint64, builtAt time.Time) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded, len(c.chunks), c.version, c.builtAt
}

package server

import (
	"context"
	"fmt"

	"github.com/studyware/lectura/internal/corpus"
	"github.com/studyware/lectura/internal/embedder"
	"github.com/studyware/lectura/internal/kvstore"
)

// StorePinger probes the durable store by reading the corpus version counter.
// A store with no counter record yet is healthy (version 0).
// It satisfies the Pinger interface and is used by GET /api/ready.
type StorePinger struct {
	// store is the durable record store to probe.
	store kvstore.Store
}

// NewStorePinger constructs a StorePinger for the given store.
func NewStorePinger(store kvstore.Store) *StorePinger {
	return &StorePinger{store: store}
}

// Name returns the dependency label used in readiness responses.
func (p *StorePinger) Name() string { return "store" }

// Ping reads the corpus version counter.
// Returns nil if the store answers, or a descriptive error otherwise.
func (p *StorePinger) Ping(ctx context.Context) error {
	if _, err := corpus.ReadVersion(ctx, p.store); err != nil {
		return fmt.Errorf("version read failed: %w", err)
	}
	return nil
}

// EmbedderPinger probes the embedding gateway with a minimal single-text
// embed request. It satisfies the Pinger interface and is used by GET /api/ready.
type EmbedderPinger struct {
	// emb is the embedding gateway client to probe.
	emb embedder.Embedder
	// name identifies the backend in readiness responses (e.g. "ollama").
	name string
}

// NewEmbedderPinger constructs an EmbedderPinger for the given client and
// backend name.
func NewEmbedderPinger(emb embedder.Embedder, name string) *EmbedderPinger {
	return &EmbedderPinger{emb: emb, name: name}
}

// Name returns the backend label used in readiness responses.
func (p *EmbedderPinger) Name() string { return p.name }

// Ping sends a one-word embed request to the gateway.
func (p *EmbedderPinger) Ping(ctx context.Context) error {
	vecs, err := p.emb.Embed(ctx, []string{"ping"})
	if err != nil {
		return fmt.Errorf("embed failed: %w", err)
	}
	if len(vecs) != 1 || len(vecs[0]) == 0 {
		return fmt.Errorf("embed returned no vector")
	}
	return nil
}

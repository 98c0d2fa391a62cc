package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/studyware/lectura/internal/answer"
	"github.com/studyware/lectura/internal/chunker"
	"github.com/studyware/lectura/internal/corpus"
	"github.com/studyware/lectura/internal/embedder"
	"github.com/studyware/lectura/internal/index"
	"github.com/studyware/lectura/internal/kvstore"
	"github.com/studyware/lectura/internal/retrieval"
)

// core bundles the wired retrieval stack shared by every subcommand that
// touches the corpus. Close releases the underlying store.
type core struct {
	// store is the durable SQLite-backed record store.
	store kvstore.Store
	// cache is the TTL/version-gated in-memory index.
	cache *index.Cache
	// svc handles corpus mutations and stats.
	svc *corpus.Service
	// engine scores and selects chunks.
	engine *retrieval.Engine
	// emb is the embedding gateway client.
	emb embedder.Embedder
}

// buildCore opens the store and wires the index, corpus service, and
// retrieval engine from the environment.
func buildCore(log *slog.Logger) (*core, error) {
	path := os.Getenv("STORE_PATH")
	if path == "" {
		var err error
		path, err = kvstore.DefaultDBPath()
		if err != nil {
			return nil, err
		}
	}

	store, err := kvstore.OpenSQLite(path)
	if err != nil {
		return nil, fmt.Errorf("open store at %s: %w", path, err)
	}
	log.Info("store opened", slog.String("path", path))

	ttl := index.DefaultTTL
	if raw := os.Getenv("CACHE_TTL"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("invalid CACHE_TTL %q: %w", raw, err)
		}
		ttl = d
	}

	cache, err := index.New(store, ttl)
	if err != nil {
		store.Close()
		return nil, err
	}

	if err := embedder.Validate(log); err != nil {
		store.Close()
		return nil, err
	}
	emb, err := embedder.NewFromEnv()
	if err != nil {
		store.Close()
		return nil, err
	}

	chunkCfg := chunker.Config{
		Size:    getEnvInt("CHUNK_SIZE", chunker.DefaultSize),
		Overlap: getEnvInt("CHUNK_OVERLAP", chunker.DefaultOverlap),
	}

	svc, err := corpus.NewService(store, emb, cache, chunkCfg)
	if err != nil {
		store.Close()
		return nil, err
	}

	engine, err := retrieval.NewEngine(cache)
	if err != nil {
		store.Close()
		return nil, err
	}

	return &core{store: store, cache: cache, svc: svc, engine: engine, emb: emb}, nil
}

// Close releases the durable store.
func (c *core) Close() error {
	return c.store.Close()
}

// buildAnswerer wires the full question-answering path (embedder → engine →
// completion gateway) with the retrieval policy from the environment.
func (c *core) buildAnswerer() (*policyAnswerer, error) {
	completer, err := answer.NewCompleterFromEnv()
	if err != nil {
		return nil, err
	}

	asm, err := answer.NewAssembler(c.emb, c.engine, completer, getEnvBool("RETRIEVAL_STRICT", true))
	if err != nil {
		return nil, err
	}

	return &policyAnswerer{
		inner:    asm,
		minScore: getEnvFloat("RETRIEVAL_MIN_SCORE", retrieval.DefaultMinScore),
		topK:     getEnvInt("RETRIEVAL_TOP_K", retrieval.DefaultTopK),
	}, nil
}

// policyAnswerer fills unset per-request policy fields with the operator's
// configured defaults before delegating to the assembler.
type policyAnswerer struct {
	inner    *answer.Assembler
	minScore float64
	topK     int
}

// Answer applies the configured retrieval defaults to fields the request
// leaves unset (nil) and delegates. Explicit zeroes pass through untouched.
func (p *policyAnswerer) Answer(ctx context.Context, req answer.Request) (answer.Response, error) {
	if req.MinScore == nil {
		req.MinScore = &p.minScore
	}
	if req.TopK == nil {
		req.TopK = &p.topK
	}
	return p.inner.Answer(ctx, req)
}

// getEnvInt returns the integer value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

// getEnvFloat returns the float value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

// getEnvBool returns the boolean value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

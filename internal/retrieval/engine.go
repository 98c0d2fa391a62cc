// Package retrieval implements the scoring and selection policy over the
// in-memory chunk index: exhaustive cosine similarity against every cached
// chunk, a similarity threshold, a top-k cap, and a strictness flag that
// decides whether a below-threshold result set means "no match" or falls
// back to the best-effort top-k. The corpus is assumed small enough that a
// linear scan beats maintaining an approximate index.
package retrieval

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/studyware/lectura/internal/corpus"
)

// Defaults for the selection policy, overridable per query.
const (
	// DefaultMinScore is the cosine similarity floor for a chunk to count
	// as a match.
	DefaultMinScore = 0.20
	// DefaultTopK is the maximum number of chunks returned per query.
	DefaultTopK = 3
)

// normEpsilon keeps the cosine denominator non-zero for degenerate vectors.
const normEpsilon = 1e-9

// SnapshotProvider yields the current chunk snapshot, rebuilding it first if
// stale. *index.Cache satisfies it.
type SnapshotProvider interface {
	Chunks(ctx context.Context) ([]corpus.Chunk, error)
}

// Options are the per-query selection parameters. Both MinScore and TopK are
// taken literally; callers that want the defaults pass DefaultMinScore and
// DefaultTopK explicitly.
type Options struct {
	// MinScore is the similarity threshold. Zero accepts every chunk with a
	// non-negative similarity; a negative value accepts everything.
	MinScore float64
	// TopK caps the number of selected chunks. Zero or negative selects
	// nothing.
	TopK int
	// Strict, when true, reports ErrBelowThreshold instead of falling back
	// to the unfiltered top-k when nothing clears MinScore.
	Strict bool
}

// ScoredChunk is one selected chunk with its similarity score.
type ScoredChunk struct {
	// Chunk is the underlying corpus record.
	Chunk corpus.Chunk
	// Score is the cosine similarity against the query vector.
	Score float64
}

// Result is the retrieval output consumed by the answer assembler.
type Result struct {
	// Chunks are the selected chunks in similarity-descending order.
	Chunks []ScoredChunk
	// Sources are the distinct owning-document titles of the selected
	// chunks, in order of first occurrence.
	Sources []string
}

// Engine scores and selects chunks from a snapshot provider.
type Engine struct {
	// snapshots supplies the chunk index.
	snapshots SnapshotProvider
}

// NewEngine constructs an Engine over the given snapshot provider.
func NewEngine(snapshots SnapshotProvider) (*Engine, error) {
	if snapshots == nil {
		return nil, fmt.Errorf("retrieval: snapshot provider must not be nil")
	}
	return &Engine{snapshots: snapshots}, nil
}

// Search scores every cached chunk against the query vector and applies the
// threshold/top-k/strict policy.
//
// An empty snapshot returns corpus.ErrNoCorpusLoaded. In strict mode a
// non-empty snapshot with no chunk at or above MinScore returns
// corpus.ErrBelowThreshold; in lenient mode the unfiltered top-k is returned
// instead. TopK <= 0 yields an empty selection without error.
func (e *Engine) Search(ctx context.Context, query []float32, opts Options) (Result, error) {
	chunks, err := e.snapshots.Chunks(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("retrieval: %w", err)
	}
	if len(chunks) == 0 {
		return Result{}, corpus.ErrNoCorpusLoaded
	}
	if opts.TopK <= 0 {
		return Result{Chunks: []ScoredChunk{}, Sources: []string{}}, nil
	}

	scored := make([]ScoredChunk, len(chunks))
	for i, c := range chunks {
		scored[i] = ScoredChunk{Chunk: c, Score: Cosine(query, c.Embedding)}
	}
	// Stable: equal scores keep their rebuild-scan order.
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	selected := make([]ScoredChunk, 0, opts.TopK)
	for _, sc := range scored {
		if sc.Score < opts.MinScore {
			break // sorted descending, nothing below clears the threshold
		}
		selected = append(selected, sc)
		if len(selected) == opts.TopK {
			break
		}
	}

	if len(selected) == 0 {
		if opts.Strict {
			return Result{}, corpus.ErrBelowThreshold
		}
		// Lenient fallback: best-effort top-k regardless of threshold.
		n := opts.TopK
		if n > len(scored) {
			n = len(scored)
		}
		selected = scored[:n]
	}

	return Result{Chunks: selected, Sources: sourceTitles(selected)}, nil
}

// sourceTitles returns the de-duplicated titles of the selected chunks in
// order of first occurrence.
func sourceTitles(selected []ScoredChunk) []string {
	titles := make([]string, 0, len(selected))
	seen := make(map[string]bool, len(selected))
	for _, sc := range selected {
		if seen[sc.Chunk.Title] {
			continue
		}
		seen[sc.Chunk.Title] = true
		titles = append(titles, sc.Chunk.Title)
	}
	return titles
}

// Cosine returns the cosine similarity dot(a,b) / (‖a‖·‖b‖ + ε). Vectors of
// different lengths are compared over the shorter prefix; a zero vector
// scores near zero rather than dividing by zero.
func Cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	return dot / (math.Sqrt(na)*math.Sqrt(nb) + normEpsilon)
}

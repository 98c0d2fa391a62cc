package retrieval

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/studyware/lectura/internal/corpus"
)

// staticSnapshots is a SnapshotProvider over a fixed chunk slice.
type staticSnapshots struct {
	chunks []corpus.Chunk
	err    error
}

func (s *staticSnapshots) Chunks(context.Context) ([]corpus.Chunk, error) {
	return s.chunks, s.err
}

// chunk builds a test chunk with the given identity and embedding.
func chunk(id string, seq int, title string, vec ...float32) corpus.Chunk {
	return corpus.Chunk{DocumentID: id, Seq: seq, Title: title, Text: "text", Embedding: vec}
}

func newTestEngine(t *testing.T, chunks ...corpus.Chunk) *Engine {
	t.Helper()
	e, err := NewEngine(&staticSnapshots{chunks: chunks})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return e
}

func TestCosine_Bounds(t *testing.T) {
	t.Parallel()

	vectors := [][]float32{
		{1, 0, 0},
		{0.5, 0.5, 0.7},
		{-1, 2, -3},
		{0.001, 0, 100},
	}
	for _, a := range vectors {
		for _, b := range vectors {
			got := Cosine(a, b)
			if got < -1.000001 || got > 1.000001 {
				t.Errorf("Cosine(%v, %v) = %v out of [-1, 1]", a, b, got)
			}
		}
		if self := Cosine(a, a); math.Abs(self-1) > 1e-6 {
			t.Errorf("Cosine(a, a) = %v, want ~1 for %v", self, a)
		}
	}
}

func TestCosine_ZeroVector(t *testing.T) {
	t.Parallel()
	if got := Cosine([]float32{0, 0}, []float32{1, 1}); got != 0 {
		t.Errorf("zero vector similarity = %v, want 0", got)
	}
}

func TestSearch_OrdersBySimilarityDescending(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t,
		chunk("L1", 0, "Intro", 1, 0),
		chunk("L1", 1, "Intro", 0, 1),
		chunk("L2", 0, "Advanced", 0.9, 0.1),
	)

	res, err := e.Search(context.Background(), []float32{1, 0}, Options{MinScore: -1, TopK: 3})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(res.Chunks) != 3 {
		t.Fatalf("want 3 chunks, got %d", len(res.Chunks))
	}
	if res.Chunks[0].Chunk.Seq != 0 || res.Chunks[0].Chunk.DocumentID != "L1" {
		t.Errorf("best match: want L1/0, got %s/%d", res.Chunks[0].Chunk.DocumentID, res.Chunks[0].Chunk.Seq)
	}
	if res.Chunks[1].Chunk.DocumentID != "L2" {
		t.Errorf("second match: want L2, got %s", res.Chunks[1].Chunk.DocumentID)
	}
	for i := 1; i < len(res.Chunks); i++ {
		if res.Chunks[i].Score > res.Chunks[i-1].Score {
			t.Errorf("scores not descending at %d", i)
		}
	}
}

func TestSearch_TiesKeepScanOrder(t *testing.T) {
	t.Parallel()
	// Identical embeddings, all scores tie; scan order must survive.
	e := newTestEngine(t,
		chunk("A", 0, "T", 1, 0),
		chunk("B", 0, "T", 1, 0),
		chunk("C", 0, "T", 1, 0),
	)

	res, err := e.Search(context.Background(), []float32{1, 0}, Options{TopK: 3})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	got := []string{res.Chunks[0].Chunk.DocumentID, res.Chunks[1].Chunk.DocumentID, res.Chunks[2].Chunk.DocumentID}
	want := []string{"A", "B", "C"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("tie order: want %v, got %v", want, got)
		}
	}
}

func TestSearch_ThresholdAndTopK(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t,
		chunk("L1", 0, "Intro", 1, 0),     // score 1.0
		chunk("L1", 1, "Intro", 0.7, 0.7), // score ~0.71
		chunk("L2", 0, "Advanced", 0, 1),  // score ~0
	)

	res, err := e.Search(context.Background(), []float32{1, 0}, Options{MinScore: 0.5, TopK: 5})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(res.Chunks) != 2 {
		t.Fatalf("want 2 chunks above 0.5, got %d", len(res.Chunks))
	}

	res, err = e.Search(context.Background(), []float32{1, 0}, Options{MinScore: 0.5, TopK: 1})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(res.Chunks) != 1 {
		t.Fatalf("want topK=1 to cap selection, got %d", len(res.Chunks))
	}
}

func TestSearch_StrictVersusLenient(t *testing.T) {
	t.Parallel()
	// Best possible score against the query is ~0, below any threshold.
	e := newTestEngine(t,
		chunk("L1", 0, "Intro", 0, 1),
		chunk("L1", 1, "Intro", 0, 0.5),
	)
	query := []float32{1, 0}

	_, err := e.Search(context.Background(), query, Options{MinScore: 0.9, TopK: 3, Strict: true})
	if !errors.Is(err, corpus.ErrBelowThreshold) {
		t.Fatalf("strict: want ErrBelowThreshold, got %v", err)
	}

	res, err := e.Search(context.Background(), query, Options{MinScore: 0.9, TopK: 3, Strict: false})
	if err != nil {
		t.Fatalf("lenient: %v", err)
	}
	if len(res.Chunks) != 2 {
		t.Errorf("lenient fallback: want 2 chunks, got %d", len(res.Chunks))
	}
}

func TestSearch_EmptyCacheIsNoCorpus(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)

	_, err := e.Search(context.Background(), []float32{1, 0}, Options{TopK: 3, Strict: true})
	if !errors.Is(err, corpus.ErrNoCorpusLoaded) {
		t.Fatalf("want ErrNoCorpusLoaded, got %v", err)
	}

	// Lenient mode makes no difference on an empty corpus.
	_, err = e.Search(context.Background(), []float32{1, 0}, Options{TopK: 3, Strict: false})
	if !errors.Is(err, corpus.ErrNoCorpusLoaded) {
		t.Fatalf("lenient empty: want ErrNoCorpusLoaded, got %v", err)
	}
}

func TestSearch_NonPositiveTopKSelectsNothing(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t,
		chunk("L1", 0, "Intro", 1, 0),
		chunk("L1", 1, "Intro", 0.9, 0.1),
	)

	for _, k := range []int{0, -1} {
		res, err := e.Search(context.Background(), []float32{1, 0}, Options{MinScore: 0.1, TopK: k})
		if err != nil {
			t.Fatalf("topK=%d: %v", k, err)
		}
		if len(res.Chunks) != 0 || len(res.Sources) != 0 {
			t.Errorf("topK=%d: want empty selection, got %d chunks", k, len(res.Chunks))
		}
	}
}

func TestSearch_ZeroMinScoreAcceptsNonNegative(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t,
		chunk("L1", 0, "Intro", 1, 0),     // score 1.0
		chunk("L1", 1, "Intro", 0, 1),     // score ~0
		chunk("L2", 0, "Advanced", -1, 0), // score -1.0
	)

	// An explicit zero threshold is honoured, not replaced by the default:
	// the ~0-score chunk stays in, only the negative one is filtered out.
	res, err := e.Search(context.Background(), []float32{1, 0}, Options{MinScore: 0, TopK: 10})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(res.Chunks) != 2 {
		t.Fatalf("want 2 non-negative chunks, got %d", len(res.Chunks))
	}
	if res.Chunks[1].Score < 0 {
		t.Errorf("negative-score chunk selected: %v", res.Chunks[1].Score)
	}
}

func TestSearch_SourcesFirstOccurrenceOrder(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t,
		chunk("L2", 0, "Zeta", 1, 0),
		chunk("L1", 0, "Alpha", 0.9, 0.1),
		chunk("L2", 1, "Zeta", 0.8, 0.2),
	)

	res, err := e.Search(context.Background(), []float32{1, 0}, Options{MinScore: -1, TopK: 3})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	// "Zeta" scores highest so it appears first even though "Alpha" sorts
	// before it alphabetically; the second Zeta chunk is de-duplicated.
	want := []string{"Zeta", "Alpha"}
	if len(res.Sources) != 2 || res.Sources[0] != want[0] || res.Sources[1] != want[1] {
		t.Errorf("sources: want %v, got %v", want, res.Sources)
	}
}

func TestSearch_SnapshotErrorPropagates(t *testing.T) {
	t.Parallel()
	boom := errors.New("store down")
	e, err := NewEngine(&staticSnapshots{err: boom})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	_, err = e.Search(context.Background(), []float32{1}, Options{TopK: 3})
	if !errors.Is(err, boom) {
		t.Errorf("want snapshot error, got %v", err)
	}
}

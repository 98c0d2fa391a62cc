package corpus_test

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/studyware/lectura/internal/chunker"
	"github.com/studyware/lectura/internal/corpus"
	"github.com/studyware/lectura/internal/index"
	"github.com/studyware/lectura/internal/kvstore"
)

// fakeEmbedder returns a deterministic vector per text so retitle tests can
// assert bit-identical embeddings. failAfter > 0 fails the Nth embed call.
type fakeEmbedder struct {
	calls     int
	failAfter int
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.failAfter > 0 && f.calls >= f.failAfter {
		return nil, errors.New("embedding gateway: HTTP 500")
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), float32(f.calls)}
	}
	return out, nil
}

// harness bundles a service over a memory store and a real index cache.
type harness struct {
	store *kvstore.MemoryStore
	cache *index.Cache
	svc   *corpus.Service
	emb   *fakeEmbedder
}

func newHarness(t *testing.T, cfg chunker.Config) *harness {
	t.Helper()
	store := kvstore.NewMemoryStore()
	cache, err := index.New(store, time.Hour)
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	emb := &fakeEmbedder{}
	svc, err := corpus.NewService(store, emb, cache, cfg)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return &harness{store: store, cache: cache, svc: svc, emb: emb}
}

func TestIngest_SingleDocument(t *testing.T) {
	t.Parallel()
	h := newHarness(t, chunker.Config{Size: 1700, Overlap: 200})
	ctx := context.Background()

	res, err := h.svc.Ingest(ctx, []corpus.IngestDoc{
		{ID: "L1", Title: "Intro", Text: strings.Repeat("a", 2500)},
	})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if res.Documents != 1 || res.Chunks != 2 {
		t.Fatalf("want 1 document / 2 chunks, got %d / %d", res.Documents, res.Chunks)
	}

	v, err := h.svc.Version(ctx)
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if v != 1 {
		t.Errorf("want exactly one version bump for the batch, got %d", v)
	}

	chunks, err := h.cache.Chunks(ctx)
	if err != nil {
		t.Fatalf("chunks: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("want force-rebuilt cache of 2 chunks, got %d", len(chunks))
	}
	if chunks[0].Title != "Intro" || chunks[1].Title != "Intro" {
		t.Errorf("chunk titles: got %q / %q", chunks[0].Title, chunks[1].Title)
	}
	if chunks[0].Seq != 0 || chunks[1].Seq != 1 {
		t.Errorf("chunk order: got seq %d then %d", chunks[0].Seq, chunks[1].Seq)
	}
}

func TestIngest_BatchBumpsVersionOnce(t *testing.T) {
	t.Parallel()
	h := newHarness(t, chunker.Config{Size: 100, Overlap: 10})
	ctx := context.Background()

	_, err := h.svc.Ingest(ctx, []corpus.IngestDoc{
		{ID: "L1", Title: "One", Text: strings.Repeat("x", 300)},
		{ID: "L2", Title: "Two", Text: strings.Repeat("y", 300)},
		{ID: "L3", Title: "Three", Text: strings.Repeat("z", 300)},
	})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}

	v, _ := h.svc.Version(ctx)
	if v != 1 {
		t.Errorf("batch of 3 documents: want version 1, got %d", v)
	}
}

func TestIngest_ReingestWithFewerChunksDeletesStaleTail(t *testing.T) {
	t.Parallel()
	h := newHarness(t, chunker.Config{Size: 100, Overlap: 0})
	ctx := context.Background()

	if _, err := h.svc.Ingest(ctx, []corpus.IngestDoc{
		{ID: "L1", Title: "Long", Text: strings.Repeat("a", 500)},
	}); err != nil {
		t.Fatalf("first ingest: %v", err)
	}

	res, err := h.svc.Ingest(ctx, []corpus.IngestDoc{
		{ID: "L1", Title: "Short", Text: strings.Repeat("b", 250)},
	})
	if err != nil {
		t.Fatalf("re-ingest: %v", err)
	}
	if res.Chunks != 3 {
		t.Fatalf("want 3 new chunks, got %d", res.Chunks)
	}

	entries, err := h.store.List(ctx, corpus.ChunkKeyPrefix("L1"))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 3 {
		t.Errorf("want stale chunks 3 and 4 deleted, got %d records", len(entries))
	}

	chunks, err := h.cache.Chunks(ctx)
	if err != nil {
		t.Fatalf("chunks: %v", err)
	}
	for _, c := range chunks {
		if c.Title != "Short" {
			t.Errorf("chunk %d still carries old document state: %q", c.Seq, c.Title)
		}
	}
}

func TestIngest_MidBatchEmbedFailure(t *testing.T) {
	t.Parallel()
	h := newHarness(t, chunker.Config{Size: 100, Overlap: 0})
	h.emb.failAfter = 3 // first document embeds 2 chunks, second fails on its 1st
	ctx := context.Background()

	_, err := h.svc.Ingest(ctx, []corpus.IngestDoc{
		{ID: "L1", Title: "One", Text: strings.Repeat("x", 200)},
		{ID: "L2", Title: "Two", Text: strings.Repeat("y", 200)},
	})
	if !errors.Is(err, corpus.ErrUpstreamFailure) {
		t.Fatalf("want ErrUpstreamFailure, got %v", err)
	}

	// Partial writes from the first document survive, not rolled back.
	entries, _ := h.store.List(ctx, corpus.ChunkKeyPrefix("L1"))
	if len(entries) != 2 {
		t.Errorf("want 2 orphaned chunks for L1, got %d", len(entries))
	}

	// But the version counter was never bumped, so no reader reloads.
	v, _ := h.svc.Version(ctx)
	if v != 0 {
		t.Errorf("failed batch must not bump version, got %d", v)
	}
}

func TestIngest_RejectsBadIDs(t *testing.T) {
	t.Parallel()
	h := newHarness(t, chunker.Config{})
	ctx := context.Background()

	for _, id := range []string{"", "a/b"} {
		_, err := h.svc.Ingest(ctx, []corpus.IngestDoc{{ID: id, Title: "T", Text: "t"}})
		if !errors.Is(err, corpus.ErrInvalidDocument) {
			t.Errorf("want ErrInvalidDocument for id %q, got %v", id, err)
		}
	}
}

func TestRetitle_PropagatesWithoutReembedding(t *testing.T) {
	t.Parallel()
	h := newHarness(t, chunker.Config{Size: 100, Overlap: 10})
	ctx := context.Background()

	if _, err := h.svc.Ingest(ctx, []corpus.IngestDoc{
		{ID: "L1", Title: "Draft Title", Text: strings.Repeat("a", 400)},
	}); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	before, err := h.cache.Chunks(ctx)
	if err != nil {
		t.Fatalf("chunks before: %v", err)
	}
	beforeVecs := make([][]float32, len(before))
	for i, c := range before {
		beforeVecs[i] = c.Embedding
	}

	if err := h.svc.Retitle(ctx, "L1", "Final Title"); err != nil {
		t.Fatalf("retitle: %v", err)
	}

	after, err := h.cache.Chunks(ctx)
	if err != nil {
		t.Fatalf("chunks after: %v", err)
	}
	if len(after) != len(before) {
		t.Fatalf("chunk count changed: %d -> %d", len(before), len(after))
	}
	for i, c := range after {
		if c.Title != "Final Title" {
			t.Errorf("chunk %d: want new title, got %q", c.Seq, c.Title)
		}
		if !reflect.DeepEqual(c.Embedding, beforeVecs[i]) {
			t.Errorf("chunk %d: embedding changed by retitle", c.Seq)
		}
	}

	v, _ := h.svc.Version(ctx)
	if v != 2 {
		t.Errorf("want version 2 after ingest+retitle, got %d", v)
	}
}

func TestRetitle_UnknownDocument(t *testing.T) {
	t.Parallel()
	h := newHarness(t, chunker.Config{})

	err := h.svc.Retitle(context.Background(), "ghost", "New")
	if !errors.Is(err, corpus.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestWipe_Completeness(t *testing.T) {
	t.Parallel()
	h := newHarness(t, chunker.Config{Size: 100, Overlap: 0})
	ctx := context.Background()

	if _, err := h.svc.Ingest(ctx, []corpus.IngestDoc{
		{ID: "L1", Title: "One", Text: strings.Repeat("x", 250)},
		{ID: "L2", Title: "Two", Text: strings.Repeat("y", 150)},
	}); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	// 3 chunks + 2 chunks + 2 document records.
	deleted, err := h.svc.Wipe(ctx)
	if err != nil {
		t.Fatalf("wipe: %v", err)
	}
	if deleted != 7 {
		t.Errorf("want 7 deleted records, got %d", deleted)
	}

	if err := h.cache.ForceRebuild(ctx); err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	loaded, size, _, _ := h.cache.Info()
	if !loaded || size != 0 {
		t.Errorf("want empty rebuilt cache, got loaded=%v size=%d", loaded, size)
	}

	stats, err := h.svc.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.LectureCount != 0 || stats.ChunkCount != 0 {
		t.Errorf("want zeroed stats after wipe, got %+v", stats)
	}
}

func TestWipe_EmptyStore(t *testing.T) {
	t.Parallel()
	h := newHarness(t, chunker.Config{})

	deleted, err := h.svc.Wipe(context.Background())
	if err != nil {
		t.Fatalf("wipe: %v", err)
	}
	if deleted != 0 {
		t.Errorf("want 0 deleted on empty store, got %d", deleted)
	}
	loaded, size, _, _ := h.cache.Info()
	if loaded || size != 0 {
		t.Errorf("cache must stay empty, got loaded=%v size=%d", loaded, size)
	}
}

func TestStats_CountsAndSample(t *testing.T) {
	t.Parallel()
	h := newHarness(t, chunker.Config{Size: 100, Overlap: 0})
	ctx := context.Background()

	var docs []corpus.IngestDoc
	for i := 0; i < 12; i++ {
		docs = append(docs, corpus.IngestDoc{
			ID:    fmt.Sprintf("L%02d", i),
			Title: fmt.Sprintf("Lecture %02d", i),
			Text:  strings.Repeat("t", 50),
		})
	}
	if _, err := h.svc.Ingest(ctx, docs); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	stats, err := h.svc.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.LectureCount != 12 {
		t.Errorf("want 12 lectures, got %d", stats.LectureCount)
	}
	if stats.ChunkCount != 12 {
		t.Errorf("want 12 chunks, got %d", stats.ChunkCount)
	}
	if len(stats.SampleTitles) != 10 {
		t.Errorf("want sample capped at 10 titles, got %d", len(stats.SampleTitles))
	}
	if stats.SampleTitles[0] != "Lecture 00" {
		t.Errorf("want sample in cache order, got first %q", stats.SampleTitles[0])
	}
}

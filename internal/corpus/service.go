package corpus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/studyware/lectura/internal/chunker"
	"github.com/studyware/lectura/internal/embedder"
	"github.com/studyware/lectura/internal/kvstore"
	"github.com/studyware/lectura/internal/logging"
)

// Index is the in-memory chunk index consumed and invalidated by the
// mutation operations. *index.Cache satisfies it; tests inject a fake.
type Index interface {
	// Chunks returns the current snapshot, rebuilding it first if stale.
	Chunks(ctx context.Context) ([]Chunk, error)
	// ForceRebuild rebuilds the snapshot from the durable store regardless
	// of staleness.
	ForceRebuild(ctx context.Context) error
	// Invalidate discards the snapshot immediately.
	Invalidate()
}

// IngestDoc is one document submitted to Ingest.
type IngestDoc struct {
	// ID is the caller-assigned stable identifier. Must be non-empty and
	// must not contain '/', which is reserved by the key scheme.
	ID string
	// Title is the human-readable label stored on the document and
	// denormalized onto every chunk.
	Title string
	// Text is the full document text to chunk and embed.
	Text string
}

// IngestResult reports what a successful Ingest wrote.
type IngestResult struct {
	// Documents is the number of documents written.
	Documents int
	// Chunks is the total number of chunk records written.
	Chunks int
}

// Stats is the read-only corpus summary. No text or vector content is exposed.
type Stats struct {
	// LectureCount is the number of distinct document titles in the index.
	LectureCount int `json:"lectureCount"`
	// ChunkCount is the total number of chunks in the index.
	ChunkCount int `json:"chunkCount"`
	// SampleTitles holds up to 10 distinct titles in index order.
	SampleTitles []string `json:"sampleTitles"`
}

// sampleTitleLimit bounds the number of titles reported by Stats.
const sampleTitleLimit = 10

// Service implements the corpus mutation operations: ingest, retitle, wipe,
// and the read-only stats. Every mutation writes all its records to the
// durable store, then bumps the corpus version counter exactly once, then
// refreshes (or clears) the index, so any reader observing the new version
// is guaranteed the corresponding writes are already durable.
//
// Operations are not transactional: a mid-batch embedding failure during
// ingest leaves earlier chunks durably written and does not bump the version.
type Service struct {
	// store is the durable record store.
	store kvstore.Store
	// embedder is the embedding gateway client.
	embedder embedder.Embedder
	// index is the in-memory chunk index to refresh after mutations.
	index Index
	// chunkCfg holds the window parameters used at ingest.
	chunkCfg chunker.Config
}

// NewService constructs a Service from its collaborators.
func NewService(store kvstore.Store, emb embedder.Embedder, index Index, chunkCfg chunker.Config) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("corpus: store must not be nil")
	}
	if emb == nil {
		return nil, fmt.Errorf("corpus: embedder must not be nil")
	}
	if index == nil {
		return nil, fmt.Errorf("corpus: index must not be nil")
	}
	return &Service{store: store, embedder: emb, index: index, chunkCfg: chunkCfg}, nil
}

// Ingest chunks, embeds, and persists each document, overwriting any prior
// document with the same id. Existing chunk records for a re-ingested id are
// deleted before the new ones are written, so a shrinking document leaves no
// stale tail chunks behind. The corpus version is bumped once after the
// entire batch succeeds, then the index is force-rebuilt.
func (s *Service) Ingest(ctx context.Context, docs []IngestDoc) (IngestResult, error) {
	log := logging.FromContext(ctx)

	var res IngestResult
	for _, doc := range docs {
		if err := validateID(doc.ID); err != nil {
			return res, err
		}

		n, err := s.ingestOne(ctx, doc)
		if err != nil {
			return res, err
		}
		res.Documents++
		res.Chunks += n

		log.Info("corpus: document ingested",
			slog.String("id", doc.ID),
			slog.String("title", doc.Title),
			slog.Int("chunks", n),
		)
	}

	if err := s.bumpVersion(ctx); err != nil {
		return res, err
	}
	if err := s.index.ForceRebuild(ctx); err != nil {
		return res, fmt.Errorf("corpus: ingest rebuild: %w", err)
	}
	return res, nil
}

// ingestOne writes one document's chunks and metadata. Returns the number of
// chunks written.
func (s *Service) ingestOne(ctx context.Context, doc IngestDoc) (int, error) {
	// Remove every existing chunk for this id up front so a re-ingest with
	// fewer chunks cannot leave stale high-index records behind.
	old, err := s.store.List(ctx, ChunkKeyPrefix(doc.ID))
	if err != nil {
		return 0, storeErr("ingest scan "+doc.ID, err)
	}
	for _, e := range old {
		if err := s.store.Delete(ctx, e.Key); err != nil {
			return 0, storeErr("ingest delete "+e.Key, err)
		}
	}

	windows := chunker.Split(doc.Text, s.chunkCfg)
	for seq, text := range windows {
		vecs, err := s.embedder.Embed(ctx, []string{text})
		if err != nil {
			return 0, fmt.Errorf("corpus: embed %s/%d: %w: %w", doc.ID, seq, ErrUpstreamFailure, err)
		}
		if len(vecs) != 1 {
			return 0, fmt.Errorf("corpus: embed %s/%d: %w: expected 1 vector, got %d", doc.ID, seq, ErrUpstreamFailure, len(vecs))
		}

		rec, err := EncodeChunk(Chunk{
			DocumentID: doc.ID,
			Seq:        seq,
			Title:      doc.Title,
			Text:       text,
			Embedding:  vecs[0],
		})
		if err != nil {
			return 0, err
		}
		if err := s.store.Put(ctx, ChunkKey(doc.ID, seq), rec); err != nil {
			return 0, storeErr("ingest put chunk", err)
		}
	}

	meta, err := EncodeDocument(Document{ID: doc.ID, Title: doc.Title, ChunkCount: len(windows)})
	if err != nil {
		return 0, err
	}
	if err := s.store.Put(ctx, DocKey(doc.ID), meta); err != nil {
		return 0, storeErr("ingest put document", err)
	}

	return len(windows), nil
}

// Retitle updates a document's title and rewrites the denormalized title on
// every one of its chunk records without recomputing any embedding. Returns
// ErrNotFound when no metadata exists for the id.
func (s *Service) Retitle(ctx context.Context, id, title string) error {
	if err := validateID(id); err != nil {
		return err
	}

	raw, err := s.store.Get(ctx, DocKey(id))
	if errors.Is(err, kvstore.ErrKeyNotFound) {
		return fmt.Errorf("corpus: retitle %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return storeErr("retitle get "+id, err)
	}

	doc, err := DecodeDocument(raw)
	if err != nil {
		return err
	}
	doc.Title = title

	meta, err := EncodeDocument(doc)
	if err != nil {
		return err
	}
	if err := s.store.Put(ctx, DocKey(id), meta); err != nil {
		return storeErr("retitle put document", err)
	}

	entries, err := s.store.List(ctx, ChunkKeyPrefix(id))
	if err != nil {
		return storeErr("retitle scan "+id, err)
	}
	for _, e := range entries {
		c, err := DecodeChunk(e.Value)
		if err != nil {
			return err
		}
		c.Title = title
		rec, err := EncodeChunk(c)
		if err != nil {
			return err
		}
		if err := s.store.Put(ctx, e.Key, rec); err != nil {
			return storeErr("retitle put chunk", err)
		}
	}

	if err := s.bumpVersion(ctx); err != nil {
		return err
	}
	if err := s.index.ForceRebuild(ctx); err != nil {
		return fmt.Errorf("corpus: retitle rebuild: %w", err)
	}

	logging.FromContext(ctx).Info("corpus: document retitled",
		slog.String("id", id),
		slog.String("title", title),
		slog.Int("chunks", len(entries)),
	)
	return nil
}

// Wipe deletes every document and chunk record, bumps the version once, and
// clears the index immediately rather than waiting for a lazy rebuild.
// Returns the number of records deleted.
func (s *Service) Wipe(ctx context.Context) (int, error) {
	deleted := 0
	for _, prefix := range []string{DocPrefix(), AllChunksPrefix()} {
		entries, err := s.store.List(ctx, prefix)
		if err != nil {
			return deleted, storeErr("wipe scan "+prefix, err)
		}
		for _, e := range entries {
			if err := s.store.Delete(ctx, e.Key); err != nil {
				return deleted, storeErr("wipe delete "+e.Key, err)
			}
			deleted++
		}
	}

	if err := s.bumpVersion(ctx); err != nil {
		return deleted, err
	}
	s.index.Invalidate()

	logging.FromContext(ctx).Info("corpus: wiped", slog.Int("deleted", deleted))
	return deleted, nil
}

// Stats reports the distinct title count, total chunk count, and a bounded
// sample of titles from a freshened index snapshot.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	chunks, err := s.index.Chunks(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("corpus: stats: %w", err)
	}

	stats := Stats{ChunkCount: len(chunks), SampleTitles: []string{}}
	seen := make(map[string]bool)
	for _, c := range chunks {
		if seen[c.Title] {
			continue
		}
		seen[c.Title] = true
		stats.LectureCount++
		if len(stats.SampleTitles) < sampleTitleLimit {
			stats.SampleTitles = append(stats.SampleTitles, c.Title)
		}
	}
	return stats, nil
}

// Version reads the current corpus version counter from the durable store.
// A store without a counter record is at version 0.
func (s *Service) Version(ctx context.Context) (uint64, error) {
	return ReadVersion(ctx, s.store)
}

// ReadVersion reads the corpus version counter from store.
func ReadVersion(ctx context.Context, store kvstore.Store) (uint64, error) {
	raw, err := store.Get(ctx, versionKey)
	if errors.Is(err, kvstore.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, storeErr("read version", err)
	}
	return ParseVersion(raw)
}

// bumpVersion increments the corpus version counter by exactly one. It is
// called once per mutation operation, after all record writes are durable.
func (s *Service) bumpVersion(ctx context.Context) error {
	v, err := ReadVersion(ctx, s.store)
	if err != nil {
		return err
	}
	if err := s.store.Put(ctx, versionKey, FormatVersion(v+1)); err != nil {
		return storeErr("bump version", err)
	}
	return nil
}

// validateID rejects ids that are empty or collide with the key scheme.
func validateID(id string) error {
	if id == "" {
		return fmt.Errorf("corpus: %w: document id must not be empty", ErrInvalidDocument)
	}
	if strings.Contains(id, "/") {
		return fmt.Errorf("corpus: %w: document id %q must not contain '/'", ErrInvalidDocument, id)
	}
	return nil
}

// storeErr wraps a durable store failure so callers can match
// ErrStoreUnavailable while keeping the underlying cause in the chain.
func storeErr(op string, err error) error {
	return fmt.Errorf("corpus: %s: %w: %w", op, ErrStoreUnavailable, err)
}

// Package corpus defines the persistent data model of the lecture corpus:
// document metadata, chunk records, and the corpus version counter, and
// implements the mutation operations over it: ingest, retitle, wipe, stats.
//
// Records are stored as JSON values in an ordered key-value store under two
// prefixes, one for per-document metadata and one for per-chunk records.
// Every mutation bumps a single monotonic version counter exactly once;
// the in-memory index uses that counter to detect staleness.
package corpus

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Key prefixes in the durable store. Chunk keys embed a fixed-width sequence
// index so the store's ascending key order matches chunk order.
const (
	docPrefix   = "doc/"
	chunkPrefix = "chunk/"
	versionKey  = "sys/version"

	// seqWidth is the zero-padded width of the chunk sequence index in keys.
	// Five digits bounds a single document at 100k chunks.
	seqWidth = 5
)

// Document is the stored metadata for one ingested lecture.
type Document struct {
	// ID is the caller-assigned stable identifier.
	ID string `json:"id"`
	// Title is the human-readable label, mutable independently of ID.
	Title string `json:"title"`
	// ChunkCount is the number of chunks written at the last ingest.
	ChunkCount int `json:"chunkCount"`
}

// Chunk is one overlapping window of a document's text plus its embedding.
// The embedding always corresponds to exactly this text; a retitle rewrites
// Title but never touches Text or Embedding.
type Chunk struct {
	// DocumentID identifies the owning document.
	DocumentID string `json:"documentId"`
	// Seq is the zero-based position of this chunk within the document.
	Seq int `json:"seq"`
	// Title is a denormalized copy of the owning document's title.
	Title string `json:"title"`
	// Text is the chunk's substring of the document text.
	Text string `json:"text"`
	// Embedding is the vector computed for Text at ingest time.
	Embedding []float32 `json:"embedding"`
}

// DocKey returns the store key for a document's metadata record.
func DocKey(id string) string { return docPrefix + id }

// ChunkKey returns the store key for the chunk (id, seq). Within one
// document the keys sort by sequence index.
func ChunkKey(id string, seq int) string {
	return fmt.Sprintf("%s%s/%0*d", chunkPrefix, id, seqWidth, seq)
}

// ChunkKeyPrefix returns the scan prefix covering every chunk of a document.
func ChunkKeyPrefix(id string) string { return chunkPrefix + id + "/" }

// DocPrefix returns the scan prefix covering all document metadata records.
func DocPrefix() string { return docPrefix }

// AllChunksPrefix returns the scan prefix covering every chunk record.
func AllChunksPrefix() string { return chunkPrefix }

// EncodeDocument serializes a document metadata record.
func EncodeDocument(d Document) ([]byte, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("corpus: encode document %s: %w", d.ID, err)
	}
	return b, nil
}

// DecodeDocument deserializes a document metadata record.
func DecodeDocument(b []byte) (Document, error) {
	var d Document
	if err := json.Unmarshal(b, &d); err != nil {
		return Document{}, fmt.Errorf("corpus: decode document: %w", err)
	}
	return d, nil
}

// EncodeChunk serializes a chunk record.
func EncodeChunk(c Chunk) ([]byte, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("corpus: encode chunk %s/%d: %w", c.DocumentID, c.Seq, err)
	}
	return b, nil
}

// DecodeChunk deserializes a chunk record.
func DecodeChunk(b []byte) (Chunk, error) {
	var c Chunk
	if err := json.Unmarshal(b, &c); err != nil {
		return Chunk{}, fmt.Errorf("corpus: decode chunk: %w", err)
	}
	return c, nil
}

// ParseVersion converts a stored version counter value to an integer.
// A missing or empty value means version 0 (never mutated).
func ParseVersion(b []byte) (uint64, error) {
	s := strings.TrimSpace(string(b))
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corpus: parse version %q: %w", s, err)
	}
	return v, nil
}

// FormatVersion converts a version counter to its stored representation.
func FormatVersion(v uint64) []byte {
	return []byte(strconv.FormatUint(v, 10))
}

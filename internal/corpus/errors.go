package corpus

import "errors"

// Domain errors shared by the corpus, index, and retrieval layers. These are
// distinct from infrastructure errors and are matched with errors.Is.
var (
	// ErrNotFound indicates a mutation targeted a document id with no
	// stored metadata.
	ErrNotFound = errors.New("document not found")

	// ErrInvalidDocument indicates a caller-supplied document is malformed
	// (empty id, or an id that collides with the key scheme).
	ErrInvalidDocument = errors.New("invalid document")

	// ErrNoCorpusLoaded indicates the index snapshot holds zero chunks:
	// nothing has been ingested (or everything was wiped).
	ErrNoCorpusLoaded = errors.New("no corpus loaded")

	// ErrBelowThreshold indicates chunks exist but none cleared the
	// similarity threshold in strict mode.
	ErrBelowThreshold = errors.New("no chunk above similarity threshold")

	// ErrUpstreamFailure indicates the embedding or completion gateway
	// returned a non-success response. Never retried automatically.
	ErrUpstreamFailure = errors.New("upstream gateway failure")

	// ErrStoreUnavailable indicates a durable store scan or write failed.
	// Callers holding a previous index snapshot keep serving it.
	ErrStoreUnavailable = errors.New("durable store unavailable")
)

package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/studyware/lectura/internal/answer"
	"github.com/studyware/lectura/internal/corpus"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on /api/ask
	// (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// AdminToken is the Bearer token required on the corpus mutation routes
	// (/api/ingest, /api/retitle, /api/wipe). If empty, authentication is
	// disabled (development mode).
	AdminToken string
	// MetricsRegistry receives all Prometheus metric registrations.
	// Defaults to prometheus.DefaultRegisterer. Tests inject a fresh registry.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer backs GET /metrics. Defaults to prometheus.DefaultGatherer.
	MetricsGatherer prometheus.Gatherer
	// IndexInfo, when non-nil, exposes index snapshot state as gauges
	// (lectura_index_chunks, lectura_index_version). [index.Cache.Info] fits.
	IndexInfo func() (loaded bool, size int, version uint64, builtAt time.Time)
	// IndexRebuildHook, when non-nil, receives the rebuild-counter callback
	// so cache rebuilds show up in /metrics. [index.Cache.SetRebuildHook] fits.
	IndexRebuildHook func(fn func(trigger string))
}

// answerer is the interface handleAsk calls to resolve a question.
// *answer.Assembler satisfies it; tests inject a fake.
type answerer interface {
	Answer(ctx context.Context, req answer.Request) (answer.Response, error)
}

// corpusAPI is the interface the mutation and stats handlers call.
// *corpus.Service satisfies it; tests inject a fake.
type corpusAPI interface {
	Ingest(ctx context.Context, docs []corpus.IngestDoc) (corpus.IngestResult, error)
	Retitle(ctx context.Context, id, title string) error
	Wipe(ctx context.Context) (int, error)
	Stats(ctx context.Context) (corpus.Stats, error)
	Version(ctx context.Context) (uint64, error)
}

// Server is the HTTP server that exposes the retrieval core over REST.
type Server struct {
	// answerer resolves /api/ask questions end to end.
	answerer answerer
	// corpus handles the mutation and stats routes.
	corpus corpusAPI
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds all Prometheus metrics owned by this server.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// askRequest is the JSON body for POST /api/ask.
type askRequest struct {
	// Question is the student's natural language question.
	Question string `json:"question"`
	// MinScore overrides the similarity threshold when present. An explicit
	// zero is a real threshold, distinct from omitting the field.
	MinScore *float64 `json:"minScore,omitempty"`
	// TopK overrides the selection cap when present. An explicit zero
	// selects nothing.
	TopK *int `json:"topK,omitempty"`
	// Strict overrides the no-match policy when present.
	Strict *bool `json:"strict,omitempty"`
}

// ingestDocRequest is one document in an ingest batch.
type ingestDocRequest struct {
	// ID is the caller-assigned stable document identifier.
	ID string `json:"id"`
	// Title is the human-readable document label.
	Title string `json:"title"`
	// Text is the full document text to chunk and embed.
	Text string `json:"text"`
}

// ingestRequest is the JSON body for POST /api/ingest.
type ingestRequest struct {
	// Documents is the batch to ingest. Must be non-empty.
	Documents []ingestDocRequest `json:"documents"`
}

// ingestResponse is the JSON response for POST /api/ingest.
type ingestResponse struct {
	// Documents is the number of documents written.
	Documents int `json:"documents"`
	// Chunks is the total number of chunk records written.
	Chunks int `json:"chunks"`
	// Version is the corpus version after the batch.
	Version uint64 `json:"version"`
}

// retitleRequest is the JSON body for POST /api/retitle.
type retitleRequest struct {
	// ID is the document to retitle.
	ID string `json:"id"`
	// Title is the new title.
	Title string `json:"title"`
}

// retitleResponse is the JSON response for POST /api/retitle.
type retitleResponse struct {
	// Version is the corpus version after the rewrite.
	Version uint64 `json:"version"`
}

// wipeResponse is the JSON response for POST /api/wipe.
type wipeResponse struct {
	// Deleted is the number of records removed.
	Deleted int `json:"deleted"`
	// Version is the corpus version after the wipe.
	Version uint64 `json:"version"`
}

// statsResponse is the JSON response for GET /api/stats.
type statsResponse struct {
	corpus.Stats
	// Version is the current corpus version counter.
	Version uint64 `json:"version"`
}

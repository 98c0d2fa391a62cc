// Package server implements the HTTP server that exposes the lectura
// retrieval core via a REST API: question answering, corpus mutations,
// stats, health, readiness, and Prometheus metrics.
// The server is started by the `lectura serve` CLI command.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/studyware/lectura/internal/answer"
	"github.com/studyware/lectura/internal/corpus"
	"github.com/studyware/lectura/internal/logging"
)

// New constructs a Server from the provided assembler, corpus service, and config.
func New(asm answerer, svc corpusAPI, cfg *Config) (*Server, error) {
	if asm == nil {
		return nil, fmt.Errorf("server: answerer must not be nil")
	}
	if svc == nil {
		return nil, fmt.Errorf("server: corpus service must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		// WriteTimeout covers the completion gateway round trip.
		cfg.WriteTimeout = 2 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.New()
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	if cfg.MetricsRegistry == nil {
		cfg.MetricsRegistry = prometheus.DefaultRegisterer
	}
	if cfg.MetricsGatherer == nil {
		cfg.MetricsGatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		answerer: asm,
		corpus:   svc,
		cfg:      cfg,
		log:      cfg.Logger,
		pingers:  cfg.Pingers,
		metrics:  newServerMetrics(cfg.MetricsRegistry),
	}
	if cfg.IndexInfo != nil {
		registerIndexMetrics(cfg.MetricsRegistry, cfg.IndexInfo)
	}
	if cfg.IndexRebuildHook != nil {
		cfg.IndexRebuildHook(newIndexRebuildCounter(cfg.MetricsRegistry))
	}

	if cfg.AdminToken == "" {
		s.log.Warn("server: LECTURA_ADMIN_TOKEN is not set, corpus mutation routes are unauthenticated")
	}

	rl, stopRL := newRateLimiter(cfg.RateLimit, cfg.RateBurst, s.log)
	s.stopRL = stopRL

	mux := http.NewServeMux()
	mux.Handle("POST /api/ask", rl.middleware(http.HandlerFunc(s.handleAsk)))
	mux.Handle("POST /api/ingest", authMiddleware(cfg.AdminToken, http.HandlerFunc(s.handleIngest)))
	mux.Handle("POST /api/retitle", authMiddleware(cfg.AdminToken, http.HandlerFunc(s.handleRetitle)))
	mux.Handle("POST /api/wipe", authMiddleware(cfg.AdminToken, http.HandlerFunc(s.handleWipe)))
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/ready", s.handleReady)
	mux.Handle("GET /metrics", promhttp.HandlerFor(cfg.MetricsGatherer, promhttp.HandlerOpts{}))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      requestLogger(s.log, s.instrument(mux)),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.log.Info("server: listening", slog.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.stopRL()
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		s.stopRL()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// handleAsk handles POST /api/ask. Retrieval misses produce a 200 with a
// canned reply and matched:false; only gateway and store failures are errors.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Question == "" {
		http.Error(w, "question is required", http.StatusBadRequest)
		return
	}

	start := time.Now()
	resp, err := s.answerer.Answer(r.Context(), answer.Request{
		Question: req.Question,
		MinScore: req.MinScore,
		TopK:     req.TopK,
		Strict:   req.Strict,
	})
	elapsed := time.Since(start)

	if err != nil {
		outcome := "error"
		s.metrics.askRequestsTotal.WithLabelValues(outcome).Inc()
		s.metrics.askDurationSeconds.WithLabelValues(outcome).Observe(elapsed.Seconds())
		s.writeDomainError(w, r, err)
		return
	}

	outcome := "ok"
	switch {
	case !resp.Matched && resp.Answer == answer.ReplyNoCorpus:
		outcome = "no_corpus"
	case !resp.Matched:
		outcome = "no_match"
	}
	s.metrics.askRequestsTotal.WithLabelValues(outcome).Inc()
	s.metrics.askDurationSeconds.WithLabelValues(outcome).Observe(elapsed.Seconds())

	writeJSON(w, http.StatusOK, resp)
}

// handleIngest handles POST /api/ingest.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Documents) == 0 {
		http.Error(w, "documents must not be empty", http.StatusBadRequest)
		return
	}

	docs := make([]corpus.IngestDoc, len(req.Documents))
	for i, d := range req.Documents {
		docs[i] = corpus.IngestDoc{ID: d.ID, Title: d.Title, Text: d.Text}
	}

	res, err := s.corpus.Ingest(r.Context(), docs)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	v, err := s.corpus.Version(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, ingestResponse{
		Documents: res.Documents,
		Chunks:    res.Chunks,
		Version:   v,
	})
}

// handleRetitle handles POST /api/retitle.
func (s *Server) handleRetitle(w http.ResponseWriter, r *http.Request) {
	var req retitleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Title == "" {
		http.Error(w, "title is required", http.StatusBadRequest)
		return
	}

	if err := s.corpus.Retitle(r.Context(), req.ID, req.Title); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	v, err := s.corpus.Version(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, retitleResponse{Version: v})
}

// handleWipe handles POST /api/wipe.
func (s *Server) handleWipe(w http.ResponseWriter, r *http.Request) {
	deleted, err := s.corpus.Wipe(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	v, err := s.corpus.Version(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, wipeResponse{Deleted: deleted, Version: v})
}

// handleStats handles GET /api/stats.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.corpus.Stats(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	v, err := s.corpus.Version(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, statsResponse{Stats: stats, Version: v})
}

// handleHealth handles GET /api/health for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// writeDomainError maps domain sentinel errors onto HTTP status codes and
// logs the full cause chain server-side. Response bodies carry only the
// sentinel text, never wrapped internals.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logging.FromContext(r.Context())

	status := http.StatusInternalServerError
	msg := "internal error"
	switch {
	case errors.Is(err, corpus.ErrInvalidDocument):
		status = http.StatusBadRequest
		msg = corpus.ErrInvalidDocument.Error()
	case errors.Is(err, corpus.ErrNotFound):
		status = http.StatusNotFound
		msg = corpus.ErrNotFound.Error()
	case errors.Is(err, corpus.ErrUpstreamFailure):
		status = http.StatusBadGateway
		msg = corpus.ErrUpstreamFailure.Error()
	case errors.Is(err, corpus.ErrStoreUnavailable):
		status = http.StatusServiceUnavailable
		msg = corpus.ErrStoreUnavailable.Error()
	}

	log.Error("request failed",
		slog.Int("status", status),
		slog.Any("error", err),
	)
	http.Error(w, msg, status)
}

// writeJSON encodes v as the JSON response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

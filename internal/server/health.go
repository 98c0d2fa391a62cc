package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/studyware/lectura/internal/logging"
)

// probeTimeout caps each dependency probe so /api/ready stays fast even when
// a backend hangs rather than refuses.
const probeTimeout = 5 * time.Second

// Pinger reports the reachability of one dependency. Implementations must be
// safe for concurrent use.
type Pinger interface {
	// Ping returns nil when the dependency is reachable.
	Ping(ctx context.Context) error

	// Name is the short label used in readiness responses, e.g. "store".
	Name() string
}

// MultiPinger folds several probes into one, failing on the first error.
type MultiPinger struct {
	pingers []Pinger
}

func NewMultiPinger(pingers ...Pinger) *MultiPinger {
	return &MultiPinger{pingers: pingers}
}

// Ping runs the probes in order and returns the first failure, prefixed with
// the failing dependency's name.
func (m *MultiPinger) Ping(ctx context.Context) error {
	for _, p := range m.pingers {
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("%s: %w", p.Name(), err)
		}
	}
	return nil
}

func (m *MultiPinger) Name() string { return "multi" }

// readyCheck is one dependency's result in the /api/ready body.
type readyCheck struct {
	Name  string `json:"name"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

type readyResponse struct {
	Ready  bool         `json:"ready"`
	Checks []readyCheck `json:"checks"`
}

// handleReady probes every registered dependency with a short timeout.
// 200 when all respond, 503 otherwise. /api/health stays a bare liveness
// check; this endpoint is the one that reflects backend state.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	resp := readyResponse{Ready: true}
	for _, p := range s.pingers {
		probeCtx, cancel := context.WithTimeout(r.Context(), probeTimeout)
		err := p.Ping(probeCtx)
		cancel()

		check := readyCheck{Name: p.Name(), OK: err == nil}
		if err != nil {
			check.Error = err.Error()
			resp.Ready = false
			log.Warn("readiness probe failed",
				slog.String("dependency", p.Name()),
				slog.Any("error", err),
			)
		}
		resp.Checks = append(resp.Checks, check)
	}

	status := http.StatusOK
	if !resp.Ready {
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Error("ready encode error", slog.Any("error", err))
	}
}

// Package server, metrics.go registers all Prometheus metrics for the HTTP
// server and exposes helpers used by handlers and middleware.
package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metric label values shared across registrations.
const (
	// labelHandler is the "handler" label value used to partition metrics by
	// the logical endpoint name rather than the raw URL path.
	labelHandler = "handler"
)

// serverMetrics holds all Prometheus metrics owned by the HTTP server.
// A single instance is created in New and stored on Server so that tests can
// inject a fresh prometheus.Registry without polluting the default one.
type serverMetrics struct {
	// askRequestsTotal counts completed /api/ask requests, partitioned by
	// outcome: "ok", "no_match", "no_corpus", or "error".
	askRequestsTotal *prometheus.CounterVec

	// askDurationSeconds records the wall-clock duration of each /api/ask
	// request including the embedding and completion round trips.
	askDurationSeconds *prometheus.HistogramVec

	// httpRequestsTotal counts all HTTP requests handled by the mux,
	// partitioned by method, handler, and status code.
	httpRequestsTotal *prometheus.CounterVec

	// httpDurationSeconds records the latency of all HTTP requests.
	httpDurationSeconds *prometheus.HistogramVec
}

// newServerMetrics registers all server metrics against reg and returns the
// populated serverMetrics. promauto.With(reg) is used so that each call
// registers into the provided registry rather than the global default;
// this keeps unit tests hermetic.
func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	factory := promauto.With(reg)

	return &serverMetrics{
		askRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lectura",
			Subsystem: "ask",
			Name:      "requests_total",
			Help:      "Total number of /api/ask requests completed, partitioned by outcome.",
		}, []string{"outcome"}),

		askDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "lectura",
			Subsystem: "ask",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of /api/ask requests including gateway round trips.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"outcome"}),

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lectura",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled by the server, partitioned by method, handler, and status code.",
		}, []string{"method", labelHandler, "code"}),

		httpDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "lectura",
			Subsystem: "http",
			Name:      "duration_seconds",
			Help:      "Latency of HTTP requests handled by the server.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", labelHandler}),
	}
}

// newIndexRebuildCounter registers the rebuild counter, partitioned by what
// triggered the rebuild. The returned function is installed as the cache's
// rebuild hook.
func newIndexRebuildCounter(reg prometheus.Registerer) func(trigger string) {
	vec := promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
		Namespace: "lectura",
		Subsystem: "index",
		Name:      "rebuilds_total",
		Help:      "Total number of index snapshot rebuilds, partitioned by trigger (initial, ttl, version, forced).",
	}, []string{"trigger"})

	return func(trigger string) {
		vec.WithLabelValues(trigger).Inc()
	}
}

// registerIndexMetrics exposes the index snapshot state as gauges read on
// every scrape. info is typically [index.Cache.Info].
func registerIndexMetrics(reg prometheus.Registerer, info func() (loaded bool, size int, version uint64, builtAt time.Time)) {
	factory := promauto.With(reg)

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "lectura",
		Subsystem: "index",
		Name:      "chunks",
		Help:      "Number of chunks in the current in-memory index snapshot.",
	}, func() float64 {
		_, size, _, _ := info()
		return float64(size)
	})

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "lectura",
		Subsystem: "index",
		Name:      "version",
		Help:      "Corpus version the current index snapshot was built against.",
	}, func() float64 {
		_, _, version, _ := info()
		return float64(version)
	})

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "lectura",
		Subsystem: "index",
		Name:      "loaded",
		Help:      "1 when an index snapshot is loaded, 0 otherwise.",
	}, func() float64 {
		loaded, _, _, _ := info()
		if loaded {
			return 1
		}
		return 0
	})
}

// instrument wraps next so every request increments httpRequestsTotal and
// observes httpDurationSeconds, labelled by the raw URL path. The route
// surface is small and fixed, so path labels stay low-cardinality.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		start := time.Now()
		next.ServeHTTP(rw, r)
		elapsed := time.Since(start)

		s.metrics.httpRequestsTotal.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(rw.status)).Inc()
		s.metrics.httpDurationSeconds.WithLabelValues(r.Method, r.URL.Path).Observe(elapsed.Seconds())
	})
}

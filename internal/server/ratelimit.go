package server

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/studyware/lectura/internal/logging"
)

// Per-IP token bucket defaults for /api/ask. Ask requests fan out to the
// embedding and chat backends, so the ceiling protects those, not the server.
const (
	defaultRateLimit = 10
	defaultRateBurst = 20

	visitorStaleAfter = 5 * time.Minute
	sweepInterval     = time.Minute
)

// visitor tracks one client IP: its token bucket and when it last sent a
// request, so idle entries can be swept.
type visitor struct {
	bucket   *rate.Limiter
	lastSeen time.Time
}

// rateLimiter enforces a per-IP token-bucket limit. The visitor map grows
// with distinct client IPs and is swept in the background.
type rateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rps      rate.Limit
	burst    int
	log      *slog.Logger
}

// newRateLimiter builds a limiter and starts its sweep goroutine. The second
// return value stops the goroutine.
func newRateLimiter(rps float64, burst int, log *slog.Logger) (*rateLimiter, func()) {
	rl := &rateLimiter{
		visitors: make(map[string]*visitor),
		rps:      rate.Limit(rps),
		burst:    burst,
		log:      log,
	}

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				rl.sweep()
			}
		}
	}()

	return rl, func() { close(done) }
}

// allow consumes one token for ip, creating the bucket on first sight.
func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	v, ok := rl.visitors[ip]
	if !ok {
		v = &visitor{bucket: rate.NewLimiter(rl.rps, rl.burst)}
		rl.visitors[ip] = v
	}
	v.lastSeen = time.Now()
	rl.mu.Unlock()

	return v.bucket.Allow()
}

// sweep drops visitors that have been idle past the stale window.
func (rl *rateLimiter) sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-visitorStaleAfter)
	for ip, v := range rl.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(rl.visitors, ip)
		}
	}
}

// middleware rejects over-limit requests with 429 and a Retry-After hint.
func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !rl.allow(ip) {
			logging.FromContext(r.Context()).Warn("rate limit exceeded",
				slog.String("ip", ip),
				slog.String("path", r.URL.Path),
			)
			w.Header().Set("Retry-After", "1")
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP strips the port from RemoteAddr. X-Forwarded-For is deliberately
// ignored: lectura binds to loopback and sits behind no proxy.
func clientIP(r *http.Request) string {
	addr := r.RemoteAddr
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			return addr[:i]
		}
	}
	return addr
}

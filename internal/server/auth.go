package server

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/studyware/lectura/internal/logging"
)

// authMiddleware guards the corpus mutation routes with a shared Bearer
// token. An empty adminToken disables the check entirely; New logs a startup
// warning for that case so it cannot happen silently.
//
// Failures log the route and whether a token was presented. The presented
// token value itself is never written to the log.
func authMiddleware(adminToken string, next http.Handler) http.Handler {
	if adminToken == "" {
		return next
	}

	want := []byte(adminToken)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := bearerToken(r)
		if got == "" {
			logging.FromContext(r.Context()).Warn("auth: missing Authorization header",
				slog.String("path", r.URL.Path),
			)
			w.Header().Set("WWW-Authenticate", `Bearer realm="lectura"`)
			http.Error(w, "authorization required", http.StatusUnauthorized)
			return
		}

		if subtle.ConstantTimeCompare([]byte(got), want) != 1 {
			logging.FromContext(r.Context()).Warn("auth: invalid token",
				slog.String("path", r.URL.Path),
				slog.Bool("token_present", true),
			)
			w.Header().Set("WWW-Authenticate", `Bearer realm="lectura" error="invalid_token"`)
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// bearerToken pulls the credential out of "Authorization: Bearer <token>".
// The scheme match is case-insensitive per RFC 7235. Returns "" for absent or
// non-Bearer headers.
func bearerToken(r *http.Request) string {
	hdr := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(hdr, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// Package audit writes one structured log line per CLI invocation recording
// the command, the config file in use, and the operational environment.
// Secret variables appear as set/unset only; their values never reach a log.
package audit

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// auditEntry names one env var in the audit line. Secret entries are reduced
// to presence/absence.
type auditEntry struct {
	key    string
	secret bool
}

// auditKeys is the full lectura env surface, in the order it appears in the
// audit line.
var auditKeys = []auditEntry{
	{"STORE_PATH", false},
	{"CACHE_TTL", false},
	{"CHUNK_SIZE", false},
	{"CHUNK_OVERLAP", false},
	{"RETRIEVAL_MIN_SCORE", false},
	{"RETRIEVAL_TOP_K", false},
	{"RETRIEVAL_STRICT", false},
	{"MODEL_PROVIDER", false},
	{"OLLAMA_HOST", false},
	{"OLLAMA_MODEL", false},
	{"OPENAI_API_KEY", true},
	{"OPENAI_MODEL", false},
	{"EMBEDDING_PROVIDER", false},
	{"EMBEDDING_MODEL", false},
	{"EMBEDDING_API_KEY", true},
	{"EMBEDDING_ENDPOINT", false},
	{"SERVER_HOST", false},
	{"SERVER_PORT", false},
	{"LECTURA_ADMIN_TOKEN", true},
	{"LOG_LEVEL", false},
	{"LOG_FORMAT", false},
}

// secretKeys is derived from auditKeys so the two lists cannot drift.
var secretKeys = func() map[string]bool {
	m := make(map[string]bool)
	for _, e := range auditKeys {
		if e.secret {
			m[e.key] = true
		}
	}
	// AZURE_OPENAI_API_KEY is read by the embedder but not audited per-key.
	m["AZURE_OPENAI_API_KEY"] = true
	return m
}()

// LogCommandStart emits the audit line for one command invocation.
func LogCommandStart(log *slog.Logger, command string, configPath string) {
	attrs := make([]slog.Attr, 0, len(auditKeys)+2)
	attrs = append(attrs,
		slog.String("command", command),
		slog.String("config_file", sanitiseConfigPath(configPath)),
	)

	for _, e := range auditKeys {
		attrs = append(attrs, slog.String(e.key, SanitiseKey(e.key, os.Getenv(e.key))))
	}

	log.LogAttrs(context.TODO(), slog.LevelInfo, "audit: command start", attrs...)
}

// SanitiseKey renders an env value for logging: secrets become set/unset,
// everything else is the value or "unset".
func SanitiseKey(key, value string) string {
	if secretKeys[key] {
		return presence(value)
	}
	return valOrUnset(value)
}

func presence(v string) string {
	if v != "" {
		return "set"
	}
	return "unset"
}

func valOrUnset(v string) string {
	if v != "" {
		return v
	}
	return "unset"
}

// sanitiseConfigPath substitutes ~ for the home directory and "none" for an
// empty path.
func sanitiseConfigPath(p string) string {
	if p == "" {
		return "none"
	}
	home, err := os.UserHomeDir()
	if err == nil && strings.HasPrefix(p, home) {
		return "~" + p[len(home):]
	}
	return p
}

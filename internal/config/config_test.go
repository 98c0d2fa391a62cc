package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_NoFile(t *testing.T) {
	t.Parallel()

	log := slog.Default()
	path, err := Load("/nonexistent/path/config.yaml", log)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "" {
		t.Errorf("expected empty path, got %q", path)
	}
}

func TestLoad_ValidFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	content := []byte(`
store:
  path: /var/lib/lectura/corpus.db
  cache_ttl: 30s
chunking:
  size: 1200
  overlap: 150
retrieval:
  min_score: 0.35
  top_k: 5
  strict: "false"
model:
  provider: openai
  openai:
    model: gpt-4o-mini
embedding:
  provider: ollama
  model: nomic-embed-text
server:
  host: 0.0.0.0
  port: 8090
logging:
  level: debug
  format: text
`)

	if err := os.WriteFile(cfgPath, content, 0o644); err != nil {
		t.Fatal(err)
	}

	// Clear env vars that the YAML should set.
	envKeys := []string{
		"STORE_PATH", "CACHE_TTL",
		"CHUNK_SIZE", "CHUNK_OVERLAP",
		"RETRIEVAL_MIN_SCORE", "RETRIEVAL_TOP_K", "RETRIEVAL_STRICT",
		"MODEL_PROVIDER", "OPENAI_MODEL",
		"EMBEDDING_PROVIDER", "EMBEDDING_MODEL",
		"SERVER_HOST", "SERVER_PORT",
		"LOG_LEVEL", "LOG_FORMAT",
	}
	for _, k := range envKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	log := slog.Default()
	loaded, err := Load(cfgPath, log)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded != cfgPath {
		t.Errorf("loaded path: got %q, want %q", loaded, cfgPath)
	}

	checks := map[string]string{
		"STORE_PATH":          "/var/lib/lectura/corpus.db",
		"CACHE_TTL":           "30s",
		"CHUNK_SIZE":          "1200",
		"CHUNK_OVERLAP":       "150",
		"RETRIEVAL_MIN_SCORE": "0.35",
		"RETRIEVAL_TOP_K":     "5",
		"RETRIEVAL_STRICT":    "false",
		"MODEL_PROVIDER":      "openai",
		"OPENAI_MODEL":        "gpt-4o-mini",
		"EMBEDDING_PROVIDER":  "ollama",
		"EMBEDDING_MODEL":     "nomic-embed-text",
		"SERVER_HOST":         "0.0.0.0",
		"SERVER_PORT":         "8090",
		"LOG_LEVEL":           "debug",
		"LOG_FORMAT":          "text",
	}
	for k, want := range checks {
		got := os.Getenv(k)
		if got != want {
			t.Errorf("%s: got %q, want %q", k, got, want)
		}
	}
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	content := []byte(`
model:
  provider: ollama
`)
	if err := os.WriteFile(cfgPath, content, 0o644); err != nil {
		t.Fatal(err)
	}

	// Set env var BEFORE loading, it should NOT be overwritten.
	t.Setenv("MODEL_PROVIDER", "openai")

	log := slog.Default()
	_, err := Load(cfgPath, log)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if got := os.Getenv("MODEL_PROVIDER"); got != "openai" {
		t.Errorf("MODEL_PROVIDER: expected env override %q, got %q", "openai", got)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	if err := os.WriteFile(cfgPath, []byte("{{invalid yaml"), 0o644); err != nil {
		t.Fatal(err)
	}

	log := slog.Default()
	_, err := Load(cfgPath, log)
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestFloat32Str(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   float32
		want string
	}{
		{0.0, ""},
		{0.2, "0.2"},
		{0.35, "0.35"},
		{1.0, "1"},
	}
	for _, tt := range tests {
		if got := float32Str(tt.in); got != tt.want {
			t.Errorf("float32Str(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

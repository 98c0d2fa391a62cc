// Package config provides YAML-based configuration for lectura.
// Configuration is loaded with a layered precedence: defaults → YAML file → env vars.
// Environment variables always win, so existing workflows are unaffected.
//
// File search order:
//  1. --config CLI flag (explicit path)
//  2. LECTURA_CONFIG environment variable
//  3. ~/.lectura/config.yaml
//  4. ./lectura.yaml
//
// If no file is found the system runs entirely from env vars (backwards compatible).
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration structure.
// Field names use yaml tags that mirror the env var naming (lowercase, underscored).
type Config struct {
	// Store configures the durable corpus store.
	Store StoreConfig `yaml:"store"`

	// Chunking configures the document chunker.
	Chunking ChunkingConfig `yaml:"chunking"`

	// Retrieval configures the similarity search.
	Retrieval RetrievalConfig `yaml:"retrieval"`

	// Model configures the LLM chat model provider for answer generation.
	Model ModelConfig `yaml:"model"`

	// Embedding configures the embedding provider.
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Server configures the HTTP server.
	Server ServerConfig `yaml:"server"`

	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging"`
}

// StoreConfig holds durable store settings.
type StoreConfig struct {
	// Path is the SQLite database path. ":memory:" gives a volatile store.
	Path string `yaml:"path"`
	// CacheTTL is the index snapshot time-to-live (Go duration, e.g. "60s").
	CacheTTL string `yaml:"cache_ttl"`
}

// ChunkingConfig holds chunker settings.
type ChunkingConfig struct {
	// Size is the chunk window size in bytes.
	Size int `yaml:"size"`
	// Overlap is the number of bytes shared between adjacent chunks.
	Overlap int `yaml:"overlap"`
}

// RetrievalConfig holds similarity search settings.
type RetrievalConfig struct {
	// MinScore is the cosine similarity acceptance threshold.
	MinScore float32 `yaml:"min_score"`
	// TopK is the maximum number of chunks returned per query.
	TopK int `yaml:"top_k"`
	// Strict controls whether sub-threshold results are rejected ("true")
	// or returned as a best-effort fallback ("false").
	Strict string `yaml:"strict"`
}

// ModelConfig holds LLM chat model settings.
type ModelConfig struct {
	// Provider selects the backend: ollama, openai.
	Provider string `yaml:"provider"`

	// Ollama holds Ollama-specific settings.
	Ollama OllamaConfig `yaml:"ollama"`

	// OpenAI holds OpenAI-specific settings.
	OpenAI OpenAIConfig `yaml:"openai"`
}

// OllamaConfig holds Ollama provider settings.
type OllamaConfig struct {
	// Host is the Ollama API endpoint.
	Host string `yaml:"host"`
	// Model is the Ollama model name.
	Model string `yaml:"model"`
}

// OpenAIConfig holds OpenAI provider settings.
type OpenAIConfig struct {
	// APIKey is the OpenAI API key. Prefer env var OPENAI_API_KEY.
	APIKey string `yaml:"api_key"`
	// Model is the OpenAI model name.
	Model string `yaml:"model"`
	// BaseURL overrides the OpenAI API base URL.
	BaseURL string `yaml:"base_url"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	// Provider selects the embedding backend (ollama, openai, azure).
	Provider string `yaml:"provider"`
	// Model is the embedding model name.
	Model string `yaml:"model"`
	// Dimensions overrides the embedding vector size.
	Dimensions int `yaml:"dimensions"`
	// APIKey is the embedding API key. Prefer env var EMBEDDING_API_KEY.
	APIKey string `yaml:"api_key"`
	// Endpoint is the embedding API endpoint.
	Endpoint string `yaml:"endpoint"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the bind address.
	Host string `yaml:"host"`
	// Port is the TCP port.
	Port int `yaml:"port"`
	// AdminToken is the Bearer token for mutation endpoints.
	// Prefer env var LECTURA_ADMIN_TOKEN.
	AdminToken string `yaml:"admin_token"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is the log output format: json, text.
	Format string `yaml:"format"`
}

// envMapping maps YAML config fields to their corresponding env var names.
// Only non-empty YAML values are applied; env vars always take precedence.
var envMapping = []struct {
	envKey string
	value  func(*Config) string
}{
	{"STORE_PATH", func(c *Config) string { return c.Store.Path }},
	{"CACHE_TTL", func(c *Config) string { return c.Store.CacheTTL }},
	{"CHUNK_SIZE", func(c *Config) string { return intStr(c.Chunking.Size) }},
	{"CHUNK_OVERLAP", func(c *Config) string { return intStr(c.Chunking.Overlap) }},
	{"RETRIEVAL_MIN_SCORE", func(c *Config) string { return float32Str(c.Retrieval.MinScore) }},
	{"RETRIEVAL_TOP_K", func(c *Config) string { return intStr(c.Retrieval.TopK) }},
	{"RETRIEVAL_STRICT", func(c *Config) string { return c.Retrieval.Strict }},
	{"MODEL_PROVIDER", func(c *Config) string { return c.Model.Provider }},
	{"OLLAMA_HOST", func(c *Config) string { return c.Model.Ollama.Host }},
	{"OLLAMA_MODEL", func(c *Config) string { return c.Model.Ollama.Model }},
	{"OPENAI_API_KEY", func(c *Config) string { return c.Model.OpenAI.APIKey }},
	{"OPENAI_MODEL", func(c *Config) string { return c.Model.OpenAI.Model }},
	{"OPENAI_BASE_URL", func(c *Config) string { return c.Model.OpenAI.BaseURL }},
	{"EMBEDDING_PROVIDER", func(c *Config) string { return c.Embedding.Provider }},
	{"EMBEDDING_MODEL", func(c *Config) string { return c.Embedding.Model }},
	{"EMBEDDING_DIMENSIONS", func(c *Config) string { return intStr(c.Embedding.Dimensions) }},
	{"EMBEDDING_API_KEY", func(c *Config) string { return c.Embedding.APIKey }},
	{"EMBEDDING_ENDPOINT", func(c *Config) string { return c.Embedding.Endpoint }},
	{"SERVER_HOST", func(c *Config) string { return c.Server.Host }},
	{"SERVER_PORT", func(c *Config) string { return intStr(c.Server.Port) }},
	{"LECTURA_ADMIN_TOKEN", func(c *Config) string { return c.Server.AdminToken }},
	{"LOG_LEVEL", func(c *Config) string { return c.Logging.Level }},
	{"LOG_FORMAT", func(c *Config) string { return c.Logging.Format }},
}

// Load finds and parses the YAML config file and applies its non-empty
// values as env vars, skipping any variable the environment already sets.
// Returns the loaded path, or "" when lectura runs from env vars alone.
func Load(explicitPath string, log *slog.Logger) (string, error) {
	path := resolveConfigPath(explicitPath)
	if path == "" {
		log.Debug("config: no YAML config file found, using env vars only")
		return "", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return "", fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	log.Info("config: loaded YAML config",
		slog.String("path", path),
		slog.Int("keys_applied", apply(&cfg)),
	)
	return path, nil
}

// apply exports cfg's non-empty values into the environment and reports how
// many were set. A YAML value loses to an env var that is already present.
// The empty-or-"0" filter drops unset YAML fields; "false" must pass through
// because retrieval.strict uses it.
func apply(cfg *Config) int {
	applied := 0
	for _, m := range envMapping {
		v := m.value(cfg)
		if v == "" || v == "0" {
			continue
		}
		if os.Getenv(m.envKey) != "" {
			continue
		}
		os.Setenv(m.envKey, v)
		applied++
	}
	return applied
}

// resolveConfigPath returns the first existing candidate. An explicit path
// short-circuits the search entirely.
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		if exists(explicit) {
			return explicit
		}
		return ""
	}

	candidates := []string{os.Getenv("LECTURA_CONFIG")}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".lectura", "config.yaml"))
	}
	candidates = append(candidates, "lectura.yaml")

	for _, p := range candidates {
		if p != "" && exists(p) {
			return p
		}
	}
	return ""
}

func exists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

// intStr renders an int for the env, treating 0 as unset.
func intStr(v int) string {
	if v == 0 {
		return ""
	}
	return fmt.Sprintf("%d", v)
}

// float32Str renders a float32 for the env, treating 0 as unset. Trailing
// zeros are trimmed so 0.35 round-trips as "0.35", not "0.3500".
func float32Str(v float32) string {
	if v == 0 {
		return ""
	}
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", v), "0"), ".")
}

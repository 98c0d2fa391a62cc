package embedder

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// chatModelFragments are name fragments of known chat models. An embedding
// model matching one of these is almost certainly a misconfiguration.
var chatModelFragments = []string{
	"gpt-4", "gpt-3.5", "gpt-35", "o1", "o3",
	"llama3", "llama2", "llama-3", "llama-2",
	"mistral", "mixtral", "gemma", "phi-", "phi3",
	"claude", "command-r", "deepseek", "qwen",
	"solar", "vicuna", "falcon", "yi-",
}

func looksLikeChatModel(model string) bool {
	lower := strings.ToLower(model)
	for _, frag := range chatModelFragments {
		if strings.Contains(lower, frag) {
			return true
		}
	}
	return false
}

// Validate runs pre-flight checks on the embedding configuration so a broken
// setup fails at startup rather than on the first embed call. Hard failures
// (a remote backend with no credentials) return an error; suspicious but
// workable settings only log warnings.
func Validate(log *slog.Logger) error {
	backend := resolveBackend()

	if backend != "ollama" && os.Getenv("EMBEDDING_PROVIDER") == "" {
		log.Warn("embedder: EMBEDDING_PROVIDER not set, inheriting MODEL_PROVIDER",
			slog.String("backend", backend),
			slog.String("hint", "set EMBEDDING_PROVIDER=ollama (or openai/azure) to be explicit"),
		)
	}

	switch backend {
	case "openai":
		if firstEnv("EMBEDDING_API_KEY", "OPENAI_API_KEY") == "" {
			return fmt.Errorf("embedder: no OpenAI API key, set OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
	case "azure":
		if firstEnv("EMBEDDING_API_KEY", "AZURE_OPENAI_API_KEY") == "" {
			return fmt.Errorf("embedder: no Azure API key, set AZURE_OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		if firstEnv("EMBEDDING_ENDPOINT", "AZURE_OPENAI_ENDPOINT") == "" {
			return fmt.Errorf("embedder: no Azure endpoint, set AZURE_OPENAI_ENDPOINT or EMBEDDING_ENDPOINT")
		}
	}

	if model := os.Getenv("EMBEDDING_MODEL"); model != "" && looksLikeChatModel(model) {
		log.Warn("embedder: EMBEDDING_MODEL looks like a chat model, expect poor or broken embeddings",
			slog.String("model", model),
			slog.String("hint", "use a dedicated embedding model such as nomic-embed-text or text-embedding-3-small"),
		)
	}

	return nil
}

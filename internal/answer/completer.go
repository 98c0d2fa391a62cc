// Package answer turns retrieval output into a grounded natural-language
// reply. It assembles the selected chunk texts into a numbered context
// block, sends it with the question to the completion gateway, and maps the
// two retrieval misses (empty corpus versus nothing above the similarity
// threshold) to distinguishable canned replies so callers can tell a
// configuration problem from a legitimate no-match.
package answer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"
)

// Completer is the completion gateway boundary: a system instruction plus an
// assembled user prompt in, generated text out. Implementations must be safe
// to call from multiple goroutines.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// OllamaCompleter implements Completer using the Ollama /api/chat endpoint
// with streaming disabled.
type OllamaCompleter struct {
	// host is the Ollama server base URL.
	host string
	// model is the chat model name (e.g. "llama3.1").
	model string
	// client is the shared HTTP client with a sensible timeout.
	client *http.Client
}

// NewOllamaCompleter constructs an OllamaCompleter for the given host and model.
func NewOllamaCompleter(host, model string) *OllamaCompleter {
	return &OllamaCompleter{
		host:   host,
		model:  model,
		client: &http.Client{Timeout: 2 * time.Minute},
	}
}

// chatMessage is one turn in a chat-completion request body.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ollamaChatRequest is the JSON body sent to the Ollama /api/chat endpoint.
type ollamaChatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

// ollamaChatResponse is the JSON body returned from the Ollama /api/chat endpoint.
type ollamaChatResponse struct {
	Message chatMessage `json:"message"`
	Error   string      `json:"error,omitempty"`
}

// Complete sends the system instruction and user prompt to Ollama and
// returns the generated text.
func (c *OllamaCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	body := ollamaChatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("ollama completer: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("ollama completer: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama completer: request failed: %w", err)
	}
	defer resp.Body.Close()

	var result ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("ollama completer: decode response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := fmt.Sprintf("HTTP %d", resp.StatusCode)
		if result.Error != "" {
			msg = result.Error
		}
		return "", fmt.Errorf("ollama completer: %s", msg)
	}

	return result.Message.Content, nil
}

// OpenAICompleter implements Completer using the OpenAI chat completions
// REST API.
type OpenAICompleter struct {
	// baseURL is the API base (e.g. "https://api.openai.com/v1").
	baseURL string
	// apiKey is the Bearer token.
	apiKey string
	// model is the chat model name (e.g. "gpt-4o-mini").
	model string
	// client is the shared HTTP client with a sensible timeout.
	client *http.Client
}

// NewOpenAICompleter constructs an OpenAICompleter.
func NewOpenAICompleter(baseURL, apiKey, model string) *OpenAICompleter {
	return &OpenAICompleter{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: 2 * time.Minute},
	}
}

// openaiChatRequest is the JSON body sent to the chat completions endpoint.
type openaiChatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

// openaiChatResponse is the JSON body returned from the chat completions endpoint.
type openaiChatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete sends the system instruction and user prompt to OpenAI and
// returns the first choice's text.
func (c *OpenAICompleter) Complete(ctx context.Context, system, user string) (string, error) {
	body := openaiChatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("openai completer: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("openai completer: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("openai completer: request failed: %w", err)
	}
	defer resp.Body.Close()

	var result openaiChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("openai completer: decode response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := fmt.Sprintf("HTTP %d", resp.StatusCode)
		if result.Error != nil {
			msg = result.Error.Message
		}
		return "", fmt.Errorf("openai completer: %s", msg)
	}

	if len(result.Choices) == 0 {
		return "", fmt.Errorf("openai completer: response contained no choices")
	}
	return result.Choices[0].Message.Content, nil
}

// NewCompleterFromEnv constructs a Completer from MODEL_PROVIDER and the
// per-backend env vars, mirroring the embedder factory's resolution order.
func NewCompleterFromEnv() (Completer, error) {
	backend := os.Getenv("MODEL_PROVIDER")
	if backend == "" {
		backend = "ollama"
	}

	switch backend {
	case "ollama":
		host := os.Getenv("OLLAMA_HOST")
		if host == "" {
			host = "http://localhost:11434"
		}
		model := os.Getenv("OLLAMA_MODEL")
		if model == "" {
			model = "llama3.1"
		}
		return NewOllamaCompleter(host, model), nil

	case "openai":
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("answer: openai requires OPENAI_API_KEY")
		}
		baseURL := os.Getenv("OPENAI_BASE_URL")
		if baseURL == "" {
			baseURL = "https://api.openai.com/v1"
		}
		model := os.Getenv("OPENAI_MODEL")
		if model == "" {
			model = "gpt-4o-mini"
		}
		return NewOpenAICompleter(baseURL, apiKey, model), nil

	default:
		return nil, fmt.Errorf("answer: unknown backend %q (valid: ollama, openai)", backend)
	}
}

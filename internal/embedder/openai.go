package embedder

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// OpenAIEmbedder talks to the OpenAI (or Azure OpenAI) embeddings REST API.
// Safe for concurrent use.
type OpenAIEmbedder struct {
	cfg    OpenAIConfig
	client *http.Client
}

// OpenAIConfig configures an OpenAIEmbedder.
type OpenAIConfig struct {
	// BaseURL is "https://api.openai.com/v1" for OpenAI, or
	// "https://<resource>.openai.azure.com/openai" for Azure.
	BaseURL string
	// APIKey authenticates the request: Bearer token for OpenAI, api-key
	// header for Azure.
	APIKey string
	// Model is the embedding model, e.g. "text-embedding-3-small". Under
	// Azure this is the deployment name.
	Model string
	// Dimensions requests a vector length; 0 keeps the model default.
	Dimensions int
	// Azure switches to Azure-style auth and URL layout.
	Azure bool
	// APIVersion is the Azure api-version query parameter. Ignored for OpenAI.
	APIVersion string
}

func NewOpenAIEmbedder(cfg *OpenAIConfig) *OpenAIEmbedder {
	return &OpenAIEmbedder{
		cfg:    *cfg,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

type openaiEmbedRequest struct {
	Input      []string `json:"input"`
	Model      string   `json:"model"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type openaiEmbedding struct {
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

type openaiEmbedResponse struct {
	Data  []openaiEmbedding `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (e *OpenAIEmbedder) url() string {
	if e.cfg.Azure {
		return e.cfg.BaseURL + "/deployments/" + e.cfg.Model + "/embeddings?api-version=" + e.cfg.APIVersion
	}
	return e.cfg.BaseURL + "/embeddings"
}

func (e *OpenAIEmbedder) auth() map[string]string {
	if e.cfg.Azure {
		return map[string]string{"api-key": e.cfg.APIKey}
	}
	return map[string]string{"Authorization": "Bearer " + e.cfg.APIKey}
}

// Embed returns one vector per input text, in input order. The API is allowed
// to return data entries out of order; they are placed by index.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	in := openaiEmbedRequest{Input: texts, Model: e.cfg.Model, Dimensions: e.cfg.Dimensions}

	var out openaiEmbedResponse
	status, err := postJSON(ctx, e.client, e.url(), e.auth(), in, &out)
	if err != nil {
		return nil, fmt.Errorf("openai embedder: %w", err)
	}

	if !ok(status) {
		if out.Error != nil {
			return nil, fmt.Errorf("openai embedder: %s", out.Error.Message)
		}
		return nil, fmt.Errorf("openai embedder: HTTP %d", status)
	}

	if len(out.Data) != len(texts) {
		return nil, fmt.Errorf("openai embedder: got %d embeddings for %d inputs", len(out.Data), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for _, d := range out.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("openai embedder: embedding index %d out of range", d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}

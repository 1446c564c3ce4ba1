package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"pdf-chat-platform/internal/config"
)

// ProviderError is a distinguishable embedding/generation provider failure
// carrying the provider's status and message.
type ProviderError struct {
	Provider string
	Status   int
	Message  string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s provider error (status %d): %s", e.Provider, e.Status, e.Message)
}

// Embedder maps text to fixed-dimension vectors. Batch calls fail
// atomically: on error no partial vector list is returned.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// NewEmbedder selects the provider from configuration at startup. There is
// no call-time probing of local services.
func NewEmbedder(ctx context.Context, cfg *config.Config) (Embedder, error) {
	switch cfg.EmbeddingsProvider {
	case "google":
		return NewGoogleEmbedder(ctx, cfg.GeminiAPIKey, cfg.GoogleEmbeddingsModel, cfg.VectorDimensions)
	case "ollama":
		return NewOllamaEmbedder(cfg.OllamaURL, cfg.OllamaModel, cfg.VectorDimensions), nil
	default:
		return nil, fmt.Errorf("unknown embeddings provider: %s", cfg.EmbeddingsProvider)
	}
}

// GoogleEmbedder uses the Google Generative AI embedding models
// (text-embedding-004 by default).
type GoogleEmbedder struct {
	client    *genai.Client
	model     string
	dimension int
}

func NewGoogleEmbedder(ctx context.Context, apiKey, model string, dimension int) (*GoogleEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("missing GEMINI_API_KEY for embeddings")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	return &GoogleEmbedder{client: client, model: model, dimension: dimension}, nil
}

func (g *GoogleEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	em := g.client.EmbeddingModel(g.model)
	batch := em.NewBatch()
	for _, t := range texts {
		batch.AddContent(genai.Text(t))
	}

	resp, err := em.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, &ProviderError{Provider: "google", Message: err.Error()}
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, &ProviderError{
			Provider: "google",
			Message:  fmt.Sprintf("expected %d embeddings, got %d", len(texts), len(resp.Embeddings)),
		}
	}

	vectors := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		if e == nil || len(e.Values) == 0 {
			return nil, &ProviderError{Provider: "google", Message: fmt.Sprintf("empty embedding at index %d", i)}
		}
		vectors[i] = e.Values
	}
	return vectors, nil
}

func (g *GoogleEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	resp, err := g.client.EmbeddingModel(g.model).EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, &ProviderError{Provider: "google", Message: err.Error()}
	}
	if resp.Embedding == nil || len(resp.Embedding.Values) == 0 {
		return nil, &ProviderError{Provider: "google", Message: "no embedding returned"}
	}
	return resp.Embedding.Values, nil
}

func (g *GoogleEmbedder) Dimension() int { return g.dimension }

func (g *GoogleEmbedder) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

// OllamaEmbedder talks to a local Ollama server's /api/embed endpoint.
type OllamaEmbedder struct {
	url        string
	model      string
	dimension  int
	httpClient *http.Client
}

func NewOllamaEmbedder(url, model string, dimension int) *OllamaEmbedder {
	return &OllamaEmbedder{
		url:        url,
		model:      model,
		dimension:  dimension,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

type ollamaEmbedRequest struct {
	Model string `json:"model"`
	Input any    `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

func (o *OllamaEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := o.embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, &ProviderError{
			Provider: "ollama",
			Message:  fmt.Sprintf("expected %d embeddings, got %d", len(texts), len(resp.Embeddings)),
		}
	}
	return resp.Embeddings, nil
}

func (o *OllamaEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	resp, err := o.embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) == 0 {
		return nil, &ProviderError{Provider: "ollama", Message: "no embedding returned"}
	}
	return resp.Embeddings[0], nil
}

func (o *OllamaEmbedder) embed(ctx context.Context, input any) (*ollamaEmbedResponse, error) {
	body, err := json.Marshal(ollamaEmbedRequest{Model: o.model, Input: input})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.url+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, &ProviderError{Provider: "ollama", Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &ProviderError{Provider: "ollama", Status: resp.StatusCode, Message: string(msg)}
	}

	var out ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &ProviderError{Provider: "ollama", Message: "malformed embedding response: " + err.Error()}
	}
	return &out, nil
}

func (o *OllamaEmbedder) Dimension() int { return o.dimension }

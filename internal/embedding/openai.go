package embedding

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hyperjump/kotae/internal/config"
)

// OpenAIEmbedder talks to an OpenAI-compatible embeddings endpoint (including
// Ollama's compatibility API). All response-shape handling lives here; callers
// only ever see []float32 vectors or a sentinel error.
type OpenAIEmbedder struct {
	client     *openai.Client
	model      string
	dimensions int

	mu       sync.Mutex
	observed int // vector length seen on the first successful call
}

// NewOpenAIEmbedder creates an embedding gateway from config. apiKey may be
// empty for local servers that do not authenticate.
func NewOpenAIEmbedder(cfg *config.EmbeddingConfig, apiKey string) *OpenAIEmbedder {
	clientConfig := openai.DefaultConfig(apiKey)
	clientConfig.BaseURL = cfg.BaseURL
	clientConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout()}
	return &OpenAIEmbedder{
		client:     openai.NewClientWithConfig(clientConfig),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}
}

// Embed returns the embedding for a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds all texts in one request. The first successful response
// establishes the vector length for this process; any later change is a hard error.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts", ErrUnavailable, len(resp.Data), len(texts))
	}
	vectors := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		if err := e.checkDimension(len(d.Embedding)); err != nil {
			return nil, err
		}
		vec := make([]float32, len(d.Embedding))
		copy(vec, d.Embedding)
		vectors[i] = vec
	}
	return vectors, nil
}

func (e *OpenAIEmbedder) checkDimension(got int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.observed == 0 {
		if e.dimensions != 0 && got != e.dimensions {
			return fmt.Errorf("%w: capability returned %d, configured %d", ErrDimensionChanged, got, e.dimensions)
		}
		e.observed = got
		return nil
	}
	if got != e.observed {
		return fmt.Errorf("%w: got %d, previously %d", ErrDimensionChanged, got, e.observed)
	}
	return nil
}

// Dimensions returns the embedding dimension for this deployment.
func (e *OpenAIEmbedder) Dimensions() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.observed != 0 {
		return e.observed
	}
	return e.dimensions
}

// Close is a no-op for the HTTP gateway.
func (e *OpenAIEmbedder) Close() error {
	return nil
}

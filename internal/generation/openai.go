package generation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hyperjump/kotae/internal/config"
)

// OpenAIGenerator talks to an OpenAI-compatible chat completion endpoint
// (including Ollama's compatibility API). Every call is bounded by the
// configured timeout so a slow model can never hang a query.
type OpenAIGenerator struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

// NewOpenAIGenerator creates a generation gateway from config. apiKey may be
// empty for local servers that do not authenticate.
func NewOpenAIGenerator(cfg *config.GenerationConfig, apiKey string) *OpenAIGenerator {
	clientConfig := openai.DefaultConfig(apiKey)
	clientConfig.BaseURL = cfg.BaseURL
	clientConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout()}
	return &OpenAIGenerator{
		client:  openai.NewClientWithConfig(clientConfig),
		model:   cfg.Model,
		timeout: cfg.Timeout(),
	}
}

// Generate sends the prompt as a single user message and returns the completion.
func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) || os.IsTimeout(err) {
			return "", fmt.Errorf("%w after %s: %v", ErrTimeout, g.timeout, err)
		}
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty completion", ErrUnavailable)
	}
	return resp.Choices[0].Message.Content, nil
}

// Close is a no-op for the HTTP gateway.
func (g *OpenAIGenerator) Close() error {
	return nil
}

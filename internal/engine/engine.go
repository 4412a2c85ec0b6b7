// Package engine answers questions by retrieving passages and calling the
// generation capability.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/generation"
	"github.com/hyperjump/kotae/internal/lifecycle"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/vector"
	"github.com/hyperjump/kotae/pkg/utils"
)

// ErrEmptyQuestion is returned for empty or whitespace-only questions.
var ErrEmptyQuestion = errors.New("question cannot be empty")

// noResultsAnswer is returned, as a successful response, when retrieval finds
// nothing. Deterministic so clients can rely on it.
const noResultsAnswer = "I couldn't find relevant information in the indexed documents to answer your question. Please try rephrasing your question or check whether the relevant documents have been ingested."

// generationFailedAnswer is returned, still as a successful response, when
// the generation capability fails after retrieval succeeded. The citations
// already found are returned with it so the retrieval work is not wasted.
const generationFailedAnswer = "I found relevant passages in the documents but encountered an issue generating the response. Please try again. The sources below point to the passages that matched your question."

// Engine orchestrates a query: embed the question, retrieve the top passages,
// assemble the prompt, generate, and degrade gracefully when generation fails.
// Embedding failure on the question itself is unrecoverable for that query.
type Engine struct {
	manager   *lifecycle.Manager
	embedder  embedding.Embedder
	generator generation.Generator
	topK      int
	logger    *zap.Logger // optional; when set, logs debug events
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates a query engine. topK is the number of passages retrieved
// per question.
func NewEngine(manager *lifecycle.Manager, embedder embedding.Embedder, generator generation.Generator, topK int, opts ...Option) *Engine {
	e := &Engine{
		manager:   manager,
		embedder:  embedder,
		generator: generator,
		topK:      topK,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Answer runs the full query flow for question. Generation failures degrade
// to an explanatory answer with citations rather than an error; embedding
// failures and a missing store are reported as errors.
func (e *Engine) Answer(ctx context.Context, question string) (*models.QueryAnswer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	if e.logger != nil {
		e.logger.Debug("answering question", zap.String("question", utils.Truncate(question, 80)))
	}

	queryVec, err := e.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	// An empty store is not an error here; it yields zero results and the
	// deterministic no-results answer below. A store that cannot be loaded
	// at all is an internal failure and propagates as one.
	results, err := e.manager.Search(queryVec, e.topK)
	if err != nil {
		if errors.Is(err, vector.ErrDimensionMismatch) || errors.Is(err, vector.ErrInvalidK) {
			return nil, err
		}
		return nil, fmt.Errorf("search passages: %w", err)
	}
	if len(results) == 0 {
		return &models.QueryAnswer{Answer: noResultsAnswer, Sources: []string{}}, nil
	}

	sources := make([]string, len(results))
	for i, r := range results {
		sources[i] = Citation(r.Passage)
	}
	prompt := BuildPrompt(results, question)

	// No store lock is held here; generation may take seconds.
	answer, err := e.generator.Generate(ctx, prompt)
	if err != nil {
		if e.logger != nil {
			e.logger.Warn("generation failed, returning citations only", zap.Error(err))
		}
		return &models.QueryAnswer{Answer: generationFailedAnswer, Sources: sources}, nil
	}
	return &models.QueryAnswer{Answer: answer, Sources: sources}, nil
}

// TopK returns the configured retrieval count.
func (e *Engine) TopK() int {
	return e.topK
}

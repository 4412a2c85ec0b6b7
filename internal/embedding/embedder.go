// Package embedding provides the gateway to the external embedding capability.
package embedding

import (
	"context"
	"errors"
)

// ErrUnavailable is returned when the embedding capability cannot be reached.
var ErrUnavailable = errors.New("embedding capability unavailable")

// ErrDimensionChanged is returned when the capability returns a vector whose
// length differs from the dimension established for this deployment.
var ErrDimensionChanged = errors.New("embedding dimension changed")

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

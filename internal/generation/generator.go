// Package generation provides the gateway to the external text generation capability.
package generation

import (
	"context"
	"errors"
)

// ErrUnavailable is returned when the generation capability cannot be reached.
var ErrUnavailable = errors.New("generation capability unavailable")

// ErrTimeout is returned when the capability does not answer within the
// configured bound.
var ErrTimeout = errors.New("generation timed out")

// Generator produces a text completion for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Close() error
}

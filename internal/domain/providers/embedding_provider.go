package providers

import (
	"context"
	"errors"
)

// ErrEmbeddingDisabled is returned when no embedding backend is configured.
var ErrEmbeddingDisabled = errors.New("embedding provider disabled")

// EmbeddingProvider turns query text into a fixed-dimension vector.
type EmbeddingProvider interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
	ModelName() string
}

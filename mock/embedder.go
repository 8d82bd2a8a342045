package mock

import (
	"context"

	"github.com/fwojciec/docchunk"
)

var _ docchunk.Embedder = (*Embedder)(nil)

// Embedder is a mock implementation of docchunk.Embedder.
type Embedder struct {
	EmbedFn func(ctx context.Context, texts []string) ([][]float64, error)
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	return e.EmbedFn(ctx, texts)
}

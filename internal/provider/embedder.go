package provider

import (
	"context"
	"fmt"

	"github.com/deldesir/gateway/internal/domain"
)

// Embedder turns texts into vectors, one per text, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// CheckedEmbedder rejects provider responses that do not line up with the
// request. Results are never truncated or padded.
type CheckedEmbedder struct {
	next Embedder
	dim  int
}

// NewCheckedEmbedder wraps next. dim <= 0 skips the dimension check.
func NewCheckedEmbedder(next Embedder, dim int) *CheckedEmbedder {
	return &CheckedEmbedder{next: next, dim: dim}
}

func (c *CheckedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	vectors, err := c.next.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}

	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: got %d for %d texts", domain.ErrEmbeddingCountMismatch, len(vectors), len(texts))
	}
	if c.dim > 0 {
		for i, v := range vectors {
			if len(v) != c.dim {
				return nil, fmt.Errorf("%w: embedding %d has %d values, want %d", domain.ErrDimensionMismatch, i, len(v), c.dim)
			}
		}
	}
	return vectors, nil
}

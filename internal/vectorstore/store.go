// Package vectorstore holds the append-only long-term memory index. Each entry
// pairs one fixed-dimension vector with the chunk it was embedded from, and
// search ranks entries by squared L2 distance.
package vectorstore

import (
	"context"
	"fmt"

	"github.com/deldesir/gateway/internal/domain"
)

// Result is one search hit. Distance is the squared L2 distance to the query.
type Result struct {
	Distance float32
	Chunk    domain.Chunk
}

// Store is the contract shared by the file-backed and postgres-backed indexes.
type Store interface {
	// Add appends vectors and chunks in lockstep. Nothing is written when the
	// inputs disagree in length or dimension, a chunk is invalid, or a chunk
	// id is already indexed.
	Add(ctx context.Context, vectors [][]float32, chunks []domain.Chunk, persist bool) error
	// Search returns up to k nearest entries, closest first.
	Search(ctx context.Context, query []float32, k int) ([]Result, error)
	// Replace swaps the whole index for a rebuilt one. Ids must be unique
	// within the rebuild.
	Replace(ctx context.Context, vectors [][]float32, chunks []domain.Chunk) error
	// Persist makes pending writes durable.
	Persist(ctx context.Context) error
	// Count returns the number of indexed entries.
	Count(ctx context.Context) (int, error)
	// Dim returns the vector dimension the store was opened with.
	Dim() int
}

// validateBatch checks a write before anything is stored: lengths agree,
// every vector has dim values, every chunk is valid and no id repeats.
func validateBatch(dim int, vectors [][]float32, chunks []domain.Chunk) error {
	if len(vectors) != len(chunks) {
		return fmt.Errorf("%w: %d vectors, %d chunks", domain.ErrLengthMismatch, len(vectors), len(chunks))
	}
	for i, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("%w: vector %d has %d values, want %d", domain.ErrDimensionMismatch, i, len(v), dim)
		}
	}

	seen := make(map[string]struct{}, len(chunks))
	for i := range chunks {
		if err := chunks[i].Validate(); err != nil {
			return fmt.Errorf("chunk %d: %w", i, err)
		}
		id := chunks[i].ID
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: %s appears twice in one batch", domain.ErrDuplicateChunkID, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

func squaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

package ingest

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/deldesir/gateway/internal/domain"
	"github.com/rs/zerolog/log"
)

const DefaultBatchSize = 32

// Embedder turns texts into vectors, one per text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Adder appends vectors with their chunks.
type Adder interface {
	Add(ctx context.Context, vectors [][]float32, chunks []domain.Chunk, persist bool) error
}

// Stats summarizes one ingestion run.
type Stats struct {
	Read     int `json:"read"`
	Ingested int `json:"ingested"`
	Skipped  int `json:"skipped"`
	Batches  int `json:"batches"`
}

type Pipeline struct {
	embedder  Embedder
	store     Adder
	batchSize int
}

type Option func(*Pipeline)

func WithBatchSize(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

func NewPipeline(embedder Embedder, store Adder, opts ...Option) *Pipeline {
	p := &Pipeline{embedder: embedder, store: store, batchSize: DefaultBatchSize}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// IngestFile ingests a JSONL file.
func (p *Pipeline) IngestFile(ctx context.Context, path string) (Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return Stats{}, err
	}
	defer f.Close()
	return p.Ingest(ctx, NewReader(f, path))
}

// Ingest embeds chunks in batches and persists after every batch, so an
// interrupted run keeps the batches already written.
func (p *Pipeline) Ingest(ctx context.Context, r *Reader) (Stats, error) {
	var stats Stats
	texts := make([]string, 0, p.batchSize)
	chunks := make([]domain.Chunk, 0, p.batchSize)

	flush := func() error {
		if len(chunks) == 0 {
			return nil
		}
		vectors, err := p.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("failed to embed batch %d: %w", stats.Batches+1, err)
		}
		if err := p.store.Add(ctx, vectors, chunks, true); err != nil {
			return fmt.Errorf("failed to store batch %d: %w", stats.Batches+1, err)
		}
		stats.Batches++
		stats.Ingested += len(chunks)
		log.Info().Int("batch", stats.Batches).Int("size", len(chunks)).Int("ingested", stats.Ingested).Msg("batch ingested")

		texts = texts[:0]
		chunks = make([]domain.Chunk, 0, p.batchSize)
		return nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return p.finish(stats, r), err
		}
		c, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return p.finish(stats, r), err
		}

		texts = append(texts, c.EmbeddingText())
		chunks = append(chunks, *c)
		if len(chunks) >= p.batchSize {
			if err := flush(); err != nil {
				return p.finish(stats, r), err
			}
		}
	}
	if err := flush(); err != nil {
		return p.finish(stats, r), err
	}

	stats = p.finish(stats, r)
	log.Info().Int("read", stats.Read).Int("ingested", stats.Ingested).Int("skipped", stats.Skipped).Int("batches", stats.Batches).Msg("ingestion completed")
	return stats, nil
}

func (p *Pipeline) finish(stats Stats, r *Reader) Stats {
	stats.Read = r.Read()
	stats.Skipped = r.Skipped()
	return stats
}

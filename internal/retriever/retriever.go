// Package retriever turns a query into persona-relevant memory excerpts:
// embed, recall from the vector store, filter by persona scope, rerank.
package retriever

import (
	"context"
	"fmt"
	"sort"

	"github.com/deldesir/gateway/internal/domain"
	"github.com/deldesir/gateway/internal/telemetry"
	"github.com/deldesir/gateway/internal/vectorstore"
	"github.com/rs/zerolog/log"
)

const (
	DefaultK       = 5
	DefaultRecallK = 20
)

// Rerank weights
const (
	SpeakerMatchBonus  = 2.0
	MentionMatchBonus  = 1.5
	SummaryLineBonus   = 0.5
	NonPersonaPenalty  = -0.5
	DefaultChunkWeight = 1.0
)

var chunkTypeWeights = map[domain.ChunkType]float64{
	domain.ChunkTypePersonaSeed: 3.0,
	domain.ChunkTypeQuote:       2.0,
	domain.ChunkTypeAction:      2.0,
	domain.ChunkTypeSummaryLine: 1.0,
}

// Embedder is the part of an embedding provider the retriever needs.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Searcher is the read side of a vector store.
type Searcher interface {
	Search(ctx context.Context, query []float32, k int) ([]vectorstore.Result, error)
}

// Scored is a reranked candidate.
type Scored struct {
	Score    float64      `json:"score"`
	Distance float32      `json:"distance"`
	Chunk    domain.Chunk `json:"chunk"`
}

type Retriever struct {
	embedder Embedder
	store    Searcher
	k        int
	recallK  int
}

type Option func(*Retriever)

// WithK sets how many excerpts Retrieve returns by default.
func WithK(k int) Option {
	return func(r *Retriever) {
		if k > 0 {
			r.k = k
		}
	}
}

// WithRecallK sets the recall depth; the store is asked for twice as many.
func WithRecallK(k int) Option {
	return func(r *Retriever) {
		if k > 0 {
			r.recallK = k
		}
	}
}

func New(embedder Embedder, store Searcher, opts ...Option) *Retriever {
	r := &Retriever{
		embedder: embedder,
		store:    store,
		k:        DefaultK,
		recallK:  DefaultRecallK,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// K returns the default number of excerpts.
func (r *Retriever) K() int {
	return r.k
}

// Retrieve returns the text of the top k chunks for persona. Chunks scoped to
// another persona are never returned. k <= 0 uses the configured default.
func (r *Retriever) Retrieve(ctx context.Context, query, persona string, k int) ([]string, error) {
	ctx, span := telemetry.StartSpan(ctx, "retriever.retrieve", telemetry.SpanAttributes{
		Persona:   persona,
		Operation: "retrieve",
	})

	scored, err := r.Candidates(ctx, query, persona, k, true)
	span.Finish(err)
	if err != nil {
		return nil, err
	}

	texts := make([]string, len(scored))
	for i, s := range scored {
		texts[i] = s.Chunk.Text
	}

	log.Debug().Str("persona", persona).Int("returned", len(texts)).Msg("retrieved context")
	return texts, nil
}

// Candidates returns reranked results with their scores. With strict set,
// chunks scoped to a different persona are dropped before scoring.
func (r *Retriever) Candidates(ctx context.Context, query, persona string, k int, strict bool) ([]Scored, error) {
	if k <= 0 {
		k = r.k
	}

	vectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("%w: got %d embeddings for 1 query", domain.ErrEmbeddingCountMismatch, len(vectors))
	}

	recalled, err := r.store.Search(ctx, vectors[0], r.recallK*2)
	if err != nil {
		return nil, fmt.Errorf("failed to search vector store: %w", err)
	}

	scored := make([]Scored, 0, len(recalled))
	for _, res := range recalled {
		if strict && res.Chunk.PersonaScope != "" && res.Chunk.PersonaScope != persona {
			continue
		}
		scored = append(scored, Scored{
			Score:    Score(res.Distance, &res.Chunk, persona),
			Distance: res.Distance,
			Chunk:    res.Chunk,
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

// Score computes the persona-aware rerank score of one candidate. A chunk
// without a type is weighted as a summary line; an unrecognised type gets the
// default weight and no summary bonus.
func Score(distance float32, c *domain.Chunk, persona string) float64 {
	chunkType := c.ChunkType
	if chunkType == "" {
		chunkType = domain.ChunkTypeSummaryLine
	}

	score := 1.0 / (1.0 + float64(distance))

	if w, ok := chunkTypeWeights[chunkType]; ok {
		score += w
	} else {
		score += DefaultChunkWeight
	}

	mentioned := c.MentionsPersona(persona)

	if c.PersonaScope == persona {
		score += SpeakerMatchBonus
	}
	if mentioned {
		score += MentionMatchBonus
	}
	if chunkType == domain.ChunkTypeSummaryLine {
		score += SummaryLineBonus
	}
	if c.PersonaScope != "" && c.PersonaScope != persona && !mentioned && chunkType != domain.ChunkTypeSummaryLine {
		score += NonPersonaPenalty
	}

	return score
}

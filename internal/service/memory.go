package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/deldesir/gateway/internal/domain"
	"github.com/deldesir/gateway/internal/retriever"
	"github.com/deldesir/gateway/internal/telemetry"
)

const maxSearchK = 50

// CandidateSearcher returns reranked memory candidates.
type CandidateSearcher interface {
	Candidates(ctx context.Context, query, persona string, k int, strict bool) ([]retriever.Scored, error)
}

// MemoryService exposes long-term memory search for operators and tooling.
type MemoryService struct {
	searcher CandidateSearcher
}

func NewMemoryService(searcher CandidateSearcher) *MemoryService {
	return &MemoryService{searcher: searcher}
}

type SearchMemoryInput struct {
	Query   string
	Persona string
	K       int
	Strict  bool
}

func (s *MemoryService) Search(ctx context.Context, input SearchMemoryInput) ([]retriever.Scored, error) {
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, fmt.Errorf("%w: query", domain.ErrMissingRequiredField)
	}
	if input.Persona != "" && !domain.IsValidPersonaID(input.Persona) {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidPersonaID, input.Persona)
	}

	k := input.K
	if k > maxSearchK {
		k = maxSearchK
	}

	ctx, span := telemetry.StartSpan(ctx, "MemoryService.Search", telemetry.SpanAttributes{
		Persona:   input.Persona,
		Operation: "search",
	})
	defer span.End()

	results, err := s.searcher.Candidates(ctx, query, input.Persona, k, input.Strict)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	if results == nil {
		results = []retriever.Scored{}
	}
	return results, nil
}

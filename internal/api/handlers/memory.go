package handlers

import (
	"context"
	"net/http"

	"github.com/deldesir/gateway/internal/api"
	"github.com/deldesir/gateway/internal/retriever"
	"github.com/deldesir/gateway/internal/service"
)

type MemoryService interface {
	Search(ctx context.Context, input service.SearchMemoryInput) ([]retriever.Scored, error)
}

type MemoryHandler struct {
	svc MemoryService
}

func NewMemoryHandler(svc MemoryService) *MemoryHandler {
	return &MemoryHandler{svc: svc}
}

type SearchRequest struct {
	Query   string `json:"query"`
	Persona string `json:"persona"`
	K       int    `json:"k"`
	Strict  bool   `json:"strict"`
}

type SearchHit struct {
	ID        string  `json:"id"`
	Text      string  `json:"text"`
	Speaker   string  `json:"speaker,omitempty"`
	Persona   string  `json:"persona,omitempty"`
	ChunkType string  `json:"chunk_type,omitempty"`
	SourceURI string  `json:"source_uri,omitempty"`
	Score     float64 `json:"score"`
	Distance  float32 `json:"distance"`
}

type SearchResponse struct {
	Results []SearchHit `json:"results"`
}

func (h *MemoryHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := api.Decode(r, &req); err != nil {
		api.HandleError(w, err)
		return
	}

	if req.Query == "" {
		api.Error(w, http.StatusBadRequest, "query is required")
		return
	}

	scored, err := h.svc.Search(r.Context(), service.SearchMemoryInput{
		Query:   req.Query,
		Persona: req.Persona,
		K:       req.K,
		Strict:  req.Strict,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	hits := make([]SearchHit, len(scored))
	for i, s := range scored {
		hits[i] = SearchHit{
			ID:        s.Chunk.ID,
			Text:      s.Chunk.Text,
			Speaker:   s.Chunk.Speaker,
			Persona:   s.Chunk.PersonaScope,
			ChunkType: string(s.Chunk.ChunkType),
			SourceURI: s.Chunk.SourceURI,
			Score:     s.Score,
			Distance:  s.Distance,
		}
	}

	api.Success(w, http.StatusOK, SearchResponse{Results: hits})
}

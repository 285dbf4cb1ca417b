package handlers

import (
	"context"
	"net/http"

	"github.com/deldesir/gateway/internal/api"
)

// IndexCounter reports the size of the vector index.
type IndexCounter interface {
	Count(ctx context.Context) (int, error)
}

type HealthHandler struct {
	index IndexCounter
}

func NewHealthHandler(index IndexCounter) *HealthHandler {
	return &HealthHandler{index: index}
}

type HealthResponse struct {
	Status    string `json:"status"`
	IndexSize int    `json:"index_size"`
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok"}
	if h.index != nil {
		n, err := h.index.Count(r.Context())
		if err != nil {
			api.Success(w, http.StatusServiceUnavailable, HealthResponse{Status: "degraded"})
			return
		}
		resp.IndexSize = n
	}
	api.Success(w, http.StatusOK, resp)
}

package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/deldesir/gateway/internal/api"
	"github.com/deldesir/gateway/internal/domain"
	"github.com/deldesir/gateway/internal/service"
	"github.com/go-chi/chi/v5"
)

type KnowledgeService interface {
	Add(ctx context.Context, input service.AddKnowledgeInput) (*domain.KnowledgeItem, error)
	GetByID(ctx context.Context, id string) (*domain.KnowledgeItem, error)
	List(ctx context.Context, input service.ListKnowledgeInput) (*service.ListKnowledgeOutput, error)
	Delete(ctx context.Context, id string) (*domain.ReindexJob, error)
	RequestReindex(ctx context.Context, reason string) (*domain.ReindexJob, error)
	GetReindexJob(ctx context.Context, id string) (*domain.ReindexJob, error)
}

const timeLayout = time.RFC3339

type KnowledgeHandler struct {
	svc KnowledgeService
}

func NewKnowledgeHandler(svc KnowledgeService) *KnowledgeHandler {
	return &KnowledgeHandler{svc: svc}
}

type CreateKnowledgeRequest struct {
	Title        string `json:"title"`
	Content      string `json:"content"`
	SourceURI    string `json:"source_uri"`
	PersonaScope string `json:"persona_scope"`
}

type KnowledgeResponse struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Content      string `json:"content"`
	SourceURI    string `json:"source_uri,omitempty"`
	PersonaScope string `json:"persona_scope,omitempty"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

func knowledgeToResponse(k *domain.KnowledgeItem) *KnowledgeResponse {
	return &KnowledgeResponse{
		ID:           k.ID,
		Title:        k.Title,
		Content:      k.Content,
		SourceURI:    k.SourceURI,
		PersonaScope: k.PersonaScope,
		CreatedAt:    k.CreatedAt.Format(timeLayout),
		UpdatedAt:    k.UpdatedAt.Format(timeLayout),
	}
}

type ReindexJobResponse struct {
	ID          string `json:"id"`
	Reason      string `json:"reason"`
	Status      string `json:"status"`
	Retries     int32  `json:"retries"`
	Error       string `json:"error,omitempty"`
	CreatedAt   string `json:"created_at"`
	ProcessedAt string `json:"processed_at,omitempty"`
}

func jobToResponse(j *domain.ReindexJob) *ReindexJobResponse {
	resp := &ReindexJobResponse{
		ID:        j.ID,
		Reason:    j.Reason,
		Status:    string(j.Status),
		Retries:   j.Retries,
		Error:     j.Error,
		CreatedAt: j.CreatedAt.Format(timeLayout),
	}
	if j.ProcessedAt != nil {
		resp.ProcessedAt = j.ProcessedAt.Format(timeLayout)
	}
	return resp
}

func (h *KnowledgeHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateKnowledgeRequest
	if err := api.Decode(r, &req); err != nil {
		api.HandleError(w, err)
		return
	}

	if req.Title == "" {
		api.Error(w, http.StatusBadRequest, "title is required")
		return
	}
	if req.Content == "" {
		api.Error(w, http.StatusBadRequest, "content is required")
		return
	}

	item, err := h.svc.Add(r.Context(), service.AddKnowledgeInput{
		Title:        req.Title,
		Content:      req.Content,
		SourceURI:    req.SourceURI,
		PersonaScope: req.PersonaScope,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, knowledgeToResponse(item))
}

func (h *KnowledgeHandler) Get(w http.ResponseWriter, r *http.Request) {
	item, err := h.svc.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, knowledgeToResponse(item))
}

// Delete answers 202: the item is gone but its chunks stay searchable until
// the queued reindex job runs.
func (h *KnowledgeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	job, err := h.svc.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusAccepted, jobToResponse(job))
}

type KnowledgeListResponse struct {
	Items   []*KnowledgeResponse `json:"items"`
	Cursor  string               `json:"cursor,omitempty"`
	HasMore bool                 `json:"has_more"`
}

func (h *KnowledgeHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	output, err := h.svc.List(r.Context(), service.ListKnowledgeInput{
		Cursor: r.URL.Query().Get("cursor"),
		Limit:  limit,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*KnowledgeResponse, len(output.Items))
	for i, k := range output.Items {
		responses[i] = knowledgeToResponse(k)
	}

	api.Success(w, http.StatusOK, KnowledgeListResponse{
		Items:   responses,
		Cursor:  output.Cursor,
		HasMore: output.HasMore,
	})
}

type ReindexRequest struct {
	Reason string `json:"reason"`
}

func (h *KnowledgeHandler) Reindex(w http.ResponseWriter, r *http.Request) {
	var req ReindexRequest
	if err := api.DecodeOptional(r, &req); err != nil {
		api.HandleError(w, err)
		return
	}

	job, err := h.svc.RequestReindex(r.Context(), req.Reason)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusAccepted, jobToResponse(job))
}

func (h *KnowledgeHandler) GetReindexJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.svc.GetReindexJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, jobToResponse(job))
}

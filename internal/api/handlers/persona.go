package handlers

import (
	"context"
	"net/http"

	"github.com/deldesir/gateway/internal/api"
	"github.com/deldesir/gateway/internal/domain"
	"github.com/deldesir/gateway/internal/service"
	"github.com/go-chi/chi/v5"
)

type PersonaService interface {
	List(ctx context.Context) ([]*domain.PersonaProfile, error)
	Get(ctx context.Context, id string) (*domain.PersonaProfile, error)
	Create(ctx context.Context, input service.CreatePersonaInput) (*domain.PersonaProfile, error)
	Update(ctx context.Context, id string, input service.UpdatePersonaInput) (*domain.PersonaProfile, error)
	Delete(ctx context.Context, id string) error
}

type PersonaHandler struct {
	svc PersonaService
}

func NewPersonaHandler(svc PersonaService) *PersonaHandler {
	return &PersonaHandler{svc: svc}
}

type CreatePersonaRequest struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Personality  string   `json:"personality"`
	Style        string   `json:"style"`
	SystemPrompt string   `json:"system_prompt"`
	AllowedTools []string `json:"allowed_tools"`
	Knowledge    string   `json:"knowledge"`
}

// UpdatePersonaRequest leaves absent fields unchanged.
type UpdatePersonaRequest struct {
	Name         *string  `json:"name"`
	Personality  *string  `json:"personality"`
	Style        *string  `json:"style"`
	SystemPrompt *string  `json:"system_prompt"`
	AllowedTools []string `json:"allowed_tools"`
	Knowledge    *string  `json:"knowledge"`
}

type PersonaResponse struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Personality  string   `json:"personality"`
	Style        string   `json:"style"`
	SystemPrompt string   `json:"system_prompt,omitempty"`
	AllowedTools []string `json:"allowed_tools"`
	Knowledge    string   `json:"knowledge,omitempty"`
	Builtin      bool     `json:"builtin"`
	CreatedAt    string   `json:"created_at,omitempty"`
	UpdatedAt    string   `json:"updated_at,omitempty"`
}

func personaToResponse(p *domain.PersonaProfile) *PersonaResponse {
	resp := &PersonaResponse{
		ID:           p.ID,
		Name:         p.Name,
		Personality:  p.Personality,
		Style:        p.Style,
		SystemPrompt: p.SystemPrompt,
		AllowedTools: p.AllowedTools,
		Knowledge:    p.Knowledge,
		Builtin:      p.Builtin,
	}
	if resp.AllowedTools == nil {
		resp.AllowedTools = []string{}
	}
	if !p.CreatedAt.IsZero() {
		resp.CreatedAt = p.CreatedAt.Format(timeLayout)
	}
	if !p.UpdatedAt.IsZero() {
		resp.UpdatedAt = p.UpdatedAt.Format(timeLayout)
	}
	return resp
}

type PersonaListResponse struct {
	Items []*PersonaResponse `json:"items"`
}

func (h *PersonaHandler) List(w http.ResponseWriter, r *http.Request) {
	personas, err := h.svc.List(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	items := make([]*PersonaResponse, len(personas))
	for i, p := range personas {
		items[i] = personaToResponse(p)
	}

	api.Success(w, http.StatusOK, PersonaListResponse{Items: items})
}

func (h *PersonaHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, personaToResponse(p))
}

func (h *PersonaHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreatePersonaRequest
	if err := api.Decode(r, &req); err != nil {
		api.HandleError(w, err)
		return
	}

	if req.ID == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	p, err := h.svc.Create(r.Context(), service.CreatePersonaInput{
		ID:           req.ID,
		Name:         req.Name,
		Personality:  req.Personality,
		Style:        req.Style,
		SystemPrompt: req.SystemPrompt,
		AllowedTools: req.AllowedTools,
		Knowledge:    req.Knowledge,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, personaToResponse(p))
}

func (h *PersonaHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdatePersonaRequest
	if err := api.Decode(r, &req); err != nil {
		api.HandleError(w, err)
		return
	}

	p, err := h.svc.Update(r.Context(), chi.URLParam(r, "id"), service.UpdatePersonaInput{
		Name:         req.Name,
		Personality:  req.Personality,
		Style:        req.Style,
		SystemPrompt: req.SystemPrompt,
		AllowedTools: req.AllowedTools,
		Knowledge:    req.Knowledge,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, personaToResponse(p))
}

func (h *PersonaHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		api.HandleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

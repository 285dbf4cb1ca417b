package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/deldesir/gateway/internal/api"
	"github.com/deldesir/gateway/internal/api/middleware"
	"github.com/deldesir/gateway/internal/domain"
	"github.com/deldesir/gateway/internal/orchestrator"
	"github.com/deldesir/gateway/internal/service"
)

type ChatService interface {
	Chat(ctx context.Context, input service.ChatInput, opts ...orchestrator.TurnOption) (*service.ChatOutput, error)
	State(ctx context.Context, userID, persona, sessionID string) (*domain.ConversationState, error)
	Reset(ctx context.Context, userID, persona, sessionID string) error
}

type ChatHandler struct {
	svc ChatService
}

func NewChatHandler(svc ChatService) *ChatHandler {
	return &ChatHandler{svc: svc}
}

type ChatRequest struct {
	Persona   string `json:"persona"`
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := api.Decode(r, &req); err != nil {
		api.HandleError(w, err)
		return
	}

	if strings.TrimSpace(req.Message) == "" {
		api.HandleError(w, domain.ErrEmptyMessage)
		return
	}

	out, err := h.svc.Chat(r.Context(), service.ChatInput{
		UserID:    middleware.GetUserID(r.Context()),
		Persona:   req.Persona,
		SessionID: req.SessionID,
		Message:   req.Message,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, out)
}

type MessageResponse struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type StateResponse struct {
	ThreadID            string            `json:"thread_id"`
	Persona             string            `json:"persona"`
	Mood                domain.Mood       `json:"mood"`
	TrustScore          int               `json:"trust_score"`
	TurnCount           int               `json:"turn_count"`
	ConversationSummary string            `json:"conversation_summary,omitempty"`
	Dossier             map[string]string `json:"dossier,omitempty"`
	Messages            []MessageResponse `json:"messages"`
	UpdatedAt           string            `json:"updated_at"`
}

func stateToResponse(s *domain.ConversationState) *StateResponse {
	msgs := make([]MessageResponse, 0, len(s.Messages))
	for _, m := range s.Messages {
		if m == nil || m.Content == "" {
			continue
		}
		msgs = append(msgs, MessageResponse{Role: string(m.Role), Content: m.Content})
	}
	return &StateResponse{
		ThreadID:            s.ThreadID,
		Persona:             s.Persona,
		Mood:                s.Mood,
		TrustScore:          s.TrustScore,
		TurnCount:           s.TurnCount,
		ConversationSummary: s.ConversationSummary,
		Dossier:             s.Dossier,
		Messages:            msgs,
		UpdatedAt:           s.UpdatedAt.Format(timeLayout),
	}
}

func (h *ChatHandler) State(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("session_id") == "" {
		api.Error(w, http.StatusBadRequest, "session_id is required")
		return
	}

	state, err := h.svc.State(r.Context(), middleware.GetUserID(r.Context()), q.Get("persona"), q.Get("session_id"))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, stateToResponse(state))
}

func (h *ChatHandler) Reset(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("session_id") == "" {
		api.Error(w, http.StatusBadRequest, "session_id is required")
		return
	}

	if err := h.svc.Reset(r.Context(), middleware.GetUserID(r.Context()), q.Get("persona"), q.Get("session_id")); err != nil {
		api.HandleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

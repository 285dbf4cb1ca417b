package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/deldesir/gateway/internal/domain"
	"github.com/deldesir/gateway/internal/orchestrator"
	"github.com/deldesir/gateway/internal/telemetry"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog/log"
)

// Checkpointer persists conversation state per thread.
type Checkpointer interface {
	Get(ctx context.Context, threadID string) (*domain.ConversationState, error)
	Put(ctx context.Context, threadID string, state *domain.ConversationState) error
	Delete(ctx context.Context, threadID string) error
}

// TurnRunner executes one conversational turn.
type TurnRunner interface {
	RunTurn(ctx context.Context, state *domain.ConversationState, userInput string, opts ...orchestrator.TurnOption) (*domain.ConversationState, error)
}

// ChatService maps user sessions onto checkpointed threads.
type ChatService struct {
	runner      TurnRunner
	checkpoints Checkpointer
	newSession  func() string
}

func NewChatService(runner TurnRunner, checkpoints Checkpointer) *ChatService {
	return &ChatService{
		runner:      runner,
		checkpoints: checkpoints,
		newSession:  func() string { return ulid.Make().String() },
	}
}

type ChatInput struct {
	UserID    string
	Persona   string
	SessionID string
	Message   string
}

type ChatOutput struct {
	Response   string      `json:"response"`
	Persona    string      `json:"persona"`
	SessionID  string      `json:"session_id"`
	ThreadID   string      `json:"thread_id"`
	Mood       domain.Mood `json:"mood"`
	TrustScore int         `json:"trust_score"`
	TurnCount  int         `json:"turn_count"`
}

func (s *ChatService) thread(userID, persona, sessionID string) (string, string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", "", domain.ErrMissingUserID
	}
	if persona == "" {
		persona = domain.DefaultPersonaID
	}
	if !domain.IsValidPersonaID(persona) {
		return "", "", fmt.Errorf("%w: %q", domain.ErrInvalidPersonaID, persona)
	}
	return persona, domain.ThreadID(userID, persona, sessionID), nil
}

// Chat runs one turn on the thread of the user, persona and session. A new
// session id is minted when none is given. The checkpoint is written only
// after the turn succeeds.
func (s *ChatService) Chat(ctx context.Context, input ChatInput, opts ...orchestrator.TurnOption) (*ChatOutput, error) {
	if strings.TrimSpace(input.Message) == "" {
		return nil, domain.ErrEmptyMessage
	}

	sessionID := input.SessionID
	if sessionID == "" {
		sessionID = s.newSession()
	}
	persona, threadID, err := s.thread(input.UserID, input.Persona, sessionID)
	if err != nil {
		return nil, err
	}

	ctx, span := telemetry.StartSpan(ctx, "ChatService.Chat", telemetry.SpanAttributes{
		ThreadID:  threadID,
		Persona:   persona,
		Operation: "chat",
	})
	defer span.End()

	state, err := s.checkpoints.Get(ctx, threadID)
	if errors.Is(err, domain.ErrCheckpointNotFound) {
		state = domain.NewConversationState(threadID, persona)
	} else if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	next, err := s.runner.RunTurn(ctx, state, input.Message, opts...)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	if err := s.checkpoints.Put(ctx, threadID, next); err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("failed to save checkpoint: %w", err)
	}

	log.Debug().Str("thread_id", threadID).Int("turn", next.TurnCount).Int("trust", next.TrustScore).Msg("chat turn saved")

	return &ChatOutput{
		Response:   next.FinalResponse,
		Persona:    next.Persona,
		SessionID:  sessionID,
		ThreadID:   threadID,
		Mood:       next.Mood,
		TrustScore: next.TrustScore,
		TurnCount:  next.TurnCount,
	}, nil
}

// State returns the checkpointed state of a thread.
func (s *ChatService) State(ctx context.Context, userID, persona, sessionID string) (*domain.ConversationState, error) {
	_, threadID, err := s.thread(userID, persona, sessionID)
	if err != nil {
		return nil, err
	}
	return s.checkpoints.Get(ctx, threadID)
}

// Reset forgets a thread.
func (s *ChatService) Reset(ctx context.Context, userID, persona, sessionID string) error {
	_, threadID, err := s.thread(userID, persona, sessionID)
	if err != nil {
		return err
	}
	return s.checkpoints.Delete(ctx, threadID)
}

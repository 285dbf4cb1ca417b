package service

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/deldesir/gateway/internal/checkpoint"
	"github.com/deldesir/gateway/internal/domain"
	"github.com/deldesir/gateway/internal/orchestrator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockTurnRunner struct {
	mock.Mock
}

func (m *MockTurnRunner) RunTurn(ctx context.Context, state *domain.ConversationState, userInput string, opts ...orchestrator.TurnOption) (*domain.ConversationState, error) {
	args := m.Called(ctx, state, userInput)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ConversationState), args.Error(1)
}

// echoTurn returns a copy of state that answers input and counts the turn.
func echoTurn(state *domain.ConversationState, input string) *domain.ConversationState {
	next := state.Clone()
	next.Messages = append(next.Messages, schema.UserMessage(input), schema.AssistantMessage("re: "+input, nil))
	next.FinalResponse = "re: " + input
	next.TrustScore = 52
	next.Mood = domain.MoodNeutral
	next.TurnCount++
	return next
}

func newChatService(runner TurnRunner, store Checkpointer) *ChatService {
	s := NewChatService(runner, store)
	s.newSession = func() string { return "01SESSION" }
	return s
}

func TestChatService_Chat(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a thread, runs the turn and checkpoints it", func(t *testing.T) {
		store := checkpoint.NewMemoryStore()
		runner := new(MockTurnRunner)
		runner.On("RunTurn", mock.Anything, mock.MatchedBy(func(s *domain.ConversationState) bool {
			return s.ThreadID == "u1:jim:01SESSION" && s.Persona == "jim" && s.TrustScore == domain.InitialTrustScore && len(s.Messages) == 0
		}), "hi").Return(echoTurn(domain.NewConversationState("u1:jim:01SESSION", "jim"), "hi"), nil)

		out, err := newChatService(runner, store).Chat(ctx, ChatInput{UserID: "u1", Persona: "jim", Message: "hi"})

		require.NoError(t, err)
		assert.Equal(t, "re: hi", out.Response)
		assert.Equal(t, "01SESSION", out.SessionID)
		assert.Equal(t, "u1:jim:01SESSION", out.ThreadID)
		assert.Equal(t, 1, out.TurnCount)

		saved, err := store.Get(ctx, "u1:jim:01SESSION")
		require.NoError(t, err)
		assert.Len(t, saved.Messages, 2)
		runner.AssertExpectations(t)
	})

	t.Run("resumes an existing session", func(t *testing.T) {
		store := checkpoint.NewMemoryStore()
		prior := echoTurn(domain.NewConversationState("u1:support:s1", "support"), "first")
		require.NoError(t, store.Put(ctx, "u1:support:s1", prior))

		runner := new(MockTurnRunner)
		runner.On("RunTurn", mock.Anything, mock.MatchedBy(func(s *domain.ConversationState) bool {
			return len(s.Messages) == 2 && s.TurnCount == 1
		}), "second").Return(echoTurn(prior, "second"), nil)

		out, err := newChatService(runner, store).Chat(ctx, ChatInput{UserID: "u1", SessionID: "s1", Message: "second"})

		require.NoError(t, err)
		assert.Equal(t, "support", out.Persona)
		assert.Equal(t, 2, out.TurnCount)
		runner.AssertExpectations(t)
	})

	t.Run("does not checkpoint a failed turn", func(t *testing.T) {
		store := checkpoint.NewMemoryStore()
		runner := new(MockTurnRunner)
		runner.On("RunTurn", mock.Anything, mock.Anything, "hi").Return(nil, errors.New("model down"))

		_, err := newChatService(runner, store).Chat(ctx, ChatInput{UserID: "u1", SessionID: "s1", Message: "hi"})

		require.Error(t, err)
		_, err = store.Get(ctx, "u1:support:s1")
		assert.ErrorIs(t, err, domain.ErrCheckpointNotFound)
	})

	t.Run("validates input", func(t *testing.T) {
		s := newChatService(new(MockTurnRunner), checkpoint.NewMemoryStore())

		_, err := s.Chat(ctx, ChatInput{UserID: "", Message: "hi"})
		assert.ErrorIs(t, err, domain.ErrMissingUserID)

		_, err = s.Chat(ctx, ChatInput{UserID: "u1", Message: "  "})
		assert.ErrorIs(t, err, domain.ErrEmptyMessage)

		_, err = s.Chat(ctx, ChatInput{UserID: "u1", Persona: "Not Valid", Message: "hi"})
		assert.ErrorIs(t, err, domain.ErrInvalidPersonaID)
	})
}

func TestChatService_StateAndReset(t *testing.T) {
	ctx := context.Background()
	store := checkpoint.NewMemoryStore()
	require.NoError(t, store.Put(ctx, "u1:jim:s1", domain.NewConversationState("u1:jim:s1", "jim")))

	s := newChatService(new(MockTurnRunner), store)

	state, err := s.State(ctx, "u1", "jim", "s1")
	require.NoError(t, err)
	assert.Equal(t, "jim", state.Persona)

	require.NoError(t, s.Reset(ctx, "u1", "jim", "s1"))
	_, err = s.State(ctx, "u1", "jim", "s1")
	assert.ErrorIs(t, err, domain.ErrCheckpointNotFound)

	assert.ErrorIs(t, s.Reset(ctx, "", "jim", "s1"), domain.ErrMissingUserID)
}

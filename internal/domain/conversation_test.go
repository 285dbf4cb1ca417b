package domain

import (
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConversationState(t *testing.T) {
	s := NewConversationState("u:support:s1", "support")

	assert.Equal(t, InitialTrustScore, s.TrustScore)
	assert.Equal(t, MoodNeutral, s.Mood)
	assert.Empty(t, s.Messages)
	assert.NotNil(t, s.Dossier)
	require.NoError(t, ValidateConversationState(s))
}

func TestThreadID(t *testing.T) {
	assert.Equal(t, "u1:konex:01HX", ThreadID("u1", "konex", "01HX"))
}

func TestConversationStateClone(t *testing.T) {
	s := NewConversationState("t", "support")
	s.Messages = append(s.Messages,
		schema.UserMessage("hi"),
		schema.AssistantMessage("", []schema.ToolCall{{ID: "c1", Function: schema.FunctionCall{Name: "retrieve_context"}}}),
	)
	s.Dossier["name"] = "Ada"
	s.RetrievedContext = []string{"a"}

	cp := s.Clone()
	cp.Messages[0].Content = "changed"
	cp.Messages[1].ToolCalls[0].ID = "c2"
	cp.Messages = append(cp.Messages, schema.UserMessage("more"))
	cp.Dossier["name"] = "Bob"
	cp.RetrievedContext[0] = "b"

	assert.Equal(t, "hi", s.Messages[0].Content)
	assert.Equal(t, "c1", s.Messages[1].ToolCalls[0].ID)
	assert.Len(t, s.Messages, 2)
	assert.Equal(t, "Ada", s.Dossier["name"])
	assert.Equal(t, "a", s.RetrievedContext[0])
	assert.Nil(t, (*ConversationState)(nil).Clone())
}

func TestValidateConversationState(t *testing.T) {
	require.Error(t, ValidateConversationState(nil))

	s := NewConversationState("", "support")
	require.Error(t, ValidateConversationState(s))

	s = NewConversationState("t", "")
	require.Error(t, ValidateConversationState(s))

	s = NewConversationState("t", "support")
	s.TrustScore = 101
	require.Error(t, ValidateConversationState(s))
}

package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
)

// InitialTrustScore is the trust a persona starts a new thread with.
const InitialTrustScore = 50

// Trust score bounds
const (
	MinTrustScore = 0
	MaxTrustScore = 100
)

// Mood is derived from the trust score once per turn.
type Mood string

const (
	MoodAnnoyed Mood = "Annoyed"
	MoodNeutral Mood = "Neutral"
	MoodHappy   Mood = "Happy"
)

// ConversationState is everything persisted for one thread between turns.
type ConversationState struct {
	ThreadID            string            `json:"thread_id"`
	Persona             string            `json:"persona"`
	Messages            []*schema.Message `json:"messages"`
	TrustScore          int               `json:"trust_score"`
	Mood                Mood              `json:"mood"`
	Dossier             map[string]string `json:"dossier,omitempty"`
	ConversationSummary string            `json:"conversation_summary,omitempty"`
	RetrievedContext    []string          `json:"retrieved_context,omitempty"`
	ContextSummary      string            `json:"context_summary,omitempty"`
	FinalResponse       string            `json:"final_response,omitempty"`
	TurnCount           int               `json:"turn_count"`
	UpdatedAt           time.Time         `json:"updated_at"`
}

// NewConversationState creates the state for the first turn of a thread.
func NewConversationState(threadID, persona string) *ConversationState {
	return &ConversationState{
		ThreadID:   threadID,
		Persona:    persona,
		Messages:   []*schema.Message{},
		TrustScore: InitialTrustScore,
		Mood:       MoodNeutral,
		Dossier:    map[string]string{},
	}
}

// Clone returns a deep copy. The orchestrator works on a clone so a failed
// turn never leaks partial updates into the caller's state.
func (s *ConversationState) Clone() *ConversationState {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Messages = make([]*schema.Message, 0, len(s.Messages))
	for _, m := range s.Messages {
		cp.Messages = append(cp.Messages, CloneMessage(m))
	}
	cp.Dossier = make(map[string]string, len(s.Dossier))
	for k, v := range s.Dossier {
		cp.Dossier[k] = v
	}
	cp.RetrievedContext = append([]string(nil), s.RetrievedContext...)
	return &cp
}

// CloneMessage copies a message including its tool calls.
func CloneMessage(m *schema.Message) *schema.Message {
	if m == nil {
		return nil
	}
	cp := *m
	if m.ToolCalls != nil {
		cp.ToolCalls = append([]schema.ToolCall(nil), m.ToolCalls...)
	}
	return &cp
}

// ThreadID builds the checkpoint key for a user+persona+session triple.
func ThreadID(userID, persona, sessionID string) string {
	return strings.Join([]string{userID, persona, sessionID}, ":")
}

// ValidateConversationState validates a ConversationState instance
func ValidateConversationState(s *ConversationState) error {
	if s == nil {
		return fmt.Errorf("conversation state cannot be nil")
	}

	if s.ThreadID == "" {
		return fmt.Errorf("conversation state ThreadID is required")
	}

	if s.Persona == "" {
		return fmt.Errorf("conversation state Persona is required")
	}

	if s.TrustScore < MinTrustScore || s.TrustScore > MaxTrustScore {
		return fmt.Errorf("conversation state TrustScore out of range: %d", s.TrustScore)
	}

	return nil
}

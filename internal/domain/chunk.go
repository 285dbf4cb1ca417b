package domain

import (
	"fmt"
	"strings"
)

// ChunkType classifies a memory unit for reranking.
type ChunkType string

const (
	ChunkTypeQuote             ChunkType = "quote"
	ChunkTypeAction            ChunkType = "action"
	ChunkTypeSummaryLine       ChunkType = "summary_line"
	ChunkTypePersonaSeed       ChunkType = "persona_seed"
	ChunkTypeDialogueComposite ChunkType = "dialogue_composite"
)

// Chunk is one indexed unit of long-term memory. PersonaScope is empty for
// global knowledge shared by every persona.
type Chunk struct {
	ID             string         `json:"id"`
	Text           string         `json:"text"`
	Speaker        string         `json:"character,omitempty"`
	PersonaScope   string         `json:"character_slug,omitempty"`
	ChunkType      ChunkType      `json:"chunk_type,omitempty"`
	SourceURI      string         `json:"source_uri,omitempty"`
	SegmentID      string         `json:"segment_id,omitempty"`
	Timestamp      string         `json:"timestamp,omitempty"`
	ContextSummary string         `json:"context_summary,omitempty"`
	Mentions       []string       `json:"character_mentions,omitempty"`
	Extra          map[string]any `json:"extra,omitempty"`
}

// NewChunk creates a validated Chunk.
func NewChunk(id, text, personaScope string, chunkType ChunkType) (*Chunk, error) {
	c := &Chunk{
		ID:           id,
		Text:         text,
		PersonaScope: personaScope,
		ChunkType:    chunkType,
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks the invariants every stored chunk must hold.
func (c *Chunk) Validate() error {
	if c == nil {
		return fmt.Errorf("chunk cannot be nil")
	}
	if strings.TrimSpace(c.ID) == "" {
		return ErrEmptyChunkID
	}
	if strings.TrimSpace(c.Text) == "" {
		return fmt.Errorf("chunk %s: %w", c.ID, ErrEmptyChunkText)
	}
	if !IsValidChunkType(c.ChunkType) {
		return fmt.Errorf("chunk %s: %w: %q", c.ID, ErrInvalidChunkType, c.ChunkType)
	}
	return nil
}

// EmbeddingText is the text sent to the embedding provider.
func (c *Chunk) EmbeddingText() string {
	return strings.TrimSpace(c.Text)
}

// IsGlobal reports whether the chunk is shared across personas.
func (c *Chunk) IsGlobal() bool {
	return c.PersonaScope == ""
}

// MentionsPersona reports whether persona appears in the chunk's mention list.
func (c *Chunk) MentionsPersona(persona string) bool {
	for _, m := range c.Mentions {
		if m == persona {
			return true
		}
	}
	return false
}

// IsValidChunkType checks if a ChunkType is one of the known types
func IsValidChunkType(t ChunkType) bool {
	switch t {
	case ChunkTypeQuote, ChunkTypeAction, ChunkTypeSummaryLine,
		ChunkTypePersonaSeed, ChunkTypeDialogueComposite:
		return true
	}
	return false
}

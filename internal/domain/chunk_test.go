package domain

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChunk(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		c, err := NewChunk("c1", "Hello there", "konex", ChunkTypeQuote)
		require.NoError(t, err)
		assert.Equal(t, "c1", c.ID)
		assert.Equal(t, "konex", c.PersonaScope)
		assert.False(t, c.IsGlobal())
	})

	tests := []struct {
		name   string
		id     string
		text   string
		ct     ChunkType
		target error
	}{
		{"empty id", "", "text", ChunkTypeQuote, ErrEmptyChunkID},
		{"whitespace text", "c1", "  \t ", ChunkTypeQuote, ErrEmptyChunkText},
		{"unknown type", "c1", "text", "monologue", ErrInvalidChunkType},
		{"empty type", "c1", "text", "", ErrInvalidChunkType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewChunk(tt.id, tt.text, "", tt.ct)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.target))
		})
	}
}

func TestChunkEmbeddingText(t *testing.T) {
	c := &Chunk{Text: "  padded line \n"}
	assert.Equal(t, "padded line", c.EmbeddingText())
}

func TestChunkMentionsPersona(t *testing.T) {
	c := &Chunk{Mentions: []string{"konex", "ada"}}
	assert.True(t, c.MentionsPersona("ada"))
	assert.False(t, c.MentionsPersona("bob"))
	assert.False(t, (&Chunk{}).MentionsPersona("ada"))
}

func TestChunkJSONKeys(t *testing.T) {
	c := Chunk{
		ID:           "c1",
		Text:         "hi",
		Speaker:      "Konex",
		PersonaScope: "konex",
		ChunkType:    ChunkTypeQuote,
		Mentions:     []string{"ada"},
	}

	data, err := json.Marshal(c)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "Konex", raw["character"])
	assert.Equal(t, "konex", raw["character_slug"])
	assert.Equal(t, "quote", raw["chunk_type"])
	assert.Equal(t, []any{"ada"}, raw["character_mentions"])
	assert.NotContains(t, raw, "source_uri")
}

func TestIsValidChunkType(t *testing.T) {
	for _, ct := range []ChunkType{
		ChunkTypeQuote, ChunkTypeAction, ChunkTypeSummaryLine,
		ChunkTypePersonaSeed, ChunkTypeDialogueComposite,
	} {
		assert.True(t, IsValidChunkType(ct), string(ct))
	}
	assert.False(t, IsValidChunkType("narration"))
}

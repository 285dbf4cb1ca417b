package service

import (
	"strings"
	"unicode"

	"github.com/deldesir/gateway/internal/domain"
)

// ChunkConfig controls how knowledge item content is split before
// embedding. Sizes are in runes.
type ChunkConfig struct {
	MaxChars  int
	MinChars  int
	Overlap   int
	MaxChunks int
}

func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		MaxChars:  1200,
		MinChars:  400,
		Overlap:   200,
		MaxChunks: 40,
	}
}

// knowledgeSourcePrefix marks chunks that came from a knowledge item without
// a source URI.
const knowledgeSourcePrefix = "knowledge-item:"

// knowledgeChunks splits an item into global summary-line chunks whose ids
// are stable across reindexes.
func knowledgeChunks(item *domain.KnowledgeItem, cfg ChunkConfig) []domain.Chunk {
	texts := chunkText(item.Content, cfg)

	source := item.SourceURI
	if source == "" {
		source = knowledgeSourcePrefix + item.ID
	}

	chunks := make([]domain.Chunk, 0, len(texts))
	for i, text := range texts {
		chunks = append(chunks, domain.Chunk{
			ID:             item.ChunkID(i),
			Text:           text,
			ChunkType:      domain.ChunkTypeSummaryLine,
			SourceURI:      source,
			ContextSummary: item.Title,
			Extra: map[string]any{
				"knowledge_id": item.ID,
				"title":        item.Title,
			},
		})
	}
	return chunks
}

// chunkText cuts text into windows of at most MaxChars, preferring a
// whitespace boundary past MinChars, with Overlap runes shared between
// neighbours.
func chunkText(text string, cfg ChunkConfig) []string {
	clean := strings.TrimSpace(text)
	if clean == "" {
		return nil
	}
	if cfg.MaxChars <= 0 {
		cfg = DefaultChunkConfig()
	}
	runes := []rune(clean)
	if len(runes) <= cfg.MaxChars {
		return []string{clean}
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		if cfg.MaxChunks > 0 && len(chunks) >= cfg.MaxChunks {
			break
		}

		end := min(start+cfg.MaxChars, len(runes))
		if end < len(runes) {
			end = cutAtSpace(runes, start, end, cfg.MinChars)
		}
		if end <= start {
			break
		}

		if chunk := strings.TrimSpace(string(runes[start:end])); chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end >= len(runes) {
			break
		}

		next := end
		if cfg.Overlap > 0 && end-start > cfg.Overlap {
			next = end - cfg.Overlap
		}
		if next <= start {
			next = end
		}
		start = next
	}

	return chunks
}

// cutAtSpace moves end back to just after the last whitespace rune that
// leaves at least minChars in the window. end is returned unchanged when
// there is none.
func cutAtSpace(runes []rune, start, end, minChars int) int {
	floor := start + minChars
	if floor > end {
		floor = start
	}
	for i := end; i > floor; i-- {
		if unicode.IsSpace(runes[i-1]) {
			return i
		}
	}
	return end
}

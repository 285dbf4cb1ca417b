// Package ingest loads JSONL memory corpora into the vector store.
package ingest

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/deldesir/gateway/internal/domain"
	"github.com/rs/zerolog/log"
)

const maxLineSize = 4 << 20

// record is one JSONL line. Older corpora use content_type, source_url and
// episode_title; they map onto the chunk fields.
type record struct {
	ID             string   `json:"id"`
	Text           string   `json:"text"`
	Character      string   `json:"character"`
	CharacterSlug  string   `json:"character_slug"`
	ChunkType      string   `json:"chunk_type"`
	ContentType    string   `json:"content_type"`
	SourceURI      string   `json:"source_uri"`
	SourceURL      string   `json:"source_url"`
	SegmentID      string   `json:"segment_id"`
	Timestamp      string   `json:"timestamp"`
	ContextSummary string   `json:"context_summary"`
	EpisodeTitle   string   `json:"episode_title"`
	Mentions       []string `json:"character_mentions"`
}

// known lists the keys copied into chunk fields; anything else lands in Extra.
var known = map[string]bool{
	"id": true, "text": true, "character": true, "character_slug": true,
	"chunk_type": true, "content_type": true, "source_uri": true, "source_url": true,
	"segment_id": true, "timestamp": true, "context_summary": true, "episode_title": true,
	"character_mentions": true,
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// ParseLine converts one JSONL line into a validated chunk. A missing chunk
// type defaults to quote.
func ParseLine(line []byte) (*domain.Chunk, error) {
	var rec record
	if err := sonic.Unmarshal(line, &rec); err != nil {
		return nil, fmt.Errorf("invalid json: %w", err)
	}
	if strings.TrimSpace(rec.ID) == "" || strings.TrimSpace(rec.Text) == "" {
		return nil, fmt.Errorf("%w: id and text", domain.ErrMissingRequiredField)
	}

	chunkType := domain.ChunkType(firstNonEmpty(rec.ChunkType, rec.ContentType, string(domain.ChunkTypeQuote)))

	c := &domain.Chunk{
		ID:             rec.ID,
		Text:           rec.Text,
		Speaker:        rec.Character,
		PersonaScope:   rec.CharacterSlug,
		ChunkType:      chunkType,
		SourceURI:      firstNonEmpty(rec.SourceURI, rec.SourceURL),
		SegmentID:      rec.SegmentID,
		Timestamp:      rec.Timestamp,
		ContextSummary: firstNonEmpty(rec.ContextSummary, rec.EpisodeTitle),
		Mentions:       rec.Mentions,
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	var raw map[string]any
	if err := sonic.Unmarshal(line, &raw); err == nil {
		for k, v := range raw {
			if known[k] || v == nil {
				continue
			}
			if c.Extra == nil {
				c.Extra = make(map[string]any)
			}
			c.Extra[k] = v
		}
	}
	return c, nil
}

// Reader streams chunks from JSONL. Blank lines are ignored. Unparseable
// lines and repeats of an id already returned are logged, counted and
// skipped.
type Reader struct {
	scanner *bufio.Scanner
	name    string
	line    int
	read    int
	skipped int
	seen    map[string]struct{}
}

func NewReader(r io.Reader, name string) *Reader {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &Reader{scanner: s, name: name, seen: make(map[string]struct{})}
}

// Next returns io.EOF after the last chunk.
func (r *Reader) Next() (*domain.Chunk, error) {
	for r.scanner.Scan() {
		r.line++
		line := bytes.TrimSpace(r.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		r.read++

		c, err := ParseLine(line)
		if err != nil {
			r.skipped++
			log.Warn().Err(err).Str("source", r.name).Int("line", r.line).Msg("skipping corpus line")
			continue
		}
		if _, dup := r.seen[c.ID]; dup {
			r.skipped++
			log.Warn().Str("source", r.name).Int("line", r.line).Str("id", c.ID).Msg("skipping repeated corpus id")
			continue
		}
		r.seen[c.ID] = struct{}{}
		return c, nil
	}
	if err := r.scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", r.name, err)
	}
	return nil, io.EOF
}

// Read is the number of non-blank lines seen so far.
func (r *Reader) Read() int {
	return r.read
}

func (r *Reader) Skipped() int {
	return r.skipped
}

// LoadFile reads every valid chunk from a JSONL file.
func LoadFile(path string) ([]domain.Chunk, Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Stats{}, err
	}
	defer f.Close()

	r := NewReader(f, path)
	var chunks []domain.Chunk
	for {
		c, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, Stats{}, err
		}
		chunks = append(chunks, *c)
	}
	return chunks, Stats{Read: r.Read(), Skipped: r.Skipped()}, nil
}

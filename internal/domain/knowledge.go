package domain

import (
	"fmt"
	"strings"
	"time"
)

// KnowledgeItem is an admin-managed document that is chunked into global
// memory. PersonaScope is kept on the record for filtering the admin list but
// indexed chunks stay global so every persona can retrieve them.
type KnowledgeItem struct {
	ID           string
	Title        string
	Content      string
	SourceURI    string
	PersonaScope string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewKnowledgeItem creates a new KnowledgeItem instance
func NewKnowledgeItem(id, title, content, sourceURI, personaScope string, createdAt time.Time) *KnowledgeItem {
	return &KnowledgeItem{
		ID:           id,
		Title:        title,
		Content:      content,
		SourceURI:    sourceURI,
		PersonaScope: personaScope,
		CreatedAt:    createdAt,
		UpdatedAt:    createdAt,
	}
}

// ChunkID is the id of the n-th indexed chunk of the item.
func (k *KnowledgeItem) ChunkID(n int) string {
	return fmt.Sprintf("kn:%s:%d", k.ID, n)
}

// ValidateKnowledgeItem validates a KnowledgeItem instance
func ValidateKnowledgeItem(k *KnowledgeItem) error {
	if k == nil {
		return fmt.Errorf("knowledge item cannot be nil")
	}

	if k.ID == "" {
		return fmt.Errorf("%w: ID is required", ErrInvalidKnowledgeItem)
	}

	if strings.TrimSpace(k.Title) == "" {
		return fmt.Errorf("%w: Title is required", ErrInvalidKnowledgeItem)
	}

	if strings.TrimSpace(k.Content) == "" {
		return fmt.Errorf("%w: Content is required", ErrInvalidKnowledgeItem)
	}

	if k.PersonaScope != "" && !IsValidPersonaID(k.PersonaScope) {
		return fmt.Errorf("%w: %q", ErrInvalidPersonaID, k.PersonaScope)
	}

	return nil
}

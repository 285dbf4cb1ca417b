package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/deldesir/gateway/internal/domain"
	"github.com/deldesir/gateway/internal/telemetry"
	"github.com/rs/zerolog/log"
)

// PersonaRepositoryInterface defines the repository interface for persona persistence
type PersonaRepositoryInterface interface {
	Create(ctx context.Context, p *domain.PersonaProfile) error
	GetByID(ctx context.Context, id string) (*domain.PersonaProfile, error)
	List(ctx context.Context) ([]*domain.PersonaProfile, error)
	Update(ctx context.Context, p *domain.PersonaProfile) error
	Delete(ctx context.Context, id string) error
}

// StaticPersonas is the read-only registry of built-in personas.
type StaticPersonas interface {
	Has(id string) bool
	Lookup(ctx context.Context, id string) (*domain.PersonaProfile, error)
	List() []*domain.PersonaProfile
}

// PersonaCache drops stale resolved personas.
type PersonaCache interface {
	Invalidate(id string)
}

// KnowledgeFiles stores per-persona knowledge text outside the database.
type KnowledgeFiles interface {
	Save(ctx context.Context, personaID, text string) error
	Delete(ctx context.Context, personaID string) error
}

// PersonaService manages runtime personas. Built-in personas are listed but
// never written.
type PersonaService struct {
	repo      PersonaRepositoryInterface
	static    StaticPersonas
	cache     PersonaCache
	knowledge KnowledgeFiles
}

type PersonaOption func(*PersonaService)

func WithPersonaCache(c PersonaCache) PersonaOption {
	return func(s *PersonaService) {
		s.cache = c
	}
}

func WithKnowledgeFiles(k KnowledgeFiles) PersonaOption {
	return func(s *PersonaService) {
		s.knowledge = k
	}
}

// NewPersonaService creates a PersonaService. repo may be nil, in which case
// only built-in personas are available.
func NewPersonaService(repo PersonaRepositoryInterface, static StaticPersonas, opts ...PersonaOption) *PersonaService {
	s := &PersonaService{repo: repo, static: static}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type CreatePersonaInput struct {
	ID           string
	Name         string
	Personality  string
	Style        string
	SystemPrompt string
	AllowedTools []string
	Knowledge    string
}

// UpdatePersonaInput changes only the fields that are set.
type UpdatePersonaInput struct {
	Name         *string
	Personality  *string
	Style        *string
	SystemPrompt *string
	AllowedTools []string
	Knowledge    *string
}

func (s *PersonaService) writable(id string) error {
	if s.static != nil && s.static.Has(id) {
		return domain.ErrBuiltinPersonaReadOnly
	}
	if s.repo == nil {
		return fmt.Errorf("%w: persona management needs DATABASE_URL", domain.ErrProviderNotEnabled)
	}
	return nil
}

func validatePersona(p *domain.PersonaProfile) error {
	if err := domain.ValidatePersona(p); err != nil {
		if errors.Is(err, domain.ErrInvalidPersonaID) {
			return err
		}
		return fmt.Errorf("%w: %v", domain.ErrMissingRequiredField, err)
	}
	return nil
}

// List returns built-in and stored personas sorted by id. A stored persona
// shadowed by a built-in one is omitted.
func (s *PersonaService) List(ctx context.Context) ([]*domain.PersonaProfile, error) {
	var out []*domain.PersonaProfile
	if s.static != nil {
		out = append(out, s.static.List()...)
	}

	if s.repo != nil {
		stored, err := s.repo.List(ctx)
		if err != nil {
			return nil, err
		}
		for _, p := range stored {
			if s.static != nil && s.static.Has(p.ID) {
				continue
			}
			out = append(out, p)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *PersonaService) Get(ctx context.Context, id string) (*domain.PersonaProfile, error) {
	if s.static != nil && s.static.Has(id) {
		return s.static.Lookup(ctx, id)
	}
	if s.repo == nil || !domain.IsValidPersonaID(id) {
		return nil, domain.ErrPersonaNotFound
	}
	return s.repo.GetByID(ctx, id)
}

func (s *PersonaService) Create(ctx context.Context, input CreatePersonaInput) (*domain.PersonaProfile, error) {
	ctx, span := telemetry.StartSpan(ctx, "PersonaService.Create", telemetry.SpanAttributes{
		Persona:   input.ID,
		Operation: "create",
	})
	defer span.End()

	id := strings.TrimSpace(input.ID)
	if s.static != nil && s.static.Has(id) {
		return nil, domain.ErrPersonaAlreadyExists
	}
	if err := s.writable(id); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	p := &domain.PersonaProfile{
		ID:           id,
		Name:         strings.TrimSpace(input.Name),
		Personality:  strings.TrimSpace(input.Personality),
		Style:        strings.TrimSpace(input.Style),
		SystemPrompt: input.SystemPrompt,
		AllowedTools: input.AllowedTools,
		Knowledge:    input.Knowledge,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if p.AllowedTools == nil {
		p.AllowedTools = []string{}
	}
	if err := validatePersona(p); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	if err := s.saveKnowledge(ctx, p.ID, p.Knowledge); err != nil {
		return p, err
	}
	s.invalidate(p.ID)

	log.Info().Str("persona", p.ID).Msg("persona created")
	return p, nil
}

func (s *PersonaService) Update(ctx context.Context, id string, input UpdatePersonaInput) (*domain.PersonaProfile, error) {
	ctx, span := telemetry.StartSpan(ctx, "PersonaService.Update", telemetry.SpanAttributes{
		Persona:   id,
		Operation: "update",
	})
	defer span.End()

	if err := s.writable(id); err != nil {
		return nil, err
	}

	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		p.Name = strings.TrimSpace(*input.Name)
	}
	if input.Personality != nil {
		p.Personality = strings.TrimSpace(*input.Personality)
	}
	if input.Style != nil {
		p.Style = strings.TrimSpace(*input.Style)
	}
	if input.SystemPrompt != nil {
		p.SystemPrompt = *input.SystemPrompt
	}
	if input.AllowedTools != nil {
		p.AllowedTools = input.AllowedTools
	}
	if input.Knowledge != nil {
		p.Knowledge = *input.Knowledge
	}
	if err := validatePersona(p); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	if input.Knowledge != nil {
		if err := s.saveKnowledge(ctx, p.ID, p.Knowledge); err != nil {
			return p, err
		}
	}
	s.invalidate(p.ID)
	return p, nil
}

func (s *PersonaService) Delete(ctx context.Context, id string) error {
	ctx, span := telemetry.StartSpan(ctx, "PersonaService.Delete", telemetry.SpanAttributes{
		Persona:   id,
		Operation: "delete",
	})
	defer span.End()

	if err := s.writable(id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if s.knowledge != nil {
		if err := s.knowledge.Delete(ctx, id); err != nil {
			log.Warn().Err(err).Str("persona", id).Msg("failed to delete persona knowledge file")
		}
	}
	s.invalidate(id)

	log.Info().Str("persona", id).Msg("persona deleted")
	return nil
}

// saveKnowledge mirrors the knowledge text into the knowledge file store.
// Clearing the text removes the file.
func (s *PersonaService) saveKnowledge(ctx context.Context, id, text string) error {
	if s.knowledge == nil {
		return nil
	}
	var err error
	if strings.TrimSpace(text) == "" {
		err = s.knowledge.Delete(ctx, id)
	} else {
		err = s.knowledge.Save(ctx, id, text)
	}
	if err != nil {
		return fmt.Errorf("failed to store persona knowledge: %w", err)
	}
	return nil
}

func (s *PersonaService) invalidate(id string) {
	if s.cache != nil {
		s.cache.Invalidate(id)
	}
}

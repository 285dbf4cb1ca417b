// Package persona resolves which persona profile drives a conversation.
// Sources are consulted in order and the built-in support persona is the
// fallback, so resolution never fails a turn.
package persona

import (
	"context"
	"errors"

	"github.com/deldesir/gateway/internal/domain"
	"github.com/rs/zerolog/log"
)

// Source looks up a persona by id. A missing persona is reported as
// domain.ErrPersonaNotFound; any other error means the source is unhealthy.
type Source interface {
	Lookup(ctx context.Context, id string) (*domain.PersonaProfile, error)
}

// KnowledgeLoader returns free-form knowledge text for a persona, or "" when
// there is none.
type KnowledgeLoader interface {
	Load(ctx context.Context, personaID string) (string, error)
}

// Resolver is a chain of responsibility over its sources.
type Resolver struct {
	sources   []Source
	knowledge KnowledgeLoader
}

type ResolverOption func(*Resolver)

// WithKnowledge attaches persona knowledge text to resolved profiles.
func WithKnowledge(loader KnowledgeLoader) ResolverOption {
	return func(r *Resolver) {
		r.knowledge = loader
	}
}

// NewResolver builds a resolver. Sources are tried in the given order; nil
// sources are ignored.
func NewResolver(sources []Source, opts ...ResolverOption) *Resolver {
	r := &Resolver{}
	for _, s := range sources {
		if s != nil {
			r.sources = append(r.sources, s)
		}
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns a copy of the first profile found for id, or the default
// support profile.
func (r *Resolver) Resolve(ctx context.Context, id string) *domain.PersonaProfile {
	profile := r.lookup(ctx, id)

	if r.knowledge != nil && profile.Knowledge == "" {
		text, err := r.knowledge.Load(ctx, profile.ID)
		if err != nil {
			log.Warn().Err(err).Str("persona", profile.ID).Msg("failed to load persona knowledge")
		} else if text != "" {
			profile.Knowledge = text
		}
	}

	return profile
}

func (r *Resolver) lookup(ctx context.Context, id string) *domain.PersonaProfile {
	if id == "" {
		return domain.DefaultPersona()
	}

	for i, src := range r.sources {
		p, err := src.Lookup(ctx, id)
		if err == nil && p != nil {
			return p.Clone()
		}
		if err != nil && !errors.Is(err, domain.ErrPersonaNotFound) {
			log.Warn().Err(err).Str("persona", id).Int("source", i).Msg("persona source failed, skipping")
		}
	}

	log.Debug().Str("persona", id).Msg("persona not found, using default")
	return domain.DefaultPersona()
}

package persona

import (
	"context"
	"time"

	"github.com/deldesir/gateway/internal/domain"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// PersonaGetter is the read side of the persona repository.
type PersonaGetter interface {
	GetByID(ctx context.Context, id string) (*domain.PersonaProfile, error)
}

// StoreSource resolves personas managed at runtime through the admin API.
type StoreSource struct {
	repo PersonaGetter
}

func NewStoreSource(repo PersonaGetter) *StoreSource {
	return &StoreSource{repo: repo}
}

func (s *StoreSource) Lookup(ctx context.Context, id string) (*domain.PersonaProfile, error) {
	if !domain.IsValidPersonaID(id) {
		return nil, domain.ErrPersonaNotFound
	}
	return s.repo.GetByID(ctx, id)
}

// CachedSource memoizes successful lookups of another source. Misses are not
// cached so a newly created persona is visible on the next turn.
type CachedSource struct {
	next  Source
	cache *expirable.LRU[string, *domain.PersonaProfile]
}

// NewCachedSource wraps next. A non-positive size or ttl disables caching.
func NewCachedSource(next Source, size int, ttl time.Duration) *CachedSource {
	c := &CachedSource{next: next}
	if size > 0 && ttl > 0 {
		c.cache = expirable.NewLRU[string, *domain.PersonaProfile](size, nil, ttl)
	}
	return c
}

func (c *CachedSource) Lookup(ctx context.Context, id string) (*domain.PersonaProfile, error) {
	if c.cache == nil {
		return c.next.Lookup(ctx, id)
	}
	if p, ok := c.cache.Get(id); ok {
		return p.Clone(), nil
	}
	p, err := c.next.Lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	c.cache.Add(id, p.Clone())
	return p, nil
}

// Invalidate drops a cached persona after it was updated or deleted.
func (c *CachedSource) Invalidate(id string) {
	if c.cache != nil {
		c.cache.Remove(id)
	}
}

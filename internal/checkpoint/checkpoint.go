// Package checkpoint persists conversation state between turns, keyed by
// thread id.
package checkpoint

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/deldesir/gateway/internal/domain"
)

// Backend names accepted by configuration.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

// Store saves the state returned by a completed turn. Get returns
// domain.ErrCheckpointNotFound for unknown threads.
type Store interface {
	Get(ctx context.Context, threadID string) (*domain.ConversationState, error)
	Put(ctx context.Context, threadID string, state *domain.ConversationState) error
	Delete(ctx context.Context, threadID string) error
	Close() error
}

func encode(state *domain.ConversationState) ([]byte, error) {
	if state == nil {
		return nil, fmt.Errorf("conversation state cannot be nil")
	}
	data, err := sonic.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("failed to encode checkpoint: %w", err)
	}
	return data, nil
}

func decode(data []byte) (*domain.ConversationState, error) {
	var state domain.ConversationState
	if err := sonic.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	if state.Dossier == nil {
		state.Dossier = map[string]string{}
	}
	return &state, nil
}

// MemoryStore keeps encoded states in process memory. States are stored
// encoded so callers never share pointers with the store.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string][]byte)}
}

func (s *MemoryStore) Get(_ context.Context, threadID string) (*domain.ConversationState, error) {
	s.mu.RLock()
	data, ok := s.states[threadID]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrCheckpointNotFound
	}
	return decode(data)
}

func (s *MemoryStore) Put(_ context.Context, threadID string, state *domain.ConversationState) error {
	data, err := encode(state)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.states[threadID] = data
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, threadID string) error {
	s.mu.Lock()
	delete(s.states, threadID)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

// Config selects and configures a backend.
type Config struct {
	Backend  string
	Path     string
	RedisURL string
	TTL      time.Duration
}

// Open builds the configured backend. An empty backend means memory.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Backend {
	case "", BackendMemory:
		return NewMemoryStore(), nil
	case BackendRedis:
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("%w: redis checkpoint backend needs a redis url", domain.ErrProviderNotEnabled)
		}
		return NewRedisStore(ctx, cfg.RedisURL, cfg.TTL)
	case BackendSQLite:
		if cfg.Path == "" {
			return nil, fmt.Errorf("%w: sqlite checkpoint backend needs a path", domain.ErrMissingRequiredField)
		}
		return NewSQLiteStore(cfg.Path)
	}
	return nil, fmt.Errorf("unknown checkpoint backend %q", cfg.Backend)
}

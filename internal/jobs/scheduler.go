package jobs

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Persister flushes unsaved index writes.
type Persister interface {
	Persist(ctx context.Context) error
}

// DirtyPersister also reports whether anything is unsaved.
type DirtyPersister interface {
	Persister
	Dirty() bool
}

// PersistScheduler periodically persists an index that has unsaved writes.
// Appends made with persist=false become durable on the next tick.
type PersistScheduler struct {
	cron  *cron.Cron
	store DirtyPersister
}

// NewPersistScheduler parses spec in robfig/cron syntax, including the
// "@every 1m" form.
func NewPersistScheduler(spec string, store DirtyPersister) (*PersistScheduler, error) {
	s := &PersistScheduler{
		cron:  cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		store: store,
	}
	if _, err := s.cron.AddFunc(spec, s.tick); err != nil {
		return nil, fmt.Errorf("invalid persist schedule %q: %w", spec, err)
	}
	return s, nil
}

func (s *PersistScheduler) tick() {
	if !s.store.Dirty() {
		return
	}
	if err := s.store.Persist(context.Background()); err != nil {
		log.Error().Err(err).Msg("scheduled persist failed")
		return
	}
	log.Debug().Msg("vector store persisted")
}

func (s *PersistScheduler) Start() {
	s.cron.Start()
}

// Stop halts the schedule and runs a final persist so nothing unsaved is
// lost on shutdown.
func (s *PersistScheduler) Stop(ctx context.Context) error {
	<-s.cron.Stop().Done()
	if !s.store.Dirty() {
		return nil
	}
	return s.store.Persist(ctx)
}

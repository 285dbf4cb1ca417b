package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// JobProcessor defines the interface for processing jobs
type JobProcessor interface {
	ProcessJobs(ctx context.Context) error
}

// Worker drains a JobProcessor once at start, then on every tick and on
// every Wake.
type Worker struct {
	name         string
	processor    JobProcessor
	pollInterval time.Duration
	wake         chan struct{}
	stop         chan struct{}
	done         chan struct{}
	stopOnce     sync.Once
}

func NewWorker(name string, processor JobProcessor, pollInterval time.Duration) *Worker {
	return &Worker{
		name:         name,
		processor:    processor,
		pollInterval: pollInterval,
		wake:         make(chan struct{}, 1),
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
}

// Wake asks for a pass without waiting for the next tick. Wakes that arrive
// while a pass is pending collapse into one.
func (w *Worker) Wake() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Start blocks until ctx is cancelled or Stop is called.
func (w *Worker) Start(ctx context.Context) {
	defer close(w.done)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	logger := log.With().Str("worker", w.name).Logger()
	logger.Info().Dur("poll_interval", w.pollInterval).Msg("worker started")

	w.process(ctx)
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("worker stopped: context cancelled")
			return
		case <-w.stop:
			logger.Info().Msg("worker stopped: stop signal received")
			return
		case <-w.wake:
			w.process(ctx)
		case <-ticker.C:
			w.process(ctx)
		}
	}
}

func (w *Worker) process(ctx context.Context) {
	if err := w.processor.ProcessJobs(ctx); err != nil && ctx.Err() == nil {
		log.Error().Err(err).Str("worker", w.name).Msg("error processing jobs")
	}
}

// Stop signals the loop and waits for it to exit. It must be called after
// Start; later calls are no-ops.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
	<-w.done
	log.Info().Str("worker", w.name).Msg("worker shutdown complete")
}

package jobs

import (
	"context"
	"fmt"

	"github.com/deldesir/gateway/internal/domain"
	"github.com/deldesir/gateway/internal/service"
	"github.com/rs/zerolog/log"
)

const (
	// MaxRetries is the maximum number of attempts for a reindex job
	MaxRetries = 3

	claimLimit = 100
)

// ReindexJobRepository is the part of the job store the worker needs.
type ReindexJobRepository interface {
	ClaimPending(ctx context.Context, limit int) ([]*domain.ReindexJob, error)
	UpdateStatus(ctx context.Context, id string, status domain.ReindexJobStatus, errMsg string) error
	IncrementRetries(ctx context.Context, id string) error
}

// Reindexer rebuilds the whole vector index.
type Reindexer interface {
	ReindexAll(ctx context.Context) (service.ReindexStats, error)
}

// ReindexWorker drains pending reindex jobs. Every job claimed in one poll
// is satisfied by a single rebuild, so a burst of deletions costs one
// reindex.
type ReindexWorker struct {
	repo      ReindexJobRepository
	reindexer Reindexer
}

func NewReindexWorker(repo ReindexJobRepository, reindexer Reindexer) *ReindexWorker {
	return &ReindexWorker{
		repo:      repo,
		reindexer: reindexer,
	}
}

// ProcessJobs implements the JobProcessor interface
func (w *ReindexWorker) ProcessJobs(ctx context.Context) error {
	jobs, err := w.repo.ClaimPending(ctx, claimLimit)
	if err != nil {
		return fmt.Errorf("failed to claim pending jobs: %w", err)
	}
	if len(jobs) == 0 {
		return nil
	}

	log.Info().Int("jobs", len(jobs)).Msg("processing reindex jobs")

	stats, rebuildErr := w.reindexer.ReindexAll(ctx)
	for _, job := range jobs {
		var err error
		if rebuildErr != nil {
			err = w.handleJobFailure(ctx, job, rebuildErr)
		} else {
			err = w.repo.UpdateStatus(ctx, job.ID, domain.ReindexJobStatusCompleted, "")
		}
		if err != nil {
			log.Error().Err(err).Str("job_id", job.ID).Msg("failed to record reindex job outcome")
		}
	}

	if rebuildErr == nil {
		log.Info().Int("jobs", len(jobs)).Int("chunks", stats.Chunks).Msg("reindex jobs completed")
	}
	return nil
}

// handleJobFailure handles a failed job with retry logic
func (w *ReindexWorker) handleJobFailure(ctx context.Context, job *domain.ReindexJob, jobErr error) error {
	log.Warn().Err(jobErr).Str("job_id", job.ID).Msg("reindex job failed")

	if err := w.repo.IncrementRetries(ctx, job.ID); err != nil {
		return fmt.Errorf("failed to increment retries: %w", err)
	}

	if job.Retries+1 >= MaxRetries {
		log.Error().Str("job_id", job.ID).Int("max_retries", MaxRetries).Msg("reindex job exceeded max retries")
		errMsg := fmt.Sprintf("max retries exceeded: %v", jobErr)
		if err := w.repo.UpdateStatus(ctx, job.ID, domain.ReindexJobStatusFailed, errMsg); err != nil {
			return fmt.Errorf("failed to update job status to failed: %w", err)
		}
		return nil
	}

	errMsg := fmt.Sprintf("retry %d: %v", job.Retries+1, jobErr)
	if err := w.repo.UpdateStatus(ctx, job.ID, domain.ReindexJobStatusPending, errMsg); err != nil {
		return fmt.Errorf("failed to reset job status to pending: %w", err)
	}
	return nil
}

package domain

import (
	"fmt"
	"time"
)

// ReindexJobStatus represents the status of a reindex job
type ReindexJobStatus string

const (
	ReindexJobStatusPending    ReindexJobStatus = "pending"
	ReindexJobStatusProcessing ReindexJobStatus = "processing"
	ReindexJobStatusCompleted  ReindexJobStatus = "completed"
	ReindexJobStatusFailed     ReindexJobStatus = "failed"
)

// ReindexJob requests a full rebuild of the vector store. Reason records what
// triggered it (a deleted knowledge item, an admin request).
type ReindexJob struct {
	ID          string
	Reason      string
	Status      ReindexJobStatus
	Retries     int32
	Error       string
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

// NewReindexJob creates a pending ReindexJob
func NewReindexJob(id, reason string, createdAt time.Time) *ReindexJob {
	return &ReindexJob{
		ID:        id,
		Reason:    reason,
		Status:    ReindexJobStatusPending,
		CreatedAt: createdAt,
	}
}

// ValidateReindexJob validates a ReindexJob instance
func ValidateReindexJob(j *ReindexJob) error {
	if j == nil {
		return fmt.Errorf("reindex job cannot be nil")
	}

	if j.ID == "" {
		return fmt.Errorf("reindex job ID is required")
	}

	if !IsValidReindexJobStatus(j.Status) {
		return fmt.Errorf("%w: %s", ErrInvalidReindexStatus, j.Status)
	}

	if j.Retries < 0 {
		return fmt.Errorf("reindex job Retries cannot be negative")
	}

	return nil
}

// IsValidReindexJobStatus checks if a ReindexJobStatus is valid
func IsValidReindexJobStatus(s ReindexJobStatus) bool {
	switch s {
	case ReindexJobStatusPending, ReindexJobStatusProcessing,
		ReindexJobStatusCompleted, ReindexJobStatusFailed:
		return true
	}
	return false
}

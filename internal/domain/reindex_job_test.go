package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReindexJob(t *testing.T) {
	now := time.Now()
	job := NewReindexJob("job1", "knowledge item deleted", now)

	assert.Equal(t, "job1", job.ID)
	assert.Equal(t, "knowledge item deleted", job.Reason)
	assert.Equal(t, ReindexJobStatusPending, job.Status)
	assert.Equal(t, int32(0), job.Retries)
	assert.Equal(t, now, job.CreatedAt)
	assert.Nil(t, job.ProcessedAt)
}

func TestReindexJobStatusConstants(t *testing.T) {
	tests := []struct {
		name     string
		status   ReindexJobStatus
		expected string
	}{
		{"Pending", ReindexJobStatusPending, "pending"},
		{"Processing", ReindexJobStatusProcessing, "processing"},
		{"Completed", ReindexJobStatusCompleted, "completed"},
		{"Failed", ReindexJobStatusFailed, "failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, string(tt.status))
			assert.True(t, IsValidReindexJobStatus(tt.status))
		})
	}
}

func TestValidateReindexJob(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		require.NoError(t, ValidateReindexJob(NewReindexJob("job1", "", time.Now())))
	})

	t.Run("nil", func(t *testing.T) {
		require.Error(t, ValidateReindexJob(nil))
	})

	t.Run("missing id", func(t *testing.T) {
		require.Error(t, ValidateReindexJob(NewReindexJob("", "", time.Now())))
	})

	t.Run("invalid status", func(t *testing.T) {
		job := NewReindexJob("job1", "", time.Now())
		job.Status = "queued"
		err := ValidateReindexJob(job)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidReindexStatus))
	})

	t.Run("negative retries", func(t *testing.T) {
		job := NewReindexJob("job1", "", time.Now())
		job.Retries = -1
		require.Error(t, ValidateReindexJob(job))
	})
}

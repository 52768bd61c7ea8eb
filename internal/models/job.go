package models

import (
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// ProcessingJob tracks a submission to the external stream processor.
// The callback token authenticates the processor's result callback.
type ProcessingJob struct {
	ID            uuid.UUID  `json:"id" db:"id"`
	SourceID      uuid.UUID  `json:"source_id" db:"source_id"`
	ExternalJobID string     `json:"external_job_id,omitempty" db:"external_job_id"`
	CallbackToken string     `json:"-" db:"callback_token"`
	Status        JobStatus  `json:"status" db:"status"`
	ErrorMessage  string     `json:"error_message,omitempty" db:"error_message"`
	SubmittedAt   time.Time  `json:"submitted_at" db:"submitted_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}

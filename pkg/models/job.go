package models

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus is the state machine driven by the Schema Discovery Orchestrator.
type JobStatus string

const (
	JobAccepted   JobStatus = "accepted"
	JobInProgress JobStatus = "in_progress"
	JobRetrying   JobStatus = "retrying"
	JobVectorizing JobStatus = "vectorizing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
	JobTimeout    JobStatus = "timeout"
)

// Job is the in-memory record of one discovery run, keyed by an opaque JobID.
// It is never persisted to the document store; it lives only in the
// orchestrator's process-wide map and is reaped by the janitor once its
// retention window elapses.
type Job struct {
	JobID               string     `json:"job_id"`
	ConnectionID         uuid.UUID  `json:"connection_id"`
	Status               JobStatus  `json:"status"`
	StartedAt            time.Time  `json:"started_at"`
	EstimatedCompletion  time.Time  `json:"estimated_completion"`
	CompletedAt          *time.Time `json:"completed_at,omitempty"`
	RetryCount           int        `json:"retry_count"`
	InitialMemory        uint64     `json:"initial_memory"`
	FinalMemory          uint64     `json:"final_memory,omitempty"`
	Error                string     `json:"error,omitempty"`
}

// NewJob creates a Job in the accepted state.
func NewJob(connectionID uuid.UUID, estimatedCompletion time.Duration) *Job {
	now := time.Now()
	return &Job{
		JobID:               uuid.NewString(),
		ConnectionID:        connectionID,
		Status:              JobAccepted,
		StartedAt:           now,
		EstimatedCompletion: now.Add(estimatedCompletion),
	}
}

// IsTerminal reports whether the job has reached a state the janitor can
// eventually reap.
func (j *Job) IsTerminal() bool {
	switch j.Status {
	case JobCompleted, JobFailed, JobTimeout:
		return true
	default:
		return false
	}
}

package core

import (
	"context"
	"time"
)

// JobStatus is the lifecycle state of a recorded job.
type JobStatus string

const (
	JobRunning             JobStatus = "running"
	JobCompleted           JobStatus = "completed"
	JobCompletedWithErrors JobStatus = "completed_with_errors"
	JobRejected            JobStatus = "rejected"
	JobFailed              JobStatus = "failed"
)

// JobRecord is the stored summary of one import job.
type JobRecord struct {
	UploadID   string         `json:"uploadId"`
	MerchantID string         `json:"merchantId"`
	Domain     string         `json:"domain"`
	FileName   string         `json:"fileName,omitempty"`
	Status     JobStatus      `json:"status"`
	BatchSize  int            `json:"batchSize"`
	Summary    *ResultSummary `json:"summary,omitempty"`
	Error      string         `json:"error,omitempty"`
	StartedAt  time.Time      `json:"startedAt"`
	FinishedAt *time.Time     `json:"finishedAt,omitempty"`
}

// statusFor derives the final status of a job from its outcome.
func statusFor(summary *ResultSummary, err error) JobStatus {
	switch {
	case err != nil && summary != nil:
		return JobRejected
	case err != nil:
		return JobFailed
	case summary.Success:
		return JobCompleted
	default:
		return JobCompletedWithErrors
	}
}

// JobRecorder persists job summaries for the history endpoints.
type JobRecorder interface {
	// RecordJob inserts or replaces the record for rec.UploadID.
	RecordJob(ctx context.Context, rec JobRecord) error

	// ListJobs returns the most recent jobs for scope, newest first.
	// An empty domain matches every domain.
	ListJobs(ctx context.Context, scope Scope, domain string, limit int) ([]JobRecord, error)

	// GetJob returns ErrJobNotFound when no record matches.
	GetJob(ctx context.Context, scope Scope, uploadID string) (*JobRecord, error)

	// PurgeJobs deletes finished records older than cutoff.
	PurgeJobs(ctx context.Context, cutoff time.Time) (int64, error)
}

// Package jobstore persists analysis jobs: the request, its lifecycle
// status, and the finished property result. The store is the system of
// record for "what did we analyze and what came back" across CLI runs.
package jobstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sells-group/pavescan/internal/geo"
)

// JobStatus is the lifecycle state of an analysis job.
type JobStatus string

const (
	StatusQueued    JobStatus = "queued"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
)

// Job is one analysis request and its outcome. Result holds the serialized
// property analysis result once the job completes.
type Job struct {
	ID        string          `json:"id"`
	Point     geo.Point       `json:"point"`
	Address   string          `json:"address,omitempty"`
	Status    JobStatus       `json:"status"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// JobFilter specifies criteria for listing jobs.
type JobFilter struct {
	Status JobStatus `json:"status,omitempty"`
	Limit  int       `json:"limit,omitempty"`
	Offset int       `json:"offset,omitempty"`
}

// Store defines the persistence interface for analysis jobs.
type Store interface {
	CreateJob(ctx context.Context, point geo.Point, address string) (*Job, error)
	UpdateStatus(ctx context.Context, jobID string, status JobStatus) error
	CompleteJob(ctx context.Context, jobID string, result json.RawMessage) error
	FailJob(ctx context.Context, jobID string, cause string) error
	GetJob(ctx context.Context, jobID string) (*Job, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]Job, error)

	// DeleteExpired removes completed and failed jobs older than the TTL,
	// returning how many were deleted.
	DeleteExpired(ctx context.Context, ttl time.Duration) (int, error)

	Migrate(ctx context.Context) error
	Close() error
}

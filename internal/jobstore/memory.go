package jobstore

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/pavescan/internal/geo"
)

// MemoryStore is an in-process Store for tests and ephemeral runs.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]Job
}

// NewMemory creates an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]Job)}
}

func (s *MemoryStore) Migrate(context.Context) error { return nil }
func (s *MemoryStore) Close() error                  { return nil }

func (s *MemoryStore) CreateJob(_ context.Context, point geo.Point, address string) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	j := Job{
		ID:        uuid.New().String(),
		Point:     point,
		Address:   address,
		Status:    StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.jobs[j.ID] = j
	return &j, nil
}

func (s *MemoryStore) UpdateStatus(_ context.Context, jobID string, status JobStatus) error {
	return s.update(jobID, func(j *Job) {
		j.Status = status
	})
}

func (s *MemoryStore) CompleteJob(_ context.Context, jobID string, result json.RawMessage) error {
	return s.update(jobID, func(j *Job) {
		j.Status = StatusCompleted
		j.Result = append(json.RawMessage(nil), result...)
	})
}

func (s *MemoryStore) FailJob(_ context.Context, jobID string, cause string) error {
	return s.update(jobID, func(j *Job) {
		j.Status = StatusFailed
		j.Error = cause
	})
}

func (s *MemoryStore) GetJob(_ context.Context, jobID string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	j, ok := s.jobs[jobID]
	if !ok {
		return nil, nil
	}
	return &j, nil
}

func (s *MemoryStore) ListJobs(_ context.Context, filter JobFilter) ([]Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var jobs []Job
	for _, j := range s.jobs {
		if filter.Status != "" && j.Status != filter.Status {
			continue
		}
		jobs = append(jobs, j)
	}
	sort.Slice(jobs, func(i, k int) bool {
		if jobs[i].CreatedAt.Equal(jobs[k].CreatedAt) {
			return jobs[i].ID < jobs[k].ID
		}
		return jobs[i].CreatedAt.After(jobs[k].CreatedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(jobs) {
			return nil, nil
		}
		jobs = jobs[filter.Offset:]
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	if len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

func (s *MemoryStore) DeleteExpired(_ context.Context, ttl time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().UTC().Add(-ttl)
	deleted := 0
	for id, j := range s.jobs {
		if (j.Status == StatusCompleted || j.Status == StatusFailed) && j.UpdatedAt.Before(cutoff) {
			delete(s.jobs, id)
			deleted++
		}
	}
	return deleted, nil
}

func (s *MemoryStore) update(jobID string, fn func(*Job)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[jobID]
	if !ok {
		return eris.Errorf("jobstore: job %s not found", jobID)
	}
	fn(&j)
	j.UpdatedAt = time.Now().UTC()
	s.jobs[jobID] = j
	return nil
}

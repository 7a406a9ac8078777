package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dvloznov/demand-dashboard/internal/forecast"
	"github.com/dvloznov/demand-dashboard/internal/jobs"
)

// DefaultStoreCapacity bounds how many jobs a Store remembers.
const DefaultStoreCapacity = 500

// Store is an in-memory JobStore. It keeps the most recently created
// jobs up to its capacity and evicts the oldest beyond that.
type Store struct {
	mu       sync.RWMutex
	jobs     map[string]*jobs.ForecastJob
	order    []string
	capacity int
}

// NewStore creates a new in-memory job store. A non-positive capacity
// selects DefaultStoreCapacity.
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultStoreCapacity
	}
	return &Store{
		jobs:     make(map[string]*jobs.ForecastJob),
		capacity: capacity,
	}
}

// SaveJob implements the JobStore interface.
func (s *Store) SaveJob(ctx context.Context, job *jobs.ForecastJob) error {
	if job.JobID == "" {
		return fmt.Errorf("job ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.JobID]; !exists {
		s.order = append(s.order, job.JobID)
		for len(s.order) > s.capacity {
			delete(s.jobs, s.order[0])
			s.order = s.order[1:]
		}
	}

	// Keep a snapshot without the series or result payloads.
	jobCopy := *job
	jobCopy.Series = nil
	jobCopy.Result = forecast.Result{}
	s.jobs[job.JobID] = &jobCopy

	return nil
}

// GetJob implements the JobStore interface.
func (s *Store) GetJob(ctx context.Context, jobID string) (*jobs.ForecastJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", jobs.ErrJobNotFound, jobID)
	}

	jobCopy := *job
	return &jobCopy, nil
}

// ListJobs implements the JobStore interface.
func (s *Store) ListJobs(ctx context.Context, filter jobs.JobFilter) ([]*jobs.ForecastJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []*jobs.ForecastJob{}
	for _, job := range s.jobs {
		if filter.Region != "" && job.Region != filter.Region {
			continue
		}
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}

		jobCopy := *job
		result = append(result, &jobCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].JobID < result[j].JobID
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return []*jobs.ForecastJob{}, nil
		}
		result = result[filter.Offset:]
	}

	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}

	return result, nil
}

var _ jobs.JobStore = (*Store)(nil)

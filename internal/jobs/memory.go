package jobs

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore is an in-memory Store for tests and single-process deployments.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]*ScanJob
}

// NewMemoryStore creates an empty in-memory job store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]*ScanJob)}
}

func (s *MemoryStore) Create(_ context.Context, job *ScanJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[job.ID]; ok {
		return fmt.Errorf("job %q already exists", job.ID)
	}
	s.jobs[job.ID] = job.Clone()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*ScanJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return job.Clone(), nil
}

func (s *MemoryStore) List(_ context.Context, f Filters) ([]*ScanJob, error) {
	f = f.Clamp()

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*ScanJob, 0, len(s.jobs))
	for _, j := range s.jobs {
		if f.Status != "" && j.Status != f.Status {
			continue
		}
		if f.Profile != "" && j.Profile != f.Profile {
			continue
		}
		result = append(result, j.Clone())
	}
	sort.Slice(result, func(i, k int) bool {
		return result[i].CreatedAt.After(result[k].CreatedAt)
	})
	if len(result) > f.Limit {
		result = result[:f.Limit]
	}
	return result, nil
}

func (s *MemoryStore) Update(_ context.Context, id string, mutate func(*ScanJob) error) (*ScanJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}

	// Mutate a copy so a failed mutation leaves the stored job untouched.
	next := job.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}
	next.UpdatedAt = nowUTC()
	s.jobs[id] = next
	return next.Clone(), nil
}

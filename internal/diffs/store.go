package diffs

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("diff report not found")

// DefaultListLimit caps List when the caller does not.
const DefaultListLimit = 50

// Store persists diff reports. Upsert keys on the (old, new) job pair, so
// recomputing a diff replaces the earlier report instead of duplicating it.
type Store interface {
	Upsert(ctx context.Context, report *Report) (*Report, error)
	Get(ctx context.Context, id string) (*Report, error)
	GetByPair(ctx context.Context, oldJobID, newJobID string) (*Report, error)
	// List returns reports newest-first.
	List(ctx context.Context, limit int) ([]*Report, error)
}

// MemoryStore is an in-memory Store.
type MemoryStore struct {
	mu      sync.RWMutex
	reports map[string]*Report
	byPair  map[[2]string]string
}

// NewMemoryStore creates an empty in-memory diff store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		reports: make(map[string]*Report),
		byPair:  make(map[[2]string]string),
	}
}

func (s *MemoryStore) Upsert(_ context.Context, report *Report) (*Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	pair := [2]string{report.OldJobID, report.NewJobID}

	if id, ok := s.byPair[pair]; ok {
		existing := s.reports[id]
		next := *report
		next.ID = existing.ID
		next.CreatedAt = existing.CreatedAt
		next.UpdatedAt = now
		s.reports[id] = &next
		out := next
		return &out, nil
	}

	next := *report
	if next.ID == "" {
		next.ID = uuid.NewString()
	}
	next.CreatedAt = now
	next.UpdatedAt = now
	s.reports[next.ID] = &next
	s.byPair[pair] = next.ID
	out := next
	return &out, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	report, ok := s.reports[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *report
	return &out, nil
}

func (s *MemoryStore) GetByPair(_ context.Context, oldJobID, newJobID string) (*Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byPair[[2]string{oldJobID, newJobID}]
	if !ok {
		return nil, ErrNotFound
	}
	out := *s.reports[id]
	return &out, nil
}

func (s *MemoryStore) List(_ context.Context, limit int) ([]*Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit < 1 {
		limit = DefaultListLimit
	}

	result := make([]*Report, 0, len(s.reports))
	for _, report := range s.reports {
		out := *report
		result = append(result, &out)
	}
	sort.Slice(result, func(i, k int) bool {
		return result[i].UpdatedAt.After(result[k].UpdatedAt)
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

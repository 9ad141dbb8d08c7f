// Package playbooks implements recurring scan definitions and the scheduler
// that turns due playbooks into new jobs through the normal submission path.
package playbooks

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"scanhub/internal/jobs"
)

var ErrNotFound = errors.New("playbook not found")

const (
	// MinIntervalMinutes and MaxIntervalMinutes bound a playbook's
	// schedule interval (5 minutes to 7 days).
	MinIntervalMinutes = 5
	MaxIntervalMinutes = 10080
)

// ClampInterval forces an interval into the allowed range.
func ClampInterval(minutes int) int {
	if minutes < MinIntervalMinutes {
		return MinIntervalMinutes
	}
	if minutes > MaxIntervalMinutes {
		return MaxIntervalMinutes
	}
	return minutes
}

// Playbook is a saved recurring scan definition.
type Playbook struct {
	ID                      string            `json:"id"`
	Name                    string            `json:"name"`
	Target                  string            `json:"target"`
	Profile                 jobs.Profile      `json:"profile"`
	ScheduleIntervalMinutes int               `json:"schedule_interval_minutes"`
	Enabled                 bool              `json:"enabled"`
	LastRunAt               *time.Time        `json:"last_run_at,omitempty"`
	LastJobID               string            `json:"last_job_id,omitempty"`
	Tags                    map[string]string `json:"tags,omitempty"`
	CreatedAt               time.Time         `json:"created_at"`
	UpdatedAt               time.Time         `json:"updated_at"`
}

// New creates an enabled playbook with a fresh id and a clamped interval.
func New(name, target string, profile jobs.Profile, intervalMinutes int) *Playbook {
	now := time.Now().UTC()
	return &Playbook{
		ID:                      uuid.NewString(),
		Name:                    name,
		Target:                  target,
		Profile:                 profile,
		ScheduleIntervalMinutes: ClampInterval(intervalMinutes),
		Enabled:                 true,
		CreatedAt:               now,
		UpdatedAt:               now,
	}
}

// DueAt reports whether the playbook should fire at now: it is enabled and
// has either never run or its interval has elapsed since the last run.
func (p *Playbook) DueAt(now time.Time) bool {
	if !p.Enabled {
		return false
	}
	if p.LastRunAt == nil {
		return true
	}
	return now.Sub(*p.LastRunAt) >= time.Duration(p.ScheduleIntervalMinutes)*time.Minute
}

// Clone returns a copy detached from the store.
func (p *Playbook) Clone() *Playbook {
	out := *p
	if p.LastRunAt != nil {
		t := *p.LastRunAt
		out.LastRunAt = &t
	}
	if p.Tags != nil {
		out.Tags = make(map[string]string, len(p.Tags))
		for k, v := range p.Tags {
			out.Tags[k] = v
		}
	}
	return &out
}

// Store persists playbooks. Update serializes read-modify-write per store.
type Store interface {
	Create(ctx context.Context, pb *Playbook) error
	Get(ctx context.Context, id string) (*Playbook, error)
	// List returns playbooks newest-first.
	List(ctx context.Context) ([]*Playbook, error)
	Update(ctx context.Context, id string, mutate func(*Playbook) error) (*Playbook, error)
}

// MemoryStore is an in-memory Store.
type MemoryStore struct {
	mu        sync.RWMutex
	playbooks map[string]*Playbook
}

// NewMemoryStore creates an empty in-memory playbook store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{playbooks: make(map[string]*Playbook)}
}

func (s *MemoryStore) Create(_ context.Context, pb *Playbook) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.playbooks[pb.ID]; ok {
		return fmt.Errorf("playbook %q already exists", pb.ID)
	}
	s.playbooks[pb.ID] = pb.Clone()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Playbook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pb, ok := s.playbooks[id]
	if !ok {
		return nil, ErrNotFound
	}
	return pb.Clone(), nil
}

func (s *MemoryStore) List(_ context.Context) ([]*Playbook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Playbook, 0, len(s.playbooks))
	for _, pb := range s.playbooks {
		result = append(result, pb.Clone())
	}
	sort.Slice(result, func(i, k int) bool {
		return result[i].CreatedAt.After(result[k].CreatedAt)
	})
	return result, nil
}

func (s *MemoryStore) Update(_ context.Context, id string, mutate func(*Playbook) error) (*Playbook, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pb, ok := s.playbooks[id]
	if !ok {
		return nil, ErrNotFound
	}
	next := pb.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}
	next.UpdatedAt = time.Now().UTC()
	s.playbooks[id] = next
	return next.Clone(), nil
}

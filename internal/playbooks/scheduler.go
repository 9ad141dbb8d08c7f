package playbooks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"scanhub/internal/audit"
	"scanhub/internal/jobs"
)

const (
	// DefaultRunLimit caps how many playbooks one run-due pass may fire.
	DefaultRunLimit = 10
	MaxRunLimit     = 100
)

// ConfigKeyPlaybookID and ConfigKeyPlaybookName tag jobs spawned by a
// playbook so their lineage is visible in the job record.
const (
	ConfigKeyPlaybookID   = "playbook_id"
	ConfigKeyPlaybookName = "playbook_name"
)

// Submitter creates jobs through the normal submission path. Satisfied by
// the jobs service.
type Submitter interface {
	Submit(ctx context.Context, target, profile string, config map[string]any) (*jobs.ScanJob, error)
}

// RunRecord reports one playbook fired by a run-due pass.
type RunRecord struct {
	PlaybookID string `json:"playbook_id"`
	JobID      string `json:"job_id"`
}

// Scheduler evaluates playbooks for dueness and fires them as scan jobs.
type Scheduler struct {
	store     Store
	submitter Submitter
	audit     audit.Sink

	// mu serializes due evaluation so two overlapping passes cannot fire
	// the same playbook twice before its LastRunAt is advanced.
	mu sync.Mutex

	now func() time.Time
}

// NewScheduler creates a scheduler. A nil sink disables audit recording.
func NewScheduler(store Store, submitter Submitter, sink audit.Sink) *Scheduler {
	if sink == nil {
		sink = audit.Nop{}
	}
	return &Scheduler{
		store:     store,
		submitter: submitter,
		audit:     sink,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Create validates and stores a new playbook.
func (s *Scheduler) Create(ctx context.Context, name, target, profile string, intervalMinutes int, tags map[string]string) (*Playbook, error) {
	if name == "" {
		return nil, fmt.Errorf("playbook name is required")
	}
	if target == "" {
		return nil, fmt.Errorf("playbook target is required")
	}

	pb := New(name, target, jobs.ParseProfile(profile), intervalMinutes)
	pb.Tags = tags
	if err := s.store.Create(ctx, pb); err != nil {
		return nil, err
	}

	s.audit.Record("playbook.create", "playbook", pb.ID, map[string]any{
		"name":             pb.Name,
		"target":           pb.Target,
		"profile":          string(pb.Profile),
		"interval_minutes": pb.ScheduleIntervalMinutes,
	})
	return pb, nil
}

// Get returns one playbook.
func (s *Scheduler) Get(ctx context.Context, id string) (*Playbook, error) {
	return s.store.Get(ctx, id)
}

// List returns all playbooks newest-first.
func (s *Scheduler) List(ctx context.Context) ([]*Playbook, error) {
	return s.store.List(ctx)
}

// SetEnabled flips a playbook on or off.
func (s *Scheduler) SetEnabled(ctx context.Context, id string, enabled bool) (*Playbook, error) {
	return s.store.Update(ctx, id, func(pb *Playbook) error {
		pb.Enabled = enabled
		return nil
	})
}

// DueFor filters playbooks down to those due at now.
func DueFor(now time.Time, all []*Playbook) []*Playbook {
	var due []*Playbook
	for _, pb := range all {
		if pb.DueAt(now) {
			due = append(due, pb)
		}
	}
	return due
}

// Run fires one playbook immediately regardless of dueness and advances its
// LastRunAt.
func (s *Scheduler) Run(ctx context.Context, id string) (*Playbook, *jobs.ScanJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pb, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	job, err := s.fire(ctx, pb, s.now())
	if err != nil {
		return nil, nil, err
	}

	updated, err := s.store.Get(ctx, id)
	if err != nil {
		updated = pb
	}

	s.audit.Record("playbook.run", "playbook", pb.ID, map[string]any{
		"job_id": job.ID,
	})
	return updated, job, nil
}

// RunDue fires every playbook due at the time of the call, up to limit, and
// advances each LastRunAt synchronously so a playbook cannot double-fire
// within one interval.
func (s *Scheduler) RunDue(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit < 1 {
		limit = DefaultRunLimit
	}
	if limit > MaxRunLimit {
		limit = MaxRunLimit
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing playbooks: %w", err)
	}

	now := s.now()
	due := DueFor(now, all)
	if len(due) > limit {
		due = due[:limit]
	}

	var fired []RunRecord
	for _, pb := range due {
		job, err := s.fire(ctx, pb, now)
		if err != nil {
			slog.Warn("playbook run failed", "playbook_id", pb.ID, "name", pb.Name, "error", err)
			continue
		}
		fired = append(fired, RunRecord{PlaybookID: pb.ID, JobID: job.ID})
	}

	if len(fired) > 0 {
		s.audit.Record("playbook.run_due", "playbook", "", map[string]any{
			"fired": len(fired),
			"due":   len(due),
		})
	}
	return fired, nil
}

// fire submits the playbook's scan and records the run on the playbook.
// Callers hold s.mu.
func (s *Scheduler) fire(ctx context.Context, pb *Playbook, now time.Time) (*jobs.ScanJob, error) {
	config := map[string]any{
		ConfigKeyPlaybookID:   pb.ID,
		ConfigKeyPlaybookName: pb.Name,
	}
	for k, v := range pb.Tags {
		config["tag_"+k] = v
	}

	job, err := s.submitter.Submit(ctx, pb.Target, string(pb.Profile), config)
	if err != nil {
		return nil, fmt.Errorf("submitting scan for playbook %s: %w", pb.ID, err)
	}

	if _, err := s.store.Update(ctx, pb.ID, func(p *Playbook) error {
		t := now
		p.LastRunAt = &t
		p.LastJobID = job.ID
		return nil
	}); err != nil {
		slog.Warn("recording playbook run failed", "playbook_id", pb.ID, "error", err)
	}
	return job, nil
}

// Loop runs RunDue on every tick until ctx is cancelled.
func (s *Scheduler) Loop(ctx context.Context, tick time.Duration, limit int) {
	if tick <= 0 {
		tick = time.Minute
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if fired, err := s.RunDue(ctx, limit); err != nil {
				slog.Error("scheduler pass failed", "error", err)
			} else if len(fired) > 0 {
				slog.Info("scheduler fired playbooks", "count", len(fired))
			}
		}
	}
}

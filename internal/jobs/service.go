package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"scanhub/internal/access"
	"scanhub/internal/audit"
	"scanhub/pkg/types"
)

var (
	ErrForbidden     = errors.New("forbidden")
	ErrInvalidTarget = errors.New("invalid target")
)

// Dispatcher hands a queued job to the worker pool and can signal an
// in-flight execution to stop.
type Dispatcher interface {
	Dispatch(job *ScanJob) error
	// Signal sends a best-effort terminate request to the job's execution.
	Signal(jobID string) error
}

// ProgressChannel broadcasts job snapshots to subscribers grouped by job id.
type ProgressChannel interface {
	Broadcast(snap Snapshot)
	// Subscribe joins the job's room and immediately delivers current so a
	// late subscriber is never blind to present status.
	Subscribe(jobID, subscriberID string, current Snapshot) <-chan Snapshot
	Unsubscribe(jobID, subscriberID string)
}

// Service coordinates the job lifecycle: submission, lookup, cancellation
// and retry lineage. All dependencies are injected at construction.
type Service struct {
	store      Store
	dispatcher Dispatcher
	hub        ProgressChannel
	access     access.Controller
	audit      audit.Sink
}

// NewService wires a job service. Nil access defaults to allow-all, nil
// audit to a no-op sink.
func NewService(store Store, dispatcher Dispatcher, hub ProgressChannel, ac access.Controller, sink audit.Sink) *Service {
	if ac == nil {
		ac = access.AllowAll{}
	}
	if sink == nil {
		sink = audit.Nop{}
	}
	return &Service{
		store:      store,
		dispatcher: dispatcher,
		hub:        hub,
		access:     ac,
		audit:      sink,
	}
}

// Submit validates and classifies the target, persists a queued job, and
// hands it to the dispatcher. It returns as soon as the job is queued; the
// execution itself runs in the background.
func (s *Service) Submit(ctx context.Context, target, profile string, config map[string]any) (*ScanJob, error) {
	job, err := s.submit(ctx, target, profile, config, "")
	if err != nil {
		return nil, err
	}
	s.audit.Record("scan.create", "scan_job", job.ID, map[string]any{
		"target":  job.Target,
		"profile": string(job.Profile),
	})
	return job, nil
}

func (s *Service) submit(ctx context.Context, target, profile string, config map[string]any, parentID string) (*ScanJob, error) {
	target = types.NormalizeTarget(target)
	if target == "" {
		return nil, fmt.Errorf("%w: target is required", ErrInvalidTarget)
	}
	if _, err := types.ParseTarget(target); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTarget, err)
	}

	resolved := Classify(target, ParseProfile(profile))
	job := New(target, resolved, config)
	job.ParentJobID = parentID

	if err := s.store.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("persisting job: %w", err)
	}

	s.hub.Broadcast(job.Snapshot())

	if err := s.dispatcher.Dispatch(job); err != nil {
		return nil, fmt.Errorf("dispatching job %s: %w", job.ID, err)
	}
	return job, nil
}

// Get returns a job by id.
func (s *Service) Get(ctx context.Context, id string) (*ScanJob, error) {
	return s.store.Get(ctx, id)
}

// List returns jobs newest-first, filtered by f.
func (s *Service) List(ctx context.Context, f Filters) ([]*ScanJob, error) {
	return s.store.List(ctx, f)
}

// Cancel moves a queued or running job to the cancelled terminal state. The
// terminate signal to the worker pool is best-effort: a signal failure is
// recorded as a warning annotation on the job, never as a cancel failure.
// Cancelling an already-terminal job is a no-op returning the existing state.
func (s *Service) Cancel(ctx context.Context, id, requester string) (*ScanJob, error) {
	if !s.access.CanAct(requester, id) {
		return nil, ErrForbidden
	}

	job, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status.Terminal() {
		return job, nil
	}

	sigErr := s.dispatcher.Signal(id)
	if sigErr != nil {
		slog.Warn("cancel signal failed", "job_id", id, "error", sigErr)
	}

	updated, err := s.store.Update(ctx, id, func(j *ScanJob) error {
		if sigErr != nil {
			j.Config[ConfigKeyCancelWarning] = sigErr.Error()
		}
		return j.MarkCancelled()
	})
	if errors.Is(err, ErrTerminal) {
		// The execution reached a terminal state between our read and the
		// cancel write. Accepted race: the existing terminal state stands.
		return s.store.Get(ctx, id)
	}
	if err != nil {
		return nil, err
	}

	s.hub.Broadcast(updated.Snapshot())
	s.audit.Record("scan.cancel", "scan_job", id, map[string]any{
		"signal_error": errString(sigErr),
	})
	return updated, nil
}

// Retry submits a new job equivalent to the original and links it back via
// ParentJobID. Retries form a tree; depth is not limited here.
func (s *Service) Retry(ctx context.Context, id, requester string) (*ScanJob, error) {
	if !s.access.CanAct(requester, id) {
		return nil, ErrForbidden
	}

	original, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	job, err := s.submit(ctx, original.Target, string(original.Profile), nil, original.ID)
	if err != nil {
		return nil, err
	}
	s.audit.Record("scan.retry", "scan_job", job.ID, map[string]any{
		"parent_job_id": original.ID,
	})
	return job, nil
}

// Subscribe joins the job's progress room and returns the snapshot stream.
func (s *Service) Subscribe(ctx context.Context, jobID, subscriberID string) (<-chan Snapshot, error) {
	job, err := s.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return s.hub.Subscribe(jobID, subscriberID, job.Snapshot()), nil
}

// Unsubscribe leaves the job's progress room.
func (s *Service) Unsubscribe(jobID, subscriberID string) {
	s.hub.Unsubscribe(jobID, subscriberID)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

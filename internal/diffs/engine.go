package diffs

import (
	"context"
	"errors"
	"fmt"

	"scanhub/internal/access"
	"scanhub/internal/audit"
	"scanhub/internal/jobs"
)

var (
	ErrForbidden   = errors.New("requester may not act on this job")
	ErrNotFinished = errors.New("job has no insights to compare")
)

// Engine computes and persists diff reports between finished scans.
type Engine struct {
	jobs    jobs.Store
	reports Store
	access  access.Controller
	audit   audit.Sink
}

// NewEngine wires the engine. Nil access allows everything; nil audit
// records nothing.
func NewEngine(jobStore jobs.Store, reportStore Store, ctrl access.Controller, sink audit.Sink) *Engine {
	if ctrl == nil {
		ctrl = access.AllowAll{}
	}
	if sink == nil {
		sink = audit.Nop{}
	}
	return &Engine{jobs: jobStore, reports: reportStore, access: ctrl, audit: sink}
}

// Compare loads both jobs, projects their insights to signatures, computes
// the changes, and upserts the report keyed on the (old, new) pair.
func (e *Engine) Compare(ctx context.Context, requester, oldJobID, newJobID string) (*Report, error) {
	if oldJobID == newJobID {
		return nil, fmt.Errorf("cannot compare job %s with itself", oldJobID)
	}

	oldJob, err := e.loadFinished(ctx, requester, oldJobID)
	if err != nil {
		return nil, err
	}
	newJob, err := e.loadFinished(ctx, requester, newJobID)
	if err != nil {
		return nil, err
	}

	changes := Compute(SignatureOf(oldJob.Insights), SignatureOf(newJob.Insights))

	report, err := e.reports.Upsert(ctx, &Report{
		OldJobID: oldJob.ID,
		NewJobID: newJob.ID,
		Target:   newJob.Target,
		Changes:  changes,
	})
	if err != nil {
		return nil, fmt.Errorf("storing diff report: %w", err)
	}

	e.audit.Record("report.diff", "diff", report.ID, map[string]any{
		"old_job_id": oldJob.ID,
		"new_job_id": newJob.ID,
		"target":     newJob.Target,
		"changed":    !changes.Empty(),
	})
	return report, nil
}

// Get returns one stored report.
func (e *Engine) Get(ctx context.Context, id string) (*Report, error) {
	return e.reports.Get(ctx, id)
}

// List returns stored reports newest-first.
func (e *Engine) List(ctx context.Context, limit int) ([]*Report, error) {
	return e.reports.List(ctx, limit)
}

func (e *Engine) loadFinished(ctx context.Context, requester, jobID string) (*jobs.ScanJob, error) {
	if !e.access.CanAct(requester, jobID) {
		return nil, fmt.Errorf("%w: %s", ErrForbidden, jobID)
	}
	job, err := e.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != jobs.StatusFinished || job.Insights == nil {
		return nil, fmt.Errorf("%w: job %s is %s", ErrNotFinished, job.ID, job.Status)
	}
	return job, nil
}

// Package dispatch hands queued jobs to a bounded worker pool, selects the
// executor for the job's profile family, relays executor progress into the
// job store and the progress channel, and keeps the cancellation handles for
// in-flight executions.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"scanhub/internal/executor"
	"scanhub/internal/jobs"
	"scanhub/pkg/types"
)

var (
	// ErrAlreadyDispatched signals a programming error: each job is
	// dispatched exactly once.
	ErrAlreadyDispatched = errors.New("job already dispatched")
	ErrNotQueued         = errors.New("job is not queued")
	ErrNoExecution       = errors.New("no execution handle for job")
)

// ConfigKeyExecutionHandle is where the dispatcher records the execution
// handle in job.Config so cancellation can later locate the run.
const ConfigKeyExecutionHandle = "execution_handle"

// progressBuffer sizes the per-execution progress channel.
const progressBuffer = 16

// Broadcaster publishes job snapshots to subscribers.
type Broadcaster interface {
	Broadcast(snap jobs.Snapshot)
}

// Dispatcher runs jobs on a bounded worker pool.
type Dispatcher struct {
	store    jobs.Store
	registry *executor.Registry
	hub      Broadcaster

	sem *semaphore.Weighted

	mu      sync.Mutex
	handles map[string]context.CancelFunc

	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a dispatcher with the given pool size. All collaborators are
// injected; the dispatcher holds no global state.
func New(store jobs.Store, registry *executor.Registry, hub Broadcaster, workers int) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		store:    store,
		registry: registry,
		hub:      hub,
		sem:      semaphore.NewWeighted(int64(workers)),
		handles:  make(map[string]context.CancelFunc),
		baseCtx:  ctx,
		stop:     cancel,
	}
}

// Dispatch submits a queued job to the pool. It records the cancellation
// handle, persists a handle marker in job.Config, and returns immediately;
// the execution runs in the background. A second dispatch for the same job
// id while one is outstanding fails with ErrAlreadyDispatched.
func (d *Dispatcher) Dispatch(job *jobs.ScanJob) error {
	if job.Status != jobs.StatusQueued {
		return fmt.Errorf("%w: job %s is %s", ErrNotQueued, job.ID, job.Status)
	}

	ctx, cancel := context.WithCancel(d.baseCtx)

	d.mu.Lock()
	if _, ok := d.handles[job.ID]; ok {
		d.mu.Unlock()
		cancel()
		return fmt.Errorf("%w: %s", ErrAlreadyDispatched, job.ID)
	}
	d.handles[job.ID] = cancel
	d.mu.Unlock()

	handleID := uuid.NewString()
	if _, err := d.store.Update(context.Background(), job.ID, func(j *jobs.ScanJob) error {
		j.Config[ConfigKeyExecutionHandle] = handleID
		return nil
	}); err != nil {
		d.release(job.ID)
		return fmt.Errorf("recording execution handle: %w", err)
	}

	d.wg.Add(1)
	go d.run(ctx, job.ID)
	return nil
}

// Signal sends a best-effort terminate request to the job's execution.
func (d *Dispatcher) Signal(jobID string) error {
	d.mu.Lock()
	cancel, ok := d.handles[jobID]
	d.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrNoExecution, jobID)
	}
	cancel()
	return nil
}

// Close stops accepting work, signals all in-flight executions, and waits
// for them to wind down or ctx to expire.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.stop()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) release(jobID string) {
	d.mu.Lock()
	if cancel, ok := d.handles[jobID]; ok {
		cancel()
		delete(d.handles, jobID)
	}
	d.mu.Unlock()
}

// run executes one job end to end. Store writes use a background context:
// execution cancellation must never block lifecycle bookkeeping.
func (d *Dispatcher) run(ctx context.Context, jobID string) {
	defer d.wg.Done()
	defer d.release(jobID)

	if err := d.sem.Acquire(ctx, 1); err != nil {
		// Cancelled while still queued; the cancellation controller has
		// already written the terminal state.
		return
	}
	defer d.sem.Release(1)

	job, err := d.store.Update(context.Background(), jobID, func(j *jobs.ScanJob) error {
		return j.MarkRunning()
	})
	if err != nil {
		if !errors.Is(err, jobs.ErrTerminal) {
			slog.Warn("could not start job", "job_id", jobID, "error", err)
		}
		return
	}
	d.hub.Broadcast(job.Snapshot())

	exec, err := d.registry.ForProfile(job.Profile)
	if err != nil {
		d.fail(jobID, err.Error())
		return
	}
	target, err := types.ParseTarget(job.Target)
	if err != nil {
		d.fail(jobID, err.Error())
		return
	}

	// Progress flows over a channel drained here, so writes to the store
	// and broadcasts for one job are serialized in arrival order.
	progressCh := make(chan int, progressBuffer)
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for p := range progressCh {
			d.applyProgress(jobID, p)
		}
	}()

	insights, runErr := exec.Run(ctx, executor.Spec{
		JobID:   jobID,
		Target:  target,
		Profile: job.Profile,
		Config:  job.Config,
	}, progressCh)
	close(progressCh)
	<-drained

	if runErr != nil {
		if ctx.Err() != nil {
			// Terminated by a cancel signal; the cancelled state is
			// written by the cancellation controller.
			return
		}
		d.fail(jobID, runErr.Error())
		return
	}

	updated, err := d.store.Update(context.Background(), jobID, func(j *jobs.ScanJob) error {
		return j.MarkFinished(insights)
	})
	if err != nil {
		// A cancel racing completion may have won; the first terminal
		// write stands.
		if !errors.Is(err, jobs.ErrTerminal) {
			slog.Error("finishing job failed", "job_id", jobID, "error", err)
		}
		return
	}
	d.hub.Broadcast(updated.Snapshot())
}

// applyProgress clamps and stores one progress value, broadcasting only
// when the stored value actually changed.
func (d *Dispatcher) applyProgress(jobID string, p int) {
	changed := false
	updated, err := d.store.Update(context.Background(), jobID, func(j *jobs.ScanJob) error {
		before := j.Progress
		changed = j.ApplyProgress(p) != before
		return nil
	})
	if err != nil {
		slog.Warn("progress update failed", "job_id", jobID, "error", err)
		return
	}
	if changed {
		d.hub.Broadcast(updated.Snapshot())
	}
}

func (d *Dispatcher) fail(jobID, reason string) {
	updated, err := d.store.Update(context.Background(), jobID, func(j *jobs.ScanJob) error {
		j.AppendLog("Scan failed: " + reason)
		return j.MarkFailed(reason)
	})
	if err != nil {
		if !errors.Is(err, jobs.ErrTerminal) {
			slog.Error("failing job errored", "job_id", jobID, "error", err)
		}
		return
	}
	d.hub.Broadcast(updated.Snapshot())
}

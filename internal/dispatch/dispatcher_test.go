package dispatch

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scanhub/internal/executor"
	"scanhub/internal/jobs"
	"scanhub/internal/progress"
	"scanhub/pkg/types"
)

// fakeExecutor plays back a scripted run: progress values, then a result.
type fakeExecutor struct {
	family   jobs.Family
	progress []int
	insights *types.Insights
	err      error

	// block, when set, holds the run until ctx is cancelled.
	block bool

	mu      sync.Mutex
	started chan struct{}
}

func newFakeExecutor(family jobs.Family) *fakeExecutor {
	return &fakeExecutor{family: family, started: make(chan struct{})}
}

func (f *fakeExecutor) Family() jobs.Family { return f.family }

func (f *fakeExecutor) Run(ctx context.Context, _ executor.Spec, progress chan<- int) (*types.Insights, error) {
	f.mu.Lock()
	select {
	case <-f.started:
	default:
		close(f.started)
	}
	f.mu.Unlock()

	for _, p := range f.progress {
		progress <- p
	}
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.insights, f.err
}

func registryWith(execs ...executor.Executor) *executor.Registry {
	r := executor.NewRegistry()
	for _, e := range execs {
		r.Register(e)
	}
	return r
}

func queuedJob(t *testing.T, store jobs.Store, target string, profile jobs.Profile) *jobs.ScanJob {
	t.Helper()
	job := jobs.New(target, profile, nil)
	require.NoError(t, store.Create(context.Background(), job))
	return job
}

func waitForStatus(t *testing.T, store jobs.Store, jobID string, want jobs.Status) *jobs.ScanJob {
	t.Helper()
	var got *jobs.ScanJob
	require.Eventually(t, func() bool {
		job, err := store.Get(context.Background(), jobID)
		if err != nil {
			return false
		}
		got = job
		return job.Status == want
	}, 2*time.Second, 5*time.Millisecond)
	return got
}

func TestDispatchRunsJobToCompletion(t *testing.T) {
	store := jobs.NewMemoryStore()
	hub := progress.NewHub()
	exec := newFakeExecutor(jobs.FamilyNetwork)
	exec.progress = []int{10, 50, 90}
	exec.insights = &types.Insights{Summary: types.Summary{RiskLevel: types.RiskLow}}

	d := New(store, registryWith(exec), hub, 2)
	defer d.Close(context.Background())

	job := queuedJob(t, store, "192.0.2.10", jobs.ProfileDefault)
	require.NoError(t, d.Dispatch(job))

	finished := waitForStatus(t, store, job.ID, jobs.StatusFinished)
	assert.Equal(t, 100, finished.Progress)
	require.NotNil(t, finished.Insights)
	assert.Equal(t, types.RiskLow, finished.Insights.Summary.RiskLevel)
	require.NotNil(t, finished.FinishedAt)
	assert.NotEmpty(t, finished.Config[ConfigKeyExecutionHandle])
}

func TestDispatchRejectsNonQueued(t *testing.T) {
	store := jobs.NewMemoryStore()
	d := New(store, registryWith(newFakeExecutor(jobs.FamilyNetwork)), progress.NewHub(), 1)
	defer d.Close(context.Background())

	job := queuedJob(t, store, "192.0.2.10", jobs.ProfileDefault)
	_, err := store.Update(context.Background(), job.ID, func(j *jobs.ScanJob) error {
		return j.MarkRunning()
	})
	require.NoError(t, err)
	job.Status = jobs.StatusRunning

	assert.ErrorIs(t, d.Dispatch(job), ErrNotQueued)
}

func TestDispatchRejectsDuplicate(t *testing.T) {
	store := jobs.NewMemoryStore()
	exec := newFakeExecutor(jobs.FamilyNetwork)
	exec.block = true

	d := New(store, registryWith(exec), progress.NewHub(), 1)
	defer d.Close(context.Background())

	job := queuedJob(t, store, "192.0.2.10", jobs.ProfileDefault)
	require.NoError(t, d.Dispatch(job))

	assert.ErrorIs(t, d.Dispatch(job), ErrAlreadyDispatched)
}

func TestExecutorFailureMarksJobFailed(t *testing.T) {
	store := jobs.NewMemoryStore()
	exec := newFakeExecutor(jobs.FamilyNetwork)
	exec.err = fmt.Errorf("connection refused")

	d := New(store, registryWith(exec), progress.NewHub(), 1)
	defer d.Close(context.Background())

	job := queuedJob(t, store, "192.0.2.10", jobs.ProfileDefault)
	require.NoError(t, d.Dispatch(job))

	failed := waitForStatus(t, store, job.ID, jobs.StatusFailed)
	assert.Equal(t, "connection refused", failed.Error)
	assert.Equal(t, 0, failed.Progress)
	assert.Contains(t, failed.Log, "Scan failed: connection refused")
}

func TestMissingExecutorMarksJobFailed(t *testing.T) {
	store := jobs.NewMemoryStore()
	d := New(store, executor.NewRegistry(), progress.NewHub(), 1)
	defer d.Close(context.Background())

	job := queuedJob(t, store, "192.0.2.10", jobs.ProfileDefault)
	require.NoError(t, d.Dispatch(job))

	failed := waitForStatus(t, store, job.ID, jobs.StatusFailed)
	assert.Contains(t, failed.Error, "no executor registered")
}

func TestProgressIsMonotonicForSubscribers(t *testing.T) {
	store := jobs.NewMemoryStore()
	hub := progress.NewHub()
	exec := newFakeExecutor(jobs.FamilyNetwork)
	// Out-of-order delivery: the regression to 30 must not be visible.
	exec.progress = []int{10, 45, 30, 80}

	d := New(store, registryWith(exec), hub, 1)
	defer d.Close(context.Background())

	job := queuedJob(t, store, "192.0.2.10", jobs.ProfileDefault)
	ch := hub.Subscribe(job.ID, "watcher", job.Snapshot())
	require.NoError(t, d.Dispatch(job))

	waitForStatus(t, store, job.ID, jobs.StatusFinished)

	var seen []int
	last := -1
	for snap := range ch {
		seen = append(seen, snap.Progress)
		assert.GreaterOrEqual(t, snap.Progress, last, "observed progress went backwards: %v", seen)
		last = snap.Progress
		if snap.Status == jobs.StatusFinished {
			break
		}
	}
	assert.Equal(t, 100, last)
	hub.Unsubscribe(job.ID, "watcher")
}

func TestSignalCancelsRunningExecution(t *testing.T) {
	store := jobs.NewMemoryStore()
	exec := newFakeExecutor(jobs.FamilyNetwork)
	exec.block = true

	d := New(store, registryWith(exec), progress.NewHub(), 1)
	defer d.Close(context.Background())

	job := queuedJob(t, store, "192.0.2.10", jobs.ProfileDefault)
	require.NoError(t, d.Dispatch(job))

	select {
	case <-exec.started:
	case <-time.After(2 * time.Second):
		t.Fatal("executor never started")
	}

	require.NoError(t, d.Signal(job.ID))

	// The dispatcher leaves the terminal write to the cancellation
	// controller; here the job simply stops making progress and the handle
	// is released.
	require.Eventually(t, func() bool {
		return d.Signal(job.ID) != nil
	}, 2*time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, d.Signal(job.ID), ErrNoExecution)

	got, err := store.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusRunning, got.Status)
}

func TestSignalUnknownJob(t *testing.T) {
	d := New(jobs.NewMemoryStore(), executor.NewRegistry(), progress.NewHub(), 1)
	defer d.Close(context.Background())

	assert.ErrorIs(t, d.Signal("missing"), ErrNoExecution)
}

func TestCloseWaitsForInFlight(t *testing.T) {
	store := jobs.NewMemoryStore()
	exec := newFakeExecutor(jobs.FamilyNetwork)
	exec.block = true

	d := New(store, registryWith(exec), progress.NewHub(), 1)

	job := queuedJob(t, store, "192.0.2.10", jobs.ProfileDefault)
	require.NoError(t, d.Dispatch(job))

	select {
	case <-exec.started:
	case <-time.After(2 * time.Second):
		t.Fatal("executor never started")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.NoError(t, d.Close(ctx))
}

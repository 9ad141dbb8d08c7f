package diffs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scanhub/internal/access"
	"scanhub/internal/audit"
	"scanhub/internal/jobs"
	"scanhub/pkg/types"
)

func insightsWithPorts(ports []int, risk types.RiskLevel) *types.Insights {
	in := &types.Insights{Summary: types.Summary{RiskLevel: risk, OpenPorts: len(ports)}}
	for _, p := range ports {
		in.OpenPorts = append(in.OpenPorts, types.PortInfo{Port: p, Protocol: "tcp", Service: "svc"})
	}
	return in
}

func TestSignatureOf(t *testing.T) {
	t.Run("nil insights", func(t *testing.T) {
		sig := SignatureOf(nil)
		assert.Equal(t, string(types.RiskUnknown), sig.RiskLevel)
		assert.Empty(t, sig.OpenPorts)
	})

	t.Run("full projection", func(t *testing.T) {
		in := &types.Insights{
			OpenPorts: []types.PortInfo{
				{Port: 443, Service: "HTTPS"},
				{Port: 22, Service: "SSH"},
			},
			WebIssues: []types.WebIssue{
				{Type: "missing_csp"},
				{Type: "missing_hsts"},
				{Type: "missing_csp"},
			},
			Vulnerabilities: []types.Finding{{Title: "Port 21 (FTP) is open"}},
			Summary:         types.Summary{RiskLevel: types.RiskMedium},
		}
		sig := SignatureOf(in)
		assert.Equal(t, []int{22, 443}, sig.OpenPorts)
		assert.Equal(t, []string{"HTTPS", "SSH"}, sig.Services)
		assert.Equal(t, []string{"missing_csp", "missing_hsts"}, sig.WebIssueTypes)
		assert.Equal(t, []string{"Port 21 (FTP) is open"}, sig.VulnerabilityTitles)
		assert.Equal(t, string(types.RiskMedium), sig.RiskLevel)
	})
}

func TestCompute(t *testing.T) {
	oldSig := SignatureOf(insightsWithPorts([]int{22, 80}, types.RiskLow))
	newSig := SignatureOf(insightsWithPorts([]int{22, 443}, types.RiskMedium))

	changes := Compute(oldSig, newSig)
	assert.Equal(t, []int{443}, changes.OpenPorts.Added)
	assert.Equal(t, []int{80}, changes.OpenPorts.Removed)
	assert.Equal(t, string(types.RiskLow), changes.Risk.Old)
	assert.Equal(t, string(types.RiskMedium), changes.Risk.New)
	assert.False(t, changes.Empty())
}

func TestComputeNoChange(t *testing.T) {
	sig := SignatureOf(insightsWithPorts([]int{22, 80}, types.RiskLow))
	changes := Compute(sig, sig)
	assert.True(t, changes.Empty())
}

func finishedJob(t *testing.T, store jobs.Store, target string, in *types.Insights) *jobs.ScanJob {
	t.Helper()
	job := jobs.New(target, jobs.ProfileDefault, nil)
	require.NoError(t, store.Create(context.Background(), job))
	updated, err := store.Update(context.Background(), job.ID, func(j *jobs.ScanJob) error {
		if err := j.MarkRunning(); err != nil {
			return err
		}
		return j.MarkFinished(in)
	})
	require.NoError(t, err)
	return updated
}

func TestEngineCompare(t *testing.T) {
	jobStore := jobs.NewMemoryStore()
	rec := &audit.Recorder{}
	engine := NewEngine(jobStore, NewMemoryStore(), nil, rec)

	oldJob := finishedJob(t, jobStore, "192.0.2.10", insightsWithPorts([]int{22, 80}, types.RiskLow))
	newJob := finishedJob(t, jobStore, "192.0.2.10", insightsWithPorts([]int{22, 443}, types.RiskLow))

	report, err := engine.Compare(context.Background(), "alice", oldJob.ID, newJob.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{443}, report.Changes.OpenPorts.Added)
	assert.Equal(t, []int{80}, report.Changes.OpenPorts.Removed)
	assert.Equal(t, "192.0.2.10", report.Target)

	require.Len(t, rec.Events, 1)
	assert.Equal(t, "report.diff", rec.Events[0].Action)
	assert.Equal(t, report.ID, rec.Events[0].ResourceID)

	t.Run("recompare upserts in place", func(t *testing.T) {
		again, err := engine.Compare(context.Background(), "alice", oldJob.ID, newJob.ID)
		require.NoError(t, err)
		assert.Equal(t, report.ID, again.ID)

		all, err := engine.List(context.Background(), 0)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("reversed pair is a distinct report", func(t *testing.T) {
		reversed, err := engine.Compare(context.Background(), "alice", newJob.ID, oldJob.ID)
		require.NoError(t, err)
		assert.NotEqual(t, report.ID, reversed.ID)
		assert.Equal(t, []int{80}, reversed.Changes.OpenPorts.Added)
	})
}

func TestEngineCompareErrors(t *testing.T) {
	jobStore := jobs.NewMemoryStore()
	engine := NewEngine(jobStore, NewMemoryStore(), nil, nil)

	finished := finishedJob(t, jobStore, "192.0.2.10", insightsWithPorts([]int{22}, types.RiskLow))

	queued := jobs.New("192.0.2.10", jobs.ProfileDefault, nil)
	require.NoError(t, jobStore.Create(context.Background(), queued))

	t.Run("self comparison", func(t *testing.T) {
		_, err := engine.Compare(context.Background(), "alice", finished.ID, finished.ID)
		assert.Error(t, err)
	})

	t.Run("missing job", func(t *testing.T) {
		_, err := engine.Compare(context.Background(), "alice", finished.ID, "missing")
		assert.ErrorIs(t, err, jobs.ErrNotFound)
	})

	t.Run("unfinished job", func(t *testing.T) {
		_, err := engine.Compare(context.Background(), "alice", finished.ID, queued.ID)
		assert.ErrorIs(t, err, ErrNotFinished)
	})

	t.Run("denied requester", func(t *testing.T) {
		denied := NewEngine(jobStore, NewMemoryStore(), access.DenyList{Denied: map[string]bool{"mallory": true}}, nil)
		_, err := denied.Compare(context.Background(), "mallory", finished.ID, queued.ID)
		assert.ErrorIs(t, err, ErrForbidden)
	})
}

func TestMemoryStoreListLimit(t *testing.T) {
	store := NewMemoryStore()
	for i := 0; i < 5; i++ {
		_, err := store.Upsert(context.Background(), &Report{
			OldJobID: "old",
			NewJobID: string(rune('a' + i)),
		})
		require.NoError(t, err)
	}

	got, err := store.List(context.Background(), 3)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

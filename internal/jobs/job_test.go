package jobs

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scanhub/pkg/types"
)

func TestStatusTerminal(t *testing.T) {
	assert.False(t, StatusQueued.Terminal())
	assert.False(t, StatusRunning.Terminal())
	assert.True(t, StatusFinished.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.True(t, StatusCancelled.Terminal())
}

func TestParseProfile(t *testing.T) {
	assert.Equal(t, ProfileDefault, ParseProfile(""))
	assert.Equal(t, ProfileDefault, ParseProfile("bogus"))
	assert.Equal(t, ProfileWeb, ParseProfile("web"))
	assert.Equal(t, ProfileFull, ParseProfile("  FULL "))
	assert.Equal(t, ProfileEnhanced, ParseProfile("enhanced"))
}

func TestProfileFamily(t *testing.T) {
	assert.Equal(t, FamilyWeb, ProfileWeb.Family())
	assert.Equal(t, FamilyNetwork, ProfileDefault.Family())
	assert.Equal(t, FamilyNetwork, ProfileFull.Family())
}

func TestLifecycleTransitions(t *testing.T) {
	t.Run("happy path", func(t *testing.T) {
		job := New("192.0.2.10", ProfileDefault, nil)
		assert.Equal(t, StatusQueued, job.Status)

		require.NoError(t, job.MarkRunning())
		assert.Equal(t, StatusRunning, job.Status)
		assert.Nil(t, job.FinishedAt)

		in := &types.Insights{Summary: types.Summary{RiskLevel: types.RiskLow}}
		require.NoError(t, job.MarkFinished(in))
		assert.Equal(t, StatusFinished, job.Status)
		assert.Equal(t, 100, job.Progress)
		assert.Same(t, in, job.Insights)
		require.NotNil(t, job.FinishedAt)
	})

	t.Run("terminal states absorb", func(t *testing.T) {
		job := New("192.0.2.10", ProfileDefault, nil)
		require.NoError(t, job.MarkRunning())
		require.NoError(t, job.MarkFinished(nil))

		first := *job.FinishedAt
		assert.ErrorIs(t, job.MarkRunning(), ErrTerminal)
		assert.ErrorIs(t, job.MarkFailed("late"), ErrTerminal)
		assert.ErrorIs(t, job.MarkCancelled(), ErrTerminal)
		assert.Equal(t, StatusFinished, job.Status)
		assert.True(t, job.FinishedAt.Equal(first))
	})

	t.Run("finish requires running", func(t *testing.T) {
		job := New("192.0.2.10", ProfileDefault, nil)
		assert.ErrorIs(t, job.MarkFinished(nil), ErrInvalidTransition)
	})

	t.Run("fail resets progress", func(t *testing.T) {
		job := New("192.0.2.10", ProfileDefault, nil)
		require.NoError(t, job.MarkRunning())
		job.ApplyProgress(70)

		require.NoError(t, job.MarkFailed("dial timeout"))
		assert.Equal(t, StatusFailed, job.Status)
		assert.Equal(t, 0, job.Progress)
		assert.Equal(t, "dial timeout", job.Error)
	})

	t.Run("cancel from queued", func(t *testing.T) {
		job := New("192.0.2.10", ProfileDefault, nil)
		require.NoError(t, job.MarkCancelled())
		assert.Equal(t, StatusCancelled, job.Status)
		assert.True(t, strings.HasPrefix(job.Log, CancelLogPrefix))
	})

	t.Run("cancel prepends to existing log", func(t *testing.T) {
		job := New("192.0.2.10", ProfileDefault, nil)
		require.NoError(t, job.MarkRunning())
		job.AppendLog("sweep started")

		require.NoError(t, job.MarkCancelled())
		lines := strings.Split(job.Log, "\n")
		require.Len(t, lines, 2)
		assert.Equal(t, CancelLogPrefix, lines[0])
		assert.Equal(t, "sweep started", lines[1])
		assert.Equal(t, 0, job.Progress)
	})
}

func TestApplyProgress(t *testing.T) {
	job := New("192.0.2.10", ProfileDefault, nil)

	// Not running yet: progress is ignored.
	assert.Equal(t, 0, job.ApplyProgress(50))

	require.NoError(t, job.MarkRunning())

	// Monotonic under out-of-order delivery.
	assert.Equal(t, 10, job.ApplyProgress(10))
	assert.Equal(t, 45, job.ApplyProgress(45))
	assert.Equal(t, 45, job.ApplyProgress(30))
	assert.Equal(t, 80, job.ApplyProgress(80))

	// Clamped to [0,100].
	assert.Equal(t, 80, job.ApplyProgress(-5))
	assert.Equal(t, 100, job.ApplyProgress(250))
}

func TestClone(t *testing.T) {
	job := New("192.0.2.10", ProfileDefault, map[string]any{"ports": "22,80"})
	require.NoError(t, job.MarkRunning())
	require.NoError(t, job.MarkFinished(&types.Insights{Summary: types.Summary{OpenPorts: 2}}))

	clone := job.Clone()
	clone.Config["ports"] = "443"
	clone.Insights.Summary.OpenPorts = 99
	*clone.FinishedAt = clone.FinishedAt.Add(1)

	assert.Equal(t, "22,80", job.Config["ports"])
	assert.Equal(t, 2, job.Insights.Summary.OpenPorts)
	assert.NotEqual(t, *job.FinishedAt, *clone.FinishedAt)
}

func TestDuration(t *testing.T) {
	job := New("192.0.2.10", ProfileDefault, nil)
	assert.Zero(t, job.Duration())

	require.NoError(t, job.MarkRunning())
	require.NoError(t, job.MarkFinished(nil))
	assert.GreaterOrEqual(t, job.Duration(), time.Duration(0))
	assert.NotNil(t, job.FinishedAt)
}

package playbooks

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scanhub/internal/audit"
	"scanhub/internal/jobs"
)

type stubSubmitter struct {
	submitted []submission
}

type submission struct {
	target  string
	profile string
	config  map[string]any
}

func (s *stubSubmitter) Submit(_ context.Context, target, profile string, config map[string]any) (*jobs.ScanJob, error) {
	s.submitted = append(s.submitted, submission{target: target, profile: profile, config: config})
	return jobs.New(target, jobs.ParseProfile(profile), config), nil
}

func TestDueAt(t *testing.T) {
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

	t.Run("never run is due", func(t *testing.T) {
		pb := New("nightly", "example.com", jobs.ProfileWeb, 60)
		assert.True(t, pb.DueAt(now))
	})

	t.Run("interval elapsed is due", func(t *testing.T) {
		pb := New("nightly", "example.com", jobs.ProfileWeb, 60)
		last := now.Add(-61 * time.Minute)
		pb.LastRunAt = &last
		assert.True(t, pb.DueAt(now))
	})

	t.Run("interval not elapsed is not due", func(t *testing.T) {
		pb := New("nightly", "example.com", jobs.ProfileWeb, 60)
		last := now.Add(-30 * time.Minute)
		pb.LastRunAt = &last
		assert.False(t, pb.DueAt(now))
	})

	t.Run("disabled is never due", func(t *testing.T) {
		pb := New("nightly", "example.com", jobs.ProfileWeb, 60)
		pb.Enabled = false
		assert.False(t, pb.DueAt(now))
	})
}

func TestClampInterval(t *testing.T) {
	assert.Equal(t, MinIntervalMinutes, ClampInterval(1))
	assert.Equal(t, 60, ClampInterval(60))
	assert.Equal(t, MaxIntervalMinutes, ClampInterval(999999))
}

func TestParseSchedule(t *testing.T) {
	t.Run("bare minutes", func(t *testing.T) {
		minutes, err := ParseSchedule("30")
		require.NoError(t, err)
		assert.Equal(t, 30, minutes)
	})

	t.Run("every duration", func(t *testing.T) {
		minutes, err := ParseSchedule("@every 2h")
		require.NoError(t, err)
		assert.Equal(t, 120, minutes)
	})

	t.Run("five field cron", func(t *testing.T) {
		minutes, err := ParseSchedule("*/15 * * * *")
		require.NoError(t, err)
		assert.Equal(t, 15, minutes)
	})

	t.Run("clamped below minimum", func(t *testing.T) {
		minutes, err := ParseSchedule("1")
		require.NoError(t, err)
		assert.Equal(t, MinIntervalMinutes, minutes)
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := ParseSchedule("not a schedule")
		assert.Error(t, err)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := ParseSchedule("")
		assert.Error(t, err)
	})
}

func TestSchedulerCreate(t *testing.T) {
	rec := &audit.Recorder{}
	sched := NewScheduler(NewMemoryStore(), &stubSubmitter{}, rec)

	pb, err := sched.Create(context.Background(), "weekly full", "10.0.0.1", "full", 10080, map[string]string{"env": "prod"})
	require.NoError(t, err)
	assert.Equal(t, jobs.ProfileFull, pb.Profile)
	assert.True(t, pb.Enabled)
	assert.Equal(t, 10080, pb.ScheduleIntervalMinutes)

	require.Len(t, rec.Events, 1)
	assert.Equal(t, "playbook.create", rec.Events[0].Action)

	t.Run("requires a name", func(t *testing.T) {
		_, err := sched.Create(context.Background(), "", "10.0.0.1", "default", 60, nil)
		assert.Error(t, err)
	})

	t.Run("requires a target", func(t *testing.T) {
		_, err := sched.Create(context.Background(), "x", "", "default", 60, nil)
		assert.Error(t, err)
	})
}

func TestSchedulerRunDue(t *testing.T) {
	store := NewMemoryStore()
	submitter := &stubSubmitter{}
	sched := NewScheduler(store, submitter, audit.Nop{})

	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	sched.now = func() time.Time { return now }

	due, err := sched.Create(context.Background(), "due", "192.0.2.10", "default", 60, nil)
	require.NoError(t, err)
	last := now.Add(-61 * time.Minute)
	_, err = store.Update(context.Background(), due.ID, func(pb *Playbook) error {
		pb.LastRunAt = &last
		return nil
	})
	require.NoError(t, err)

	fresh, err := sched.Create(context.Background(), "fresh", "192.0.2.11", "default", 60, nil)
	require.NoError(t, err)
	recent := now.Add(-30 * time.Minute)
	_, err = store.Update(context.Background(), fresh.ID, func(pb *Playbook) error {
		pb.LastRunAt = &recent
		return nil
	})
	require.NoError(t, err)

	fired, err := sched.RunDue(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, fired, 1)
	assert.Equal(t, due.ID, fired[0].PlaybookID)
	assert.NotEmpty(t, fired[0].JobID)

	// The spawned job carries the playbook lineage in its config.
	require.Len(t, submitter.submitted, 1)
	assert.Equal(t, due.ID, submitter.submitted[0].config[ConfigKeyPlaybookID])
	assert.Equal(t, "due", submitter.submitted[0].config[ConfigKeyPlaybookName])

	// LastRunAt advanced, so an immediate second pass fires nothing.
	updated, err := store.Get(context.Background(), due.ID)
	require.NoError(t, err)
	require.NotNil(t, updated.LastRunAt)
	assert.True(t, updated.LastRunAt.Equal(now))
	assert.Equal(t, fired[0].JobID, updated.LastJobID)

	again, err := sched.RunDue(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestSchedulerRunDueLimit(t *testing.T) {
	store := NewMemoryStore()
	sched := NewScheduler(store, &stubSubmitter{}, audit.Nop{})

	for i := 0; i < 5; i++ {
		_, err := sched.Create(context.Background(), "pb", "192.0.2.10", "default", 60, nil)
		require.NoError(t, err)
	}

	fired, err := sched.RunDue(context.Background(), 3)
	require.NoError(t, err)
	assert.Len(t, fired, 3)
}

func TestSchedulerRun(t *testing.T) {
	store := NewMemoryStore()
	rec := &audit.Recorder{}
	sched := NewScheduler(store, &stubSubmitter{}, rec)

	pb, err := sched.Create(context.Background(), "adhoc", "example.com", "web", 60, nil)
	require.NoError(t, err)

	// Run fires even when not due.
	last := time.Now().UTC().Add(-time.Minute)
	_, err = store.Update(context.Background(), pb.ID, func(p *Playbook) error {
		p.LastRunAt = &last
		return nil
	})
	require.NoError(t, err)

	updated, job, err := sched.Run(context.Background(), pb.ID)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, job.ID, updated.LastJobID)
	require.NotNil(t, updated.LastRunAt)
	assert.True(t, updated.LastRunAt.After(last))
}

func TestSchedulerSetEnabled(t *testing.T) {
	sched := NewScheduler(NewMemoryStore(), &stubSubmitter{}, audit.Nop{})

	pb, err := sched.Create(context.Background(), "toggle", "example.com", "web", 60, nil)
	require.NoError(t, err)

	updated, err := sched.SetEnabled(context.Background(), pb.ID, false)
	require.NoError(t, err)
	assert.False(t, updated.Enabled)

	fired, err := sched.RunDue(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, fired)
}

func TestMemoryStoreNotFound(t *testing.T) {
	store := NewMemoryStore()
	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.Update(context.Background(), "missing", func(*Playbook) error { return nil })
	assert.ErrorIs(t, err, ErrNotFound)
}

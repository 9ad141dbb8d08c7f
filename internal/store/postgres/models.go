package postgres

import (
	"time"

	"scanhub/internal/diffs"
	"scanhub/internal/jobs"
	"scanhub/internal/playbooks"
	"scanhub/pkg/types"
)

// scanJobRecord is the persisted shape of a scan job. Config and Insights
// are stored as JSON columns.
type scanJobRecord struct {
	ID          string `gorm:"primaryKey"`
	Target      string `gorm:"index"`
	Profile     string `gorm:"index"`
	Status      string `gorm:"index:idx_scan_jobs_status_created"`
	Progress    int
	CreatedAt   time.Time `gorm:"index:idx_scan_jobs_status_created"`
	UpdatedAt   time.Time
	FinishedAt  *time.Time
	Config      map[string]any  `gorm:"serializer:json"`
	Insights    *types.Insights `gorm:"serializer:json"`
	Error       string
	Log         string
	ParentJobID string `gorm:"index"`
}

func (scanJobRecord) TableName() string { return "scan_jobs" }

func recordFromJob(j *jobs.ScanJob) *scanJobRecord {
	return &scanJobRecord{
		ID:          j.ID,
		Target:      j.Target,
		Profile:     string(j.Profile),
		Status:      string(j.Status),
		Progress:    j.Progress,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
		FinishedAt:  j.FinishedAt,
		Config:      j.Config,
		Insights:    j.Insights,
		Error:       j.Error,
		Log:         j.Log,
		ParentJobID: j.ParentJobID,
	}
}

func (r *scanJobRecord) toJob() *jobs.ScanJob {
	return &jobs.ScanJob{
		ID:          r.ID,
		Target:      r.Target,
		Profile:     jobs.Profile(r.Profile),
		Status:      jobs.Status(r.Status),
		Progress:    r.Progress,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
		FinishedAt:  r.FinishedAt,
		Config:      r.Config,
		Insights:    r.Insights,
		Error:       r.Error,
		Log:         r.Log,
		ParentJobID: r.ParentJobID,
	}
}

type playbookRecord struct {
	ID                      string `gorm:"primaryKey"`
	Name                    string
	Target                  string
	Profile                 string
	ScheduleIntervalMinutes int
	Enabled                 bool `gorm:"index"`
	LastRunAt               *time.Time
	LastJobID               string
	Tags                    map[string]string `gorm:"serializer:json"`
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

func (playbookRecord) TableName() string { return "playbooks" }

func recordFromPlaybook(p *playbooks.Playbook) *playbookRecord {
	return &playbookRecord{
		ID:                      p.ID,
		Name:                    p.Name,
		Target:                  p.Target,
		Profile:                 string(p.Profile),
		ScheduleIntervalMinutes: p.ScheduleIntervalMinutes,
		Enabled:                 p.Enabled,
		LastRunAt:               p.LastRunAt,
		LastJobID:               p.LastJobID,
		Tags:                    p.Tags,
		CreatedAt:               p.CreatedAt,
		UpdatedAt:               p.UpdatedAt,
	}
}

func (r *playbookRecord) toPlaybook() *playbooks.Playbook {
	return &playbooks.Playbook{
		ID:                      r.ID,
		Name:                    r.Name,
		Target:                  r.Target,
		Profile:                 jobs.Profile(r.Profile),
		ScheduleIntervalMinutes: r.ScheduleIntervalMinutes,
		Enabled:                 r.Enabled,
		LastRunAt:               r.LastRunAt,
		LastJobID:               r.LastJobID,
		Tags:                    r.Tags,
		CreatedAt:               r.CreatedAt,
		UpdatedAt:               r.UpdatedAt,
	}
}

// diffReportRecord keys on the compared pair so recomputation replaces the
// earlier report.
type diffReportRecord struct {
	ID        string `gorm:"primaryKey"`
	OldJobID  string `gorm:"uniqueIndex:idx_diff_reports_pair"`
	NewJobID  string `gorm:"uniqueIndex:idx_diff_reports_pair"`
	Target    string
	Changes   diffs.Changes `gorm:"serializer:json"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (diffReportRecord) TableName() string { return "diff_reports" }

func recordFromReport(rep *diffs.Report) *diffReportRecord {
	return &diffReportRecord{
		ID:        rep.ID,
		OldJobID:  rep.OldJobID,
		NewJobID:  rep.NewJobID,
		Target:    rep.Target,
		Changes:   rep.Changes,
		CreatedAt: rep.CreatedAt,
		UpdatedAt: rep.UpdatedAt,
	}
}

func (r *diffReportRecord) toReport() *diffs.Report {
	return &diffs.Report{
		ID:        r.ID,
		OldJobID:  r.OldJobID,
		NewJobID:  r.NewJobID,
		Target:    r.Target,
		Changes:   r.Changes,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// Package jobs implements the scan job lifecycle engine: the job model and
// its state machine, the job store, target classification, and the service
// coordinating submission, cancellation and retry lineage.
package jobs

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"scanhub/pkg/types"
)

// Status is the lifecycle state of a scan job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusFinished  Status = "finished"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status is absorbing: no transition leaves it.
func (s Status) Terminal() bool {
	switch s {
	case StatusFinished, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Profile selects scan intensity and which executor family runs.
type Profile string

const (
	ProfileDefault       Profile = "default"
	ProfileFast          Profile = "fast"
	ProfileFull          Profile = "full"
	ProfileQuick         Profile = "quick"
	ProfileDetailed      Profile = "detailed"
	ProfileComprehensive Profile = "comprehensive"
	ProfileSafe          Profile = "safe"
	ProfileWeb           Profile = "web"
	ProfileEnhanced      Profile = "enhanced"
)

var allowedProfiles = map[Profile]bool{
	ProfileDefault:       true,
	ProfileFast:          true,
	ProfileFull:          true,
	ProfileQuick:         true,
	ProfileDetailed:      true,
	ProfileComprehensive: true,
	ProfileSafe:          true,
	ProfileWeb:           true,
	ProfileEnhanced:      true,
}

// ParseProfile normalizes a requested profile. Anything outside the
// allow-list is coerced to the network default.
func ParseProfile(raw string) Profile {
	p := Profile(strings.ToLower(strings.TrimSpace(raw)))
	if p == "" {
		return ProfileDefault
	}
	if !allowedProfiles[p] {
		return ProfileDefault
	}
	return p
}

// Family is the executor family a profile maps to.
type Family string

const (
	FamilyNetwork Family = "network"
	FamilyWeb     Family = "web"
)

// Family returns which executor family handles the profile.
func (p Profile) Family() Family {
	if p == ProfileWeb {
		return FamilyWeb
	}
	return FamilyNetwork
}

var (
	ErrNotFound          = errors.New("job not found")
	ErrTerminal          = errors.New("job already in a terminal state")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// CancelLogPrefix is prepended to a job's log when it is cancelled.
const CancelLogPrefix = "Cancelled by user request."

// ConfigKeyCancelWarning records a best-effort cancel signal failure.
const ConfigKeyCancelWarning = "cancel_warning"

// ScanJob is one scan execution request and its tracked lifecycle.
type ScanJob struct {
	ID          string          `json:"id"`
	Target      string          `json:"target"`
	Profile     Profile         `json:"profile"`
	Status      Status          `json:"status"`
	Progress    int             `json:"progress"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	FinishedAt  *time.Time      `json:"finished_at,omitempty"`
	Config      map[string]any  `json:"config,omitempty"`
	Insights    *types.Insights `json:"insights,omitempty"`
	Error       string          `json:"error,omitempty"`
	Log         string          `json:"log,omitempty"`
	ParentJobID string          `json:"parent_job_id,omitempty"`
}

func nowUTC() time.Time { return time.Now().UTC() }

// New creates a queued job with a fresh id.
func New(target string, profile Profile, config map[string]any) *ScanJob {
	now := nowUTC()
	if config == nil {
		config = map[string]any{}
	}
	return &ScanJob{
		ID:        uuid.NewString(),
		Target:    target,
		Profile:   profile,
		Status:    StatusQueued,
		Progress:  0,
		CreatedAt: now,
		UpdatedAt: now,
		Config:    config,
	}
}

// MarkRunning transitions queued -> running.
func (j *ScanJob) MarkRunning() error {
	if j.Status.Terminal() {
		return ErrTerminal
	}
	if j.Status != StatusQueued {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, StatusRunning)
	}
	j.Status = StatusRunning
	return nil
}

// MarkFinished transitions running -> finished, freezing progress at 100 and
// recording the result blob. finishedAt is set exactly once, here.
func (j *ScanJob) MarkFinished(insights *types.Insights) error {
	if j.Status.Terminal() {
		return ErrTerminal
	}
	if j.Status != StatusRunning {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, StatusFinished)
	}
	j.Status = StatusFinished
	j.Progress = 100
	j.Insights = insights
	j.setFinishedAt()
	return nil
}

// MarkFailed transitions running -> failed with a populated error.
func (j *ScanJob) MarkFailed(reason string) error {
	if j.Status.Terminal() {
		return ErrTerminal
	}
	if j.Status != StatusRunning {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, StatusFailed)
	}
	j.Status = StatusFailed
	j.Progress = 0
	j.Error = reason
	j.setFinishedAt()
	return nil
}

// MarkCancelled transitions queued|running -> cancelled and prepends the
// cancellation annotation to the job log.
func (j *ScanJob) MarkCancelled() error {
	if j.Status.Terminal() {
		return ErrTerminal
	}
	j.Status = StatusCancelled
	j.Progress = 0
	j.Log = strings.TrimSpace(CancelLogPrefix + "\n" + j.Log)
	j.setFinishedAt()
	return nil
}

func (j *ScanJob) setFinishedAt() {
	if j.FinishedAt == nil {
		now := nowUTC()
		j.FinishedAt = &now
	}
}

// ApplyProgress clamps p to [0,100] and stores it if the job is running and
// the value does not decrease. Out-of-order callbacks therefore never move
// progress backwards. Returns the effective stored progress.
func (j *ScanJob) ApplyProgress(p int) int {
	if j.Status != StatusRunning {
		return j.Progress
	}
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}
	if p > j.Progress {
		j.Progress = p
	}
	return j.Progress
}

// AppendLog adds a line to the job's log.
func (j *ScanJob) AppendLog(line string) {
	if line == "" {
		return
	}
	if j.Log == "" {
		j.Log = line
		return
	}
	j.Log = j.Log + "\n" + line
}

// Duration returns the wall-clock time from creation to the terminal state,
// or zero if the job is not terminal yet.
func (j *ScanJob) Duration() time.Duration {
	if j.FinishedAt == nil {
		return 0
	}
	return j.FinishedAt.Sub(j.CreatedAt)
}

// Clone returns a deep copy so callers never hold a reference into the store.
func (j *ScanJob) Clone() *ScanJob {
	out := *j
	if j.FinishedAt != nil {
		t := *j.FinishedAt
		out.FinishedAt = &t
	}
	if j.Config != nil {
		out.Config = make(map[string]any, len(j.Config))
		for k, v := range j.Config {
			out.Config[k] = v
		}
	}
	if j.Insights != nil {
		in := *j.Insights
		out.Insights = &in
	}
	return &out
}

// Snapshot is the state published to progress subscribers.
type Snapshot struct {
	JobID    string  `json:"job_id"`
	Status   Status  `json:"status"`
	Progress int     `json:"progress"`
	Target   string  `json:"target"`
	Profile  Profile `json:"profile"`
}

// Snapshot captures the broadcastable state of the job.
func (j *ScanJob) Snapshot() Snapshot {
	return Snapshot{
		JobID:    j.ID,
		Status:   j.Status,
		Progress: j.Progress,
		Target:   j.Target,
		Profile:  j.Profile,
	}
}

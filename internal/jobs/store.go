package jobs

import "context"

// Filters narrows a job listing. Zero values mean "no filter".
type Filters struct {
	Status  Status
	Profile Profile
	Limit   int
}

// DefaultListLimit applies when Filters.Limit is zero.
const DefaultListLimit = 200

// MaxListLimit caps a caller-supplied limit.
const MaxListLimit = 1000

// Clamp normalizes the limit into [1, MaxListLimit].
func (f Filters) Clamp() Filters {
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	return f
}

// Store is the single source of truth for job state. Update serializes all
// read-modify-write cycles for one job, so a terminal transition can only be
// written once: a second terminal write fails inside mutate with ErrTerminal.
type Store interface {
	Create(ctx context.Context, job *ScanJob) error
	Get(ctx context.Context, id string) (*ScanJob, error)
	// List returns jobs newest-first, filtered and capped by f.
	List(ctx context.Context, f Filters) ([]*ScanJob, error)
	// Update applies mutate to the stored job under the store's write lock
	// and returns the updated copy. If mutate returns an error nothing is
	// written and the error is returned unchanged.
	Update(ctx context.Context, id string, mutate func(*ScanJob) error) (*ScanJob, error)
}

// Package executor defines the contract between the orchestration core and
// the scan techniques, plus the built-in network and web executors. An
// executor is a long-running, opaque operation: it receives the job spec,
// streams integer progress onto a channel the dispatcher drains, and returns
// a structured insights blob or an error.
package executor

import (
	"context"
	"fmt"
	"time"

	"scanhub/internal/jobs"
	"scanhub/pkg/types"
)

// Spec carries everything an executor needs about one job.
type Spec struct {
	JobID   string
	Target  types.Target
	Profile jobs.Profile
	Config  map[string]any
	Timeout time.Duration
}

// Executor performs one scan family's technique. Implementations must honor
// ctx cancellation, send progress values in [0,100] onto progress without
// closing it (the dispatcher owns the channel), and always return either an
// insights blob or an error.
type Executor interface {
	Family() jobs.Family
	Run(ctx context.Context, spec Spec, progress chan<- int) (*types.Insights, error)
}

// Registry maps executor families to implementations.
type Registry struct {
	executors map[jobs.Family]Executor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{executors: make(map[jobs.Family]Executor)}
}

// Register adds an executor for its family, replacing any previous one.
func (r *Registry) Register(e Executor) {
	r.executors[e.Family()] = e
}

// ForProfile returns the executor handling the profile's family.
func (r *Registry) ForProfile(p jobs.Profile) (Executor, error) {
	e, ok := r.executors[p.Family()]
	if !ok {
		return nil, fmt.Errorf("no executor registered for family %q", p.Family())
	}
	return e, nil
}

// Defaults returns a registry with the built-in network and web executors.
func Defaults() *Registry {
	r := NewRegistry()
	r.Register(NewNetworkExecutor())
	r.Register(NewWebExecutor())
	return r
}

// report sends p without blocking if the dispatcher has fallen behind.
func report(progress chan<- int, p int) {
	select {
	case progress <- p:
	default:
	}
}

// Package audit records one event per state-changing action in the
// orchestration core. Sinks are best-effort: a failing sink logs a warning
// and never propagates an error into the action that produced the event.
package audit

import (
	"log/slog"
	"time"
)

// Event is a single audit record.
type Event struct {
	Action       string         `json:"action"`
	ResourceType string         `json:"resource_type"`
	ResourceID   string         `json:"resource_id,omitempty"`
	Details      map[string]any `json:"details,omitempty"`
	At           time.Time      `json:"at"`
}

// Sink receives audit events.
type Sink interface {
	Record(action, resourceType, resourceID string, details map[string]any)
}

// SlogSink writes audit events to the default structured logger.
type SlogSink struct{}

func (SlogSink) Record(action, resourceType, resourceID string, details map[string]any) {
	slog.Info("audit",
		"action", action,
		"resource_type", resourceType,
		"resource_id", resourceID,
		"details", details,
	)
}

// Nop discards all events.
type Nop struct{}

func (Nop) Record(string, string, string, map[string]any) {}

// Recorder is a Sink that captures events in memory, for tests.
type Recorder struct {
	Events []Event
}

func (r *Recorder) Record(action, resourceType, resourceID string, details map[string]any) {
	r.Events = append(r.Events, Event{
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Details:      details,
		At:           time.Now(),
	})
}

// Package progress implements the broadcast hub that fans job state
// snapshots out to subscribers grouped by job id ("rooms"). It is the most
// contention-heavy structure in the core: rooms live in a sync.Map so
// broadcasts for different jobs never serialize on one lock.
package progress

import (
	"log/slog"
	"sync"

	"scanhub/internal/jobs"
)

// subscriberBuffer is the per-subscriber channel capacity. A subscriber that
// falls further behind than this loses intermediate snapshots; delivery is
// fire-and-forget and must never block the publisher.
const subscriberBuffer = 16

type room struct {
	mu     sync.Mutex
	closed bool
	subs   map[string]chan jobs.Snapshot
}

// Hub broadcasts job snapshots to rooms keyed by job id.
type Hub struct {
	rooms sync.Map // job id -> *room
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{}
}

// lockRoom returns the room for jobID with its mutex held, creating it when
// create is set. Returns nil if the room does not exist and create is false.
func (h *Hub) lockRoom(jobID string, create bool) *room {
	for {
		if v, ok := h.rooms.Load(jobID); ok {
			r := v.(*room)
			r.mu.Lock()
			if !r.closed {
				return r
			}
			// Lost a race with the last unsubscribe; retire the entry
			// and retry.
			r.mu.Unlock()
			h.rooms.CompareAndDelete(jobID, v)
			continue
		}
		if !create {
			return nil
		}
		r := &room{subs: make(map[string]chan jobs.Snapshot)}
		if _, loaded := h.rooms.LoadOrStore(jobID, r); loaded {
			continue
		}
		r.mu.Lock()
		return r
	}
}

// Subscribe joins subscriberID to the job's room and returns its snapshot
// stream. The current snapshot is delivered first, so a late subscriber is
// never blind to present status. A duplicate subscription from the same
// subscriber replaces the previous one: the old stream is closed and only
// the new channel receives future broadcasts.
func (h *Hub) Subscribe(jobID, subscriberID string, current jobs.Snapshot) <-chan jobs.Snapshot {
	r := h.lockRoom(jobID, true)
	defer r.mu.Unlock()

	if old, ok := r.subs[subscriberID]; ok {
		close(old)
	}

	ch := make(chan jobs.Snapshot, subscriberBuffer)
	ch <- current
	r.subs[subscriberID] = ch
	return ch
}

// Unsubscribe removes subscriberID from the job's room and closes its
// stream. Unknown subscriptions are ignored.
func (h *Hub) Unsubscribe(jobID, subscriberID string) {
	r := h.lockRoom(jobID, false)
	if r == nil {
		return
	}
	defer r.mu.Unlock()

	ch, ok := r.subs[subscriberID]
	if !ok {
		return
	}
	close(ch)
	delete(r.subs, subscriberID)

	if len(r.subs) == 0 {
		r.closed = true
		h.rooms.Delete(jobID)
	}
}

// Broadcast publishes snap to every member of its job's room. Delivery is
// non-blocking per subscriber: a full buffer drops the snapshot for that
// subscriber only, and nothing is ever raised to the caller. Per-subscriber
// ordering follows publish order because sends happen under the room lock.
func (h *Hub) Broadcast(snap jobs.Snapshot) {
	r := h.lockRoom(snap.JobID, false)
	if r == nil {
		return
	}
	defer r.mu.Unlock()

	for id, ch := range r.subs {
		select {
		case ch <- snap:
		default:
			slog.Warn("progress snapshot dropped", "job_id", snap.JobID, "subscriber", id)
		}
	}
}

// Subscribers returns the current member count of a job's room.
func (h *Hub) Subscribers(jobID string) int {
	r := h.lockRoom(jobID, false)
	if r == nil {
		return 0
	}
	defer r.mu.Unlock()
	return len(r.subs)
}

package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// StreamScanEvents handles GET /api/v1/scans/{id}/events. It joins the job's
// progress room and relays snapshots as server-sent events until the job
// reaches a terminal state or the client disconnects. The first event is
// always the job's current state.
func (h *Handlers) StreamScanEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	jobID := chi.URLParam(r, "id")
	subscriberID := middleware.GetReqID(r.Context())
	if subscriberID == "" {
		subscriberID = r.RemoteAddr
	}

	ch, err := h.Scans.Subscribe(r.Context(), jobID, subscriberID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	defer h.Scans.Unsubscribe(jobID, subscriberID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case snap, open := <-ch:
			if !open {
				return
			}
			payload, err := json.Marshal(snap)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: progress\ndata: %s\n\n", payload)
			flusher.Flush()

			if snap.Status.Terminal() {
				return
			}
		}
	}
}

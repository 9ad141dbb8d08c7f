package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"scanhub/internal/playbooks"
)

// CreatePlaybook handles POST /api/v1/playbooks.
func (h *Handlers) CreatePlaybook(w http.ResponseWriter, r *http.Request) {
	req, err := decodeCreatePlaybookRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	interval := req.ScheduleIntervalMinutes
	if req.Schedule != "" {
		interval, err = playbooks.ParseSchedule(req.Schedule)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	pb, err := h.Scheduler.Create(r.Context(), req.Name, req.Target, req.Profile, interval, req.Tags)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, pb)
}

// ListPlaybooks handles GET /api/v1/playbooks.
func (h *Handlers) ListPlaybooks(w http.ResponseWriter, r *http.Request) {
	list, err := h.Scheduler.List(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, list)
}

// GetPlaybook handles GET /api/v1/playbooks/{id}.
func (h *Handlers) GetPlaybook(w http.ResponseWriter, r *http.Request) {
	pb, err := h.Scheduler.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, pb)
}

// UpdatePlaybook handles PATCH /api/v1/playbooks/{id}.
func (h *Handlers) UpdatePlaybook(w http.ResponseWriter, r *http.Request) {
	req, err := decodeUpdatePlaybookRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	pb, err := h.Scheduler.SetEnabled(r.Context(), chi.URLParam(r, "id"), *req.Enabled)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, pb)
}

// RunPlaybook handles POST /api/v1/playbooks/{id}/run.
func (h *Handlers) RunPlaybook(w http.ResponseWriter, r *http.Request) {
	pb, job, err := h.Scheduler.Run(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"playbook": pb,
		"job":      job,
	})
}

// RunDuePlaybooks handles POST /api/v1/playbooks/run-due. Supports ?limit=.
func (h *Handlers) RunDuePlaybooks(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid limit: "+raw)
			return
		}
		limit = n
	}

	fired, err := h.Scheduler.RunDue(r.Context(), limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if fired == nil {
		fired = []playbooks.RunRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"fired": fired,
		"count": len(fired),
	})
}

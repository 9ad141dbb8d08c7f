// Package api implements the REST handlers for scans, playbooks and diff
// reports.
package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"scanhub/internal/diffs"
	"scanhub/internal/jobs"
	"scanhub/internal/playbooks"
)

// Handlers holds dependencies for the REST API handlers.
type Handlers struct {
	Scans     *jobs.Service
	Scheduler *playbooks.Scheduler
	Diffs     *diffs.Engine
}

// NewHandlers creates API handlers with the given dependencies.
func NewHandlers(scans *jobs.Service, scheduler *playbooks.Scheduler, engine *diffs.Engine) *Handlers {
	return &Handlers{Scans: scans, Scheduler: scheduler, Diffs: engine}
}

// CreateScan handles POST /api/v1/scans.
func (h *Handlers) CreateScan(w http.ResponseWriter, r *http.Request) {
	req, err := decodeCreateScanRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	job, err := h.Scans.Submit(r.Context(), req.Target, req.Profile, req.Config)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, job)
}

// ListScans handles GET /api/v1/scans. Supports ?status=, ?profile= and
// ?limit= query filters.
func (h *Handlers) ListScans(w http.ResponseWriter, r *http.Request) {
	f := jobs.Filters{
		Status:  jobs.Status(r.URL.Query().Get("status")),
		Profile: jobs.Profile(r.URL.Query().Get("profile")),
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid limit: "+raw)
			return
		}
		f.Limit = limit
	}

	list, err := h.Scans.List(r.Context(), f)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, list)
}

// GetScan handles GET /api/v1/scans/{id}.
func (h *Handlers) GetScan(w http.ResponseWriter, r *http.Request) {
	job, err := h.Scans.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, job)
}

// GetScanLog handles GET /api/v1/scans/{id}/log.
func (h *Handlers) GetScanLog(w http.ResponseWriter, r *http.Request) {
	job, err := h.Scans.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"job_id": job.ID,
		"log":    job.Log,
	})
}

// CancelScan handles POST /api/v1/scans/{id}/cancel.
func (h *Handlers) CancelScan(w http.ResponseWriter, r *http.Request) {
	job, err := h.Scans.Cancel(r.Context(), chi.URLParam(r, "id"), requester(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, job)
}

// RetryScan handles POST /api/v1/scans/{id}/retry.
func (h *Handlers) RetryScan(w http.ResponseWriter, r *http.Request) {
	job, err := h.Scans.Retry(r.Context(), chi.URLParam(r, "id"), requester(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, job)
}

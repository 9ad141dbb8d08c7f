package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// CreateDiff handles POST /api/v1/diffs.
func (h *Handlers) CreateDiff(w http.ResponseWriter, r *http.Request) {
	req, err := decodeCreateDiffRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := h.Diffs.Compare(r.Context(), requester(r), req.OldJobID, req.NewJobID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, report)
}

// ListDiffs handles GET /api/v1/diffs. Supports ?limit=.
func (h *Handlers) ListDiffs(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid limit: "+raw)
			return
		}
		limit = n
	}

	list, err := h.Diffs.List(r.Context(), limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, list)
}

// GetDiff handles GET /api/v1/diffs/{id}.
func (h *Handlers) GetDiff(w http.ResponseWriter, r *http.Request) {
	report, err := h.Diffs.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

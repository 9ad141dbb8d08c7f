package api

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// CreateScanRequest is the JSON body for POST /api/v1/scans.
type CreateScanRequest struct {
	Target  string         `json:"target"`
	Profile string         `json:"profile"`
	Config  map[string]any `json:"config"`
}

// decodeCreateScanRequest reads and validates the request body.
func decodeCreateScanRequest(r *http.Request) (*CreateScanRequest, error) {
	var req CreateScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	if req.Target == "" {
		return nil, fmt.Errorf("target is required")
	}

	return &req, nil
}

// CreatePlaybookRequest is the JSON body for POST /api/v1/playbooks. Either
// ScheduleIntervalMinutes or Schedule (a cron or @every expression) sets the
// recurrence.
type CreatePlaybookRequest struct {
	Name                    string            `json:"name"`
	Target                  string            `json:"target"`
	Profile                 string            `json:"profile"`
	ScheduleIntervalMinutes int               `json:"schedule_interval_minutes"`
	Schedule                string            `json:"schedule"`
	Tags                    map[string]string `json:"tags"`
}

func decodeCreatePlaybookRequest(r *http.Request) (*CreatePlaybookRequest, error) {
	var req CreatePlaybookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	if req.Name == "" {
		return nil, fmt.Errorf("name is required")
	}
	if req.Target == "" {
		return nil, fmt.Errorf("target is required")
	}
	if req.ScheduleIntervalMinutes == 0 && req.Schedule == "" {
		return nil, fmt.Errorf("schedule_interval_minutes or schedule is required")
	}

	return &req, nil
}

// UpdatePlaybookRequest is the JSON body for PATCH /api/v1/playbooks/{id}.
type UpdatePlaybookRequest struct {
	Enabled *bool `json:"enabled"`
}

func decodeUpdatePlaybookRequest(r *http.Request) (*UpdatePlaybookRequest, error) {
	var req UpdatePlaybookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if req.Enabled == nil {
		return nil, fmt.Errorf("enabled is required")
	}
	return &req, nil
}

// CreateDiffRequest is the JSON body for POST /api/v1/diffs.
type CreateDiffRequest struct {
	OldJobID string `json:"old_job_id"`
	NewJobID string `json:"new_job_id"`
}

func decodeCreateDiffRequest(r *http.Request) (*CreateDiffRequest, error) {
	var req CreateDiffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	if req.OldJobID == "" || req.NewJobID == "" {
		return nil, fmt.Errorf("old_job_id and new_job_id are required")
	}

	return &req, nil
}

// requester extracts the caller identity for access checks. Deployments
// fronted by an auth proxy set X-Requester; everything else is anonymous.
func requester(r *http.Request) string {
	if v := r.Header.Get("X-Requester"); v != "" {
		return v
	}
	return "anonymous"
}

package web

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"scanhub/internal/web/api"
)

// registerRoutes mounts all route groups on the server's router.
func (s *Server) registerRoutes() {
	handlers := api.NewHandlers(s.scans, s.scheduler, s.diffs)

	// Health check
	s.router.Get("/health", s.handleHealth)

	// REST API
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/scans", handlers.CreateScan)
		r.Get("/scans", handlers.ListScans)
		r.Get("/scans/{id}", handlers.GetScan)
		r.Get("/scans/{id}/log", handlers.GetScanLog)
		r.Get("/scans/{id}/events", handlers.StreamScanEvents)
		r.Post("/scans/{id}/cancel", handlers.CancelScan)
		r.Post("/scans/{id}/retry", handlers.RetryScan)

		r.Post("/playbooks", handlers.CreatePlaybook)
		r.Get("/playbooks", handlers.ListPlaybooks)
		r.Get("/playbooks/{id}", handlers.GetPlaybook)
		r.Patch("/playbooks/{id}", handlers.UpdatePlaybook)
		r.Post("/playbooks/{id}/run", handlers.RunPlaybook)
		r.Post("/playbooks/run-due", handlers.RunDuePlaybooks)

		r.Post("/diffs", handlers.CreateDiff)
		r.Get("/diffs", handlers.ListDiffs)
		r.Get("/diffs/{id}", handlers.GetDiff)
	})
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// Package web is the HTTP surface of ScanHub: the REST API for scans,
// playbooks and diff reports, and the SSE stream for live job progress.
package web

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"scanhub/internal/diffs"
	"scanhub/internal/jobs"
	"scanhub/internal/playbooks"
)

// Server is the HTTP server for the ScanHub API.
type Server struct {
	router    chi.Router
	addr      string
	http      *http.Server
	scans     *jobs.Service
	scheduler *playbooks.Scheduler
	diffs     *diffs.Engine
}

// NewServer builds a new Server with middleware and routes configured.
func NewServer(addr string, scans *jobs.Service, scheduler *playbooks.Scheduler, engine *diffs.Engine) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		addr:      addr,
		scans:     scans,
		scheduler: scheduler,
		diffs:     engine,
	}

	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)

	s.registerRoutes()

	s.http = &http.Server{
		Addr:        addr,
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		// No write timeout: the SSE endpoint holds its connection open.
	}
	return s
}

// Start begins listening on the configured address.
func (s *Server) Start() error {
	return s.http.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// Router exposes the chi.Router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// Import history
		r.Route("/imports", func(r chi.Router) {
			r.Get("/", s.handleListImports)
			r.Post("/scan", s.handleScan)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetImport)
				r.Get("/devices", s.handleListImportDevices)
			})
		})

		// Stateless parse preview
		r.Post("/parse", s.handleParse)
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}

package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// setupRoutes configures the MCP endpoint and health check.
func (s *Server) setupRoutes() {
	r := s.router

	r.Route("/mcp", func(r chi.Router) {
		r.Get("/", s.handleStream)
		r.Post("/", s.handleMessage)
		r.Delete("/", s.handleEndSession)
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

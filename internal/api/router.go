package api

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
)

// healthCheckTimeout bounds each component check on /health.
const healthCheckTimeout = 2 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)
			r.Get("/{id}", s.handleGetDevice)
		})

		r.Route("/selection", func(r chi.Router) {
			r.Get("/", s.handleGetSelection)
			r.Put("/", s.handleSetSelection)
			r.Delete("/", s.handleResetSelection)
		})

		r.Post("/detect", s.handleDetect)

		r.Route("/sweeps", func(r chi.Router) {
			r.Get("/", s.handleListSweeps)
			r.Get("/{id}", s.handleGetSweep)
		})

		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// componentHealth is one entry of the health response.
type componentHealth struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// handleHealth reports the server status and every registered component.
// Any failing component degrades the response to 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := "ok"
	code := http.StatusOK
	components := make(map[string]componentHealth, len(names))
	for _, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := s.checks[name].HealthCheck(ctx)
		cancel()

		if err != nil {
			components[name] = componentHealth{Status: "error", Error: err.Error()}
			status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		components[name] = componentHealth{Status: "ok"}
	}

	writeJSON(w, code, map[string]any{
		"status":     status,
		"version":    s.version,
		"components": components,
	})
}

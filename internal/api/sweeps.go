package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/devsel/internal/history"
)

// handleDetect runs a sweep synchronously and returns its result. Sweeps
// are serialised by the detector, so a concurrent request waits its turn.
func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	result := s.detector.Detect(r.Context())
	writeJSON(w, http.StatusOK, result)
}

// handleListSweeps returns recorded sweeps, newest first.
func (s *Server) handleListSweeps(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeUnavailable(w, "sweep history is disabled")
		return
	}

	limit := history.DefaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	sweeps, err := s.history.List(r.Context(), limit)
	if err != nil {
		s.logger.Error("listing sweeps", "error", err)
		writeInternalError(w, "failed to list sweeps")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"sweeps": sweeps,
		"count":  len(sweeps),
	})
}

// handleGetSweep returns one recorded sweep.
func (s *Server) handleGetSweep(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeUnavailable(w, "sweep history is disabled")
		return
	}

	id := chi.URLParam(r, "id")
	sweep, err := s.history.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, history.ErrSweepNotFound) {
			writeNotFound(w, "sweep not found: "+id)
			return
		}
		s.logger.Error("loading sweep", "sweep_id", id, "error", err)
		writeInternalError(w, "failed to load sweep")
		return
	}
	writeJSON(w, http.StatusOK, sweep)
}

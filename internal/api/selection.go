package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/nerrad567/devsel/internal/device"
)

// selectionResponse describes the catalog's current selection.
type selectionResponse struct {
	Selection   device.Selection `json:"selection"`
	Enabled     bool             `json:"enabled"`
	System      *device.System   `json:"system,omitempty"`
	Description string           `json:"description,omitempty"`
}

// selectRequest is the body of PUT /selection.
type selectRequest struct {
	ID string `json:"id"`
}

// snapshot reads the selection state. The caller holds the detector.
func snapshot(c *device.Catalog) selectionResponse {
	resp := selectionResponse{
		Selection: c.Selection(),
		Enabled:   c.IsEnabled(),
	}
	if text, ok := c.Describe(); ok {
		sys := c.System()
		resp.System = &sys
		resp.Description = text
	}
	return resp
}

// handleGetSelection returns the current selection.
func (s *Server) handleGetSelection(w http.ResponseWriter, _ *http.Request) {
	var resp selectionResponse
	s.detector.Do(func(c *device.Catalog) {
		resp = snapshot(c)
	})
	writeJSON(w, http.StatusOK, resp)
}

// handleSetSelection selects a device by id.
//
// An unknown id answers 404 and leaves the selection alone. A device missing
// mandatory keys is still selected, with blank fields, and answers 422.
func (s *Server) handleSetSelection(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	req.ID = strings.TrimSpace(req.ID)
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "id is required")
		return
	}

	var (
		outcome device.Outcome
		err     error
		resp    selectionResponse
	)
	s.detector.Do(func(c *device.Catalog) {
		outcome, err = c.Select(req.ID)
		resp = snapshot(c)
	})

	if outcome == device.OutcomeSelected || outcome == device.OutcomeInvalid {
		s.hub.Broadcast(EventSelectionChanged, resp)
	}

	switch {
	case errors.Is(err, device.ErrDeviceNotFound):
		writeNotFound(w, err.Error())
	case errors.Is(err, device.ErrInvalidDevice):
		s.logger.Warn("selected device has an invalid configuration", "device_id", req.ID, "error", err)
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":     Error{Status: http.StatusUnprocessableEntity, Code: ErrCodeInvalidDevice, Message: err.Error()},
			"outcome":   outcome,
			"selection": resp,
		})
	case err != nil:
		writeInternalError(w, err.Error())
	default:
		s.logger.Info("device selected", "device_id", req.ID)
		writeJSON(w, http.StatusOK, resp)
	}
}

// handleResetSelection clears the selection.
func (s *Server) handleResetSelection(w http.ResponseWriter, _ *http.Request) {
	var resp selectionResponse
	s.detector.Do(func(c *device.Catalog) {
		c.Reset()
		resp = snapshot(c)
	})
	s.hub.Broadcast(EventSelectionChanged, resp)
	writeJSON(w, http.StatusOK, resp)
}

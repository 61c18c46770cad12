package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/devsel/internal/device"
)

// deviceSummary is one entry of the device list.
type deviceSummary struct {
	ID      string `json:"id"`
	Enabled bool   `json:"enabled"`
}

// handleListDevices returns every configured id with its enable flag.
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	var devices []deviceSummary
	s.detector.Do(func(c *device.Catalog) {
		ids := c.IDs()
		devices = make([]deviceSummary, 0, len(ids))
		for _, id := range ids {
			devices = append(devices, deviceSummary{ID: id, Enabled: c.Enabled(id)})
		}
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"devices": devices,
		"count":   len(devices),
	})
}

// handleGetDevice returns the full record of one device.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var (
		record device.Section
		found  bool
	)
	s.detector.Do(func(c *device.Catalog) {
		record, found = c.Lookup(id)
	})

	if !found {
		writeNotFound(w, "device not found: "+id)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":     id,
		"record": record,
	})
}

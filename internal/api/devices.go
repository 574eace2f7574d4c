package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/biostream-core/internal/core"
	"github.com/nerrad567/biostream-core/internal/device"
)

// handleListDevices returns snapshots of all known devices.
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	devices := s.core.Devices()
	writeJSON(w, http.StatusOK, map[string]any{
		"devices": devices,
		"count":   len(devices),
	})
}

// handleGetDevice returns a snapshot of one device.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	d, err := s.core.Device(id)
	if err != nil {
		writeNotFound(w, "device not found: "+id)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// handleConnect initiates a connection to the device. The outcome is
// observed via the WebSocket device channel.
func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.core.Connect(id); err != nil {
		writeInternalError(w, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "connecting", "id": id})
}

// handleDisconnect initiates a disconnect from the device.
func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.core.Disconnect(id); err != nil {
		switch {
		case errors.Is(err, device.ErrDeviceNotFound):
			writeNotFound(w, "device not found: "+id)
		case errors.Is(err, device.ErrInvalidTransition):
			writeConflict(w, "device is not connected")
		default:
			writeInternalError(w, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "disconnecting", "id": id})
}

// handleDisconnectAll disconnects every connected device.
func (s *Server) handleDisconnectAll(w http.ResponseWriter, _ *http.Request) {
	s.core.DisconnectAll()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "disconnecting"})
}

// handleGetCapabilities returns the negotiated capabilities.
func (s *Server) handleGetCapabilities(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	caps, err := s.core.GetCapabilities(id)
	if err != nil {
		switch {
		case errors.Is(err, device.ErrDeviceNotFound):
			writeNotFound(w, "device not found: "+id)
		case errors.Is(err, core.ErrNotNegotiated):
			writeConflict(w, "capabilities not negotiated: "+id)
		default:
			writeInternalError(w, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, caps)
}

// handleGetSettings returns the negotiated settings.
func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	settings, err := s.core.GetSettings(id)
	if err != nil {
		switch {
		case errors.Is(err, device.ErrDeviceNotFound):
			writeNotFound(w, "device not found: "+id)
		case errors.Is(err, core.ErrNotNegotiated):
			writeConflict(w, "settings not negotiated: "+id)
		default:
			writeInternalError(w, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// setClockRequest is the request body for PUT /devices/{id}/clock.
// A zero value means "now".
type setClockRequest struct {
	Time time.Time `json:"time"`
}

// handleSetClock writes the device clock.
func (s *Server) handleSetClock(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req setClockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Time.IsZero() {
		req.Time = time.Now()
	}

	if err := s.core.SetClock(r.Context(), id, req.Time); err != nil {
		writeInternalError(w, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "time": req.Time})
}

// setStreamingModeRequest is the request body for PUT /devices/{id}/streaming-mode.
type setStreamingModeRequest struct {
	Enabled *bool `json:"enabled"`
}

// handleSetStreamingMode toggles the firmware streaming mode.
func (s *Server) handleSetStreamingMode(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req setStreamingModeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Enabled == nil {
		writeBadRequest(w, "enabled is required")
		return
	}

	if err := s.core.SetStreamingMode(r.Context(), id, *req.Enabled); err != nil {
		writeInternalError(w, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "enabled": *req.Enabled})
}

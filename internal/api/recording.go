package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/biostream-core/internal/recording"
)

// startRecordingRequest is the request body for POST /recording/start.
// A signal mapped to an empty setting set streams with the device's
// negotiated default setting.
type startRecordingRequest struct {
	Name      string              `json:"name"`
	Selection recording.Selection `json:"selection"`
}

// handleStartRecording starts a recording session. The session context
// outlives the request: streams run until the session stops.
func (s *Server) handleStartRecording(w http.ResponseWriter, r *http.Request) {
	var req startRecordingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	s.applyDefaultSettings(req.Selection)

	if err := s.core.StartRecording(s.baseContext(), req.Name, req.Selection); err != nil {
		switch {
		case errors.Is(err, recording.ErrAlreadyRunning):
			writeConflict(w, err.Error())
		default:
			writeBadRequest(w, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "recording", "name": req.Name})
}

// applyDefaultSettings fills empty per-signal setting sets from the
// device's negotiated default.
func (s *Server) applyDefaultSettings(sel recording.Selection) {
	for deviceID, signals := range sel {
		caps, err := s.core.GetCapabilities(deviceID)
		if err != nil {
			continue // session start will report the precondition failure
		}
		for sig, setting := range signals {
			if !setting.IsEmpty() {
				continue
			}
			if pair, ok := caps.Signals[sig]; ok {
				signals[sig] = pair.Default.Clone()
			}
		}
	}
}

// handleStopRecording stops the active recording session.
func (s *Server) handleStopRecording(w http.ResponseWriter, _ *http.Request) {
	if err := s.core.StopRecording(); err != nil {
		if errors.Is(err, recording.ErrNotRunning) {
			writeConflict(w, err.Error())
			return
		}
		writeInternalError(w, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

// handleRecordingStatus reports the running flag, session name and the
// live last-value view.
func (s *Server) handleRecordingStatus(w http.ResponseWriter, _ *http.Request) {
	running, name := s.core.Recording()
	writeJSON(w, http.StatusOK, map[string]any{
		"running":       running,
		"name":          name,
		"last_values":   s.core.LastValues(),
		"timestamps":    s.core.Timestamps(),
		"refreshing":    s.core.Refreshing(),
		"radio_enabled": s.core.RadioEnabled(),
	})
}

// handleLogs returns the journal contents.
func (s *Server) handleLogs(w http.ResponseWriter, _ *http.Request) {
	entries := s.core.LogEntries()
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}

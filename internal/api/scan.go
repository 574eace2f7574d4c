package api

import (
	"context"
	"net/http"
)

// handleScan runs one single-shot discovery cycle, superseding any
// cycle already in flight.
func (s *Server) handleScan(w http.ResponseWriter, _ *http.Request) {
	if err := s.core.StartScan(s.baseContext()); err != nil {
		writeInternalError(w, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":     "scanning",
		"refreshing": s.core.Refreshing(),
	})
}

// handleStartPeriodicScan begins periodic discovery. Starting while
// already active is a no-op. The cycle context outlives the request:
// periodic mode runs until explicitly stopped or the server shuts down.
func (s *Server) handleStartPeriodicScan(w http.ResponseWriter, _ *http.Request) {
	s.core.StartPeriodicScan(s.baseContext())
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "periodic scanning"})
}

// baseContext returns the server-lifetime context for operations that
// must outlive the triggering request.
func (s *Server) baseContext() context.Context {
	if s.srvCtx != nil {
		return s.srvCtx
	}
	return context.Background()
}

// handleStopPeriodicScan cancels the periodic timer and any in-flight
// cycle.
func (s *Server) handleStopPeriodicScan(w http.ResponseWriter, _ *http.Request) {
	s.core.StopPeriodicScan()
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

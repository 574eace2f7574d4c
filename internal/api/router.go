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
	r.Use(s.bodySizeLimitMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// Auth endpoints (no auth required)
		r.Post("/auth/login", s.handleLogin)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			// WS ticket requires authentication
			r.Post("/auth/ws-ticket", s.handleWSTicket)

			// Device endpoints
			r.Route("/devices", func(r chi.Router) {
				r.Get("/", s.handleListDevices)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetDevice)
					r.Post("/connect", s.handleConnect)
					r.Post("/disconnect", s.handleDisconnect)
					r.Get("/capabilities", s.handleGetCapabilities)
					r.Get("/settings", s.handleGetSettings)
					r.Put("/clock", s.handleSetClock)
					r.Put("/streaming-mode", s.handleSetStreamingMode)
				})
			})
			r.Post("/devices/disconnect-all", s.handleDisconnectAll)

			// Discovery endpoints
			r.Route("/scan", func(r chi.Router) {
				r.Post("/", s.handleScan)
				r.Post("/periodic/start", s.handleStartPeriodicScan)
				r.Post("/periodic/stop", s.handleStopPeriodicScan)
			})

			// Recording endpoints
			r.Route("/recording", func(r chi.Router) {
				r.Post("/start", s.handleStartRecording)
				r.Post("/stop", s.handleStopRecording)
				r.Get("/status", s.handleRecordingStatus)
			})

			// Journal entries
			r.Get("/logs", s.handleLogs)

			// WebSocket (auth via ticket, validated in handler)
			r.Get("/ws", s.handleWebSocket)
		})
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

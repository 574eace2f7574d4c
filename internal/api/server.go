// Package api provides the HTTP REST API and WebSocket server for
// BioStream Core.
//
// It exposes the orchestrator command surface (connect, scan, record),
// device snapshots and live values to operator frontends, and streams
// device-state and recording events over WebSocket.
//
// The server follows the same lifecycle pattern as other infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple
// goroutines.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/biostream-core/internal/device"
	"github.com/nerrad567/biostream-core/internal/infrastructure/config"
	"github.com/nerrad567/biostream-core/internal/infrastructure/logging"
	"github.com/nerrad567/biostream-core/internal/logbuf"
	"github.com/nerrad567/biostream-core/internal/recording"
	"github.com/nerrad567/biostream-core/internal/sensor"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight
// requests to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Orchestrator is the command surface the API exposes over HTTP.
// Satisfied by *core.Service.
type Orchestrator interface {
	Connect(id string) error
	Disconnect(id string) error
	DisconnectAll()
	StartScan(ctx context.Context) error
	StartPeriodicScan(ctx context.Context)
	StopPeriodicScan()
	StartRecording(ctx context.Context, name string, selection recording.Selection) error
	StopRecording() error
	GetCapabilities(id string) (sensor.Capabilities, error)
	GetSettings(id string) (sensor.Settings, error)
	SetClock(ctx context.Context, id string, t time.Time) error
	SetStreamingMode(ctx context.Context, id string, enabled bool) error
	Devices() []device.Device
	Device(id string) (device.Device, error)
	LastValues() map[string]map[sensor.SignalType]*float64
	Timestamps() map[string]time.Time
	Recording() (running bool, name string)
	Refreshing() bool
	RadioEnabled() bool
	LogEntries() []logbuf.Entry
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config  config.APIConfig
	Logger  *logging.Logger
	Core    Orchestrator
	Version string
}

// Server is the HTTP API server for BioStream Core.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg     config.APIConfig
	logger  *logging.Logger
	core    Orchestrator
	version string
	server  *http.Server
	hub     *Hub
	tickets *ticketStore
	srvCtx  context.Context
	cancel  context.CancelFunc
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Core == nil {
		return nil, fmt.Errorf("core service is required")
	}

	return &Server{
		cfg:     deps.Config,
		logger:  deps.Logger,
		core:    deps.Core,
		version: deps.Version,
		tickets: newTicketStore(),
	}, nil
}

// Hub returns the WebSocket hub, creating it if needed. Wire it to the
// core notifier before Start so broadcasts reach connected clients.
func (s *Server) Hub() *Hub {
	if s.hub == nil {
		s.hub = NewHub(s.logger)
	}
	return s.hub
}

// Start begins listening for HTTP connections.
//
// It sets up the router, starts the WebSocket hub and the ticket
// cleanup loop, and launches the HTTP listener in a background
// goroutine. The server is stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	s.srvCtx, s.cancel = context.WithCancel(ctx)

	hub := s.Hub()
	go hub.Run(s.srvCtx)
	go s.cleanTicketsLoop(s.srvCtx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	s.logger.Info("API server listening", "address", s.server.Addr)
	return nil
}

// Close gracefully shuts down the API server, waiting up to 10 seconds
// for in-flight requests.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}
	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}
	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}

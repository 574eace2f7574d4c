package scan

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/biostream-core/internal/device"
	"github.com/nerrad567/biostream-core/internal/infrastructure/config"
	"github.com/nerrad567/biostream-core/internal/logbuf"
	"github.com/nerrad567/biostream-core/internal/sensor"
)

// Logger defines the logging interface used by the Scheduler.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// cycle identifies one in-flight discovery cycle so a superseded cycle
// cannot clear state belonging to its successor.
type cycle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Scheduler owns the single mutable "current scan" slot. Starting a new
// discovery cycle atomically supersedes (cancels) any prior one, whether
// it came from the periodic timer or a manual request.
type Scheduler struct {
	transport sensor.Transport
	registry  *device.Registry
	journal   *logbuf.Buffer
	cfg       config.RecorderConfig

	mu             sync.Mutex
	current        *cycle
	periodicCancel context.CancelFunc
	refreshing     bool

	logger   Logger
	loggerMu sync.RWMutex
}

// New creates a Scheduler.
func New(transport sensor.Transport, registry *device.Registry, journal *logbuf.Buffer, cfg config.RecorderConfig) *Scheduler {
	return &Scheduler{
		transport: transport,
		registry:  registry,
		journal:   journal,
		cfg:       cfg,
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for the scheduler.
func (s *Scheduler) SetLogger(logger Logger) {
	s.loggerMu.Lock()
	s.logger = logger
	s.loggerMu.Unlock()
}

func (s *Scheduler) log() Logger {
	s.loggerMu.RLock()
	defer s.loggerMu.RUnlock()
	return s.logger
}

// Scan starts one discovery cycle, cancelling and superseding any cycle
// already in flight. The cycle runs for the configured duration in its
// own goroutine; Scan returns once the transport's discovery feed is
// open.
func (s *Scheduler) Scan(ctx context.Context) error {
	cycleCtx, cancel := context.WithTimeout(ctx, s.cfg.ScanDuration)

	c := &cycle{cancel: cancel, done: make(chan struct{})}

	s.mu.Lock()
	if s.current != nil {
		s.current.cancel()
	}
	s.current = c
	s.refreshing = true
	s.mu.Unlock()

	discovered, err := s.transport.Scan(cycleCtx)
	if err != nil {
		cancel()
		s.finishCycle(c)
		close(c.done)
		s.journal.Errorf("Scan failed: %v", err)
		return fmt.Errorf("scan: starting discovery: %w", err)
	}

	s.journal.Infof("Scanning for devices...")
	go s.runCycle(c, discovered)
	return nil
}

// runCycle drains the discovery feed until it closes (cycle timeout,
// cancellation, or transport exhaustion) and records what was seen.
func (s *Scheduler) runCycle(c *cycle, discovered <-chan sensor.Discovered) {
	defer close(c.done)
	defer c.cancel()

	found := 0
	fresh := 0
	for d := range discovered {
		found++
		if s.registry.AddDiscovered(d.ID, d.Name) {
			fresh++
			s.journal.Infof("Found device %s (%s)", d.Name, d.ID)
		}
	}

	superseded := s.finishCycle(c)
	if !superseded {
		s.log().Debug("discovery cycle complete", "seen", found, "new", fresh)
	}
}

// finishCycle clears the current-cycle slot if it still belongs to c.
// Returns true if c had already been superseded by a newer cycle.
func (s *Scheduler) finishCycle(c *cycle) (superseded bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != c {
		return true
	}
	s.current = nil
	s.refreshing = false
	return false
}

// StartPeriodic begins periodic discovery: one cycle immediately, then
// one every configured interval. Calling it while periodic mode is
// already active is a no-op with a warning.
func (s *Scheduler) StartPeriodic(ctx context.Context) {
	s.mu.Lock()
	if s.periodicCancel != nil {
		s.mu.Unlock()
		s.log().Warn("periodic scan already active, ignoring start request")
		return
	}
	pctx, cancel := context.WithCancel(ctx)
	s.periodicCancel = cancel
	s.mu.Unlock()

	go s.periodicLoop(pctx)
}

func (s *Scheduler) periodicLoop(ctx context.Context) {
	if err := s.Scan(ctx); err != nil {
		s.log().Warn("periodic scan cycle failed", "error", err)
	}

	ticker := time.NewTicker(s.cfg.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Scan(ctx); err != nil {
				s.log().Warn("periodic scan cycle failed", "error", err)
			}
		}
	}
}

// StopPeriodic cancels the periodic timer and any in-flight cycle.
// Safe to call when periodic mode is not active.
func (s *Scheduler) StopPeriodic() {
	s.mu.Lock()
	cancel := s.periodicCancel
	s.periodicCancel = nil
	current := s.current
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if current != nil {
		current.cancel()
	}
}

// PeriodicActive reports whether periodic discovery is running.
func (s *Scheduler) PeriodicActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.periodicCancel != nil
}

// Refreshing reports whether a discovery cycle is currently in flight.
func (s *Scheduler) Refreshing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshing
}

// Wait blocks until the current cycle (if any) finishes. Intended for
// tests and shutdown.
func (s *Scheduler) Wait() {
	s.mu.Lock()
	current := s.current
	s.mu.Unlock()
	if current != nil {
		<-current.done
	}
}

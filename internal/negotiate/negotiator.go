package negotiate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/biostream-core/internal/device"
	"github.com/nerrad567/biostream-core/internal/infrastructure/config"
	"github.com/nerrad567/biostream-core/internal/logbuf"
	"github.com/nerrad567/biostream-core/internal/sensor"
)

// Logger defines the logging interface used by the Negotiator.
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

// Negotiator performs capability and settings discovery for devices that
// have just connected, promoting them to ready or failing the connection.
//
// Retry bounds and delays come from the recorder configuration so tests
// can compress them.
type Negotiator struct {
	transport sensor.Transport
	registry  *device.Registry
	journal   *logbuf.Buffer
	cfg       config.RecorderConfig

	logger   Logger
	loggerMu sync.RWMutex
}

// New creates a Negotiator.
func New(transport sensor.Transport, registry *device.Registry, journal *logbuf.Buffer, cfg config.RecorderConfig) *Negotiator {
	return &Negotiator{
		transport: transport,
		registry:  registry,
		journal:   journal,
		cfg:       cfg,
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for the negotiator.
func (n *Negotiator) SetLogger(logger Logger) {
	n.loggerMu.Lock()
	n.logger = logger
	n.loggerMu.Unlock()
}

func (n *Negotiator) log() Logger {
	n.loggerMu.RLock()
	defer n.loggerMu.RUnlock()
	return n.logger
}

// Negotiate discovers capabilities and settings for a freshly connected
// device and promotes it to ready.
//
// The sequence:
//  1. Wait (bounded, best-effort) for the device info or online streaming
//     feature to become ready.
//  2. Fetch available signal types plus per-signal setting pairs, retrying
//     on any failure up to the configured attempt count.
//  3. On exhaustion, derive a minimal capability set from the readiness
//     flags already observed.
//  4. Non-empty capabilities: fetch clock and streaming-mode settings
//     (each independent, failures logged only) and mark the device ready.
//  5. Empty capabilities: mark the device failed and disconnect it.
//
// Negotiate is safe to call from its own goroutine; duplicate calls for
// the same device are rejected by the registry's transition guard.
func (n *Negotiator) Negotiate(ctx context.Context, id string) error {
	if err := n.registry.BeginCapabilities(id); err != nil {
		return fmt.Errorf("negotiate %s: %w", id, err)
	}

	n.waitForReadiness(ctx, id)

	caps, err := n.fetchWithRetry(ctx, id)
	if err != nil {
		n.log().Warn("primary capability fetch exhausted, using fallback",
			"device", id, "error", err)
		caps = n.fallbackCapabilities(id)
	}

	if caps.IsEmpty() {
		n.journal.Errorf("No capabilities found for %s, disconnecting", id)
		if markErr := n.registry.MarkFailed(id); markErr != nil {
			n.log().Error("failed to mark device failed", "device", id, "error", markErr)
		}
		if discErr := n.transport.Disconnect(id); discErr != nil {
			n.log().Error("disconnect after failed negotiation", "device", id, "error", discErr)
		}
		return fmt.Errorf("negotiate %s: %w", id, ErrNoCapabilities)
	}

	if err := n.registry.BeginSettings(id); err != nil {
		return fmt.Errorf("negotiate %s: %w", id, err)
	}

	settings := n.fetchSettings(ctx, id)

	if err := n.registry.SetReady(id, caps, settings); err != nil {
		return fmt.Errorf("negotiate %s: %w", id, err)
	}

	n.journal.Successf("Device %s ready with %d signal types", id, len(caps.Signals))
	n.log().Info("device ready", "device", id, "signals", caps.Types())
	return nil
}

// waitForReadiness polls the feature flags until the device info or online
// streaming feature is ready, or the configured bound expires. Expiry is
// not an error; the capability fetch proceeds best-effort either way.
func (n *Negotiator) waitForReadiness(ctx context.Context, id string) {
	deadline := time.Now().Add(n.cfg.ReadinessWait)
	for {
		if n.registry.HasFeature(id, sensor.FeatureDeviceInfo) ||
			n.registry.HasFeature(id, sensor.FeatureOnlineStreaming) {
			return
		}
		if time.Now().After(deadline) {
			n.log().Debug("readiness wait expired", "device", id)
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(n.cfg.ReadinessPoll):
		}
	}
}

// fetchWithRetry runs the primary capability fetch with the configured
// bounded retry. Every failed attempt is journalled with its number.
func (n *Negotiator) fetchWithRetry(ctx context.Context, id string) (sensor.Capabilities, error) {
	var lastErr error
	for attempt := 1; attempt <= n.cfg.CapabilityAttempts; attempt++ {
		caps, err := n.fetchCapabilities(ctx, id)
		if err == nil {
			return caps, nil
		}
		lastErr = err

		n.journal.Errorf("Capability fetch for %s failed (attempt %d/%d): %v",
			id, attempt, n.cfg.CapabilityAttempts, err)
		n.log().Warn("capability fetch failed",
			"device", id, "attempt", attempt, "max_attempts", n.cfg.CapabilityAttempts, "error", err)

		if attempt == n.cfg.CapabilityAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return sensor.Capabilities{}, ctx.Err()
		case <-time.After(n.cfg.CapabilityRetryDelay):
		}
	}
	return sensor.Capabilities{}, lastErr
}

// fetchCapabilities performs one primary fetch attempt: available signal
// types, then the (default, full) setting pair for each type. The
// per-signal queries run concurrently and join all-or-nothing; one failed
// query fails the whole attempt.
func (n *Negotiator) fetchCapabilities(ctx context.Context, id string) (sensor.Capabilities, error) {
	if !n.registry.HasFeature(id, sensor.FeatureDeviceInfo) {
		return sensor.Capabilities{}, ErrDeviceInfoUnavailable
	}

	types, err := n.transport.AvailableSignalTypes(ctx, id)
	if err != nil {
		return sensor.Capabilities{}, fmt.Errorf("querying signal types: %w", err)
	}
	if len(types) == 0 {
		return sensor.Capabilities{}, nil
	}

	var mu sync.Mutex
	signals := make(map[sensor.SignalType]sensor.SettingPair, len(types))

	g, gctx := errgroup.WithContext(ctx)
	for _, sig := range types {
		g.Go(func() error {
			pair, err := n.transport.SignalSettings(gctx, id, sig)
			if err != nil {
				return fmt.Errorf("querying %s settings: %w", sig, err)
			}
			mu.Lock()
			signals[sig] = pair
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return sensor.Capabilities{}, err
	}

	return sensor.Capabilities{Signals: signals}, nil
}

// fallbackCapabilities derives a minimal capability set from the feature
// flags observed so far. A ready heart-rate feature yields an HR-only set
// with empty settings; online streaming alone tells us nothing about
// individual signals, so the result may legitimately be empty.
func (n *Negotiator) fallbackCapabilities(id string) sensor.Capabilities {
	if !n.registry.HasFeature(id, sensor.FeatureHR) {
		return sensor.Capabilities{}
	}
	n.journal.Infof("Using heuristic capabilities for %s (heart rate only)", id)
	return sensor.Capabilities{
		Signals: map[sensor.SignalType]sensor.SettingPair{
			sensor.SignalHR: {},
		},
	}
}

// fetchSettings reads the device clock and streaming-mode flag, each only
// if its feature is ready. The two queries are independent; a failure on
// one is logged and does not block the other.
func (n *Negotiator) fetchSettings(ctx context.Context, id string) sensor.Settings {
	var settings sensor.Settings

	if n.registry.HasFeature(id, sensor.FeatureClockSetup) {
		if clock, err := n.transport.Clock(ctx, id); err != nil {
			n.log().Warn("clock query failed", "device", id, "error", err)
		} else {
			settings.ClockAtConnect = &clock
		}
	}

	if n.registry.HasFeature(id, sensor.FeatureStreamingMode) {
		if mode, err := n.transport.StreamingMode(ctx, id); err != nil {
			n.log().Warn("streaming mode query failed", "device", id, "error", err)
		} else {
			settings.StreamingMode = &mode
		}
	}

	return settings
}

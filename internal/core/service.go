package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/biostream-core/internal/device"
	"github.com/nerrad567/biostream-core/internal/logbuf"
	"github.com/nerrad567/biostream-core/internal/negotiate"
	"github.com/nerrad567/biostream-core/internal/recording"
	"github.com/nerrad567/biostream-core/internal/scan"
	"github.com/nerrad567/biostream-core/internal/sensor"
)

// Logger defines the logging interface used by the Service.
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

// Notifier receives change notifications for interested observers such
// as the WebSocket hub. Implementations must not block: notifications
// are delivered from the dispatcher goroutine.
type Notifier interface {
	DeviceChanged(d device.Device)
	RecordingChanged(running bool, name string)
}

// noopNotifier discards notifications.
type noopNotifier struct{}

func (noopNotifier) DeviceChanged(device.Device)   {}
func (noopNotifier) RecordingChanged(bool, string) {}

// Service is the orchestrator's command surface. It consumes transport
// events on a single dispatcher goroutine (Run), updates the registry,
// and fans out to the negotiator, the stream supervisor and the
// recording session.
type Service struct {
	transport  sensor.Transport
	registry   *device.Registry
	negotiator *negotiate.Negotiator
	scanner    *scan.Scheduler
	session    *recording.Session
	journal    *logbuf.Buffer

	mu           sync.RWMutex
	radioEnabled bool
	notifier     Notifier
	logger       Logger

	wg sync.WaitGroup
}

// New creates the service. Run must be called before transport events
// are processed.
func New(
	transport sensor.Transport,
	registry *device.Registry,
	negotiator *negotiate.Negotiator,
	scanner *scan.Scheduler,
	session *recording.Session,
	journal *logbuf.Buffer,
) *Service {
	return &Service{
		transport:    transport,
		registry:     registry,
		negotiator:   negotiator,
		scanner:      scanner,
		session:      session,
		journal:      journal,
		radioEnabled: true,
		notifier:     noopNotifier{},
		logger:       noopLogger{},
	}
}

// SetLogger sets the logger for the service.
func (s *Service) SetLogger(logger Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger = logger
}

// SetNotifier sets the change notifier.
func (s *Service) SetNotifier(n Notifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifier = n
}

func (s *Service) log() Logger {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.logger
}

func (s *Service) notify() Notifier {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.notifier
}

// Run consumes the transport event channel until the context is
// cancelled or the transport shuts down. It blocks; run it on its own
// goroutine. Negotiation goroutines spawned for connecting devices are
// awaited before Run returns.
func (s *Service) Run(ctx context.Context) error {
	defer s.wg.Wait()

	events := s.transport.Events()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				s.log().Info("transport event channel closed")
				return nil
			}
			s.handleEvent(ctx, ev)
		}
	}
}

// handleEvent applies one transport event. Runs on the dispatcher
// goroutine; registry writes for transport-driven transitions happen
// only here.
func (s *Service) handleEvent(ctx context.Context, ev sensor.Event) {
	switch ev.Kind {
	case sensor.EventConnecting:
		s.registry.MarkConnecting(ev.DeviceID, ev.Name)
		s.notifyDevice(ev.DeviceID)

	case sensor.EventConnected:
		s.registry.MarkConnectedRaw(ev.DeviceID, ev.Name)
		s.notifyDevice(ev.DeviceID)
		s.wg.Add(1)
		go s.negotiate(ctx, ev.DeviceID)

	case sensor.EventDisconnected:
		expected, err := s.registry.MarkDisconnected(ev.DeviceID)
		if err != nil {
			s.log().Warn("disconnect for unknown device", "id", ev.DeviceID)
			return
		}
		if !expected {
			s.journal.Errorf("Device %s disconnected unexpectedly", ev.DeviceID)
		}
		if s.session.HandleDeviceDisconnected(ev.DeviceID) {
			s.notify().RecordingChanged(false, "")
		}
		s.notifyDevice(ev.DeviceID)

	case sensor.EventFeatureReady:
		s.registry.MarkFeatureReady(ev.DeviceID, ev.Feature)

	case sensor.EventBattery:
		s.registry.SetBattery(ev.DeviceID, ev.Battery)
		s.notifyDevice(ev.DeviceID)

	case sensor.EventRadioState:
		s.mu.Lock()
		s.radioEnabled = ev.RadioEnabled
		s.mu.Unlock()
		s.log().Info("radio state changed", "enabled", ev.RadioEnabled)

	case sensor.EventDeviceNotice:
		if ev.NoticeKey == sensor.NoticeFirmwareVersion {
			s.registry.SetFirmwareVersion(ev.DeviceID, ev.NoticeValue)
		}

	default:
		s.log().Debug("unhandled transport event", "kind", ev.Kind, "id", ev.DeviceID)
	}
}

// negotiate runs the post-connect sequence for one device and, on
// success, lets the session restore streams for reconnecting devices.
func (s *Service) negotiate(ctx context.Context, id string) {
	defer s.wg.Done()

	if err := s.negotiator.Negotiate(ctx, id); err != nil {
		s.log().Error("capability negotiation failed", "id", id, "error", err)
		s.notifyDevice(id)
		return
	}
	s.session.HandleDeviceReady(id)
	s.notifyDevice(id)
}

func (s *Service) notifyDevice(id string) {
	d, err := s.registry.Get(id)
	if err != nil {
		return
	}
	s.notify().DeviceChanged(d)
}

// Connect initiates a connection to the device. The outcome is observed
// via transport events.
func (s *Service) Connect(id string) error {
	if err := s.transport.Connect(id); err != nil {
		return fmt.Errorf("connecting to %s: %w", id, err)
	}
	return nil
}

// Disconnect initiates a disconnect from the device, marking the
// following disconnected event as expected.
func (s *Service) Disconnect(id string) error {
	if err := s.registry.MarkDisconnecting(id); err != nil {
		return err
	}
	if err := s.transport.Disconnect(id); err != nil {
		return fmt.Errorf("disconnecting %s: %w", id, err)
	}
	return nil
}

// DisconnectAll disconnects every device with an established link.
// Failures are logged and the remaining devices are still attempted.
func (s *Service) DisconnectAll() {
	for _, d := range s.registry.Connected() {
		if err := s.Disconnect(d.ID); err != nil {
			s.log().Warn("disconnect failed", "id", d.ID, "error", err)
		}
	}
}

// StartScan runs one single-shot discovery cycle, superseding any cycle
// already in flight.
func (s *Service) StartScan(ctx context.Context) error {
	return s.scanner.Scan(ctx)
}

// StartPeriodicScan begins periodic discovery.
func (s *Service) StartPeriodicScan(ctx context.Context) {
	s.scanner.StartPeriodic(ctx)
}

// StopPeriodicScan cancels the periodic timer and any in-flight cycle.
func (s *Service) StopPeriodicScan() {
	s.scanner.StopPeriodic()
}

// StartRecording starts a recording session over the selected devices
// and signals.
func (s *Service) StartRecording(ctx context.Context, name string, selection recording.Selection) error {
	if err := s.session.Start(ctx, name, selection); err != nil {
		return err
	}
	s.notify().RecordingChanged(true, name)
	return nil
}

// StopRecording stops the active recording session.
func (s *Service) StopRecording() error {
	if err := s.session.Stop(); err != nil {
		return err
	}
	s.notify().RecordingChanged(false, "")
	return nil
}

// GetCapabilities returns the negotiated capabilities for the device.
func (s *Service) GetCapabilities(id string) (sensor.Capabilities, error) {
	d, err := s.registry.Get(id)
	if err != nil {
		return sensor.Capabilities{}, err
	}
	if d.Capabilities == nil {
		return sensor.Capabilities{}, fmt.Errorf("%w: %s", ErrNotNegotiated, id)
	}
	return *d.Capabilities, nil
}

// GetSettings returns the negotiated settings for the device.
func (s *Service) GetSettings(id string) (sensor.Settings, error) {
	d, err := s.registry.Get(id)
	if err != nil {
		return sensor.Settings{}, err
	}
	if d.Settings == nil {
		return sensor.Settings{}, fmt.Errorf("%w: %s", ErrNotNegotiated, id)
	}
	return *d.Settings, nil
}

// SetClock writes the device clock.
func (s *Service) SetClock(ctx context.Context, id string, t time.Time) error {
	if err := s.transport.SetClock(ctx, id, t); err != nil {
		return fmt.Errorf("setting clock on %s: %w", id, err)
	}
	s.journal.Infof("Clock set on %s", id)
	return nil
}

// SetStreamingMode enables or disables the firmware streaming mode.
func (s *Service) SetStreamingMode(ctx context.Context, id string, enabled bool) error {
	if err := s.transport.SetStreamingMode(ctx, id, enabled); err != nil {
		return fmt.Errorf("setting streaming mode on %s: %w", id, err)
	}
	s.journal.Infof("Streaming mode on %s set to %t", id, enabled)
	return nil
}

// Devices returns snapshots of all known devices, ordered by ID.
func (s *Service) Devices() []device.Device {
	return s.registry.Snapshot()
}

// Device returns a snapshot of one device.
func (s *Service) Device(id string) (device.Device, error) {
	return s.registry.Get(id)
}

// LastValues returns the session's last-value cache snapshot.
func (s *Service) LastValues() map[string]map[sensor.SignalType]*float64 {
	return s.session.LastValues()
}

// Timestamps returns the session's last-update timestamps per device.
func (s *Service) Timestamps() map[string]time.Time {
	return s.session.Timestamps()
}

// Recording reports whether a session is running and its name.
func (s *Service) Recording() (running bool, name string) {
	return s.session.Running(), s.session.Name()
}

// Refreshing reports whether a discovery cycle is in flight.
func (s *Service) Refreshing() bool {
	return s.scanner.Refreshing()
}

// RadioEnabled reports the last known radio power state.
func (s *Service) RadioEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.radioEnabled
}

// LogEntries returns the journal contents.
func (s *Service) LogEntries() []logbuf.Entry {
	return s.journal.Entries()
}

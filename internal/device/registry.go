package device

import (
	"fmt"
	"sort"
	"sync"

	"github.com/nerrad567/biostream-core/internal/sensor"
)

// Logger defines the logging interface used by the Registry.
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

// Registry is the single source of truth for per-device connection state,
// feature readiness, negotiated capabilities and settings, and battery
// level. It is pure data plus transition guards: no I/O.
//
// Mutations arrive from exactly two places: the transport event
// dispatcher (connecting/connected/disconnected/feature/battery) and the
// capability negotiator (BeginCapabilities/BeginSettings/SetReady/
// MarkFailed). SetReady is the only path into the ready state.
//
// All public methods are thread-safe. Reads return snapshot copies.
type Registry struct {
	mu      sync.RWMutex
	devices map[string]*record
	logger  Logger
}

// NewRegistry creates an empty device registry.
func NewRegistry() *Registry {
	return &Registry{
		devices: make(map[string]*record),
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// AddDiscovered records a device seen during a discovery cycle.
// Returns true if the device was not previously known. A known device in
// the disconnected or failed state is moved back to discovered; a device
// with an active connection is left untouched apart from a name refresh.
func (r *Registry) AddDiscovered(id, name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.devices[id]
	if !ok {
		r.devices[id] = newRecord(id, name, StateDiscovered)
		r.logger.Debug("device discovered", "id", id, "name", name)
		return true
	}

	if name != "" {
		rec.name = name
	}
	if rec.state == StateDisconnected || rec.state == StateFailed {
		rec.state = StateDiscovered
	}
	return false
}

// MarkConnecting records a transport connecting notification. Devices
// connected directly by identifier may not have been discovered first,
// so the record is created on demand.
func (r *Registry) MarkConnecting(id, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.devices[id]
	if !ok {
		rec = newRecord(id, name, StateConnecting)
		r.devices[id] = rec
		return
	}
	if name != "" {
		rec.name = name
	}
	r.transition(rec, StateConnecting)
}

// MarkConnectedRaw records a transport connected notification: the link
// is up but capabilities have not been negotiated yet.
func (r *Registry) MarkConnectedRaw(id, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.devices[id]
	if !ok {
		rec = newRecord(id, name, StateConnectedRaw)
		r.devices[id] = rec
		return
	}
	if name != "" {
		rec.name = name
	}
	r.transition(rec, StateConnectedRaw)
}

// MarkDisconnecting records that a disconnect was requested for the
// device, so the following disconnected event is expected.
func (r *Registry) MarkDisconnecting(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.devices[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}
	if !r.transition(rec, StateDisconnecting) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, rec.state, StateDisconnecting)
	}
	return nil
}

// MarkDisconnected records a transport disconnected notification.
// Capabilities, settings and feature readiness are cleared: they are
// per-connection state and must not be retained stale. The returned
// expected flag is true when the prior state was disconnecting (the
// disconnect was requested); false means the link dropped unexpectedly.
func (r *Registry) MarkDisconnected(id string) (expected bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.devices[id]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}

	expected = rec.state == StateDisconnecting
	rec.state = StateDisconnected
	rec.clearConnectionState()

	if expected {
		r.logger.Info("device disconnected", "id", id)
	} else {
		r.logger.Warn("device disconnected unexpectedly", "id", id)
	}
	return expected, nil
}

// MarkFailed moves the device into the failed state and clears any
// partially negotiated connection state.
func (r *Registry) MarkFailed(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.devices[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}
	if !r.transition(rec, StateFailed) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, rec.state, StateFailed)
	}
	rec.clearConnectionState()
	return nil
}

// BeginCapabilities moves the device into the fetching_capabilities
// state. Called by the negotiator when the post-connect sequence starts.
func (r *Registry) BeginCapabilities(id string) error {
	return r.require(id, StateFetchingCapabilities)
}

// BeginSettings moves the device into the fetching_settings state.
func (r *Registry) BeginSettings(id string) error {
	return r.require(id, StateFetchingSettings)
}

// SetReady stores the negotiated capabilities and settings and moves the
// device into the ready state. This is the only path into ready.
func (r *Registry) SetReady(id string, caps sensor.Capabilities, settings sensor.Settings) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.devices[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}
	if !canTransition(rec.state, StateReady) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, rec.state, StateReady)
	}

	stored := caps.Clone()
	rec.caps = &stored
	rec.settings = &settings
	rec.state = StateReady
	r.logger.Info("device ready", "id", id, "signals", len(caps.Signals))
	return nil
}

// MarkFeatureReady records that a feature became usable on the current
// connection. Unknown devices are ignored with a debug log: feature
// notifications can race ahead of the connecting event.
func (r *Registry) MarkFeatureReady(id string, f sensor.Feature) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.devices[id]
	if !ok {
		r.logger.Debug("feature ready for unknown device", "id", id, "feature", f)
		return
	}
	rec.features[f] = struct{}{}
}

// HasFeature reports whether the feature has been announced ready on the
// device's current connection.
func (r *Registry) HasFeature(id string, f sensor.Feature) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.devices[id]
	if !ok {
		return false
	}
	_, ready := rec.features[f]
	return ready
}

// ReadyFeatures returns the features announced ready on the device's
// current connection, in stable order.
func (r *Registry) ReadyFeatures(id string) []sensor.Feature {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.devices[id]
	if !ok || len(rec.features) == 0 {
		return nil
	}
	features := make([]sensor.Feature, 0, len(rec.features))
	for f := range rec.features {
		features = append(features, f)
	}
	sort.Slice(features, func(i, j int) bool { return features[i] < features[j] })
	return features
}

// SetBattery records the last reported battery level.
func (r *Registry) SetBattery(id string, level int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.devices[id]
	if !ok {
		return
	}
	rec.battery = &level
}

// SetFirmwareVersion records the firmware version reported via a device
// notice.
func (r *Registry) SetFirmwareVersion(id, version string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.devices[id]
	if !ok {
		return
	}
	rec.firmware = version
}

// Get retrieves a snapshot of one device.
func (r *Registry) Get(id string) (Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.devices[id]
	if !ok {
		return Device{}, fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}
	return rec.snapshot(), nil
}

// IsReady reports whether the device is in the ready state.
func (r *Registry) IsReady(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.devices[id]
	return ok && rec.state == StateReady
}

// Snapshot returns copies of all known devices, ordered by ID.
func (r *Registry) Snapshot() []Device {
	r.mu.RLock()
	defer r.mu.RUnlock()

	devices := make([]Device, 0, len(r.devices))
	for _, rec := range r.devices {
		devices = append(devices, rec.snapshot())
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].ID < devices[j].ID })
	return devices
}

// Connected returns copies of all devices with an established link,
// ordered by ID.
func (r *Registry) Connected() []Device {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var devices []Device
	for _, rec := range r.devices {
		if rec.state.Connected() {
			devices = append(devices, rec.snapshot())
		}
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].ID < devices[j].ID })
	return devices
}

// ConnectedCount returns the number of devices with an established link.
func (r *Registry) ConnectedCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, rec := range r.devices {
		if rec.state.Connected() {
			n++
		}
	}
	return n
}

// require applies a guarded transition to an existing device.
func (r *Registry) require(id string, to ConnectionState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.devices[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}
	if !r.transition(rec, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, rec.state, to)
	}
	return nil
}

// transition applies a guarded state change under the held lock.
// Invalid transitions are logged and rejected.
func (r *Registry) transition(rec *record, to ConnectionState) bool {
	if rec.state == to {
		return true
	}
	if !canTransition(rec.state, to) {
		r.logger.Warn("rejected state transition",
			"id", rec.id, "from", rec.state, "to", to)
		return false
	}
	r.logger.Debug("state transition", "id", rec.id, "from", rec.state, "to", to)
	rec.state = to
	return true
}

// newRecord creates an internal record in the given initial state.
func newRecord(id, name string, state ConnectionState) *record {
	return &record{
		id:       id,
		name:     name,
		state:    state,
		features: make(map[sensor.Feature]struct{}),
	}
}

// clearConnectionState drops all per-connection data: negotiated
// capabilities, settings and feature readiness.
func (r *record) clearConnectionState() {
	r.caps = nil
	r.settings = nil
	r.features = make(map[sensor.Feature]struct{})
}

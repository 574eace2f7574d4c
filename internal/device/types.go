package device

import (
	"sort"

	"github.com/nerrad567/biostream-core/internal/sensor"
)

// ConnectionState is one step of the per-device connection lifecycle.
type ConnectionState string

// Connection states. Transitions are driven only by transport events and
// by negotiator completion; see Registry.
const (
	StateDiscovered           ConnectionState = "discovered"
	StateConnecting           ConnectionState = "connecting"
	StateConnectedRaw         ConnectionState = "connected_raw"
	StateFetchingCapabilities ConnectionState = "fetching_capabilities"
	StateFetchingSettings     ConnectionState = "fetching_settings"
	StateReady                ConnectionState = "ready"
	StateDisconnecting        ConnectionState = "disconnecting"
	StateDisconnected         ConnectionState = "disconnected"
	StateFailed               ConnectionState = "failed"
)

// Connected reports whether the state represents an established link
// (anywhere between the raw connection and READY).
func (s ConnectionState) Connected() bool {
	switch s {
	case StateConnectedRaw, StateFetchingCapabilities, StateFetchingSettings, StateReady:
		return true
	default:
		return false
	}
}

// validTransitions lists the permitted next states for each state.
// Entries into disconnected from states other than disconnecting are
// permitted but reported as anomalies (the link dropped unexpectedly).
var validTransitions = map[ConnectionState][]ConnectionState{
	StateDiscovered:           {StateConnecting},
	StateConnecting:           {StateConnectedRaw, StateFailed, StateDisconnecting, StateDisconnected},
	StateConnectedRaw:         {StateFetchingCapabilities, StateDisconnecting, StateDisconnected},
	StateFetchingCapabilities: {StateFetchingSettings, StateFailed, StateDisconnecting, StateDisconnected},
	StateFetchingSettings:     {StateReady, StateDisconnecting, StateDisconnected},
	StateReady:                {StateDisconnecting, StateDisconnected},
	StateDisconnecting:        {StateDisconnected},
	StateDisconnected:         {StateConnecting, StateDiscovered},
	StateFailed:               {StateConnecting, StateDiscovered, StateDisconnected},
}

// canTransition reports whether from -> to is a permitted transition.
func canTransition(from, to ConnectionState) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Device is the registry's record for one known device. Snapshot copies
// are handed out; callers can safely retain and modify them.
type Device struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	State ConnectionState `json:"state"`

	// Features announced as ready since the current connection was
	// established. Cleared on disconnect.
	Features []sensor.Feature `json:"features,omitempty"`

	// Capabilities and Settings are nil until negotiation completes,
	// and cleared on disconnect or failure (never retained stale).
	Capabilities *sensor.Capabilities `json:"capabilities,omitempty"`
	Settings     *sensor.Settings     `json:"settings,omitempty"`

	// BatteryLevel is the last reported battery percentage, nil if
	// never reported.
	BatteryLevel *int `json:"battery_level,omitempty"`

	// FirmwareVersion is reported via device notices, empty if unknown.
	FirmwareVersion string `json:"firmware_version,omitempty"`
}

// record is the internal mutable representation.
type record struct {
	id       string
	name     string
	state    ConnectionState
	features map[sensor.Feature]struct{}
	caps     *sensor.Capabilities
	settings *sensor.Settings
	battery  *int
	firmware string
}

// snapshot converts the internal record to an external copy.
func (r *record) snapshot() Device {
	d := Device{
		ID:              r.id,
		Name:            r.name,
		State:           r.state,
		FirmwareVersion: r.firmware,
	}
	if len(r.features) > 0 {
		d.Features = make([]sensor.Feature, 0, len(r.features))
		for f := range r.features {
			d.Features = append(d.Features, f)
		}
		sort.Slice(d.Features, func(i, j int) bool { return d.Features[i] < d.Features[j] })
	}
	if r.caps != nil {
		caps := r.caps.Clone()
		d.Capabilities = &caps
	}
	if r.settings != nil {
		settings := *r.settings
		d.Settings = &settings
	}
	if r.battery != nil {
		level := *r.battery
		d.BatteryLevel = &level
	}
	return d
}

package sensor

import (
	"fmt"
	"sort"
	"time"
)

// SignalType identifies one category of sensor data a device can stream.
type SignalType string

// Signal types supported by the streaming transport.
const (
	SignalHR       SignalType = "HR"
	SignalPPI      SignalType = "PPI"
	SignalACC      SignalType = "ACC"
	SignalPPG      SignalType = "PPG"
	SignalECG      SignalType = "ECG"
	SignalGyro     SignalType = "GYRO"
	SignalMag      SignalType = "MAG"
	SignalTemp     SignalType = "TEMP"
	SignalSkinTemp SignalType = "SKIN_TEMP"
)

// CategoryLog is the sink category used when persisting diagnostic log
// entries through the recording pipeline. It is not a streamable signal.
const CategoryLog = "LOG"

// allSignalTypes lists every valid signal type for validation.
var allSignalTypes = map[SignalType]struct{}{
	SignalHR:       {},
	SignalPPI:      {},
	SignalACC:      {},
	SignalPPG:      {},
	SignalECG:      {},
	SignalGyro:     {},
	SignalMag:      {},
	SignalTemp:     {},
	SignalSkinTemp: {},
}

// Valid reports whether s is a recognised signal type.
func (s SignalType) Valid() bool {
	_, ok := allSignalTypes[s]
	return ok
}

// ParseSignalType converts a string to a SignalType.
// Returns ErrInvalidSignalType if the value is not recognised.
func ParseSignalType(v string) (SignalType, error) {
	s := SignalType(v)
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidSignalType, v)
	}
	return s, nil
}

// Feature identifies a device capability area that becomes usable
// asynchronously after connection. The transport announces readiness
// per feature via EventFeatureReady.
type Feature string

// Features announced by the transport.
const (
	FeatureDeviceInfo      Feature = "device_info"
	FeatureOnlineStreaming Feature = "online_streaming"
	FeatureHR              Feature = "hr"
	FeatureBattery         Feature = "battery"
	FeatureClockSetup      Feature = "clock_setup"
	FeatureStreamingMode   Feature = "streaming_mode"
)

// SettingKind names one configurable streaming parameter.
type SettingKind string

// Setting kinds exposed by streamable signals.
const (
	SettingSampleRate SettingKind = "sample_rate"
	SettingResolution SettingKind = "resolution"
	SettingRange      SettingKind = "range"
	SettingChannels   SettingKind = "channels"
)

// SettingSet maps setting kinds to their values. When describing
// capabilities each kind carries all selectable values; when passed to
// Subscribe each kind carries exactly one chosen value.
type SettingSet map[SettingKind][]uint32

// IsEmpty reports whether the set carries no settings at all.
func (s SettingSet) IsEmpty() bool {
	return len(s) == 0
}

// Clone returns an independent copy of the setting set.
func (s SettingSet) Clone() SettingSet {
	if s == nil {
		return nil
	}
	cpy := make(SettingSet, len(s))
	for k, v := range s {
		vals := make([]uint32, len(v))
		copy(vals, v)
		cpy[k] = vals
	}
	return cpy
}

// SettingPair holds the default selection and the full selectable range
// for one signal type, as reported by the device.
type SettingPair struct {
	Default SettingSet `json:"default"`
	Full    SettingSet `json:"full"`
}

// Clone returns an independent copy of the pair.
func (p SettingPair) Clone() SettingPair {
	return SettingPair{Default: p.Default.Clone(), Full: p.Full.Clone()}
}

// Capabilities describes what a connected device can stream: the set of
// signal types plus the (default, full) setting pair for each. Computed
// once per connection and invalidated on disconnect.
type Capabilities struct {
	Signals map[SignalType]SettingPair `json:"signals"`
}

// IsEmpty reports whether no signal types were discovered.
func (c Capabilities) IsEmpty() bool {
	return len(c.Signals) == 0
}

// Supports reports whether the device can stream the given signal type.
func (c Capabilities) Supports(sig SignalType) bool {
	_, ok := c.Signals[sig]
	return ok
}

// Types returns the supported signal types in stable order.
func (c Capabilities) Types() []SignalType {
	types := make([]SignalType, 0, len(c.Signals))
	for sig := range c.Signals {
		types = append(types, sig)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// Clone returns an independent copy of the capabilities.
func (c Capabilities) Clone() Capabilities {
	if c.Signals == nil {
		return Capabilities{}
	}
	cpy := Capabilities{Signals: make(map[SignalType]SettingPair, len(c.Signals))}
	for sig, pair := range c.Signals {
		cpy.Signals[sig] = pair.Clone()
	}
	return cpy
}

// Settings holds the per-connection device settings fetched after
// capability negotiation. Fields are nil when the device does not
// support the corresponding feature.
type Settings struct {
	// ClockAtConnect is the device clock value observed at connect time.
	ClockAtConnect *time.Time `json:"clock_at_connect,omitempty"`

	// StreamingMode is the firmware streaming mode flag.
	StreamingMode *bool `json:"streaming_mode,omitempty"`
}

// Discovered describes one device found during a discovery cycle.
type Discovered struct {
	ID   string
	Name string
	RSSI int
}

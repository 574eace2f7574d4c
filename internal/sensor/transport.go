package sensor

import (
	"context"
	"time"
)

// EventKind discriminates transport notifications.
type EventKind string

// Transport event kinds.
const (
	EventConnecting   EventKind = "connecting"
	EventConnected    EventKind = "connected"
	EventDisconnected EventKind = "disconnected"
	EventFeatureReady EventKind = "feature_ready"
	EventBattery      EventKind = "battery"
	EventRadioState   EventKind = "radio_state"
	EventDeviceNotice EventKind = "device_notice"
)

// Event is one asynchronous transport notification. Only the fields
// relevant to Kind are populated.
type Event struct {
	Kind     EventKind
	DeviceID string

	// Name is the device display name. Set on connecting/connected.
	Name string

	// Feature is set on feature_ready events.
	Feature Feature

	// Battery is the battery percentage. Set on battery events.
	Battery int

	// RadioEnabled reports radio power state. Set on radio_state events.
	RadioEnabled bool

	// NoticeKey/NoticeValue carry device information strings such as
	// firmware version. Set on device_notice events.
	NoticeKey   string
	NoticeValue string
}

// Device notice keys emitted by transports.
const (
	NoticeFirmwareVersion = "firmware_version"
	NoticeModelNumber     = "model_number"
	NoticeSerialNumber    = "serial_number"
	NoticeManufacturer    = "manufacturer"
)

// Transport is the contract with the wireless radio stack. Implementations
// wrap a vendor SDK (or a simulator) and must be safe for concurrent use.
//
// Connect and Disconnect are fire-and-forget: the outcome is observed via
// Events. Queries require an established connection and may fail
// transiently; callers apply their own retry policies.
type Transport interface {
	// Scan starts one discovery pass. The returned channel delivers
	// discovered devices until the context is cancelled or the pass
	// completes, then closes. Scan may be called again after a prior
	// pass ended.
	Scan(ctx context.Context) (<-chan Discovered, error)

	// Connect initiates a connection to the device.
	Connect(id string) error

	// Disconnect initiates a disconnect from the device.
	Disconnect(id string) error

	// Events returns the transport notification channel. The channel is
	// owned by the transport and closed when the transport shuts down.
	Events() <-chan Event

	// AvailableSignalTypes queries the signal types the device can stream.
	AvailableSignalTypes(ctx context.Context, id string) ([]SignalType, error)

	// SignalSettings queries the (default, full) setting pair for one
	// signal type.
	SignalSettings(ctx context.Context, id string, sig SignalType) (SettingPair, error)

	// Clock reads the device clock.
	Clock(ctx context.Context, id string) (time.Time, error)

	// SetClock writes the device clock.
	SetClock(ctx context.Context, id string, t time.Time) error

	// StreamingMode reads the firmware streaming mode flag.
	StreamingMode(ctx context.Context, id string) (bool, error)

	// SetStreamingMode enables or disables the firmware streaming mode.
	SetStreamingMode(ctx context.Context, id string, enabled bool) error

	// Subscribe opens one sample stream for a (device, signal) pair with
	// the chosen setting. Batches arrive on the first channel in order;
	// a terminal stream error arrives on the second. A closed batch
	// channel without an error means the upstream completed. Streams are
	// not restartable: after an error or completion a new Subscribe call
	// is required. Cancelling the context disposes the stream.
	Subscribe(ctx context.Context, id string, sig SignalType, setting SettingSet) (<-chan Batch, <-chan error, error)
}

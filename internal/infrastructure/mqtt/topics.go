package mqtt

import "fmt"

// Topic prefixes for the BioStream MQTT surface.
//
// All topics use the flat scheme: biostream/{category}/{...}
const (
	// TopicPrefix is the base for all BioStream topics.
	TopicPrefix = "biostream"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "biostream/system"

	// TopicPrefixRecording is the base for recording lifecycle topics.
	TopicPrefixRecording = "biostream/recording"
)

// Topics provides builders for BioStream MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	dataTopic := topics.Data("polar-123", "HR")
//	// Returns: "biostream/data/polar-123/HR"
type Topics struct{}

// Data returns the topic for sample data from a device.
//
// Category is a signal type (HR, ACC, ...) or LOG for journal lines.
//
// Example: biostream/data/polar-123/HR
func (Topics) Data(deviceID, category string) string {
	return fmt.Sprintf("%s/data/%s/%s", TopicPrefix, deviceID, category)
}

// DeviceState returns the topic for device connection state updates.
//
// Example: biostream/device/polar-123/state
func (Topics) DeviceState(deviceID string) string {
	return fmt.Sprintf("%s/device/%s/state", TopicPrefix, deviceID)
}

// DeviceBattery returns the topic for device battery updates.
//
// Example: biostream/device/polar-123/battery
func (Topics) DeviceBattery(deviceID string) string {
	return fmt.Sprintf("%s/device/%s/battery", TopicPrefix, deviceID)
}

// RecordingData returns the topic for data points republished during a
// recording.
//
// Example: biostream/recording/morning-run/polar-123/HR
func (Topics) RecordingData(name, deviceID, category string) string {
	return fmt.Sprintf("%s/%s/%s/%s", TopicPrefixRecording, name, deviceID, category)
}

// RecordingStatus returns the topic for recording lifecycle events.
//
// Example: biostream/recording/morning-run/status
func (Topics) RecordingStatus(name string) string {
	return fmt.Sprintf("%s/%s/status", TopicPrefixRecording, name)
}

// RecordingCommand returns the topic for remote recording control.
//
// Example: biostream/recording/command
func (Topics) RecordingCommand() string {
	return fmt.Sprintf("%s/command", TopicPrefixRecording)
}

// SystemStatus returns the system status topic (also used for LWT).
//
// Example: biostream/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllData returns a pattern matching all sample data topics.
//
// Pattern: biostream/data/+/+
func (Topics) AllData() string {
	return fmt.Sprintf("%s/data/+/+", TopicPrefix)
}

// AllDeviceStates returns a pattern matching all device state topics.
//
// Pattern: biostream/device/+/state
func (Topics) AllDeviceStates() string {
	return fmt.Sprintf("%s/device/+/state", TopicPrefix)
}

// AllTopics returns a pattern matching all BioStream topics.
// Use with caution - this receives ALL traffic.
//
// Pattern: biostream/#
func (Topics) AllTopics() string {
	return "biostream/#"
}

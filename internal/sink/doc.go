// Package sink provides the recording.Sink implementations.
//
// Four sinks ship with the core:
//
//   - File: JSON-lines files, one per (recording, device, category)
//   - SQLite: rows in recording_data plus a recordings row per session
//   - MQTT: republishes every data point for live consumers
//   - Influx: writes scalar projections for dashboard charting
//
// Each sink serializes its own writes with an internal mutex; the
// session guarantees at-most-one StopSaving sequence per recording.
package sink

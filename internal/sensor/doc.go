// Package sensor defines the domain vocabulary shared by the recording
// core: signal types, decoded sample batches, streaming settings,
// per-connection capabilities, and the Transport contract with the
// wireless radio stack.
//
// # Key Types
//
//   - SignalType: one category of streamable sensor data (HR, ACC, ...)
//   - Batch: a tagged-variant sample batch, decoded once at the
//     transport boundary (HRBatch, AccBatch, ...)
//   - SettingSet / SettingPair: streaming parameters and their ranges
//   - Capabilities / Settings: what one connected device can do
//   - Feature: asynchronous readiness flags announced per connection
//   - Transport: scan / connect / query / subscribe contract consumed by
//     the negotiation, scanning and streaming components
//
// The package is a pure leaf: no I/O, no goroutines, no dependencies on
// other internal packages.
package sensor

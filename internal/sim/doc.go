// Package sim provides a deterministic in-process implementation of the
// sensor transport for development and the test harness.
//
// Synthetic devices are declared in configuration. The simulator drives
// the same event sequence a real radio stack would: connecting,
// connected, staged feature readiness, battery and firmware notices,
// then per-signal sample batches at a fixed interval. Sample values are
// generated from a deterministic per-device waveform so repeated runs
// produce identical data.
package sim

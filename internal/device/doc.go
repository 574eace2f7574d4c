// Package device provides the Device Registry: the single source of
// truth for per-device connection state in the recording core.
//
// # Connection state machine
//
//	discovered → connecting → connected_raw → fetching_capabilities
//	    → fetching_settings → ready → disconnecting → disconnected
//
// with failed reachable from connecting and fetching_capabilities.
// Transitions are driven only by transport events (connecting /
// connected / disconnected) and by negotiator completion; SetReady is
// the only path into ready. Entering disconnected or failed clears the
// negotiated capabilities, settings and feature readiness so stale
// per-connection data is never served.
//
// A disconnected event following a requested disconnect (prior state
// disconnecting) is reported as expected; from any other state it is an
// anomaly, surfaced through MarkDisconnected's return value.
//
// # Thread Safety
//
// The Registry is safe for concurrent use. All reads return snapshot
// copies, so callers can never mutate registry-held state.
package device

// Package scan schedules device discovery cycles.
//
// A discovery cycle consumes the transport's discovery feed for a bounded
// duration and records every device seen in the registry. At most one
// cycle is active at a time: a manual scan cancels and supersedes any
// in-flight cycle, and periodic mode re-triggers a cycle on a recurring
// timer. The refresh-in-progress flag is exposed for UI consumption.
package scan

// Package recording owns the lifecycle of one recording session.
//
// A session binds a set of ready devices and their selected signals to
// the enabled sinks. Start validates its preconditions without mutating
// anything, seeds the last-value cache, and opens the streams; every
// batch the stream supervisor delivers is projected into the cache and
// fanned out verbatim to every enabled sink. Journal entries appended
// while a session runs are persisted through the same sink path under
// the LOG category, each exactly once.
//
// Stop drains the journal first: it requests a flush and waits until the
// flush is observed, guaranteeing every entry appended before the stop
// call is persisted before the sinks are finalized.
package recording

// Package stream supervises live sample subscriptions.
//
// The supervisor holds at most one subscription per (device, signal)
// pair, each served by its own goroutine. Received batches are forwarded
// to the recording session's ingestion entry point. A failed subscription
// is retried a bounded number of times before the stream is abandoned
// with a terminal log entry; other streams are unaffected. Upstream
// completion of a live stream is treated as abnormal: it is logged but
// not restarted.
//
// Disposing a device's streams is idempotent and safe from any
// goroutine, which lets the event dispatcher tear streams down on
// disconnect while the session restarts them on reconnect.
package stream

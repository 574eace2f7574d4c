// Package negotiate turns a raw device connection into a ready one.
//
// After the transport reports a connection, the negotiator discovers what
// the device can stream (its capabilities) and how it is configured (its
// settings), then promotes the device to the ready state in the registry.
// Discovery is best-effort and bounded: the primary capability fetch is
// retried a configured number of times, and on exhaustion a minimal
// capability set is derived from the feature-readiness flags already
// observed. A device that yields no capabilities at all is marked failed
// and actively disconnected - the only case where this core unilaterally
// tears down a connection.
//
// One Negotiate call runs per connecting device, launched by the core's
// event dispatcher. Per-signal setting queries inside one attempt fan out
// concurrently and join before the attempt is judged.
package negotiate

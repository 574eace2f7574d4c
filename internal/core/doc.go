// Package core wires the device registry, capability negotiator, scan
// scheduler, stream supervisor and recording session behind one command
// surface, and owns the single dispatcher goroutine that consumes
// transport events.
//
// All registry mutations driven by the transport happen on the
// dispatcher goroutine; capability negotiation runs as one goroutine
// per connecting device and reports back through the registry. Commands
// are thread-safe and may be called from any goroutine.
package core

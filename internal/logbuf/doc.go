// Package logbuf provides the append-only log collaborator shared by the
// recording core: an ordered in-memory buffer of user-visible diagnostic
// messages with observer notification and a flush handshake.
//
// Components append through Infof/Successf/Errorf. The recording session
// registers an OnChange observer that persists new entries through the
// enabled sinks, and uses RequestFlush during its stop sequence to
// guarantee that every entry appended before the stop has been presented
// to observers before the sinks are finalised.
package logbuf

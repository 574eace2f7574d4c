package recording

import "time"

// InitState describes a sink's initialization outcome.
type InitState int

const (
	// InitPending means initialization has not completed yet.
	InitPending InitState = iota

	// InitSuccess means the sink is ready to accept data.
	InitSuccess

	// InitFailed means initialization failed; the sink must not be used.
	InitFailed
)

// String returns the lowercase name of the state.
func (s InitState) String() string {
	switch s {
	case InitSuccess:
		return "success"
	case InitFailed:
		return "failed"
	default:
		return "pending"
	}
}

// Sink receives everything a session persists: sample batches under their
// signal category and journal entries under the LOG category.
//
// Sinks serialize their own internal writes; the session guarantees
// at-most-one StopSaving sequence per Stop and never calls SaveData on a
// disabled sink.
type Sink interface {
	// Name identifies the sink in logs.
	Name() string

	// Enabled reports whether the sink participates in sessions.
	Enabled() bool

	// Initialized reports the sink's initialization outcome. A session
	// refuses to start while any enabled sink is not InitSuccess.
	Initialized() InitState

	// SaveData persists one data point. Payload is the unmodified sample
	// batch, or a map for LOG entries.
	SaveData(ts time.Time, deviceID, recordingName, category string, payload any) error

	// StopSaving finalizes the current session's output.
	StopSaving() error

	// Cleanup releases the sink's resources at shutdown.
	Cleanup() error
}

// SessionStarter is implemented by sinks that track whole sessions in
// addition to individual data points (the SQLite sink records a
// recordings row). Optional.
type SessionStarter interface {
	StartSession(name string, startedAt time.Time) error
}

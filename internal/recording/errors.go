package recording

import "errors"

var (
	// ErrEmptyName indicates a recording start with no name.
	ErrEmptyName = errors.New("recording: name cannot be empty")

	// ErrAlreadyRunning indicates a recording is already in progress.
	ErrAlreadyRunning = errors.New("recording: already in progress")

	// ErrNotRunning indicates a stop with no recording in progress.
	ErrNotRunning = errors.New("recording: not running")

	// ErrNoDevices indicates a recording start with no devices selected.
	ErrNoDevices = errors.New("recording: no devices selected")

	// ErrDeviceNotReady indicates a selected device is not in the ready state.
	ErrDeviceNotReady = errors.New("recording: selected device not ready")

	// ErrNoSinks indicates no sink is enabled.
	ErrNoSinks = errors.New("recording: no sink enabled")

	// ErrSinkNotReady indicates an enabled sink has not initialized successfully.
	ErrSinkNotReady = errors.New("recording: enabled sink not initialized")
)

package device

import "errors"

// Domain errors for the device package.
//
// Check with errors.Is():
//
//	if errors.Is(err, device.ErrDeviceNotFound) {
//	    // handle not found case
//	}
var (
	// ErrDeviceNotFound is returned when a device ID is not in the registry.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrInvalidTransition is returned when a state change violates the
	// connection state machine.
	ErrInvalidTransition = errors.New("device: invalid state transition")

	// ErrNotReady is returned when an operation requires a device in the
	// ready state.
	ErrNotReady = errors.New("device: not ready")
)

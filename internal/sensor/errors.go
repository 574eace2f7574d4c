package sensor

import "errors"

// Domain errors for the sensor package.
var (
	// ErrInvalidSignalType is returned when a signal type value is not recognised.
	ErrInvalidSignalType = errors.New("sensor: invalid signal type")

	// ErrUnknownDevice is returned by transports for operations on a
	// device identifier they have never seen.
	ErrUnknownDevice = errors.New("sensor: unknown device")

	// ErrNotConnected is returned by transports for queries that require
	// an established connection.
	ErrNotConnected = errors.New("sensor: device not connected")

	// ErrUnsupported is returned by transports when a device does not
	// support the requested feature or signal type.
	ErrUnsupported = errors.New("sensor: unsupported by device")
)

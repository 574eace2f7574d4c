package influxdb

import "errors"

// Sentinel errors for the time-series mirror. Match with errors.Is.
var (
	// ErrNotConnected reports an operation on a closed or never
	// connected client.
	ErrNotConnected = errors.New("influxdb: not connected")

	// ErrConnectionFailed reports a failed initial connection.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrDisabled reports that the integration is switched off in
	// configuration.
	ErrDisabled = errors.New("influxdb: disabled in configuration")
)

package core

import "errors"

// Sentinel errors returned by the command surface.
var (
	// ErrNotNegotiated indicates the device has no negotiated
	// capabilities or settings on its current connection.
	ErrNotNegotiated = errors.New("core: capabilities not negotiated")
)

package negotiate

import "errors"

var (
	// ErrNoCapabilities indicates both the primary fetch and the fallback
	// heuristic produced an empty capability set.
	ErrNoCapabilities = errors.New("negotiate: no usable capabilities")

	// ErrDeviceInfoUnavailable indicates the primary fetch path cannot run
	// because the device info feature never became ready.
	ErrDeviceInfoUnavailable = errors.New("negotiate: device info feature not ready")
)

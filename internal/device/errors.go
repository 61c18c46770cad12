package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, device.ErrDeviceNotFound) {
//	    // identifier is not in the configuration source
//	}
var (
	// ErrDeviceNotFound is returned when an identifier is not present in the
	// configuration source.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrInvalidDevice is returned when an identifier exists but its system
	// section lacks one or more mandatory keys.
	ErrInvalidDevice = errors.New("device: invalid configuration")
)

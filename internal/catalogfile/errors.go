package catalogfile

import "errors"

// Domain errors for the catalogfile package.
var (
	// ErrNoDeviceSection is returned when a catalog file has no top-level
	// device mapping.
	ErrNoDeviceSection = errors.New("catalogfile: no device section")

	// ErrParseFailed is returned when a catalog file is not valid YAML or
	// JSON.
	ErrParseFailed = errors.New("catalogfile: parse failed")
)

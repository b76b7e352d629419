package device

import "errors"

// Domain errors for the device package, checked with errors.Is().
var (
	// ErrNotFound is returned when a device ID does not exist.
	ErrNotFound = errors.New("device: not found")

	// ErrExists is returned when creating a device with a name that
	// already exists.
	ErrExists = errors.New("device: already exists")

	// ErrInvalid is returned when device validation fails.
	ErrInvalid = errors.New("device: invalid")
)

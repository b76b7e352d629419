package routeros

import (
	"errors"
	"fmt"
)

// ErrMissingConfig indicates a device record lacks the connection
// parameters needed to reach its router (host, username or password).
var ErrMissingConfig = errors.New("routeros: missing connection parameters")

// DeviceError wraps a router operation failure with the device it
// occurred on, so callers can report which router failed without
// parsing error strings.
type DeviceError struct {
	// DeviceID is the registry ID of the device the operation targeted.
	DeviceID int64

	// Op names the operation that failed, e.g. "dial" or "/ppp/active/print".
	Op string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *DeviceError) Error() string {
	return fmt.Sprintf("device %d: %s: %v", e.DeviceID, e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As chains.
func (e *DeviceError) Unwrap() error {
	return e.Err
}

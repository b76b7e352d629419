package subscriber

import "errors"

// Domain errors for the subscriber package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, subscriber.ErrNotFound) {
//	    // handle not found case
//	}
var (
	// ErrNotFound is returned when a subscriber ID or username does not exist.
	ErrNotFound = errors.New("subscriber: not found")

	// ErrExists is returned when creating a subscriber with a username
	// that is already taken.
	ErrExists = errors.New("subscriber: username already exists")

	// ErrInvalid is returned when subscriber validation fails.
	ErrInvalid = errors.New("subscriber: invalid")

	// ErrInvalidStatus is returned when a status value is not recognised.
	ErrInvalidStatus = errors.New("subscriber: invalid status")
)

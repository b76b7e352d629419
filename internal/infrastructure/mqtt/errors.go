package mqtt

import "errors"

var (
	// ErrConnectionFailed is returned when the initial broker connection
	// cannot be established.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrNotConnected is returned by HealthCheck when the client has
	// lost its broker connection.
	ErrNotConnected = errors.New("mqtt: not connected")
)

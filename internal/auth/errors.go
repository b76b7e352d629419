package auth

import "errors"

// Domain errors for the auth package, checked with errors.Is().
var (
	// ErrUserNotFound is returned when a user ID or username does not exist.
	ErrUserNotFound = errors.New("auth: user not found")

	// ErrUserExists is returned when creating a user with a taken username.
	ErrUserExists = errors.New("auth: user already exists")

	// ErrInvalidCredentials is returned when a login attempt fails.
	// Deliberately the same for unknown user and wrong password.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")

	// ErrTokenInvalid is returned when a JWT fails validation for any
	// reason (bad signature, expired, malformed).
	ErrTokenInvalid = errors.New("auth: invalid token")
)

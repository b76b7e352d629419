// Package logging provides structured logging for Netward.
//
// It wraps log/slog with the service's default fields and level handling.
// Components derive their own loggers via With("component", name) so log
// lines can be filtered per subsystem.
package logging

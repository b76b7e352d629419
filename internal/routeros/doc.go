// Package routeros adapts the MikroTik RouterOS API for the sync engine
// and the device handlers.
//
// It wraps the go-routeros client behind small Dialer and Session
// interfaces so the engine can be tested against fakes, and decodes the
// API's word/attribute replies into typed structs. Sessions are
// short-lived: dial, run one or two commands, close.
package routeros

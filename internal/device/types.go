package device

import (
	"strings"
	"time"
)

// TypeMikroTik is the only router type currently supported.
const TypeMikroTik = "mikrotik"

// Device is a router the console manages subscribers on.
type Device struct {
	// ID is the database primary key.
	ID int64 `json:"id"`

	// Name is a unique human-facing label, e.g. "pop-central-01".
	Name string `json:"name"`

	// Host is the router's management IP or hostname.
	Host string `json:"host"`

	// Port is the RouterOS API port, normally 8728.
	Port int `json:"port"`

	// Username and Password are the API credentials.
	Username string `json:"username"`
	Password string `json:"-"`

	// Type identifies the router platform.
	Type string `json:"type"`

	// Description is free-form operator notes.
	Description *string `json:"description,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks the fields required to create a device.
func (d *Device) Validate() error {
	if strings.TrimSpace(d.Name) == "" || strings.TrimSpace(d.Host) == "" {
		return ErrInvalid
	}
	return nil
}

// HasConnectionParams reports whether the device carries everything
// needed to dial its API. Devices without credentials are skipped by
// the sync engine rather than producing dial errors every cycle.
func (d *Device) HasConnectionParams() bool {
	return d.Host != "" && d.Username != "" && d.Password != ""
}

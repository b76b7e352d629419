package subscriber

import (
	"strings"
	"time"
)

// Status is a subscriber's connection status as determined by the last
// status sync against the owning router.
type Status string

const (
	// StatusOnline means the subscriber had an active PPPoE session on a
	// routable address at the last sync.
	StatusOnline Status = "online"

	// StatusOffline means no active session was found for the subscriber.
	StatusOffline Status = "offline"

	// StatusIsolir means the subscriber's session was assigned an address
	// in the isolation pool, typically for non-payment.
	StatusIsolir Status = "isolir"
)

// ValidStatus reports whether s is a recognised status value.
func ValidStatus(s Status) bool {
	switch s {
	case StatusOnline, StatusOffline, StatusIsolir:
		return true
	}
	return false
}

// DefaultServiceName is the PPP service assigned to subscribers unless
// overridden.
const DefaultServiceName = "pppoe"

// Subscriber is a PPPoE account managed by the console.
type Subscriber struct {
	// ID is the database primary key.
	ID int64 `json:"id"`

	// Username is the PPPoE login name, unique across all routers.
	Username string `json:"username"`

	// CustomerID is the human-facing account number, format YYMMDDNN.
	CustomerID string `json:"customer_id"`

	// FullName is the customer's name.
	FullName string `json:"full_name"`

	// Password is the PPPoE password. Stored in clear because it must be
	// pushed verbatim to the router's PPP secret.
	Password string `json:"password"`

	// ServiceName is the PPP service type, normally "pppoe".
	ServiceName string `json:"service_name"`

	// IsDisabled mirrors the secret's disabled flag on the router.
	IsDisabled bool `json:"is_disabled"`

	// IPAddress is the address seen on the last active session, if any.
	IPAddress *string `json:"ip_address,omitempty"`

	// MACAddress is the caller ID seen on the last active session, if any.
	MACAddress *string `json:"mac_address,omitempty"`

	// Address is the installation street address.
	Address *string `json:"address,omitempty"`

	// PhoneNumber is the customer's contact number.
	PhoneNumber *string `json:"phone_number,omitempty"`

	// Latitude and Longitude locate the installation for the coverage map.
	Latitude  *string `json:"latitude,omitempty"`
	Longitude *string `json:"longitude,omitempty"`

	// DeviceID is the router this subscriber terminates on.
	DeviceID *int64 `json:"device_id,omitempty"`

	// ODPID is the distribution point the subscriber's drop connects to.
	ODPID *int64 `json:"odp_id,omitempty"`

	// PackageID is the service package the subscriber is billed on.
	PackageID *int64 `json:"package_id,omitempty"`

	// Status is the connection status from the last sync.
	Status Status `json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks the fields required to create a subscriber.
func (s *Subscriber) Validate() error {
	if strings.TrimSpace(s.Username) == "" {
		return ErrInvalid
	}
	if s.Status != "" && !ValidStatus(s.Status) {
		return ErrInvalidStatus
	}
	return nil
}

// UpdateParams carries a partial update. Nil fields are left unchanged.
type UpdateParams struct {
	Username    *string
	FullName    *string
	Password    *string
	ServiceName *string
	IsDisabled  *bool
	IPAddress   *string
	MACAddress  *string
	Address     *string
	PhoneNumber *string
	Latitude    *string
	Longitude   *string
	DeviceID    *int64
	ODPID       *int64
	PackageID   *int64
}

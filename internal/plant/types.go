package plant

import (
	"errors"
	"strings"
	"time"
)

// Domain errors for the plant package, checked with errors.Is().
var (
	// ErrNotFound is returned when a POP or ODP ID does not exist.
	ErrNotFound = errors.New("plant: not found")

	// ErrExists is returned when a POP or ODP code is already taken.
	ErrExists = errors.New("plant: already exists")

	// ErrInvalid is returned when validation fails.
	ErrInvalid = errors.New("plant: invalid")
)

// defaultODPPorts is the splitter port count assumed when not specified.
const defaultODPPorts = 8

// POP is a point of presence: a site housing routers and uplinks.
type POP struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Code        string   `json:"code"`
	Address     *string  `json:"address,omitempty"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
	Description *string  `json:"description,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks the fields required to create a POP.
func (p *POP) Validate() error {
	if strings.TrimSpace(p.Name) == "" || strings.TrimSpace(p.Code) == "" {
		return ErrInvalid
	}
	return nil
}

// ODP is an optical distribution point: the street-side splitter box
// subscriber drops terminate on.
type ODP struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Code        string   `json:"code"`
	POPID       *int64   `json:"pop_id,omitempty"`
	Address     *string  `json:"address,omitempty"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
	TotalPorts  int      `json:"total_ports"`
	Description *string  `json:"description,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks the fields required to create an ODP.
func (o *ODP) Validate() error {
	if strings.TrimSpace(o.Name) == "" || strings.TrimSpace(o.Code) == "" {
		return ErrInvalid
	}
	return nil
}

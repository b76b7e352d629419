package auth

import "time"

// Role controls what an operator account may do. The console currently
// distinguishes only full admins from read-only viewers.
type Role string

const (
	// RoleAdmin may manage subscribers, devices, plant and other users.
	RoleAdmin Role = "admin"

	// RoleViewer may read everything but change nothing.
	RoleViewer Role = "viewer"
)

// ValidRole reports whether r is a recognised role.
func ValidRole(r Role) bool {
	return r == RoleAdmin || r == RoleViewer
}

// User is an operator console account.
type User struct {
	// ID is the database primary key.
	ID int64 `json:"id"`

	// Username is the login name, unique.
	Username string `json:"username"`

	// PasswordHash is the Argon2id PHC string. Never serialised.
	PasswordHash string `json:"-"`

	// Role controls authorisation.
	Role Role `json:"role"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

package user

import (
	"errors"
	"time"
)

// ErrNotFound is returned by the repository when no row matches the username.
var ErrNotFound = errors.New("user not found")

// Role is an authorization tier carried as a single authority on tokens.
type Role string

const (
	RoleUser       Role = "USER"
	RoleModerator  Role = "MODERATOR"
	RoleSuperAdmin Role = "SUPER_ADMIN"
)

// IsValid reports whether the role is one of the known tiers.
func (r Role) IsValid() bool {
	switch r {
	case RoleUser, RoleModerator, RoleSuperAdmin:
		return true
	}
	return false
}

// User is the persisted identity record. FailedAttempts and Locked are the
// only fields the auth core mutates, and only through repository calls.
type User struct {
	ID             string
	Username       string
	PasswordHash   string
	Role           Role
	FailedAttempts int
	Locked         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

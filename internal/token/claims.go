package token

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/Grinko1/jwt-auth-app/internal/user"
)

// Claims is the payload embedded in signed tokens. Access tokens carry the
// user id and role; refresh tokens carry the registered claims (subject,
// issued-at, expiry) only, so a refresh can never smuggle a stale role.
type Claims struct {
	jwt.RegisteredClaims
	UserID string    `json:"uid,omitempty"`
	Role   user.Role `json:"role,omitempty"`
}

// Authorities returns the authority set granted by this token: the single
// role claim, or nothing for tokens that carry no role.
func (c *Claims) Authorities() []string {
	if c.Role == "" {
		return nil
	}
	return []string{string(c.Role)}
}

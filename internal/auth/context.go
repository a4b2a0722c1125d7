package auth

import (
	"context"

	"github.com/Grinko1/jwt-auth-app/internal/user"
)

// contextKey is an unexported type for request-context keys in this package.
type contextKey string

const principalContextKey contextKey = "principal"

// Principal is the request-scoped security context: the resolved identity
// plus the authorities granted by the presented token. It lives only on the
// request's context.Context and is never shared across requests.
type Principal struct {
	User        user.User
	Authorities []string
}

// HasAuthority reports whether the presented token granted the authority.
func (p Principal) HasAuthority(authority string) bool {
	for _, a := range p.Authorities {
		if a == authority {
			return true
		}
	}
	return false
}

// WithPrincipal binds the principal to the request context.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}

// CurrentPrincipal returns the principal bound to the request, if any.
func CurrentPrincipal(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalContextKey).(Principal)
	return p, ok
}

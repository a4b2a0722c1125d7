package token

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Grinko1/jwt-auth-app/internal/user"
)

const (
	// DefaultAccessTTL matches the service default of one day.
	DefaultAccessTTL = 24 * time.Hour
	// DefaultRefreshTTL is ten times the access TTL.
	DefaultRefreshTTL = 10 * DefaultAccessTTL
)

var (
	// ErrTokenExpired marks a structurally valid, correctly signed token
	// whose expiry has passed.
	ErrTokenExpired = errors.New("token is expired")

	// ErrTokenInvalid marks everything else: malformed structure, wrong
	// signature, wrong signing method, or a subject binding mismatch.
	ErrTokenInvalid = errors.New("invalid token")
)

// Codec issues and verifies HMAC-SHA256 signed tokens against a single
// process-wide secret.
type Codec struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewCodec decodes the base64 signing secret and builds a codec. A missing,
// empty, or undecodable secret is a startup configuration error, never a
// per-request one.
func NewCodec(base64Secret string, accessTTL, refreshTTL time.Duration) (*Codec, error) {
	base64Secret = strings.TrimSpace(base64Secret)
	if base64Secret == "" {
		return nil, errors.New("jwt signing secret is not configured")
	}

	secret, err := base64.StdEncoding.DecodeString(base64Secret)
	if err != nil {
		return nil, fmt.Errorf("decode jwt signing secret: %w", err)
	}
	if len(secret) == 0 {
		return nil, errors.New("jwt signing secret decodes to empty key")
	}

	if accessTTL <= 0 {
		accessTTL = DefaultAccessTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = 10 * accessTTL
	}

	return &Codec{
		secret:     secret,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}, nil
}

// IssueAccessToken signs a short-lived token carrying the subject, user id,
// and role claims.
func (c *Codec) IssueAccessToken(u user.User) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.accessTTL)),
		},
		UserID: u.ID,
		Role:   u.Role,
	}

	return c.sign(claims)
}

// IssueRefreshToken signs a long-lived token carrying the subject only.
// Refresh must re-resolve the identity from the store, so no role or id
// claim is embedded.
func (c *Codec) IssueRefreshToken(u user.User) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.refreshTTL)),
		},
	}

	return c.sign(claims)
}

func (c *Codec) sign(claims Claims) (string, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign jwt: %w", err)
	}

	return signed, nil
}

// Verify checks the signature and expiry and returns the embedded claims.
// The signature check runs before any claim is looked at; an unverifiable
// token yields ErrTokenInvalid, a verified-but-stale one ErrTokenExpired.
func (c *Codec) Verify(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(_ *jwt.Token) (any, error) {
		return c.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Subject == "" {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}

// Subject verifies the token and returns its subject claim. Expiry is
// enforced the same as Verify; this is a convenience accessor, not a way
// around validation.
func (c *Codec) Subject(tokenString string) (string, error) {
	claims, err := c.Verify(tokenString)
	if err != nil {
		return "", err
	}

	return claims.Subject, nil
}

// AccessTTL reports the configured access token lifetime.
func (c *Codec) AccessTTL() time.Duration {
	return c.accessTTL
}

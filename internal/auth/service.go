package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/Grinko1/jwt-auth-app/internal/observability"
	"github.com/Grinko1/jwt-auth-app/internal/token"
	"github.com/Grinko1/jwt-auth-app/internal/user"
)

// Tokens is the pair returned by signup, login, and refresh.
type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Service orchestrates signup, login, and refresh. It is the only component
// that ever compares plaintext credentials.
type Service struct {
	users   UserStore
	hasher  PasswordHasher
	codec   *token.Codec
	lockout *LockoutPolicy
	logger  *observability.Logger
}

func NewService(users UserStore, hasher PasswordHasher, codec *token.Codec, lockout *LockoutPolicy, logger *observability.Logger) *Service {
	return &Service{
		users:   users,
		hasher:  hasher,
		codec:   codec,
		lockout: lockout,
		logger:  logger,
	}
}

// SignUp creates a new identity with the default USER role and issues a
// token pair. A taken username fails with user.ErrAlreadyExists.
func (s *Service) SignUp(ctx context.Context, username, password string) (Tokens, error) {
	username = normalizeUsername(username)

	taken, err := s.users.ExistsByUsername(ctx, username)
	if err != nil {
		return Tokens{}, err
	}
	if taken {
		return Tokens{}, user.ErrAlreadyExists
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return Tokens{}, err
	}

	created, err := s.users.Create(ctx, user.User{
		Username:     username,
		PasswordHash: hash,
		Role:         user.RoleUser,
	})
	if err != nil {
		return Tokens{}, err
	}

	s.logger.Info("user_signed_up", map[string]any{"username": username})

	return s.issuePair(created)
}

// Login verifies credentials and issues a token pair. The lockout check runs
// strictly before the password comparison, so a locked account never leaks
// whether the password would have matched. A wrong password counts toward
// lockout; a successful login does not reset the counter.
func (s *Service) Login(ctx context.Context, username, password string) (Tokens, error) {
	username = normalizeUsername(username)

	u, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return Tokens{}, err
	}

	if s.lockout.IsLocked(u) {
		s.logger.Warn("login_rejected_locked", map[string]any{"username": username})
		return Tokens{}, ErrAccountLocked
	}

	if !s.hasher.Verify(password, u.PasswordHash) {
		updated, recErr := s.lockout.RecordFailedAttempt(ctx, username)
		if recErr != nil {
			return Tokens{}, recErr
		}
		s.logger.Warn("login_failed", map[string]any{
			"username":        username,
			"failed_attempts": updated.FailedAttempts,
			"locked":          updated.Locked,
		})
		return Tokens{}, ErrBadCredentials
	}

	s.logger.Info("user_logged_in", map[string]any{"username": username})

	return s.issuePair(u)
}

// Refresh exchanges a valid refresh token for a fresh pair. The identity is
// re-resolved from the token's own subject so a stale role claim can never
// be carried forward.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Tokens, error) {
	subject, err := s.codec.Subject(strings.TrimSpace(refreshToken))
	if err != nil {
		return Tokens{}, err
	}

	u, err := s.users.FindByUsername(ctx, subject)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return Tokens{}, token.ErrTokenInvalid
		}
		return Tokens{}, err
	}

	return s.issuePair(u)
}

func (s *Service) issuePair(u user.User) (Tokens, error) {
	access, err := s.codec.IssueAccessToken(u)
	if err != nil {
		return Tokens{}, err
	}

	refresh, err := s.codec.IssueRefreshToken(u)
	if err != nil {
		return Tokens{}, err
	}

	return Tokens{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.codec.AccessTTL().Seconds()),
	}, nil
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

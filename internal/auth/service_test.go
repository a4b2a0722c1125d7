package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/Grinko1/jwt-auth-app/internal/token"
	"github.com/Grinko1/jwt-auth-app/internal/user"
)

func TestSignUp(t *testing.T) {
	store := newMemStore()
	service := testService(t, store)
	ctx := context.Background()

	tokens, err := service.SignUp(ctx, "Alice", "correct-horse-battery")
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}
	if tokens.AccessToken == "" || tokens.RefreshToken == "" {
		t.Error("SignUp() should return both tokens")
	}
	if tokens.TokenType != "Bearer" {
		t.Errorf("TokenType = %q, want Bearer", tokens.TokenType)
	}

	created := store.get(t, "alice")
	if created.Role != user.RoleUser {
		t.Errorf("new user role = %q, want USER", created.Role)
	}
	if created.FailedAttempts != 0 || created.Locked {
		t.Error("new user should start with a clean lockout state")
	}
	if created.PasswordHash == "correct-horse-battery" {
		t.Error("password must be stored hashed")
	}
}

func TestSignUp_DuplicateUsername(t *testing.T) {
	store := newMemStore()
	service := testService(t, store)
	ctx := context.Background()

	if _, err := service.SignUp(ctx, "alice", "correct-horse-battery"); err != nil {
		t.Fatalf("first SignUp() error = %v", err)
	}

	if _, err := service.SignUp(ctx, "alice", "another-password"); !errors.Is(err, user.ErrAlreadyExists) {
		t.Errorf("duplicate SignUp() = %v, want ErrAlreadyExists", err)
	}
}

func TestLogin_UnknownUser(t *testing.T) {
	service := testService(t, newMemStore())

	if _, err := service.Login(context.Background(), "ghost", "whatever"); !errors.Is(err, user.ErrNotFound) {
		t.Errorf("Login() unknown user = %v, want ErrNotFound", err)
	}
}

func TestLogin_WrongPasswordCountsTowardLockout(t *testing.T) {
	store := newMemStore()
	service := testService(t, store)
	ctx := context.Background()

	if _, err := service.SignUp(ctx, "bob", "the-right-password"); err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}

	for i := 1; i <= 5; i++ {
		if _, err := service.Login(ctx, "bob", "the-wrong-password"); !errors.Is(err, ErrBadCredentials) {
			t.Fatalf("Login() wrong password #%d = %v, want ErrBadCredentials", i, err)
		}
	}

	if !store.get(t, "bob").Locked {
		t.Fatal("account should be locked after 5 failed logins")
	}

	// Even the correct password is rejected once locked, and the counter
	// does not move.
	if _, err := service.Login(ctx, "bob", "the-right-password"); !errors.Is(err, ErrAccountLocked) {
		t.Errorf("Login() on locked account = %v, want ErrAccountLocked", err)
	}
	if attempts := store.get(t, "bob").FailedAttempts; attempts != 5 {
		t.Errorf("FailedAttempts = %d after locked login, want 5", attempts)
	}
}

func TestLogin_LockedCheckPrecedesPassword(t *testing.T) {
	store := newMemStore()
	store.put(user.User{Username: "carol", PasswordHash: "hashed:secret-password", Role: user.RoleUser, FailedAttempts: 5, Locked: true})
	service := testService(t, store)

	for _, password := range []string{"secret-password", "wrong"} {
		if _, err := service.Login(context.Background(), "carol", password); !errors.Is(err, ErrAccountLocked) {
			t.Errorf("Login(%q) on locked account = %v, want ErrAccountLocked", password, err)
		}
	}
}

func TestLogin_SuccessDoesNotResetCounter(t *testing.T) {
	store := newMemStore()
	store.put(user.User{Username: "dave", PasswordHash: "hashed:secret-password", Role: user.RoleUser, FailedAttempts: 3})
	service := testService(t, store)

	if _, err := service.Login(context.Background(), "dave", "secret-password"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	// Successful login leaves prior failures in place; only an explicit
	// unlock clears them.
	if attempts := store.get(t, "dave").FailedAttempts; attempts != 3 {
		t.Errorf("FailedAttempts = %d after successful login, want 3", attempts)
	}
}

func TestRefresh_ReResolvesIdentity(t *testing.T) {
	store := newMemStore()
	service := testService(t, store)
	codec := testTokenCodec(t)
	ctx := context.Background()

	tokens, err := service.SignUp(ctx, "alice", "correct-horse-battery")
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}

	// Promote alice after the refresh token was issued: the new access
	// token must carry the current role, not the one at issue time.
	promoted := store.get(t, "alice")
	promoted.Role = user.RoleModerator
	store.put(promoted)

	refreshed, err := service.Refresh(ctx, tokens.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	claims, err := codec.Verify(refreshed.AccessToken)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if claims.Role != user.RoleModerator {
		t.Errorf("refreshed access token role = %q, want MODERATOR", claims.Role)
	}
}

func TestRefresh_InvalidToken(t *testing.T) {
	store := newMemStore()
	service := testService(t, store)
	ctx := context.Background()

	if _, err := service.Refresh(ctx, "garbage"); !errors.Is(err, token.ErrTokenInvalid) {
		t.Errorf("Refresh() garbage = %v, want ErrTokenInvalid", err)
	}

	// A valid signature whose subject no longer resolves is an invalid
	// token, not a not-found.
	codec := testTokenCodec(t)
	refresh, err := codec.IssueRefreshToken(user.User{Username: "deleted-user"})
	if err != nil {
		t.Fatalf("IssueRefreshToken() error = %v", err)
	}
	if _, err := service.Refresh(ctx, refresh); !errors.Is(err, token.ErrTokenInvalid) {
		t.Errorf("Refresh() for unknown subject = %v, want ErrTokenInvalid", err)
	}
}

package auth

import (
	"context"

	"github.com/Grinko1/jwt-auth-app/internal/user"
)

// UserStore is the identity-record collaborator. The Postgres repository in
// internal/user implements it; tests use an in-memory fake.
type UserStore interface {
	FindByUsername(ctx context.Context, username string) (user.User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	Create(ctx context.Context, u user.User) (user.User, error)

	// RecordFailedAttempt atomically increments the counter, flips the lock
	// once the threshold is reached, and returns the updated record.
	RecordFailedAttempt(ctx context.Context, username string, threshold int) (user.User, error)
	Unlock(ctx context.Context, username string) error
}

// UserResolver is the read-only slice of the store the request pipeline needs.
type UserResolver interface {
	FindByUsername(ctx context.Context, username string) (user.User, error)
}

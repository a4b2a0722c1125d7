package auth

import (
	"context"

	"github.com/Grinko1/jwt-auth-app/internal/user"
)

// DefaultLockoutThreshold is the number of consecutive failed attempts that
// locks an account.
const DefaultLockoutThreshold = 5

// LockoutPolicy counts failed login attempts per account and decides when an
// account is locked. The counter lives on the identity record so lockout
// state survives restarts and is visible across concurrent requests.
type LockoutPolicy struct {
	store     UserStore
	threshold int
}

func NewLockoutPolicy(store UserStore, threshold int) *LockoutPolicy {
	if threshold <= 0 {
		threshold = DefaultLockoutThreshold
	}

	return &LockoutPolicy{store: store, threshold: threshold}
}

// RecordFailedAttempt registers one verified-wrong-password event and returns
// the updated record. The lock flips exactly when the counter reaches the
// threshold; the increment-and-compare happens atomically in the store.
func (p *LockoutPolicy) RecordFailedAttempt(ctx context.Context, username string) (user.User, error) {
	return p.store.RecordFailedAttempt(ctx, username, p.threshold)
}

// IsLocked reads the persisted lock flag from the identity snapshot.
func (p *LockoutPolicy) IsLocked(u user.User) bool {
	return u.Locked
}

// Unlock resets the counter and clears the lock. Unlocking an account that
// is not locked is a no-op.
func (p *LockoutPolicy) Unlock(ctx context.Context, username string) error {
	u, err := p.store.FindByUsername(ctx, username)
	if err != nil {
		return err
	}
	if !u.Locked && u.FailedAttempts == 0 {
		return nil
	}

	return p.store.Unlock(ctx, username)
}

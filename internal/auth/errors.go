package auth

import "errors"

var (
	// ErrBadCredentials is returned when the password does not match the
	// stored hash. Each occurrence also counts toward lockout.
	ErrBadCredentials = errors.New("wrong username or password")

	// ErrAccountLocked is returned before any password comparison once an
	// account has crossed the failed-attempt threshold.
	ErrAccountLocked = errors.New("account is locked, too many failed login attempts")
)

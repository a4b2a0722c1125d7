package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrAlreadyExists is returned when an insert collides with an existing username.
var ErrAlreadyExists = errors.New("username already exists")

const uniqueViolation = "23505"

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) FindByUsername(ctx context.Context, username string) (User, error) {
	var u User
	err := r.db.QueryRowContext(ctx, `
		SELECT id, username, password_hash, role, failed_attempts, locked, created_at, updated_at
		FROM users
		WHERE username = $1
	`, username).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.FailedAttempts, &u.Locked, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("query user by username: %w", err)
	}

	return u, nil
}

func (r *Repository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)
	`, username).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check username exists: %w", err)
	}

	return exists, nil
}

func (r *Repository) Create(ctx context.Context, u User) (User, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return User{}, fmt.Errorf("generate uuid v7: %w", err)
	}

	now := time.Now().UTC()
	u.ID = id.String()
	u.CreatedAt = now
	u.UpdatedAt = now

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO users (id, username, password_hash, role, failed_attempts, locked, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
	`, u.ID, u.Username, u.PasswordHash, u.Role, u.FailedAttempts, u.Locked, now)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return User{}, ErrAlreadyExists
		}
		return User{}, fmt.Errorf("insert user: %w", err)
	}

	return u, nil
}

// RecordFailedAttempt increments the counter and flips the lock in a single
// conditional UPDATE so concurrent failures against the same account cannot
// lose updates or overshoot the threshold.
func (r *Repository) RecordFailedAttempt(ctx context.Context, username string, threshold int) (User, error) {
	var u User
	err := r.db.QueryRowContext(ctx, `
		UPDATE users
		SET failed_attempts = failed_attempts + 1,
		    locked = locked OR (failed_attempts + 1 >= $2),
		    updated_at = $3
		WHERE username = $1
		RETURNING id, username, password_hash, role, failed_attempts, locked, created_at, updated_at
	`, username, threshold, time.Now().UTC()).
		Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.FailedAttempts, &u.Locked, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("record failed attempt: %w", err)
	}

	return u, nil
}

func (r *Repository) Unlock(ctx context.Context, username string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET failed_attempts = 0, locked = FALSE, updated_at = $2
		WHERE username = $1
	`, username, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("unlock user: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("unlock rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

// UpsertAdmin creates or updates the seeded administrator account. Existing
// lockout state is cleared so a locked-out admin can be recovered via env.
func (r *Repository) UpsertAdmin(ctx context.Context, username, passwordHash string) error {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generate uuid v7: %w", err)
	}

	now := time.Now().UTC()
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO users (id, username, password_hash, role, failed_attempts, locked, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 0, FALSE, $5, $5)
		ON CONFLICT (username)
		DO UPDATE SET
			password_hash = EXCLUDED.password_hash,
			role = EXCLUDED.role,
			failed_attempts = 0,
			locked = FALSE,
			updated_at = EXCLUDED.updated_at
	`, id.String(), username, passwordHash, RoleSuperAdmin, now)
	if err != nil {
		return fmt.Errorf("upsert admin user: %w", err)
	}

	return nil
}

func (r *Repository) AllowLoginIP(ctx context.Context, ip string, maxHits int, window time.Duration, now time.Time) (bool, time.Duration, error) {
	threshold := now.UTC().Add(-window)

	var hits int
	var windowStartedAt time.Time
	err := r.db.QueryRowContext(ctx, `
		WITH upsert AS (
			INSERT INTO login_ip_limits (ip, window_started_at, hits, updated_at)
			VALUES ($1, $2, 1, $2)
			ON CONFLICT (ip) DO UPDATE
			SET
				hits = CASE
					WHEN login_ip_limits.window_started_at <= $3 THEN 1
					ELSE login_ip_limits.hits + 1
				END,
				window_started_at = CASE
					WHEN login_ip_limits.window_started_at <= $3 THEN $2
					ELSE login_ip_limits.window_started_at
				END,
				updated_at = $2
			RETURNING hits, window_started_at
		)
		SELECT hits, window_started_at FROM upsert
	`, ip, now.UTC(), threshold).Scan(&hits, &windowStartedAt)
	if err != nil {
		return false, 0, fmt.Errorf("upsert login ip rate limit: %w", err)
	}

	if hits <= maxHits {
		return true, 0, nil
	}

	retryAfter := windowStartedAt.Add(window).Sub(now.UTC())
	if retryAfter < time.Second {
		retryAfter = time.Second
	}

	return false, retryAfter, nil
}

func (r *Repository) CleanupStaleLoginLimits(ctx context.Context, retention time.Duration, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = 500
	}
	if retention <= 0 {
		retention = 24 * time.Hour
	}

	cutoff := time.Now().UTC().Add(-retention)

	res, err := r.db.ExecContext(ctx, `
		WITH stale AS (
			SELECT ip
			FROM login_ip_limits
			WHERE updated_at < $1
			ORDER BY updated_at ASC
			LIMIT $2
		)
		DELETE FROM login_ip_limits t
		USING stale
		WHERE t.ip = stale.ip
	`, cutoff, batchSize)
	if err != nil {
		return 0, fmt.Errorf("delete stale login ip limits: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("stale login ip limits rows affected: %w", err)
	}

	return affected, nil
}

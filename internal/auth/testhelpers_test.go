package auth

import (
	"context"
	"encoding/base64"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/Grinko1/jwt-auth-app/internal/observability"
	"github.com/Grinko1/jwt-auth-app/internal/token"
	"github.com/Grinko1/jwt-auth-app/internal/user"
)

// memStore is an in-memory UserStore with the same increment-and-compare
// semantics the Postgres repository implements atomically.
type memStore struct {
	mu          sync.Mutex
	users       map[string]user.User
	nextID      int
	unlockCalls int
}

func newMemStore() *memStore {
	return &memStore{users: make(map[string]user.User)}
}

func (s *memStore) FindByUsername(_ context.Context, username string) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[username]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return u, nil
}

func (s *memStore) ExistsByUsername(_ context.Context, username string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.users[username]
	return ok, nil
}

func (s *memStore) Create(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[u.Username]; ok {
		return user.User{}, user.ErrAlreadyExists
	}

	s.nextID++
	u.ID = "usr-" + strconv.Itoa(s.nextID)
	u.CreatedAt = time.Now().UTC()
	u.UpdatedAt = u.CreatedAt
	s.users[u.Username] = u

	return u, nil
}

func (s *memStore) RecordFailedAttempt(_ context.Context, username string, threshold int) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[username]
	if !ok {
		return user.User{}, user.ErrNotFound
	}

	u.FailedAttempts++
	if u.FailedAttempts >= threshold {
		u.Locked = true
	}
	s.users[username] = u

	return u, nil
}

func (s *memStore) Unlock(_ context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[username]
	if !ok {
		return user.ErrNotFound
	}

	s.unlockCalls++
	u.FailedAttempts = 0
	u.Locked = false
	s.users[username] = u

	return nil
}

func (s *memStore) put(u user.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.Username] = u
}

func (s *memStore) get(t *testing.T, username string) user.User {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[username]
	if !ok {
		t.Fatalf("user %q not in store", username)
	}
	return u
}

// plainHasher keeps service tests fast; bcrypt itself is covered in
// password_test.go.
type plainHasher struct{}

func (plainHasher) Hash(plaintext string) (string, error) {
	return "hashed:" + plaintext, nil
}

func (plainHasher) Verify(plaintext, hash string) bool {
	return hash == "hashed:"+plaintext
}

func testTokenCodec(t *testing.T) *token.Codec {
	t.Helper()

	secret := base64.StdEncoding.EncodeToString([]byte("test-secret-key-for-jwt-signing"))
	codec, err := token.NewCodec(secret, time.Hour, 0)
	if err != nil {
		t.Fatalf("NewCodec() error = %v", err)
	}
	return codec
}

func testService(t *testing.T, store *memStore) *Service {
	t.Helper()

	lockout := NewLockoutPolicy(store, DefaultLockoutThreshold)
	return NewService(store, plainHasher{}, testTokenCodec(t), lockout, observability.NewLogger())
}

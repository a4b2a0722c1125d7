package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fakeIPLimitStore struct {
	allowed    bool
	retryAfter time.Duration
	err        error
	lastIP     string
}

func (s *fakeIPLimitStore) AllowLoginIP(_ context.Context, ip string, _ int, _ time.Duration, _ time.Time) (bool, time.Duration, error) {
	s.lastIP = ip
	return s.allowed, s.retryAfter, s.err
}

func TestLoginRateLimiter_Allows(t *testing.T) {
	store := &fakeIPLimitStore{allowed: true}
	limiter := NewLoginRateLimiter(store, 10, time.Minute)

	called := false
	rec := httptest.NewRecorder()
	limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/login", nil))

	if !called {
		t.Error("allowed request should reach the login handler")
	}
}

func TestLoginRateLimiter_Throttles(t *testing.T) {
	store := &fakeIPLimitStore{allowed: false, retryAfter: 30 * time.Second}
	limiter := NewLoginRateLimiter(store, 10, time.Minute)

	rec := httptest.NewRecorder()
	limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("throttled request must not reach the login handler")
	})).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/login", nil))

	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", rec.Code)
	}
	if retry := rec.Header().Get("Retry-After"); retry != "30" {
		t.Errorf("Retry-After = %q, want 30", retry)
	}
}

func TestLoginRateLimiter_FailsOpen(t *testing.T) {
	store := &fakeIPLimitStore{err: errors.New("db down")}
	limiter := NewLoginRateLimiter(store, 10, time.Minute)

	called := false
	rec := httptest.NewRecorder()
	limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/login", nil))

	if !called {
		t.Error("a limiter failure must not block login")
	}
}

func TestLoginRateLimiter_UsesForwardedIP(t *testing.T) {
	store := &fakeIPLimitStore{allowed: true}
	limiter := NewLoginRateLimiter(store, 10, time.Minute)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})).
		ServeHTTP(httptest.NewRecorder(), req)

	if store.lastIP != "203.0.113.9" {
		t.Errorf("limited by IP %q, want first X-Forwarded-For entry", store.lastIP)
	}
}

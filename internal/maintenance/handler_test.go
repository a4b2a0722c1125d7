package maintenance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Grinko1/jwt-auth-app/internal/observability"
)

type fakeCleanupStore struct {
	deleted int64
	calls   int
}

func (s *fakeCleanupStore) CleanupStaleLoginLimits(_ context.Context, _ time.Duration, _ int) (int64, error) {
	s.calls++
	return s.deleted, nil
}

func TestCleanupHandler_NoSecretConfigured(t *testing.T) {
	h := NewCleanupHandler(&fakeCleanupStore{}, observability.NewLogger(), "", time.Hour, 100)

	rec := httptest.NewRecorder()
	h.Handle(rec, httptest.NewRequest(http.MethodGet, "/internal/maintenance/cleanup", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 when no cron secret is configured", rec.Code)
	}
}

func TestCleanupHandler_WrongSecret(t *testing.T) {
	store := &fakeCleanupStore{}
	h := NewCleanupHandler(store, observability.NewLogger(), "cron-secret", time.Hour, 100)

	req := httptest.NewRequest(http.MethodGet, "/internal/maintenance/cleanup", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec := httptest.NewRecorder()
	h.Handle(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if store.calls != 0 {
		t.Error("cleanup must not run with a wrong secret")
	}
}

func TestCleanupHandler_Runs(t *testing.T) {
	store := &fakeCleanupStore{deleted: 7}
	h := NewCleanupHandler(store, observability.NewLogger(), "cron-secret", time.Hour, 100)

	req := httptest.NewRequest(http.MethodPost, "/internal/maintenance/cleanup", nil)
	req.Header.Set("Authorization", "Bearer cron-secret")
	rec := httptest.NewRecorder()
	h.Handle(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if store.calls != 1 {
		t.Errorf("cleanup ran %d times, want 1", store.calls)
	}
}

package maintenance

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/Grinko1/jwt-auth-app/internal/observability"
)

// CleanupStore deletes stale login-IP rate-limit rows in batches.
type CleanupStore interface {
	CleanupStaleLoginLimits(ctx context.Context, retention time.Duration, batchSize int) (int64, error)
}

// CleanupHandler is a cron-invoked endpoint guarded by a shared secret.
// Account lockout rows are deliberately not touched: locks only clear
// through an explicit admin unlock.
type CleanupHandler struct {
	store      CleanupStore
	logger     *observability.Logger
	cronSecret string
	retention  time.Duration
	batchSize  int
}

func NewCleanupHandler(store CleanupStore, logger *observability.Logger, cronSecret string, retention time.Duration, batchSize int) *CleanupHandler {
	return &CleanupHandler{
		store:      store,
		logger:     logger,
		cronSecret: strings.TrimSpace(cronSecret),
		retention:  retention,
		batchSize:  batchSize,
	}
}

func (h *CleanupHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if h.cronSecret == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}

	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) != h.cronSecret {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	deleted, err := h.store.CleanupStaleLoginLimits(r.Context(), h.retention, h.batchSize)
	if err != nil {
		h.logger.Error("auth_cleanup_failed", map[string]any{"error": err.Error()})
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "cleanup failed"})
		return
	}

	h.logger.Info("auth_cleanup_completed", map[string]any{
		"deleted_ip_limits": deleted,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"status":            "ok",
		"deleted_ip_limits": deleted,
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

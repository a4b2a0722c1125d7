package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/getsentry/sentry-go"

	"github.com/Grinko1/jwt-auth-app/internal/token"
	"github.com/Grinko1/jwt-auth-app/internal/user"
)

var usernameRegex = regexp.MustCompile(`^[a-z0-9_.-]{3,32}$`)

const (
	maxJSONBodyBytes  = 1 << 20
	minPasswordLength = 8
	maxPasswordLength = 200
)

type Handler struct {
	service *Service
	lockout *LockoutPolicy
}

func NewHandler(service *Service, lockout *LockoutPolicy) *Handler {
	return &Handler{service: service, lockout: lockout}
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *Handler) SignUp(w http.ResponseWriter, r *http.Request) {
	body, ok := decodeCredentials(w, r)
	if !ok {
		return
	}

	if !usernameRegex.MatchString(strings.ToLower(body.Username)) {
		writeError(w, http.StatusBadRequest, "username format is invalid")
		return
	}
	if len(body.Password) < minPasswordLength || len(body.Password) > maxPasswordLength {
		writeError(w, http.StatusBadRequest, "password format is invalid")
		return
	}

	tokens, err := h.service.SignUp(r.Context(), body.Username, body.Password)
	if err != nil {
		if errors.Is(err, user.ErrAlreadyExists) {
			writeError(w, http.StatusConflict, "username already exists")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to sign up")
		return
	}

	writeJSON(w, http.StatusCreated, tokens)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	body, ok := decodeCredentials(w, r)
	if !ok {
		return
	}

	if body.Username == "" || body.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	tokens, err := h.service.Login(r.Context(), body.Username, body.Password)
	if err != nil {
		switch {
		case errors.Is(err, user.ErrNotFound):
			writeError(w, http.StatusNotFound, "user not found")
		case errors.Is(err, ErrAccountLocked):
			writeError(w, http.StatusLocked, "account is locked, too many failed login attempts")
		case errors.Is(err, ErrBadCredentials):
			writeError(w, http.StatusUnauthorized, "wrong username or password")
		default:
			sentry.CaptureException(err)
			writeError(w, http.StatusInternalServerError, "failed to login")
		}
		return
	}

	writeJSON(w, http.StatusOK, tokens)
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var body refreshRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	tokens, err := h.service.Refresh(r.Context(), body.RefreshToken)
	if err != nil {
		if errors.Is(err, token.ErrTokenExpired) || errors.Is(err, token.ErrTokenInvalid) {
			writeError(w, http.StatusUnauthorized, "invalid refresh token")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to refresh token")
		return
	}

	writeJSON(w, http.StatusOK, tokens)
}

// Unlock clears a lockout. Routed behind the SUPER_ADMIN guard.
func (h *Handler) Unlock(w http.ResponseWriter, r *http.Request) {
	username := normalizeUsername(r.PathValue("username"))
	if username == "" {
		writeError(w, http.StatusBadRequest, "username is required")
		return
	}

	if err := h.lockout.Unlock(r.Context(), username); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to unlock user")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "unlocked", "username": username})
}

func decodeCredentials(w http.ResponseWriter, r *http.Request) (credentialsRequest, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var body credentialsRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return credentialsRequest{}, false
	}

	body.Username = strings.TrimSpace(body.Username)
	body.Password = strings.TrimSpace(body.Password)

	return body, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

package auth

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
)

// IPLimitStore persists fixed-window hit counters per client IP.
type IPLimitStore interface {
	AllowLoginIP(ctx context.Context, ip string, maxHits int, window time.Duration, now time.Time) (bool, time.Duration, error)
}

// LoginRateLimiter throttles the login route per client IP. This is request
// shaping against credential stuffing, separate from and additive to the
// per-account lockout.
type LoginRateLimiter struct {
	store   IPLimitStore
	maxHits int
	window  time.Duration
}

func NewLoginRateLimiter(store IPLimitStore, maxHits int, window time.Duration) *LoginRateLimiter {
	if maxHits <= 0 {
		maxHits = 10
	}
	if window <= 0 {
		window = time.Minute
	}

	return &LoginRateLimiter{store: store, maxHits: maxHits, window: window}
}

func (l *LoginRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, retryAfter, err := l.store.AllowLoginIP(r.Context(), clientIP(r), l.maxHits, l.window, time.Now().UTC())
		if err != nil {
			// A broken limiter must not take the login route down with it.
			sentry.CaptureException(err)
			next.ServeHTTP(w, r)
			return
		}

		if !allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
			writeError(w, http.StatusTooManyRequests, "too many login attempts")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	xForwardedFor := strings.TrimSpace(r.Header.Get("X-Forwarded-For"))
	if xForwardedFor != "" {
		parts := strings.Split(xForwardedFor, ",")
		if len(parts) > 0 {
			ip := strings.TrimSpace(parts[0])
			if ip != "" {
				return ip
			}
		}
	}

	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}

	return "unknown"
}

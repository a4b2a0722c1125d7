package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/Grinko1/jwt-auth-app/internal/auth"
	"github.com/Grinko1/jwt-auth-app/internal/db"
	"github.com/Grinko1/jwt-auth-app/internal/maintenance"
	"github.com/Grinko1/jwt-auth-app/internal/observability"
	"github.com/Grinko1/jwt-auth-app/internal/product"
	"github.com/Grinko1/jwt-auth-app/internal/token"
	"github.com/Grinko1/jwt-auth-app/internal/user"
)

type Options struct {
	LoadDotEnv    bool
	RunMigrations bool
}

type Runtime struct {
	Handler http.Handler
	Close   func() error
}

// Build wires the full service: config from env, Postgres, token codec,
// lockout policy, credential service, authentication pipeline, and routes.
// A missing or undecodable signing secret fails here, before any request.
func Build(options Options) (*Runtime, error) {
	if options.LoadDotEnv {
		_ = godotenv.Load()
	}

	logger := observability.NewLogger()

	databaseURL, err := mustEnv("DATABASE_URL")
	if err != nil {
		return nil, err
	}
	jwtSecret, err := mustEnv("JWT_SECRET")
	if err != nil {
		return nil, err
	}

	codec, err := token.NewCodec(
		jwtSecret,
		envHoursOrDefault("ACCESS_TOKEN_TTL_HOURS", 24),
		envHoursOrDefault("REFRESH_TOKEN_TTL_HOURS", 0),
	)
	if err != nil {
		return nil, fmt.Errorf("configure token codec: %w", err)
	}

	if err := observability.InitSentry(os.Getenv("SENTRY_DSN"), envOrDefault("APP_ENV", "development")); err != nil {
		logger.Error("init_sentry_failed", map[string]any{"error": err.Error()})
	}

	database, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	database.SetMaxOpenConns(envIntOrDefault("DB_MAX_OPEN_CONNS", 10))
	database.SetMaxIdleConns(envIntOrDefault("DB_MAX_IDLE_CONNS", 5))
	database.SetConnMaxLifetime(envMinutesOrDefault("DB_CONN_MAX_LIFETIME_MINUTES", 30))
	database.SetConnMaxIdleTime(envMinutesOrDefault("DB_CONN_MAX_IDLE_TIME_MINUTES", 10))

	if err := database.Ping(); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if options.RunMigrations {
		applied, err := db.RunMigrations(database)
		if err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		if len(applied) > 0 {
			logger.Info("migrations_applied", map[string]any{"versions": applied})
		}
	}

	userRepo := user.NewRepository(database)
	hasher := auth.BcryptHasher{}
	lockout := auth.NewLockoutPolicy(userRepo, envIntOrDefault("LOGIN_MAX_ATTEMPTS", auth.DefaultLockoutThreshold))
	authService := auth.NewService(userRepo, hasher, codec, lockout, logger)
	authHandler := auth.NewHandler(authService, lockout)
	pipeline := auth.NewPipeline(codec, userRepo)

	if err := seedAdmin(userRepo, hasher, os.Getenv("ADMIN_USERNAME"), os.Getenv("ADMIN_PASSWORD")); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("seed admin: %w", err)
	}

	loginLimiter := auth.NewLoginRateLimiter(
		userRepo,
		envIntOrDefault("LOGIN_RATE_LIMIT_MAX", 10),
		envSecondsOrDefault("LOGIN_RATE_LIMIT_WINDOW_SECONDS", 60),
	)

	productRepo := product.NewRepository(database)
	productHandler := product.NewHandler(productRepo)

	cleanupHandler := maintenance.NewCleanupHandler(
		userRepo,
		logger,
		os.Getenv("CRON_SECRET"),
		envHoursOrDefault("LOGIN_IP_LIMIT_RETENTION_HOURS", 24),
		envIntOrDefault("AUTH_CLEANUP_BATCH_SIZE", 500),
	)

	superAdmin := string(user.RoleSuperAdmin)
	moderator := string(user.RoleModerator)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/signup", authHandler.SignUp)
	mux.Handle("POST /auth/login", loginLimiter.Middleware(http.HandlerFunc(authHandler.Login)))
	mux.HandleFunc("POST /auth/refresh", authHandler.Refresh)
	mux.Handle("GET /admin", auth.RequireAuthority(superAdmin, messageHandler("Some admin things here, you get it cause you're admin")))
	mux.Handle("POST /admin/unlock/{username}", auth.RequireAuthority(superAdmin, http.HandlerFunc(authHandler.Unlock)))
	mux.Handle("GET /moderator", auth.RequireAuthority(moderator, messageHandler("Some moderator things here, you get it cause you're moderator")))
	mux.Handle("GET /products", auth.RequireAuthenticated(http.HandlerFunc(productHandler.ListProducts)))
	mux.Handle("POST /products", auth.RequireAuthority(superAdmin, http.HandlerFunc(productHandler.CreateProduct)))
	mux.Handle("PUT /products/{id}", auth.RequireAuthority(superAdmin, http.HandlerFunc(productHandler.UpdateProduct)))
	mux.Handle("DELETE /products/{id}", auth.RequireAuthority(superAdmin, http.HandlerFunc(productHandler.DeleteProduct)))
	mux.HandleFunc("GET /internal/maintenance/cleanup", cleanupHandler.Handle)
	mux.HandleFunc("POST /internal/maintenance/cleanup", cleanupHandler.Handle)
	mux.HandleFunc("GET /health", healthHandler(database))

	handler := observability.RecoverMiddleware(logger,
		observability.RequestLoggingMiddleware(logger,
			pipeline.Middleware(mux)))

	return &Runtime{
		Handler: handler,
		Close: func() error {
			observability.FlushSentry()
			return database.Close()
		},
	}, nil
}

// seedAdmin upserts the SUPER_ADMIN account named by env. Both variables are
// required together; neither set means no seeding.
func seedAdmin(repo *user.Repository, hasher auth.PasswordHasher, username, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	password = strings.TrimSpace(password)

	if username == "" && password == "" {
		return nil
	}
	if username == "" || password == "" {
		return fmt.Errorf("ADMIN_USERNAME and ADMIN_PASSWORD are required together")
	}

	hash, err := hasher.Hash(password)
	if err != nil {
		return err
	}

	return repo.UpsertAdmin(context.Background(), username, hash)
}

func messageHandler(message string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": message})
	})
}

func healthHandler(database *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := map[string]any{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)}
		if err := database.PingContext(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body = map[string]any{"status": "degraded", "time": time.Now().UTC().Format(time.RFC3339)}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}

func mustEnv(name string) (string, error) {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return "", fmt.Errorf("missing required env: %s", name)
	}
	return value, nil
}

func envOrDefault(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

func envIntOrDefault(name string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func envMinutesOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Minute
}

func envHoursOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Hour
}

func envSecondsOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Second
}

func EnvBoolOrDefault(name string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if value == "" {
		return fallback
	}

	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

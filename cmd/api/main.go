// Package main is the entrypoint for the schedly registration API.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/schedly/schedly/internal/cache"
	"github.com/schedly/schedly/internal/config"
	"github.com/schedly/schedly/internal/handler"
	"github.com/schedly/schedly/internal/metrics"
	"github.com/schedly/schedly/internal/middleware"
	"github.com/schedly/schedly/internal/repository"
	"github.com/schedly/schedly/internal/repository/memory"
	"github.com/schedly/schedly/internal/repository/mongodb"
	"github.com/schedly/schedly/internal/repository/sqlite"
	"github.com/schedly/schedly/internal/server"
	"github.com/schedly/schedly/internal/service"
	"github.com/schedly/schedly/internal/telemetry"
)

// userStore is what the API needs from a store backend.
type userStore interface {
	service.UserStore
	handler.HealthChecker
	Close() error
}

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	shutdownTracing, err := telemetry.Setup(ctx, cfg.OTelServiceName, cfg.OTelEndpoint)
	if err != nil {
		logger.Error("failed to set up tracing", "error", err)
		os.Exit(1)
	}

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open user store",
			slog.String("driver", cfg.StoreDriver),
			slog.String("error", sanitizeError(err, cfg.DatabaseURL, cfg.MongoURL)),
		)
		os.Exit(1)
	}
	logger.Info("user store ready", "driver", cfg.StoreDriver)

	// Redis is optional; without it the registration limit is per process.
	var (
		cacheClient *cache.Cache
		cacheHealth handler.HealthChecker
	)
	if cfg.RedisURL != "" {
		cacheClient, err = cache.New(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error(
				"failed to connect to Redis",
				slog.String("error", sanitizeError(err, cfg.RedisURL)),
				slog.String("redis_url", redactURL(cfg.RedisURL)),
			)
			_ = store.Close()
			os.Exit(1)
		}
		cacheHealth = cacheClient
		logger.Info("connected to Redis")
	}

	recorder := metrics.NewInMemory()
	registrationService := service.NewRegistrationService(store, recorder)

	router := handler.NewRouter(handler.RouterConfig{
		Logger:        logger,
		Users:         registrationService,
		Store:         store,
		Cache:         cacheHealth,
		Metrics:       recorder,
		Snapshotter:   recorder,
		IsDevelopment: cfg.IsDevelopment(),
		SecureCookies: cfg.SecureCookies(),
		CORSOrigins:   cfg.GetCORSAllowedOrigins(),
		MaxBodySize:   cfg.MaxRequestBodySize,
		RateLimit: middleware.RateLimitConfig{
			Enabled: cfg.RateLimitRegisterEnabled,
			Limiter: middleware.NewRegisterLimiter(cacheClient, cfg.RateLimitRegisterRPS, cfg.RateLimitRegisterBurst),
		},
	})

	srv := server.New(router, server.Options{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	// LIFO: tracing flushes last so spans from the final requests are kept.
	srv.OnShutdown("tracing", server.ShutdownFunc(shutdownTracing))
	srv.OnShutdown("user store", func(context.Context) error { return store.Close() })
	if cacheClient != nil {
		srv.OnShutdown("redis", func(context.Context) error { return cacheClient.Close() })
	}

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"store", cfg.StoreDriver,
		"redis", cacheClient != nil,
		"tracing", cfg.OTelEndpoint != "",
	)

	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// openStore opens the backend named by STORE_DRIVER and applies its schema.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (userStore, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		logger.Info("connecting to database", slog.String("database_url", redactURL(cfg.DatabaseURL)))
		return repository.Open(ctx, cfg.DatabaseURL)
	case config.StoreDriverSQLite:
		return sqlite.Open(ctx, cfg.SQLitePath)
	case config.StoreDriverMongo:
		logger.Info("connecting to MongoDB", slog.String("mongo_url", redactURL(cfg.MongoURL)))
		return mongodb.Open(ctx, cfg.MongoURL, cfg.MongoDatabase, logger)
	case config.StoreDriverMemory:
		logger.Warn("using the in-memory user store; registrations are lost on restart")
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h).With("service", cfg.OTelServiceName)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}

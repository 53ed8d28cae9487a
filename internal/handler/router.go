package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/schedly/schedly/internal/metrics"
	"github.com/schedly/schedly/internal/middleware"
)

// RouterConfig holds everything the router wires together.
type RouterConfig struct {
	Logger        *slog.Logger
	Users         UserService
	Store         HealthChecker
	Cache         HealthChecker
	Metrics       metrics.Recorder
	Snapshotter   metrics.Snapshotter
	IsDevelopment bool
	SecureCookies bool
	CORSOrigins   []string
	MaxBodySize   int64
	RateLimit     middleware.RateLimitConfig
}

const defaultMaxBodySize = 64 << 10

// NewRouter builds the HTTP routes and middleware chain.
func NewRouter(cfg RouterConfig) http.Handler {
	h := New()
	healthHandler := NewHealthHandler(cfg.Store, cfg.Cache)
	metricsHandler := NewMetricsHandler(cfg.Snapshotter)
	userHandler := NewUserHandler(cfg.Users, cfg.Logger, cfg.SecureCookies)

	maxBody := cfg.MaxBodySize
	if maxBody <= 0 {
		maxBody = defaultMaxBodySize
	}
	rateLimit := cfg.RateLimit
	if rateLimit.Logger == nil {
		rateLimit.Logger = cfg.Logger
	}
	if rateLimit.Metrics == nil {
		rateLimit.Metrics = cfg.Metrics
	}

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.CORSOrigins

	r := chi.NewRouter()

	// Middleware order matters: RealIP first so later stages see the
	// client address, Tracing before RequestID so the trace id is echoed.
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Tracing)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recoverer(cfg.Logger, cfg.IsDevelopment))
	r.Use(middleware.Security(middleware.SecurityConfig{IsDevelopment: cfg.IsDevelopment}))
	r.Use(middleware.CORS(corsCfg))
	r.Use(middleware.MaxBodySize(maxBody))

	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)

	r.Get("/", h.Info)
	r.Get("/healthz", healthHandler.Healthz)
	r.Get("/readyz", healthHandler.Readyz)
	r.Get("/metrics", metricsHandler.Metrics)

	r.Route("/users", func(r chi.Router) {
		r.With(middleware.RateLimitRegister(rateLimit)).Post("/", userHandler.Register)
		r.Get("/me", userHandler.Me)
	})

	return r
}

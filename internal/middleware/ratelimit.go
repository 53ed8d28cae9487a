package middleware

import (
	"context"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/schedly/schedly/internal/cache"
	"github.com/schedly/schedly/internal/metrics"
)

// RegisterLimiter decides whether a registration from ip may proceed.
type RegisterLimiter interface {
	Allow(ctx context.Context, ip string) (allowed bool, retryAfter time.Duration, err error)
}

// RateLimitConfig holds configuration for the registration rate limit.
type RateLimitConfig struct {
	Logger  *slog.Logger
	Metrics metrics.Recorder
	Enabled bool
	// Limiter is shared across replicas when Redis is configured and local
	// to the process otherwise. See NewRegisterLimiter.
	Limiter RegisterLimiter
}

// RateLimitRegister limits registration attempts per client IP.
// Limiter errors fail open.
func RateLimitRegister(cfg RateLimitConfig) func(http.Handler) http.Handler {
	recorder := cfg.Metrics
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		if !cfg.Enabled || cfg.Limiter == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)

			allowed, retryAfter, err := cfg.Limiter.Allow(r.Context(), ip)
			if err != nil {
				logger.Error("registration rate limit check failed",
					slog.String("error", err.Error()),
					slog.String("request_id", GetRequestID(r.Context())),
				)
			}

			if !allowed {
				recorder.IncRegistrationRateLimited()
				seconds := int(math.Ceil(retryAfter.Seconds()))
				if seconds < 1 {
					seconds = 1
				}

				logger.Warn("rate limit exceeded",
					slog.String("type", "register"),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.Int("retry_after_seconds", seconds),
					slog.String("request_id", GetRequestID(r.Context())),
				)

				w.Header().Set("Retry-After", strconv.Itoa(seconds))
				writeError(w, r, http.StatusTooManyRequests, MsgRateLimited)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// NewRegisterLimiter returns a Redis-backed limiter when c is non-nil and a
// process-local one otherwise.
func NewRegisterLimiter(c *cache.Cache, ratePerSecond float64, burst int) RegisterLimiter {
	if c != nil {
		return &redisLimiter{cache: c, rate: ratePerSecond, burst: burst}
	}
	return NewLocalLimiter(ratePerSecond, burst)
}

type redisLimiter struct {
	cache *cache.Cache
	rate  float64
	burst int
}

func (l *redisLimiter) Allow(ctx context.Context, ip string) (bool, time.Duration, error) {
	result, err := l.cache.CheckRegisterRateLimit(ctx, ip, l.rate, l.burst)
	if err != nil {
		return true, 0, err
	}
	return result.Allowed, result.RetryAfter, nil
}

// idleLimiterTTL is how long an unused per-IP bucket is kept in memory.
const idleLimiterTTL = 10 * time.Minute

// LocalLimiter keeps one token bucket per IP in process memory.
type LocalLimiter struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	visitors  map[string]*visitor
	lastSweep time.Time
	now       func() time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLocalLimiter creates a LocalLimiter refilling ratePerSecond tokens up to burst.
func NewLocalLimiter(ratePerSecond float64, burst int) *LocalLimiter {
	return &LocalLimiter{
		limit:    rate.Limit(ratePerSecond),
		burst:    burst,
		visitors: make(map[string]*visitor),
		now:      time.Now,
	}
}

// Allow consumes a token for ip.
func (l *LocalLimiter) Allow(_ context.Context, ip string) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = now

	res := v.limiter.ReserveN(now, 1)
	if !res.OK() {
		return false, time.Second, nil
	}
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return false, delay, nil
	}
	return true, 0, nil
}

func (l *LocalLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < time.Minute {
		return
	}
	l.lastSweep = now
	for ip, v := range l.visitors {
		if now.Sub(v.lastSeen) > idleLimiterTTL {
			delete(l.visitors, ip)
		}
	}
}

// clientIP returns the host part of RemoteAddr. chi's RealIP middleware has
// already rewritten it from X-Forwarded-For / X-Real-IP when present.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

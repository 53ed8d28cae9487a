package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// rateLimitRegisterPrefix is the key prefix for per-IP registration buckets.
	rateLimitRegisterPrefix = "ratelimit:register:ip:"
	// rateLimitRegisterTTLSlack is kept past a bucket's full refill time
	// before an idle bucket expires.
	rateLimitRegisterTTLSlack = 60 * time.Second
)

// RateLimitResult contains the result of a rate limit check.
type RateLimitResult struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
}

// tokenBucketScript refills and consumes a token bucket atomically.
var tokenBucketScript = redis.NewScript(`
	local key = KEYS[1]
	local rate = tonumber(ARGV[1])
	local burst = tonumber(ARGV[2])
	local now = tonumber(ARGV[3])
	local ttl = tonumber(ARGV[4])

	local data = redis.call('HMGET', key, 'tokens', 'last_update')
	local tokens = tonumber(data[1]) or burst
	local last_update = tonumber(data[2]) or now

	local elapsed = now - last_update
	tokens = math.min(burst, tokens + (elapsed * rate))

	local allowed = 0
	local retry_after = 0

	if tokens >= 1 then
		tokens = tokens - 1
		allowed = 1
	else
		retry_after = math.ceil((1 - tokens) / rate)
	end

	redis.call('HSET', key, 'tokens', tokens, 'last_update', now)
	redis.call('EXPIRE', key, ttl)

	return {allowed, retry_after, math.floor(tokens)}
`)

// CheckRegisterRateLimit consumes one registration token for ip.
//
// On a Redis failure the returned result allows the request and the error is
// returned alongside it, so callers can fail open and still log.
func (c *Cache) CheckRegisterRateLimit(ctx context.Context, ip string, ratePerSecond float64, burst int) (*RateLimitResult, error) {
	if ratePerSecond <= 0 {
		return &RateLimitResult{Allowed: true, Remaining: int64(burst)}, nil
	}

	key := rateLimitRegisterPrefix + hashIP(ip)
	now := time.Now().Unix()
	ttl := bucketTTL(ratePerSecond, burst)

	result, err := tokenBucketScript.Run(ctx, c.client,
		[]string{key},
		ratePerSecond, burst, now, int64(ttl.Seconds()),
	).Int64Slice()
	if err != nil {
		return &RateLimitResult{Allowed: true, Remaining: int64(burst)},
			fmt.Errorf("rate limit script: %w", err)
	}

	return parseBucketResult(result)
}

// bucketTTL is how long an idle bucket must live. Expiring earlier than the
// time an empty bucket takes to refill would hand out a full burst early.
func bucketTTL(ratePerSecond float64, burst int) time.Duration {
	refill := math.Ceil(float64(burst) / ratePerSecond)
	return time.Duration(refill)*time.Second + rateLimitRegisterTTLSlack
}

func parseBucketResult(result []int64) (*RateLimitResult, error) {
	if len(result) != 3 {
		return &RateLimitResult{Allowed: true}, fmt.Errorf("rate limit script: unexpected reply length %d", len(result))
	}
	return &RateLimitResult{
		Allowed:    result[0] == 1,
		RetryAfter: time.Duration(result[1]) * time.Second,
		Remaining:  result[2],
	}, nil
}

// hashIP creates a truncated SHA256 hash of an IP address so raw addresses
// are never written to Redis.
func hashIP(ip string) string {
	hash := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(hash[:8])
}

package http

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/install-tickets/internal/config"
	apperrors "github.com/spec-kit/install-tickets/pkg/util"
)

// tokenBucketScript refills one token per interval and takes one per call.
// It returns {allowed, remaining, retry_after_ms}.
var tokenBucketScript = redis.NewScript(`
	local key = KEYS[1]
	local now_ms = tonumber(ARGV[1])
	local capacity = tonumber(ARGV[2])
	local interval_ms = tonumber(ARGV[3])
	local ttl_seconds = tonumber(ARGV[4])

	local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
	local tokens = tonumber(state[1])
	local last_refill = tonumber(state[2])

	if tokens == nil or last_refill == nil then
		tokens = capacity
		last_refill = now_ms
	end

	if interval_ms > 0 then
		local elapsed = math.max(0, now_ms - last_refill)
		local intervals = math.floor(elapsed / interval_ms)
		if intervals > 0 then
			tokens = math.min(capacity, tokens + intervals)
			last_refill = last_refill + (intervals * interval_ms)
		end
	end

	local allowed = 0
	local retry_after_ms = 0
	if tokens > 0 then
		allowed = 1
		tokens = tokens - 1
	else
		retry_after_ms = math.max(0, interval_ms - (now_ms - last_refill))
	end

	redis.call('HSET', key, 'tokens', tokens, 'last_refill_ms', last_refill)
	redis.call('EXPIRE', key, ttl_seconds)

	return { allowed, tokens, retry_after_ms }
`)

// LoginRateLimiter throttles credential attempts per client IP with a Redis
// token bucket. It fails open when Redis is absent or erroring.
func LoginRateLimiter(cfg config.RateLimitConfig, rdb redis.Scripter, logger *zap.Logger) fiber.Handler {
	if !cfg.Enabled || rdb == nil {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	ttlSeconds := int64(cfg.TTL / time.Second)
	if ttlSeconds <= 0 {
		ttlSeconds = 60
	}

	return func(c *fiber.Ctx) error {
		key := rateKey(cfg.Prefix, "login", c.IP())
		args := []any{
			time.Now().UnixMilli(),
			cfg.Capacity,
			cfg.RefillInterval.Milliseconds(),
			ttlSeconds,
		}

		vals, err := tokenBucketScript.Run(c.UserContext(), rdb, []string{key}, args...).Result()
		if err != nil {
			logger.Warn("rate limiter unavailable", zap.String("key", key), zap.Error(err))
			return c.Next()
		}
		arr, ok := vals.([]any)
		if !ok || len(arr) != 3 {
			logger.Warn("unexpected rate limiter result", zap.String("key", key), zap.Any("result", vals))
			return c.Next()
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
		c.Set("X-RateLimit-Remaining", strconv.FormatInt(asInt64(arr[1]), 10))

		if asInt64(arr[0]) != 1 {
			secs := int(math.Ceil(float64(asInt64(arr[2])) / 1000.0))
			if secs < 1 {
				secs = 1
			}
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(secs))
			return apperrors.NewRateLimited(secs)
		}
		return c.Next()
	}
}

func rateKey(prefix string, parts ...string) string {
	if prefix == "" {
		prefix = "rl"
	}
	return strings.Join(append([]string{prefix}, parts...), ":")
}

func asInt64(v any) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case string:
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			return n
		}
	}
	n, _ := strconv.ParseInt(fmt.Sprint(v), 10, 64)
	return n
}

package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// fixedWindowScript increments the window counter and starts its expiry on
// the first hit. Returns {count, ttl_ms}.
var fixedWindowScript = redis.NewScript(`
	local count = redis.call('INCR', KEYS[1])
	if count == 1 then
		redis.call('PEXPIRE', KEYS[1], ARGV[1])
	end
	local ttl = redis.call('PTTL', KEYS[1])
	return { count, ttl }
`)

// RateLimitConfig configures a fixed-window limiter
type RateLimitConfig struct {
	Prefix   string // namespaces the counter, e.g. "bookings"
	Requests int
	Window   time.Duration
}

// RateLimit limits requests per requester (user id when authenticated,
// otherwise client ip) with a Redis fixed window. With a nil client, or when
// Redis fails, requests are let through.
func RateLimit(rdb *redis.Client, cfg RateLimitConfig, logger *logrus.Logger) gin.HandlerFunc {
	if rdb == nil || cfg.Requests <= 0 || cfg.Window <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		key := rateLimitKey(cfg.Prefix, c)

		ctx, cancel := context.WithTimeout(c.Request.Context(), 200*time.Millisecond)
		vals, err := fixedWindowScript.Run(ctx, rdb, []string{key}, cfg.Window.Milliseconds()).Int64Slice()
		cancel()
		if err != nil || len(vals) != 2 {
			logger.WithError(err).WithField("key", key).Warn("Rate limiter unavailable, allowing request")
			c.Next()
			return
		}

		count, ttlMs := vals[0], vals[1]
		remaining := int64(cfg.Requests) - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(cfg.Requests))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > int64(cfg.Requests) {
			retryAfter := (ttlMs + 999) / 1000
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
			logger.WithFields(logrus.Fields{
				"key":   key,
				"count": count,
			}).Warn("Rate limit exceeded")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"errorKind": "rate_limited",
				"message":   fmt.Sprintf("Too many requests. Try again in %d seconds.", retryAfter),
			})
			return
		}

		c.Next()
	}
}

func rateLimitKey(prefix string, c *gin.Context) string {
	if userCtx, ok := GetUserContext(c); ok {
		return fmt.Sprintf("ratelimit:%s:user:%s", prefix, userCtx.UserID)
	}
	return fmt.Sprintf("ratelimit:%s:ip:%s", prefix, c.ClientIP())
}

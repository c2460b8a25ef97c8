package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"golang.org/x/time/rate"

	"github.com/lexvault/lexvault/internal/metrics"
	"github.com/lexvault/lexvault/internal/observability"
)

// RateLimiter enforces per user fixed window limits, shared across
// instances through Redis. When Redis is unreachable it falls back to an
// in process limiter so a cache outage cannot take down the API.
type RateLimiter struct {
	client *redis.Client
	window time.Duration
	logger observability.Logger

	mu       sync.Mutex
	fallback map[string]*rate.Limiter
}

// NewRateLimiter creates a rate limiter backed by the given Redis client.
// The client may be nil, in which case only the local fallback is used.
func NewRateLimiter(client *redis.Client, window time.Duration, logger observability.Logger) *RateLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		client:   client,
		window:   window,
		logger:   logger,
		fallback: make(map[string]*rate.Limiter),
	}
}

// Limit returns middleware allowing at most limit requests per window for
// each authenticated user within the named scope.
func (rl *RateLimiter) Limit(scope string, limit int) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := UserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "missing user context",
			})
			c.Abort()
			return
		}

		remaining, allowed := rl.allow(c.Request.Context(), scope, userID.String(), limit)
		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if !allowed {
			metrics.RateLimitHits.WithLabelValues(scope).Inc()
			c.Header("Retry-After", strconv.Itoa(int(rl.window.Seconds())))
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded, please try again later",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// allow counts the request against the window and reports whether it may
// proceed along with the remaining budget.
func (rl *RateLimiter) allow(ctx context.Context, scope, userID string, limit int) (int, bool) {
	if rl.client != nil {
		key := fmt.Sprintf("ratelimit:%s:%s", scope, userID)

		count, err := rl.client.Incr(ctx, key).Result()
		if err == nil {
			if count == 1 {
				// First hit in the window owns the expiry
				if err := rl.client.Expire(ctx, key, rl.window).Err(); err != nil {
					rl.logger.Warn("Failed to set rate limit expiry", map[string]interface{}{
						"key":   key,
						"error": err.Error(),
					})
				}
			}
			remaining := limit - int(count)
			if remaining < 0 {
				remaining = 0
			}
			return remaining, count <= int64(limit)
		}

		rl.logger.Warn("Redis rate limit check failed, using local fallback", map[string]interface{}{
			"scope": scope,
			"error": err.Error(),
		})
	}

	return rl.allowLocal(scope, userID, limit)
}

func (rl *RateLimiter) allowLocal(scope, userID string, limit int) (int, bool) {
	if limit <= 0 {
		return 0, false
	}
	key := scope + ":" + userID

	rl.mu.Lock()
	limiter, ok := rl.fallback[key]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(rl.window/time.Duration(limit)), limit)
		rl.fallback[key] = limiter
	}
	rl.mu.Unlock()

	if !limiter.Allow() {
		return 0, false
	}
	return int(limiter.Tokens()), true
}

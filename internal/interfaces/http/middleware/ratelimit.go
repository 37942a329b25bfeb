package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/bpo/cashclosing/internal/infrastructure/logger"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.uber.org/zap"
)

const rateLimitKeyPrefix = "cashclosing:ratelimit"

// NewRateLimiter builds a fixed-window limiter allowing requests per window.
// Counters live in redis when client is non-nil so every replica shares
// them; otherwise they are kept in process memory.
func NewRateLimiter(requests int, window time.Duration, client *redis.Client) (*limiter.Limiter, error) {
	rate := limiter.Rate{Period: window, Limit: int64(requests)}

	var store limiter.Store
	if client != nil {
		s, err := sredis.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: rateLimitKeyPrefix})
		if err != nil {
			return nil, err
		}
		store = s
	} else {
		store = memory.NewStoreWithOptions(limiter.StoreOptions{
			Prefix:          rateLimitKeyPrefix,
			CleanUpInterval: limiter.DefaultCleanUpInterval,
		})
	}
	return limiter.New(store, rate), nil
}

// RateLimitKey keys requests by company and client IP. Anonymous requests
// share the bucket of their IP.
func RateLimitKey(c *gin.Context) string {
	key := c.ClientIP()
	if companyID := GetCompanyID(c); companyID != "" {
		key = companyID + ":" + key
	}
	return key
}

// RateLimit returns a rate limiting middleware keyed by RateLimitKey
func RateLimit(l *limiter.Limiter) gin.HandlerFunc {
	return RateLimitByKey(l, RateLimitKey)
}

// RateLimitByKey returns a rate limiting middleware with custom key extractor
func RateLimitByKey(l *limiter.Limiter, keyFunc func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := keyFunc(c)

		lctx, err := l.Get(c.Request.Context(), key)
		if err != nil {
			// Store outage: let the request through rather than fail the API
			logger.FromContext(c.Request.Context()).Error("Rate limit store unavailable",
				zap.String("key", key),
				zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(lctx.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(lctx.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(lctx.Reset, 10))

		if lctx.Reached {
			logger.FromContext(c.Request.Context()).Warn("Rate limit exceeded",
				zap.String("key", key),
				zap.Int64("limit", lctx.Limit))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "RATE_LIMIT_EXCEEDED",
					"message": "Too many requests. Please try again later.",
				},
			})
			return
		}

		c.Next()
	}
}

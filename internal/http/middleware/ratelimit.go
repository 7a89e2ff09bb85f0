// Package middleware holds HTTP-layer guards applied ahead of the
// websocket upgrade. The coordinator otherwise has no REST surface to
// protect, so this package only carries what /ws needs.
package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"ludoarena/internal/logger"
)

var (
	rlRequests = requestsCounter()
	rlBlocked  = blockedCounter()
)

// RedisRateLimit is a fixed-window limiter keyed on client IP, backed by
// INCR/EXPIRE against the same Redis instance the user store uses. Redis
// unavailability fails the gate open rather than rejecting connections —
// losing the rate limit is preferable to losing the coordinator.
func RedisRateLimit(client *redis.Client, maxRequests int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if client == nil {
			c.Next()
			return
		}

		ident := c.ClientIP()
		key := "rl:ws_connect:" + strconv.FormatInt(int64(window.Seconds()), 10) + ":" + ident
		ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
		defer cancel()

		val, err := client.Incr(ctx, key).Result()
		if err != nil {
			logger.Warn("middleware: rate limiter redis error, failing open", "error", err)
			c.Next()
			return
		}
		if val == 1 {
			client.Expire(ctx, key, window)
		}

		rlRequests.WithLabelValues(c.FullPath()).Inc()
		if val > int64(maxRequests) {
			rlBlocked.WithLabelValues(c.FullPath()).Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

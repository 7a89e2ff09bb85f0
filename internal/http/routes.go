// Package http registers the coordinator's minimal REST surface: a root
// banner, status/health probes, Prometheus metrics, and the websocket
// upgrade that every game event flows through afterward.
package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"ludoarena/internal/http/handlers"
	"ludoarena/internal/http/middleware"
	"ludoarena/internal/store"
	"ludoarena/internal/ws"
)

// RegisterRoutes wires every route this module exposes. rateLimitClient may
// be nil, in which case the websocket connect rate limiter fails open.
func RegisterRoutes(r *gin.Engine, hub *ws.Hub, userStore store.UserStore, rateLimitClient *redis.Client, allowedOrigin string, wsRateLimit int, wsRateWindow time.Duration) {
	statusHandler := handlers.NewStatusHandler(hub, userStore)

	r.GET("/", func(c *gin.Context) {
		c.JSON(200, gin.H{"service": "ludoarena", "status": "ok"})
	})
	r.GET("/status", statusHandler.Status)
	r.GET("/healthz", handlers.Liveness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/ws",
		middleware.RedisRateLimit(rateLimitClient, wsRateLimit, wsRateWindow),
		handlers.WSHandler(hub, allowedOrigin),
	)
}

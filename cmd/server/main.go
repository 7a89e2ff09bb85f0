package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"ludoarena/internal/config"
	"ludoarena/internal/db"
	httpServer "ludoarena/internal/http"
	"ludoarena/internal/ledger"
	"ludoarena/internal/logger"
	"ludoarena/internal/room"
	"ludoarena/internal/session"
	"ludoarena/internal/settlement"
	"ludoarena/internal/store"
	"ludoarena/internal/ws"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogJSON)

	redisStore := store.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	memStore := store.NewMemoryStore()
	userStore := store.NewFacade(redisStore, memStore)

	var gameLedger ledger.Ledger = ledger.NoopLedger{}
	if cfg.PostgresDSN != "" {
		pool, err := db.Connect(cfg.PostgresDSN)
		if err != nil {
			logger.Warn("main: postgres unavailable, settlement ledger disabled", "error", err)
		} else {
			gameLedger = ledger.NewPostgresLedger(pool)
			defer pool.Close()
		}
	}

	sessions := session.NewRegistry()
	hub := ws.NewHub(sessions, nil, userStore)

	settler := settlement.New(userStore, gameLedger)
	manager := room.NewManager(hub, settler, cfg.TurnTimeout, cfg.DisconnectGrace)
	hub.Rooms = manager

	r := gin.Default()
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	httpServer.RegisterRoutes(r, hub, userStore, redisStore.Client(), cfg.AllowedOrigin, cfg.WsConnectRateLimit, cfg.WsConnectRateWindow)

	srv := &http.Server{
		Addr:    cfg.Host + ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		logger.Info("server started", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server: listen failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server: shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server: forced shutdown", "error", err)
	}
	logger.Info("server: exited")
}

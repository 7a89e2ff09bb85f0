package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"ludoarena/internal/store"
	"ludoarena/internal/ws"
)

// StatusHandler reports the aggregate counters an operator dashboard or
// load balancer health check wants: room/connection counts and whether
// the durable user store is currently reachable.
type StatusHandler struct {
	hub   *ws.Hub
	store store.UserStore
}

func NewStatusHandler(hub *ws.Hub, userStore store.UserStore) *StatusHandler {
	return &StatusHandler{hub: hub, store: userStore}
}

func (h *StatusHandler) Status(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	rooms, connections := h.hub.Counts()
	users, err := h.store.ListAll(ctx)
	userCount := 0
	if err == nil {
		userCount = len(users)
	}

	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"rooms":       rooms,
		"users":       userCount,
		"connections": connections,
		"store_ok":    h.store.Connected(ctx),
	})
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"ludoarena/internal/logger"
	"ludoarena/internal/ws"
)

// WSHandler upgrades the connection and hands it to the transport package.
// Identity is established afterward, over the socket, via add_user — there
// is nothing to authenticate at upgrade time.
func WSHandler(hub *ws.Hub, allowedOrigin string) gin.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if allowedOrigin == "" {
				return true
			}
			return r.Header.Get("Origin") == allowedOrigin
		},
	}

	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("ws: upgrade failed", "error", err)
			return
		}

		client := ws.NewClient(conn, hub)
		go client.Run()
	}
}

package ws

import (
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"ludoarena/internal/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMessage = 8192
)

// Client is one connected transport handle. It satisfies session.Handle so
// the session registry and room roster can address it without importing
// the transport package back.
type Client struct {
	id       string
	UserID   string
	UserName string

	// currentRoom is the room the client last seated into, used by the hub
	// to target disconnect-grace and to track room membership for broadcast.
	currentRoom string

	conn *websocket.Conn
	hub  *Hub
	send chan []byte

	closed chan struct{}
}

func NewClient(conn *websocket.Conn, hub *Hub) *Client {
	return &Client{
		id:     uuid.NewString(),
		conn:   conn,
		hub:    hub,
		send:   make(chan []byte, 64),
		closed: make(chan struct{}),
	}
}

// ID implements session.Handle.
func (c *Client) ID() string { return c.id }

// Deliver enqueues an outbound frame, dropping it if the client's send
// buffer is full rather than blocking the caller (typically a room
// goroutine broadcasting to many peers at once).
func (c *Client) Deliver(event string, payload any) {
	frame, err := encodeEnvelope(event, payload)
	if err != nil {
		logger.Warn("ws: failed to encode outbound frame", "event", event, "error", err)
		return
	}
	select {
	case c.send <- frame:
	default:
		logger.Warn("ws: send buffer full, dropping frame", "event", event, "user_id", c.UserID)
	}
}

// Run starts the read/write pumps and blocks until the connection closes.
func (c *Client) Run() {
	go c.writePump()
	c.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.hub.onDisconnect(c)
		close(c.closed)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessage)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		c.hub.handleFrame(c, raw)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.closed:
			return
		}
	}
}

package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// writeWait is how long a single write may take before the
	// connection is considered dead.
	writeWait = 10 * time.Second

	// pongWait is how long we wait for a pong before dropping the client;
	// pingPeriod must be shorter so pings go out in time.
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 8 * 1024

	// sendBuffer bounds per-connection queued events. A client that can't
	// drain this many events gets drops, not an unbounded queue.
	sendBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Mobile clients connect from app webviews and dev builds with
	// arbitrary origins; auth happens at the protocol level instead.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsClient is one live websocket connection. It implements Conn.
type wsClient struct {
	id     string
	hub    *Hub
	conn   *websocket.Conn
	send   chan outbound
	logger *zap.Logger
}

func (c *wsClient) ID() string { return c.id }

// Enqueue implements Conn. Non-blocking: a full buffer drops the event.
func (c *wsClient) Enqueue(ev outbound) bool {
	select {
	case c.send <- ev:
		return true
	default:
		return false
	}
}

// ServeWS returns the gin handler for GET /v1/ws. The connection starts
// anonymous; the client must send an authenticate frame to become
// deliverable.
func ServeWS(hub *Hub, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := &wsClient{
			id:     uuid.NewString(),
			hub:    hub,
			conn:   conn,
			send:   make(chan outbound, sendBuffer),
			logger: logger,
		}
		hub.Attach(client)

		go client.writePump()
		go client.readPump()
	}
}

// readPump pulls frames off the wire and hands them to the hub. It owns
// the connection's read side; when it returns, the connection is torn
// down and detached everywhere (rooms, presence).
func (c *wsClient) readPump() {
	// The send channel is never closed: the hub may still hold a
	// reference briefly after detach, and an enqueue to a closed channel
	// would panic. writePump exits on its own once the conn is closed.
	defer func() {
		c.hub.Detach(c.id)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("websocket read error", zap.Error(err))
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			c.logger.Warn("malformed frame", zap.String("conn_id", c.id))
			continue
		}

		// Events run to completion on this goroutine, one at a time per
		// connection — same serialization the event-loop original had.
		c.hub.HandleEvent(context.Background(), c, env)
	}
}

// writePump serializes all writes for the connection: queued events plus
// keepalive pings. gorilla allows only one concurrent writer, so this
// goroutine is the only place that touches the write side.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case ev := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

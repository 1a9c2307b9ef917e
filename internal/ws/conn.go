package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/novacore-ai/gateway/internal/auth"
)

// conn wraps one authenticated WebSocket connection. All writes flow
// through the send channel and a single write pump, because a gorilla
// connection allows only one concurrent writer.
type conn struct {
	ws     *websocket.Conn
	claims *auth.Claims
	send   chan []byte

	mu      sync.Mutex
	isAlive bool
	closed  bool
}

func newConn(ws *websocket.Conn, claims *auth.Claims) *conn {
	return &conn{
		ws:      ws,
		claims:  claims,
		send:    make(chan []byte, 32),
		isAlive: true,
	}
}

// markAlive is called from the pong handler.
func (c *conn) markAlive() {
	c.mu.Lock()
	c.isAlive = true
	c.mu.Unlock()
}

// checkAndReset returns the current liveness and arms the next sweep. A
// connection that fails to pong before the following sweep reads false.
func (c *conn) checkAndReset() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	alive := c.isAlive
	c.isAlive = false
	return alive
}

// enqueue queues an outbound frame, dropping it if the client cannot keep
// up. A slow consumer must not block the reader or the sweep. The lock is
// held across the send so close cannot shut the channel between the closed
// check and the send.
func (c *conn) enqueue(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}

	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// close shuts the send channel exactly once; the write pump then closes
// the underlying socket.
func (c *conn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// writePump drains the send channel onto the wire. It owns data writes on
// the socket; pings go out via WriteControl from the sweep, which gorilla
// permits alongside a single data writer. When the channel closes the pump
// sends a close frame and tears the socket down.
func (c *conn) writePump(writeTimeout time.Duration) {
	defer c.ws.Close()

	for frame := range c.send {
		c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
			return
		}
	}

	c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	c.ws.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "server shutting down"))
}

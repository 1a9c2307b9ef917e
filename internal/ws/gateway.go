package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/novacore-ai/gateway/internal/auth"
	"github.com/novacore-ai/gateway/internal/config"
	"github.com/novacore-ai/gateway/internal/logging"
	"github.com/novacore-ai/gateway/internal/metrics"
	"github.com/novacore-ai/gateway/internal/middleware"
)

const (
	readLimit = 1 << 20 // 1 MiB per frame

	// Close code sent when the handshake carries no valid token.
	closePolicyViolation = websocket.ClosePolicyViolation
)

// welcomeFrame is the first frame on every accepted connection.
type welcomeFrame struct {
	Type      string `json:"type"`
	UserID    string `json:"userId"`
	Email     string `json:"email,omitempty"`
	Timestamp string `json:"timestamp"`
}

// echoFrame annotates a relayed client message with the sender's verified
// identity and the gateway receive time.
type echoFrame struct {
	Type      string          `json:"type"`
	UserID    string          `json:"userId"`
	Email     string          `json:"email,omitempty"`
	Timestamp string          `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// errorFrame reports a recoverable protocol error without dropping the
// connection.
type errorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Gateway owns all live WebSocket connections. Authentication happens at
// upgrade time; identity never needs re-verification per frame.
type Gateway struct {
	verifier *auth.UserVerifier
	mc       *metrics.Collector
	upgrader websocket.Upgrader

	sweepInterval time.Duration
	writeTimeout  time.Duration

	mu    sync.Mutex
	conns map[*conn]struct{}

	stop     chan struct{}
	stopOnce sync.Once
}

// NewGateway creates the connection gateway and starts its liveness sweep.
func NewGateway(cfg config.WebSocketConfig, verifier *auth.UserVerifier, mc *metrics.Collector) *Gateway {
	sweep := cfg.SweepInterval
	if sweep <= 0 {
		sweep = 30 * time.Second
	}
	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}

	g := &Gateway{
		verifier: verifier,
		mc:       mc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Cross-origin browser clients are expected; auth is the
			// bearer token, not the Origin header.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		sweepInterval: sweep,
		writeTimeout:  writeTimeout,
		conns:         make(map[*conn]struct{}),
		stop:          make(chan struct{}),
	}

	go g.sweepLoop()
	return g
}

// extractToken pulls the bearer token from the handshake. Browsers cannot
// set an Authorization header on a WebSocket, so the token travels either
// in the token query parameter or as a Sec-WebSocket-Protocol value.
func extractToken(r *http.Request) (token, subprotocol string) {
	if t := r.URL.Query().Get("token"); t != "" {
		return t, ""
	}
	if p := r.Header.Get("Sec-WebSocket-Protocol"); p != "" {
		return p, p
	}
	return "", ""
}

// ServeHTTP upgrades and authenticates one connection. A handshake without
// a valid token is upgraded and then immediately closed with a policy
// violation close frame, so the client sees a proper close code instead of
// a dropped TCP connection.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token, subprotocol := extractToken(r)

	var responseHeader http.Header
	if subprotocol != "" {
		responseHeader = http.Header{"Sec-WebSocket-Protocol": {subprotocol}}
	}

	claims, authErr := g.verifier.Verify(token)

	socket, err := g.upgrader.Upgrade(w, r, responseHeader)
	if err != nil {
		// Upgrade writes its own HTTP error response.
		g.mc.RecordWSRejected("upgrade_failed")
		return
	}

	if authErr != nil {
		reason := "invalid_token"
		if token == "" {
			reason = "missing_token"
		}
		g.mc.RecordWSRejected(reason)
		socket.SetWriteDeadline(time.Now().Add(g.writeTimeout))
		socket.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(closePolicyViolation, "authentication required"))
		socket.Close()
		return
	}

	g.serve(socket, claims, middleware.CorrelationID(r))
}

// serve runs one accepted connection to completion.
func (g *Gateway) serve(socket *websocket.Conn, claims *auth.Claims, correlationID string) {
	c := newConn(socket, claims)

	socket.SetReadLimit(readLimit)
	socket.SetPongHandler(func(string) error {
		c.markAlive()
		return nil
	})

	g.mu.Lock()
	g.conns[c] = struct{}{}
	g.mu.Unlock()
	g.mc.WSOpened()

	logging.Info("websocket connected",
		zap.String("user_id", claims.UserID),
		zap.String("correlation_id", correlationID),
	)

	go c.writePump(g.writeTimeout)

	welcome, _ := json.Marshal(welcomeFrame{
		Type:      "welcome",
		UserID:    claims.UserID,
		Email:     claims.Email,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	c.enqueue(welcome)

	g.readLoop(c)

	g.mu.Lock()
	delete(g.conns, c)
	g.mu.Unlock()
	c.close()
	g.mc.WSClosed()

	logging.Info("websocket disconnected",
		zap.String("user_id", claims.UserID),
		zap.String("correlation_id", correlationID),
	)
}

// readLoop consumes client frames until the connection dies. Malformed JSON
// earns an error frame, not a disconnect; any received frame also counts as
// proof of life.
func (g *Gateway) readLoop(c *conn) {
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		c.markAlive()

		if !json.Valid(data) {
			frame, _ := json.Marshal(errorFrame{
				Type:    "error",
				Message: "message must be valid JSON",
			})
			c.enqueue(frame)
			continue
		}

		frame, _ := json.Marshal(echoFrame{
			Type:      "echo",
			UserID:    c.claims.UserID,
			Email:     c.claims.Email,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Payload:   json.RawMessage(data),
		})
		c.enqueue(frame)
	}
}

// sweepLoop terminates connections that failed to pong since the previous
// sweep, then pings the survivors. A vanished client is detected within two
// sweep intervals at most.
func (g *Gateway) sweepLoop() {
	ticker := time.NewTicker(g.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			g.sweep()
		case <-g.stop:
			return
		}
	}
}

func (g *Gateway) sweep() {
	g.mu.Lock()
	conns := make([]*conn, 0, len(g.conns))
	for c := range g.conns {
		conns = append(conns, c)
	}
	g.mu.Unlock()

	for _, c := range conns {
		if !c.checkAndReset() {
			c.close()
			continue
		}
		deadline := time.Now().Add(g.writeTimeout)
		if err := c.ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
			c.close()
		}
	}
}

// Len reports the number of live connections.
func (g *Gateway) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.conns)
}

// Shutdown stops the sweep and closes every live connection.
func (g *Gateway) Shutdown() {
	g.stopOnce.Do(func() { close(g.stop) })

	g.mu.Lock()
	conns := make([]*conn, 0, len(g.conns))
	for c := range g.conns {
		conns = append(conns, c)
	}
	g.mu.Unlock()

	for _, c := range conns {
		c.close()
	}
}

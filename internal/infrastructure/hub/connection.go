package hub

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/gorilla/websocket"

	"go-face-notify/internal/infrastructure/logger"
)

// SSEEventNotification is the SSE event name notifications are sent under.
const SSEEventNotification = "notification"

// SSEConnection implements the Connection interface for Server-Sent Events
type SSEConnection struct {
	id     string
	writer http.ResponseWriter

	ctx    context.Context
	cancel context.CancelFunc

	closed   bool
	closedMu sync.RWMutex

	// ResponseWriter is not safe for concurrent writes
	writeMu sync.Mutex

	logger logger.Logger

	keepAliveInterval time.Duration
	writeTimeout      time.Duration
}

// NewSSEConnection creates a new SSE connection bound to the request context
func NewSSEConnection(
	ctx context.Context,
	id string,
	w http.ResponseWriter,
	logger logger.Logger,
) *SSEConnection {
	rctx, cancel := context.WithCancel(ctx)

	conn := &SSEConnection{
		id:                id,
		writer:            w,
		ctx:               rctx,
		cancel:            cancel,
		logger:            logger.WithField("connection_id", id),
		keepAliveInterval: 30 * time.Second,
		writeTimeout:      10 * time.Second,
	}

	conn.setupSSEHeaders()

	go conn.keepAlive()

	return conn
}

// ID returns unique connection identifier
func (c *SSEConnection) ID() string {
	return c.id
}

// Type returns the connection type
func (c *SSEConnection) Type() string {
	return TypeSSE
}

// Send writes payload as one "notification" event
func (c *SSEConnection) Send(ctx context.Context, payload []byte) error {
	return c.write(ctx, sse.Event{Event: SSEEventNotification, Data: string(payload)})
}

// Event writes an arbitrary SSE event, e.g. the initial "connected" event
func (c *SSEConnection) Event(ctx context.Context, event sse.Event) error {
	return c.write(ctx, event)
}

func (c *SSEConnection) write(ctx context.Context, event sse.Event) error {
	if c.IsClosed() {
		return fmt.Errorf("client is closed")
	}

	done := make(chan error, 1)
	go func() {
		c.writeMu.Lock()
		defer c.writeMu.Unlock()

		if err := sse.Encode(c.writer, event); err != nil {
			done <- err
			return
		}
		if flusher, ok := c.writer.(http.Flusher); ok {
			flusher.Flush()
		}
		done <- nil
	}()

	select {
	case err := <-done:
		if err != nil {
			c.logger.Errorf("Failed to write event: %v", err)
			c.Close()
			return err
		}
		return nil

	case <-ctx.Done():
		c.logger.Warn("Send operation cancelled")
		return ctx.Err()

	case <-time.After(c.writeTimeout):
		c.logger.Warn("Send operation timed out")
		c.Close()
		return fmt.Errorf("send timeout")
	}
}

// Close gracefully closes the connection
func (c *SSEConnection) Close() error {
	c.closedMu.Lock()
	defer c.closedMu.Unlock()

	if c.closed {
		return nil
	}

	c.closed = true
	c.cancel()

	c.logger.Info("SSE connection closed")
	return nil
}

// IsClosed returns true if connection is closed
func (c *SSEConnection) IsClosed() bool {
	c.closedMu.RLock()
	defer c.closedMu.RUnlock()
	return c.closed
}

// Context returns the connection's context (for cancellation)
func (c *SSEConnection) Context() context.Context {
	return c.ctx
}

// setupSSEHeaders sets up the proper headers for SSE connection
func (c *SSEConnection) setupSSEHeaders() {
	c.writer.Header().Set("Content-Type", "text/event-stream")
	c.writer.Header().Set("Cache-Control", "no-cache")
	c.writer.Header().Set("Connection", "keep-alive")
	c.writer.Header().Set("X-Accel-Buffering", "no") // For nginx
}

// keepAlive sends periodic keep-alive events so proxies keep the stream open
func (c *SSEConnection) keepAlive() {
	ticker := time.NewTicker(c.keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			event := sse.Event{
				Event: "keepalive",
				Data:  fmt.Sprintf(`{"timestamp":%d}`, time.Now().Unix()),
			}
			if err := c.write(c.ctx, event); err != nil {
				c.logger.Errorf("Failed to send keep-alive: %v", err)
				c.Close()
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// WebSocketConnection implements the Connection interface for WebSocket connections
type WebSocketConnection struct {
	id   string
	conn *websocket.Conn

	ctx    context.Context
	cancel context.CancelFunc

	closed   bool
	closedMu sync.RWMutex

	logger logger.Logger

	// Outbound payloads, drained by writePump
	send chan []byte

	// Write timeout for WebSocket operations
	writeTimeout time.Duration

	// Pong timeout for connection health
	pongTimeout time.Duration
}

// NewWebSocketConnection creates a new WebSocket connection and starts its pumps
func NewWebSocketConnection(
	id string,
	conn *websocket.Conn,
	logger logger.Logger,
) *WebSocketConnection {
	ctx, cancel := context.WithCancel(context.Background())

	wsConn := &WebSocketConnection{
		id:           id,
		conn:         conn,
		ctx:          ctx,
		cancel:       cancel,
		logger:       logger.WithField("connection_id", id),
		send:         make(chan []byte, 256),
		writeTimeout: 10 * time.Second,
		pongTimeout:  60 * time.Second,
	}

	wsConn.setupWebSocket()

	go wsConn.writePump()
	go wsConn.readPump()

	return wsConn
}

// ID returns unique connection identifier
func (c *WebSocketConnection) ID() string {
	return c.id
}

// Type returns the connection type
func (c *WebSocketConnection) Type() string {
	return TypeWebSocket
}

// Send queues payload to be written as one text frame
func (c *WebSocketConnection) Send(ctx context.Context, payload []byte) error {
	if c.IsClosed() {
		return fmt.Errorf("WebSocket connection is closed")
	}

	select {
	case c.send <- payload:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.ctx.Done():
		return fmt.Errorf("connection closed")
	}
}

// Close gracefully closes the WebSocket connection
func (c *WebSocketConnection) Close() error {
	c.closedMu.Lock()
	defer c.closedMu.Unlock()

	if c.closed {
		return nil
	}

	c.closed = true
	c.cancel()

	// WriteControl may run concurrently with writePump
	_ = c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(c.writeTimeout),
	)
	err := c.conn.Close()

	c.logger.Info("WebSocket connection closed")
	return err
}

// IsClosed returns true if connection is closed
func (c *WebSocketConnection) IsClosed() bool {
	c.closedMu.RLock()
	defer c.closedMu.RUnlock()
	return c.closed
}

// Context returns the connection's context (for cancellation)
func (c *WebSocketConnection) Context() context.Context {
	return c.ctx
}

// setupWebSocket configures WebSocket connection settings
func (c *WebSocketConnection) setupWebSocket() {
	c.conn.SetReadDeadline(time.Now().Add(c.pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.pongTimeout))
		return nil
	})
}

// writePump is the only writer of data frames on the socket
func (c *WebSocketConnection) writePump() {
	// Ping more often than the pong timeout
	ticker := time.NewTicker(c.pongTimeout * 9 / 10)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case payload := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.logger.Errorf("Failed to write message: %v", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Errorf("Failed to send ping: %v", err)
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// readPump drains inbound frames; clients only listen, so reading exists to
// process control frames and notice the peer going away.
func (c *WebSocketConnection) readPump() {
	defer c.Close()

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(
				err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure,
				websocket.CloseNoStatusReceived,
			) {
				c.logger.Errorf("WebSocket error: %v", err)
			}
			return
		}

		c.logger.Debugf("Ignoring inbound message (type %d, %d bytes)", messageType, len(data))
	}
}

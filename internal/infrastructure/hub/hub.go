package hub

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go-face-notify/internal/infrastructure/logger"
)

// Hub holds the live client sessions of this process and delivers payloads
// to them by connection ID. It is the message sender used by the fan-out
// engine; the durable list of subscribers lives in the registry.
type Hub struct {
	connections   map[string]Connection
	connectionsMu sync.RWMutex

	running   bool
	runningMu sync.RWMutex

	// Session handlers still running their lifecycle, see Acquire
	sessions sync.WaitGroup

	logger logger.Logger

	// Channels for internal communication
	register   chan Connection
	unregister chan string

	cleanupInterval time.Duration

	// Context for graceful shutdown
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new Hub instance
func New(logger logger.Logger) *Hub {
	return &Hub{
		connections:     make(map[string]Connection),
		logger:          logger.WithField("component", "hub"),
		register:        make(chan Connection, 100),
		unregister:      make(chan string, 100),
		cleanupInterval: 30 * time.Second,
	}
}

// Start starts the hub and begins processing connection events
func (h *Hub) Start(ctx context.Context) error {
	h.runningMu.Lock()
	defer h.runningMu.Unlock()

	if h.running {
		return fmt.Errorf("hub is already running")
	}

	h.ctx, h.cancel = context.WithCancel(ctx)
	h.running = true

	go h.run()

	h.logger.Info("Hub started successfully")
	return nil
}

// Stop gracefully stops the hub and disconnects all connections
func (h *Hub) Stop(ctx context.Context) error {
	h.runningMu.Lock()
	defer h.runningMu.Unlock()

	if !h.running {
		return nil
	}

	h.cancel()

	h.connectionsMu.Lock()
	for _, conn := range h.connections {
		if err := conn.Close(); err != nil {
			h.logger.Errorf("Failed to close connection %s: %v", conn.ID(), err)
		}
	}
	h.connections = make(map[string]Connection)
	h.connectionsMu.Unlock()

	// Registrations the run loop never picked up
	for pending := true; pending; {
		select {
		case conn := <-h.register:
			_ = conn.Close()
		default:
			pending = false
		}
	}

	h.running = false
	h.logger.Info("Hub stopped successfully")
	return nil
}

// Acquire marks one session handler as in flight. It fails once the hub is
// stopped. Every successful Acquire must be paired with Release after the
// handler's $disconnect has completed.
func (h *Hub) Acquire() bool {
	h.runningMu.RLock()
	defer h.runningMu.RUnlock()

	if !h.running {
		return false
	}
	h.sessions.Add(1)
	return true
}

// Release ends a session handler started with Acquire.
func (h *Hub) Release() {
	h.sessions.Done()
}

// Drain waits for every acquired session handler to release. Call it after
// Stop so that no new handler can be acquired.
func (h *Hub) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.sessions.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("drain session handlers: %w", ctx.Err())
	}
}

// IsRunning returns true if the hub is currently running
func (h *Hub) IsRunning() bool {
	h.runningMu.RLock()
	defer h.runningMu.RUnlock()
	return h.running
}

// RegisterConnection adds a new connection to the hub
func (h *Hub) RegisterConnection(conn Connection) error {
	// Held across the send so Stop cannot run between the check and the
	// enqueue
	h.runningMu.RLock()
	defer h.runningMu.RUnlock()

	if !h.running {
		return fmt.Errorf("hub is not running")
	}

	select {
	case h.register <- conn:
		return nil
	case <-h.ctx.Done():
		return fmt.Errorf("hub is shutting down")
	case <-time.After(5 * time.Second):
		return fmt.Errorf("timeout registering connection")
	}
}

// UnregisterConnection removes a connection from the hub
func (h *Hub) UnregisterConnection(connID string) error {
	if !h.IsRunning() {
		return fmt.Errorf("hub is not running")
	}

	select {
	case h.unregister <- connID:
		return nil
	case <-h.ctx.Done():
		return fmt.Errorf("hub is shutting down")
	case <-time.After(5 * time.Second):
		return fmt.Errorf("timeout unregistering connection")
	}
}

// GetConnection returns a connection by ID
func (h *Hub) GetConnection(connID string) (Connection, bool) {
	h.connectionsMu.RLock()
	defer h.connectionsMu.RUnlock()

	conn, exists := h.connections[connID]
	return conn, exists
}

// GetConnectionsByType returns connections of a specific type
func (h *Hub) GetConnectionsByType(connType string) []Connection {
	h.connectionsMu.RLock()
	defer h.connectionsMu.RUnlock()

	var connections []Connection
	for _, conn := range h.connections {
		if conn.Type() == connType {
			connections = append(connections, conn)
		}
	}
	return connections
}

// ConnectionCount returns the number of active connections
func (h *Hub) ConnectionCount() int {
	h.connectionsMu.RLock()
	defer h.connectionsMu.RUnlock()
	return len(h.connections)
}

// PostToConnection delivers payload to one connection. It returns
// ErrConnectionGone when this hub holds no open session for connID. Failed
// sessions are left for their own close handling; the registry entry is not
// touched here.
func (h *Hub) PostToConnection(ctx context.Context, connID string, payload []byte) error {
	conn, exists := h.GetConnection(connID)
	if !exists || conn.IsClosed() {
		return fmt.Errorf("%w: %s", ErrConnectionGone, connID)
	}

	if err := conn.Send(ctx, payload); err != nil {
		return fmt.Errorf("send to %s: %w", connID, err)
	}
	h.logger.Debugf("Payload delivered to connection %s", connID)
	return nil
}

// run is the main hub loop that processes connection events
func (h *Hub) run() {
	ticker := time.NewTicker(h.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case conn := <-h.register:
			h.handleRegister(conn)

		case connID := <-h.unregister:
			h.handleUnregister(connID)

		case <-ticker.C:
			h.cleanupClosedConnections()

		case <-h.ctx.Done():
			h.logger.Info("Hub run loop stopped")
			return
		}
	}
}

// handleRegister processes connection registration
func (h *Hub) handleRegister(conn Connection) {
	h.connectionsMu.Lock()
	if h.ctx.Err() != nil {
		// Stop already swept the set; nothing would close this one later
		h.connectionsMu.Unlock()
		_ = conn.Close()
		return
	}
	h.connections[conn.ID()] = conn
	h.connectionsMu.Unlock()

	h.logger.Infof("Connection %s registered (type: %s)", conn.ID(), conn.Type())

	// Monitor connection context for disconnection
	go func() {
		select {
		case <-conn.Context().Done():
			_ = h.UnregisterConnection(conn.ID())
		case <-h.ctx.Done():
		}
	}()
}

// handleUnregister processes connection unregistration
func (h *Hub) handleUnregister(connID string) {
	h.connectionsMu.Lock()
	conn, exists := h.connections[connID]
	if exists {
		delete(h.connections, connID)
	}
	h.connectionsMu.Unlock()

	if exists {
		_ = conn.Close()
		h.logger.Infof("Connection %s unregistered", connID)
	}
}

// cleanupClosedConnections removes connections that have been closed
func (h *Hub) cleanupClosedConnections() {
	h.connectionsMu.Lock()
	defer h.connectionsMu.Unlock()

	for id, conn := range h.connections {
		if conn.IsClosed() {
			delete(h.connections, id)
			h.logger.Infof("Cleaned up closed connection %s", id)
		}
	}
}

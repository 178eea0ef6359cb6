package websocket

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"go-face-notify/internal/domain/trigger"
	"go-face-notify/internal/infrastructure/hub"
	"go-face-notify/internal/infrastructure/logger"
)

// Router is the entry router the handler feeds lifecycle triggers into.
type Router interface {
	Route(ctx context.Context, trg *trigger.Trigger) (trigger.Response, error)
}

// WebSocketHandler authenticates WebSocket clients and binds accepted
// sessions to the hub
type WebSocketHandler struct {
	hub      *hub.Hub
	router   Router
	logger   logger.Logger
	upgrader websocket.Upgrader
}

// NewWebSocketHandler creates a new WebSocket handler instance
func NewWebSocketHandler(hubInstance *hub.Hub, router Router, logger logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub:    hubInstance,
		router: router,
		logger: logger.WithField("handler", "websocket"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Connect runs the $connect trigger and, if accepted, upgrades the request
// and holds the session until the client goes away
func (h *WebSocketHandler) Connect(c *gin.Context) {
	if !h.hub.Acquire() {
		h.logger.Error("Hub is not running")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Service temporarily unavailable",
		})
		return
	}
	defer h.hub.Release()

	connID := generateWebSocketConnectionID()
	log := h.logger.WithField("connection_id", connID)

	resp, err := h.router.Route(c.Request.Context(), trigger.FromHTTPRequest(trigger.RouteConnect, connID, c.Request))
	if err != nil {
		log.Errorf("Connect trigger failed: %v", err)
		c.String(http.StatusInternalServerError, "Internal server error")
		return
	}
	if !resp.OK() {
		log.Warnf("WebSocket connection rejected: %d %s", resp.StatusCode, resp.Body)
		c.String(resp.StatusCode, resp.Body)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Errorf("Failed to upgrade connection: %v", err)
		h.disconnect(connID)
		return
	}

	wsConn := hub.NewWebSocketConnection(connID, conn, h.logger)
	if err := h.hub.RegisterConnection(wsConn); err != nil {
		log.Errorf("Failed to register WebSocket connection: %v", err)
		wsConn.Close()
		h.disconnect(connID)
		return
	}
	log.Info("WebSocket connection connected and registered")

	<-wsConn.Context().Done()
	h.disconnect(connID)
	log.Info("WebSocket connection disconnected")
}

// disconnect issues the $disconnect trigger. The request context may already
// be gone, so it runs on its own deadline.
func (h *WebSocketHandler) disconnect(connID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := h.router.Route(ctx, trigger.NewLifecycle(trigger.RouteDisconnect, connID, nil, nil)); err != nil {
		h.logger.Errorf("Disconnect trigger failed for %s: %v", connID, err)
	}
}

// generateWebSocketConnectionID generates a unique WebSocket connection ID
func generateWebSocketConnectionID() string {
	return "ws-" + uuid.NewString()
}

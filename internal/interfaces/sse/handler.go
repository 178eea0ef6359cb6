package sse

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"go-face-notify/internal/domain/trigger"
	"go-face-notify/internal/infrastructure/hub"
	"go-face-notify/internal/infrastructure/logger"
)

// Router is the entry router the handler feeds lifecycle triggers into.
type Router interface {
	Route(ctx context.Context, trg *trigger.Trigger) (trigger.Response, error)
}

type ServerSentEventHandler struct {
	hub    *hub.Hub
	router Router
	logger logger.Logger
}

func NewServerSentEventHandler(hubInstance *hub.Hub, router Router, logger logger.Logger) *ServerSentEventHandler {
	return &ServerSentEventHandler{
		hub:    hubInstance,
		router: router,
		logger: logger.WithField("handler", "sse"),
	}
}

// Connect authenticates an SSE subscriber with the same $connect trigger as
// WebSocket clients and streams notifications until the client goes away
func (h *ServerSentEventHandler) Connect(c *gin.Context) {
	if !h.hub.Acquire() {
		h.logger.Error("Hub is not running")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Service temporarily unavailable",
		})
		return
	}
	defer h.hub.Release()

	connID := generateConnectionID()
	log := h.logger.WithField("connection_id", connID)

	resp, err := h.router.Route(c.Request.Context(), trigger.FromHTTPRequest(trigger.RouteConnect, connID, c.Request))
	if err != nil {
		log.Errorf("Connect trigger failed: %v", err)
		c.String(http.StatusInternalServerError, "Internal server error")
		return
	}
	if !resp.OK() {
		log.Warnf("SSE connection rejected: %d %s", resp.StatusCode, resp.Body)
		c.String(resp.StatusCode, resp.Body)
		return
	}
	defer h.disconnect(connID)

	conn := hub.NewSSEConnection(c.Request.Context(), connID, c.Writer, h.logger)
	c.Status(http.StatusOK)

	if err := h.hub.RegisterConnection(conn); err != nil {
		log.Errorf("Failed to register connection: %v", err)
		_ = conn.Close()
		return
	}

	log.Info("SSE connection connected and registered")
	err = conn.Event(c.Request.Context(), sse.Event{
		Event: "connected",
		Data: map[string]interface{}{
			"connection_id": connID,
			"timestamp":     time.Now().Format(time.RFC3339),
		},
	})
	if err != nil {
		log.Errorf("Failed to send connected event: %v", err)
		return
	}

	<-conn.Context().Done()
	log.Info("SSE connection disconnected")
}

func (h *ServerSentEventHandler) disconnect(connID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := h.router.Route(ctx, trigger.NewLifecycle(trigger.RouteDisconnect, connID, nil, nil)); err != nil {
		h.logger.Errorf("Disconnect trigger failed for %s: %v", connID, err)
	}
}

// generateConnectionID generates a unique connection ID
func generateConnectionID() string {
	return "sse-" + uuid.NewString()
}

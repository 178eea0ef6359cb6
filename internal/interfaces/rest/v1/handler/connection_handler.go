package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"go-face-notify/internal/infrastructure/hub"
	"go-face-notify/internal/infrastructure/logger"
	"go-face-notify/internal/infrastructure/registry"
)

// ConnectionLister is the read side of the connection registry.
type ConnectionLister interface {
	ListAll(ctx context.Context) ([]string, error)
	Get(ctx context.Context, connectionID string) (string, error)
}

type ConnectionHandler struct {
	registry ConnectionLister
	hub      *hub.Hub
	logger   logger.Logger
}

// ConnectionInfo describes one registry entry. Live is set when this process
// holds the session.
type ConnectionInfo struct {
	ConnectionID string `json:"connection_id"`
	SubscriberID string `json:"subscriber_id"`
	Live         bool   `json:"live"`
	Type         string `json:"type,omitempty"`
}

func NewConnectionHandler(registry ConnectionLister, hubInstance *hub.Hub, logger logger.Logger) *ConnectionHandler {
	return &ConnectionHandler{
		registry: registry,
		hub:      hubInstance,
		logger:   logger.WithField("handler", "connections"),
	}
}

// List reports every registry entry, marking the ones with a live session
// here. Entries without one are either held by another node or stale.
func (h *ConnectionHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	ids, err := h.registry.ListAll(ctx)
	if err != nil {
		h.logger.Errorf("Failed to list connections: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list connections",
		})
		return
	}

	connections := make([]ConnectionInfo, 0, len(ids))
	for _, id := range ids {
		subscriberID, err := h.registry.Get(ctx, id)
		if errors.Is(err, registry.ErrNotFound) {
			continue
		}
		if err != nil {
			h.logger.Errorf("Failed to read connection %s: %v", id, err)
			continue
		}

		info := ConnectionInfo{ConnectionID: id, SubscriberID: subscriberID}
		if conn, ok := h.hub.GetConnection(id); ok && !conn.IsClosed() {
			info.Live = true
			info.Type = conn.Type()
		}
		connections = append(connections, info)
	}

	c.JSON(http.StatusOK, gin.H{
		"total_connections": len(connections),
		"live_connections":  h.hub.ConnectionCount(),
		"connections":       connections,
		"hub_running":       h.hub.IsRunning(),
	})
}

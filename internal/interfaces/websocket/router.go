package websocket

import (
	"github.com/gin-gonic/gin"

	"go-face-notify/internal/infrastructure/hub"
	"go-face-notify/internal/infrastructure/logger"
)

// InitWebSocketRouter initializes WebSocket routes
func InitWebSocketRouter(logger logger.Logger, hubInstance *hub.Hub, router Router, rg *gin.RouterGroup) {
	wsHandler := NewWebSocketHandler(hubInstance, router, logger)

	rg.GET("/ws", wsHandler.Connect)
}

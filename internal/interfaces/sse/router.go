package sse

import (
	"github.com/gin-gonic/gin"

	"go-face-notify/internal/infrastructure/hub"
	"go-face-notify/internal/infrastructure/logger"
)

func InitSSERouter(logger logger.Logger, hubInstance *hub.Hub, router Router, rg *gin.RouterGroup) {
	sseHandler := NewServerSentEventHandler(hubInstance, router, logger)

	rg.GET("/sse", SSEHeadersMiddleware(), sseHandler.Connect)
}

// SSEHeadersMiddleware disables response buffering in front of the stream
func SSEHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-cache")
		c.Header("X-Accel-Buffering", "no")
		c.Next()
	}
}

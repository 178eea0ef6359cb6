package main

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	approuter "go-face-notify/internal/application/router"
	"go-face-notify/internal/infrastructure/hub"
	"go-face-notify/internal/infrastructure/logger"
	"go-face-notify/internal/infrastructure/registry"
	"go-face-notify/internal/interfaces/rest/v1/handler"
	"go-face-notify/internal/interfaces/sse"
	"go-face-notify/internal/interfaces/websocket"
)

func InitRouter(hubInstance *hub.Hub, reg registry.Registry, entry *approuter.Router, log logger.Logger) http.Handler {
	router := gin.New()
	router.Use(requestLogger(log))
	router.Use(gin.Recovery())

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	rootGroup := router.Group("")

	// Health check endpoint
	rootGroup.GET("/hub/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "healthy",
			"hub_running": hubInstance.IsRunning(),
			"connections": hubInstance.ConnectionCount(),
			"sessions": gin.H{
				hub.TypeWebSocket: len(hubInstance.GetConnectionsByType(hub.TypeWebSocket)),
				hub.TypeSSE:       len(hubInstance.GetConnectionsByType(hub.TypeSSE)),
			},
		})
	})

	invokeHandler := handler.NewInvokeHandler(entry, log)
	connectionHandler := handler.NewConnectionHandler(reg, hubInstance, log)
	apiGroup := rootGroup.Group("/api/v1")
	{
		apiGroup.POST("/invoke", invokeHandler.Invoke)
		apiGroup.GET("/connections", connectionHandler.List)
	}

	sse.InitSSERouter(log, hubInstance, entry, rootGroup)
	websocket.InitWebSocketRouter(log, hubInstance, entry, rootGroup)

	return router
}

// requestLogger logs one line per request through the relay logger
func requestLogger(log logger.Logger) gin.HandlerFunc {
	log = log.WithField("component", "http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(logger.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
			"client":  c.ClientIP(),
		}).Debug("request served")
	}
}

package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"go-face-notify/internal/domain/trigger"
	"go-face-notify/internal/infrastructure/logger"
)

// Dispatcher routes one raw trigger document.
type Dispatcher interface {
	Dispatch(ctx context.Context, raw []byte) (trigger.Response, error)
}

// InvokeHandler exposes the entry router over HTTP so external event sources
// (a stream bridge, a gateway) can post triggers directly.
type InvokeHandler struct {
	dispatcher Dispatcher
	logger     logger.Logger
}

func NewInvokeHandler(dispatcher Dispatcher, logger logger.Logger) *InvokeHandler {
	return &InvokeHandler{
		dispatcher: dispatcher,
		logger:     logger.WithField("handler", "invoke"),
	}
}

// Invoke dispatches the request body and mirrors the invocation status as the
// HTTP status.
func (h *InvokeHandler) Invoke(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		h.logger.Errorf("Failed to read trigger: %v", err)
		c.JSON(http.StatusBadRequest, trigger.UnknownEvent)
		return
	}

	resp, err := h.dispatcher.Dispatch(c.Request.Context(), body)
	if err != nil {
		h.logger.Errorf("Invocation failed: %v", err)
		c.JSON(http.StatusInternalServerError, trigger.Response{
			StatusCode: http.StatusInternalServerError,
			Body:       "Internal server error",
		})
		return
	}

	c.JSON(resp.StatusCode, resp)
}

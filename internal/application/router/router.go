// Package router classifies inbound triggers and hands them to the lifecycle
// manager or the fan-out engine.
package router

import (
	"context"
	"encoding/json"

	"go-face-notify/internal/domain/trigger"
	"go-face-notify/internal/infrastructure/logger"
)

// LifecycleHandler handles WebSocket connect/disconnect triggers.
type LifecycleHandler interface {
	Handle(ctx context.Context, trg *trigger.Trigger) (trigger.Response, error)
}

// StreamHandler handles stream batches.
type StreamHandler interface {
	Handle(ctx context.Context, records []trigger.StreamRecord) (trigger.Response, error)
}

// Router is the single entry point shared by every transport.
type Router struct {
	lifecycle LifecycleHandler
	stream    StreamHandler
	logger    logger.Logger
}

func New(lifecycle LifecycleHandler, stream StreamHandler, log logger.Logger) *Router {
	return &Router{
		lifecycle: lifecycle,
		stream:    stream,
		logger:    log.WithField("component", "router"),
	}
}

// Dispatch decodes a raw JSON trigger and routes it. Undecodable input is an
// unknown event, not an error.
func (r *Router) Dispatch(ctx context.Context, raw []byte) (trigger.Response, error) {
	var trg trigger.Trigger
	if err := json.Unmarshal(raw, &trg); err != nil {
		r.logger.Warnf("Unknown event type, undecodable trigger: %v", err)
		return trigger.UnknownEvent, nil
	}
	r.logger.Debugf("Received trigger: %s", raw)
	return r.Route(ctx, &trg)
}

// Route dispatches an already decoded trigger. The WebSocket shape is checked
// first.
func (r *Router) Route(ctx context.Context, trg *trigger.Trigger) (trigger.Response, error) {
	switch {
	case trg.IsLifecycle():
		r.logger.Infof("Routing WebSocket event: %s", trg.RouteKey())
		return r.lifecycle.Handle(ctx, trg)
	case trg.IsStreamBatch():
		r.logger.Info("Routing stream batch")
		return r.stream.Handle(ctx, trg.Records)
	}

	r.logger.Warn("Unknown event type")
	return trigger.UnknownEvent, nil
}

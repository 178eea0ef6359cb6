// Package lifecycle handles WebSocket connect and disconnect triggers.
package lifecycle

import (
	"context"
	"fmt"
	"strings"

	"go-face-notify/internal/domain/trigger"
	"go-face-notify/internal/infrastructure/logger"
)

// Registry is the subset of the connection registry the manager writes to.
type Registry interface {
	Save(ctx context.Context, connectionID, subscriberID string) error
	Remove(ctx context.Context, connectionID string) error
}

// SubjectExtractor resolves the subscriber identity claimed by a credential.
type SubjectExtractor interface {
	Subject(token string) (string, error)
}

// Manager authenticates connects and keeps the registry in sync with the
// connection lifecycle. It holds no per-connection state of its own.
type Manager struct {
	registry  Registry
	extractor SubjectExtractor
	logger    logger.Logger
}

func NewManager(registry Registry, extractor SubjectExtractor, log logger.Logger) *Manager {
	return &Manager{
		registry:  registry,
		extractor: extractor,
		logger:    log.WithField("component", "lifecycle"),
	}
}

// Handle processes one lifecycle trigger. The returned error is only set when
// the registry store itself fails.
func (m *Manager) Handle(ctx context.Context, trg *trigger.Trigger) (trigger.Response, error) {
	connectionID := trg.ConnectionID()
	route := trg.RouteKey()
	log := m.logger.WithFields(logger.Fields{"connection_id": connectionID, "route": route})

	switch route {
	case trigger.RouteConnect:
		return m.connect(ctx, log, connectionID, trg)
	case trigger.RouteDisconnect:
		if err := m.registry.Remove(ctx, connectionID); err != nil {
			return trigger.Response{}, fmt.Errorf("remove connection %s: %w", connectionID, err)
		}
		log.Info("WebSocket connection closed")
		return trigger.Disconnected, nil
	}

	log.Warn("Unknown WebSocket route")
	return trigger.InvalidRequest, nil
}

func (m *Manager) connect(
	ctx context.Context,
	log logger.Logger,
	connectionID string,
	trg *trigger.Trigger,
) (trigger.Response, error) {
	token := Credential(trg)
	if token == "" {
		log.Warn("Authorization token missing")
		return trigger.Unauthorized, nil
	}

	subscriberID, err := m.extractor.Subject(token)
	if err != nil {
		log.Warnf("Invalid authorization token: %v", err)
		return trigger.InvalidToken, nil
	}

	if err := m.registry.Save(ctx, connectionID, subscriberID); err != nil {
		return trigger.Response{}, fmt.Errorf("save connection %s: %w", connectionID, err)
	}
	log.WithField("subscriber_id", subscriberID).Info("WebSocket connection established")
	return trigger.Connected, nil
}

// Credential returns the Authorization value of a trigger. The header wins
// over the query parameter; header names match case-insensitively.
func Credential(trg *trigger.Trigger) string {
	if token := lookup(trg.Headers, trigger.AuthorizationKey, true); token != "" {
		return token
	}
	return lookup(trg.QueryStringParameters, trigger.AuthorizationKey, false)
}

func lookup(values map[string]string, key string, foldCase bool) string {
	if v := values[key]; v != "" {
		return v
	}
	if !foldCase {
		return ""
	}
	for k, v := range values {
		if v != "" && strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

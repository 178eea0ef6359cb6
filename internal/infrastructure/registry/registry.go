// Package registry stores the mapping from live connection identifiers to the
// subscriber identity that opened them.
//
// Writes are single-key upserts and deletes. ListAll is a full scan with no
// snapshot guarantee: entries saved or removed while a scan is running may or
// may not be reflected in its result.
package registry

import (
	"context"
	"errors"
	"fmt"

	"go-face-notify/internal/infrastructure/config"
	"go-face-notify/internal/infrastructure/logger"
)

// ErrNotFound is returned by Get when the connection is not registered.
var ErrNotFound = errors.New("registry: connection not found")

// Registry is the durable connection registry.
type Registry interface {
	// Save upserts connectionID -> subscriberID. Saving an existing
	// connectionID overwrites its subscriber.
	Save(ctx context.Context, connectionID, subscriberID string) error

	// Remove deletes connectionID. Removing an absent entry is not an error.
	Remove(ctx context.Context, connectionID string) error

	// ListAll returns every registered connectionID in no particular order.
	ListAll(ctx context.Context) ([]string, error)

	// Get returns the subscriber for connectionID or ErrNotFound.
	Get(ctx context.Context, connectionID string) (string, error)

	// Close releases the underlying store.
	Close() error
}

// New opens the backend selected in cfg.
func New(ctx context.Context, cfg config.RegistryConfig, log logger.Logger) (Registry, error) {
	switch cfg.Backend {
	case config.BackendBadger:
		return NewBadger(BadgerOptions{
			Dir:      cfg.Badger.Dir,
			InMemory: cfg.Badger.InMemory,
			Logger:   log,
		})
	case config.BackendRedis:
		return NewRedis(ctx, cfg.Redis.URL, cfg.Redis.HashKey)
	case config.BackendMemory:
		return NewMemory(), nil
	}
	return nil, fmt.Errorf("registry: unknown backend %q", cfg.Backend)
}

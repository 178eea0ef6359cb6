package registry

import (
	"context"
	"sync"
)

// Memory is an in-process Registry. It is not durable and only suits tests
// and single-node development.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]string
}

var _ Registry = (*Memory)(nil)

// NewMemory returns an empty in-memory Registry.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]string)}
}

func (m *Memory) Save(_ context.Context, connectionID, subscriberID string) error {
	m.mu.Lock()
	m.entries[connectionID] = subscriberID
	m.mu.Unlock()
	return nil
}

func (m *Memory) Remove(_ context.Context, connectionID string) error {
	m.mu.Lock()
	delete(m.entries, connectionID)
	m.mu.Unlock()
	return nil
}

func (m *Memory) ListAll(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.entries))
	for id := range m.entries {
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *Memory) Get(_ context.Context, connectionID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	subscriberID, ok := m.entries[connectionID]
	if !ok {
		return "", ErrNotFound
	}
	return subscriberID, nil
}

func (m *Memory) Close() error { return nil }

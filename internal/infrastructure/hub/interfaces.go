package hub

import (
	"context"
	"errors"
)

// ErrConnectionGone is returned when a payload is posted to a connection
// that is not (or no longer) held by this hub.
var ErrConnectionGone = errors.New("hub: connection gone")

// Connection represents any type of live client session (SSE, WebSocket, etc.)
type Connection interface {
	ID() string
	Type() string
	// Send queues or writes one payload to the client.
	Send(ctx context.Context, payload []byte) error
	Close() error
	IsClosed() bool
	Context() context.Context
}

// Connection types.
const (
	TypeWebSocket = "websocket"
	TypeSSE       = "sse"
)

package hub

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-face-notify/internal/infrastructure/logger"
)

func TestHub_StartStop(t *testing.T) {
	hub := New(logger.NewNop())
	ctx := context.Background()

	require.NoError(t, hub.Start(ctx))
	assert.True(t, hub.IsRunning())
	assert.Error(t, hub.Start(ctx), "second start must fail")

	require.NoError(t, hub.Stop(ctx))
	assert.False(t, hub.IsRunning())
	assert.NoError(t, hub.Stop(ctx))

	assert.Error(t, hub.RegisterConnection(newMockConnection("late")))
}

func TestHub_ConnectionManagement(t *testing.T) {
	hub := New(logger.NewNop())
	ctx := context.Background()
	require.NoError(t, hub.Start(ctx))
	defer hub.Stop(ctx)

	assert.Equal(t, 0, hub.ConnectionCount())

	conn := newMockConnection("test-conn-1")
	require.NoError(t, hub.RegisterConnection(conn))
	require.Eventually(t, func() bool { return hub.ConnectionCount() == 1 }, time.Second, 10*time.Millisecond)

	retrieved, exists := hub.GetConnection("test-conn-1")
	require.True(t, exists)
	assert.Equal(t, "test-conn-1", retrieved.ID())
	assert.Len(t, hub.GetConnectionsByType("mock"), 1)
	assert.Empty(t, hub.GetConnectionsByType(TypeWebSocket))

	require.NoError(t, hub.UnregisterConnection("test-conn-1"))
	require.Eventually(t, func() bool { return hub.ConnectionCount() == 0 }, time.Second, 10*time.Millisecond)
	assert.True(t, conn.IsClosed())
}

func TestHub_UnregistersWhenConnectionContextEnds(t *testing.T) {
	hub := New(logger.NewNop())
	ctx := context.Background()
	require.NoError(t, hub.Start(ctx))
	defer hub.Stop(ctx)

	conn := newMockConnection("c1")
	require.NoError(t, hub.RegisterConnection(conn))
	require.Eventually(t, func() bool { return hub.ConnectionCount() == 1 }, time.Second, 10*time.Millisecond)

	conn.cancel()
	require.Eventually(t, func() bool { return hub.ConnectionCount() == 0 }, time.Second, 10*time.Millisecond)
}

func TestHub_PostToConnection(t *testing.T) {
	hub := New(logger.NewNop())
	ctx := context.Background()
	require.NoError(t, hub.Start(ctx))
	defer hub.Stop(ctx)

	ok := newMockConnection("conn-1")
	broken := newMockConnection("conn-2")
	broken.sendErr = errors.New("broken pipe")
	require.NoError(t, hub.RegisterConnection(ok))
	require.NoError(t, hub.RegisterConnection(broken))
	require.Eventually(t, func() bool { return hub.ConnectionCount() == 2 }, time.Second, 10*time.Millisecond)

	payload := []byte(`{"message":"Recognized faces: alice"}`)
	require.NoError(t, hub.PostToConnection(ctx, "conn-1", payload))
	assert.Equal(t, [][]byte{payload}, ok.received())

	assert.Error(t, hub.PostToConnection(ctx, "conn-2", payload))

	err := hub.PostToConnection(ctx, "unknown", payload)
	assert.ErrorIs(t, err, ErrConnectionGone)

	ok.Close()
	err = hub.PostToConnection(ctx, "conn-1", payload)
	assert.ErrorIs(t, err, ErrConnectionGone)
}

func TestHub_StopClosesConnections(t *testing.T) {
	hub := New(logger.NewNop())
	ctx := context.Background()
	require.NoError(t, hub.Start(ctx))

	conn := newMockConnection("c1")
	require.NoError(t, hub.RegisterConnection(conn))
	require.Eventually(t, func() bool { return hub.ConnectionCount() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Stop(ctx))
	assert.True(t, conn.IsClosed())
	assert.Equal(t, 0, hub.ConnectionCount())
}

func TestHub_DrainWaitsForSessionHandlers(t *testing.T) {
	hub := New(logger.NewNop())
	ctx := context.Background()

	assert.False(t, hub.Acquire(), "acquire before start must fail")
	require.NoError(t, hub.Start(ctx))
	require.True(t, hub.Acquire())
	require.True(t, hub.Acquire())
	require.NoError(t, hub.Stop(ctx))
	assert.False(t, hub.Acquire(), "acquire after stop must fail")

	short, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, hub.Drain(short), context.DeadlineExceeded)

	released := make(chan struct{})
	go func() {
		time.Sleep(20 * time.Millisecond)
		hub.Release()
		hub.Release()
		close(released)
	}()
	require.NoError(t, hub.Drain(ctx))
	<-released
}

func TestWebSocketConnection_SendAndClose(t *testing.T) {
	upgrader := websocket.Upgrader{}
	serverConns := make(chan *WebSocketConnection, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		serverConns <- NewWebSocketConnection("ws-1", ws, logger.NewNop())
	}))
	defer srv.Close()

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer client.Close()

	conn := <-serverConns
	assert.Equal(t, TypeWebSocket, conn.Type())

	payload := []byte(`{"message":"Recognized faces: bob"}`)
	require.NoError(t, conn.Send(context.Background(), payload))

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	msgType, data, err := client.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, msgType)
	assert.Equal(t, payload, data)

	// Client going away closes the server side.
	require.NoError(t, client.Close())
	select {
	case <-conn.Context().Done():
	case <-time.After(2 * time.Second):
		t.Fatal("server side did not notice the client closing")
	}
	assert.True(t, conn.IsClosed())
	assert.Error(t, conn.Send(context.Background(), payload))
}

func TestSSEConnection_Send(t *testing.T) {
	rec := httptest.NewRecorder()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn := NewSSEConnection(ctx, "sse-1", rec, logger.NewNop())
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, TypeSSE, conn.Type())

	require.NoError(t, conn.Send(context.Background(), []byte(`{"message":"Recognized faces: carol"}`)))
	body := rec.Body.String()
	assert.Contains(t, body, "event:notification\n")
	assert.Contains(t, body, `data:{"message":"Recognized faces: carol"}`)

	require.NoError(t, conn.Close())
	assert.True(t, conn.IsClosed())
	assert.Error(t, conn.Send(context.Background(), []byte("{}")))
}

// Mock implementations for testing

type mockConnection struct {
	id      string
	ctx     context.Context
	cancel  context.CancelFunc
	sendErr error

	mu               sync.Mutex
	closed           bool
	receivedMessages [][]byte
}

func newMockConnection(id string) *mockConnection {
	ctx, cancel := context.WithCancel(context.Background())
	return &mockConnection{id: id, ctx: ctx, cancel: cancel}
}

func (m *mockConnection) ID() string   { return m.id }
func (m *mockConnection) Type() string { return "mock" }
func (m *mockConnection) Send(_ context.Context, payload []byte) error {
	if m.sendErr != nil {
		return m.sendErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.receivedMessages = append(m.receivedMessages, payload)
	return nil
}
func (m *mockConnection) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
func (m *mockConnection) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
func (m *mockConnection) Context() context.Context { return m.ctx }

func (m *mockConnection) received() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]byte(nil), m.receivedMessages...)
}

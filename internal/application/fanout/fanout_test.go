package fanout

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-face-notify/internal/domain/trigger"
	"go-face-notify/internal/infrastructure/logger"
	"go-face-notify/internal/infrastructure/registry"
)

type recordingSender struct {
	mu      sync.Mutex
	fail    map[string]bool
	sent    map[string][]byte
	attempt int
}

func newRecordingSender(failing ...string) *recordingSender {
	s := &recordingSender{fail: map[string]bool{}, sent: map[string][]byte{}}
	for _, id := range failing {
		s.fail[id] = true
	}
	return s
}

func (s *recordingSender) PostToConnection(_ context.Context, connectionID string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempt++
	if s.fail[connectionID] {
		return errors.New("gone")
	}
	s.sent[connectionID] = data
	return nil
}

type blockingSender struct{}

func (blockingSender) PostToConnection(ctx context.Context, _ string, _ []byte) error {
	<-ctx.Done()
	return ctx.Err()
}

type failingLister struct{}

func (failingLister) ListAll(context.Context) ([]string, error) { return nil, errors.New("scan failed") }

func record(t *testing.T, payload any) trigger.StreamRecord {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return trigger.StreamRecord{Kinesis: &trigger.KinesisData{Data: base64.StdEncoding.EncodeToString(raw)}}
}

func faces(ids ...string) map[string]any {
	matched := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		matched = append(matched, map[string]any{"Similarity": 99.0, "Face": map[string]any{"ExternalImageId": id}})
	}
	return map[string]any{"FaceSearchResponse": []any{map[string]any{"MatchedFaces": matched}}}
}

func registryWith(t *testing.T, ids ...string) *registry.Memory {
	t.Helper()
	reg := registry.NewMemory()
	for _, id := range ids {
		require.NoError(t, reg.Save(context.Background(), id, "user-"+id))
	}
	return reg
}

func newEngine(lister Lister, sender Sender, opts Options) *Engine {
	return NewEngine(lister, sender, opts, logger.NewNop())
}

func TestEngine_NoFaces(t *testing.T) {
	sender := newRecordingSender()
	e := newEngine(registryWith(t, "c1", "c2"), sender, Options{MaxConcurrency: 4})

	resp, err := e.Handle(context.Background(), []trigger.StreamRecord{
		record(t, map[string]any{}),
		record(t, map[string]any{"FaceSearchResponse": []any{map[string]any{"MatchedFaces": []any{}}}}),
		record(t, faces("")),
	})
	require.NoError(t, err)
	assert.Equal(t, trigger.NoFaceDetected, resp)
	assert.Zero(t, sender.attempt)
}

func TestEngine_NoFacesSkipsRegistry(t *testing.T) {
	e := newEngine(failingLister{}, newRecordingSender(), Options{})
	resp, err := e.Handle(context.Background(), []trigger.StreamRecord{record(t, faces())})
	require.NoError(t, err)
	assert.Equal(t, trigger.NoFaceDetected, resp)
}

func TestEngine_FanoutContent(t *testing.T) {
	sender := newRecordingSender()
	e := newEngine(registryWith(t, "c1", "c2"), sender, Options{MaxConcurrency: 2})

	resp, err := e.Handle(context.Background(), []trigger.StreamRecord{
		record(t, faces("alice", "bob")),
		record(t, faces("alice")),
	})
	require.NoError(t, err)
	assert.Equal(t, trigger.MessageSent, resp)
	assert.Equal(t, 2, sender.attempt)

	for _, id := range []string{"c1", "c2"} {
		assert.JSONEq(t, `{"message":"Recognized faces: alice, bob, alice"}`, string(sender.sent[id]), id)
	}
}

func TestEngine_FaultIsolation(t *testing.T) {
	sender := newRecordingSender("c1")
	e := newEngine(registryWith(t, "c1", "c2", "c3"), sender, Options{MaxConcurrency: 1})

	resp, err := e.Handle(context.Background(), []trigger.StreamRecord{record(t, faces("carol"))})
	require.NoError(t, err)
	assert.Equal(t, trigger.MessageSent, resp)
	assert.Equal(t, 3, sender.attempt)

	delivered := make([]string, 0, len(sender.sent))
	for id := range sender.sent {
		delivered = append(delivered, id)
	}
	sort.Strings(delivered)
	assert.Equal(t, []string{"c2", "c3"}, delivered)
}

func TestEngine_NoConnections(t *testing.T) {
	sender := newRecordingSender()
	e := newEngine(registry.NewMemory(), sender, Options{})

	resp, err := e.Handle(context.Background(), []trigger.StreamRecord{record(t, faces("dave"))})
	require.NoError(t, err)
	assert.Equal(t, trigger.MessageSent, resp)
	assert.Zero(t, sender.attempt)
}

func TestEngine_SendTimeout(t *testing.T) {
	e := newEngine(registryWith(t, "c1", "c2"), blockingSender{}, Options{
		MaxConcurrency: 2,
		SendTimeout:    20 * time.Millisecond,
	})

	start := time.Now()
	resp, err := e.Handle(context.Background(), []trigger.StreamRecord{record(t, faces("erin"))})
	require.NoError(t, err)
	assert.Equal(t, trigger.MessageSent, resp)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestEngine_ListFailure(t *testing.T) {
	e := newEngine(failingLister{}, newRecordingSender(), Options{})
	_, err := e.Handle(context.Background(), []trigger.StreamRecord{record(t, faces("frank"))})
	assert.Error(t, err)
}

func TestEngine_DecodeFailure(t *testing.T) {
	bad := trigger.StreamRecord{Kinesis: &trigger.KinesisData{Data: "%%%not-base64"}}

	t.Run("skipped by default", func(t *testing.T) {
		sender := newRecordingSender()
		e := newEngine(registryWith(t, "c1"), sender, Options{})

		resp, err := e.Handle(context.Background(), []trigger.StreamRecord{bad, record(t, faces("gina"))})
		require.NoError(t, err)
		assert.Equal(t, trigger.MessageSent, resp)
		assert.JSONEq(t, `{"message":"Recognized faces: gina"}`, string(sender.sent["c1"]))
	})

	t.Run("strict aborts the batch", func(t *testing.T) {
		sender := newRecordingSender()
		e := newEngine(registryWith(t, "c1"), sender, Options{StrictDecode: true})

		_, err := e.Handle(context.Background(), []trigger.StreamRecord{record(t, faces("gina")), bad})
		assert.ErrorIs(t, err, ErrDecode)
		assert.Zero(t, sender.attempt)
	})
}

func TestDecodeRecord(t *testing.T) {
	encode := func(raw []byte) trigger.StreamRecord {
		return trigger.StreamRecord{Kinesis: &trigger.KinesisData{Data: base64.StdEncoding.EncodeToString(raw)}}
	}

	payload, err := DecodeRecord(encode([]byte(`{"FaceSearchResponse":[{"MatchedFaces":[{"Face":{"ExternalImageId":"héloïse"}}]}]}`)))
	require.NoError(t, err)
	assert.Equal(t, []string{"héloïse"}, payload.ExternalImageIDs())

	for name, rec := range map[string]trigger.StreamRecord{
		"no kinesis":   {},
		"bad base64":   {Kinesis: &trigger.KinesisData{Data: "***"}},
		"invalid utf8": encode([]byte{0xff, 0xfe, '{', '}'}),
		"not json":     encode([]byte("face=alice")),
		"wrong shape":  encode([]byte(`{"FaceSearchResponse":"alice"}`)),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeRecord(rec)
			assert.ErrorIs(t, err, ErrDecode)
		})
	}
}

func TestNewNotification(t *testing.T) {
	assert.Equal(t, "Recognized faces: a", NewNotification([]string{"a"}).Message)
	assert.Equal(t, "Recognized faces: a, b, a", NewNotification([]string{"a", "b", "a"}).Message)
}

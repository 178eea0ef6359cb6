package router

import (
	"context"
	"encoding/base64"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-face-notify/internal/application/credential"
	"go-face-notify/internal/application/fanout"
	"go-face-notify/internal/application/lifecycle"
	"go-face-notify/internal/domain/trigger"
	"go-face-notify/internal/infrastructure/logger"
	"go-face-notify/internal/infrastructure/registry"
)

type spyLifecycle struct{ calls int }

func (s *spyLifecycle) Handle(context.Context, *trigger.Trigger) (trigger.Response, error) {
	s.calls++
	return trigger.Connected, nil
}

type spyStream struct{ records int }

func (s *spyStream) Handle(_ context.Context, records []trigger.StreamRecord) (trigger.Response, error) {
	s.records += len(records)
	return trigger.MessageSent, nil
}

type captureSender struct {
	mu   sync.Mutex
	sent map[string]string
}

func (c *captureSender) PostToConnection(_ context.Context, id string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent[id] = string(data)
	return nil
}

func TestRouter_Classification(t *testing.T) {
	cases := []struct {
		name      string
		raw       string
		want      trigger.Response
		lifecycle int
		stream    int
	}{
		{"connect", `{"requestContext":{"connectionId":"c1","routeKey":"$connect"}}`, trigger.Connected, 1, 0},
		{"stream", `{"Records":[{"kinesis":{"data":"e30="}},{"kinesis":{"data":"e30="}}]}`, trigger.MessageSent, 0, 2},
		{"websocket shape wins", `{"requestContext":{"routeKey":"$disconnect"},"Records":[{"kinesis":{"data":""}}]}`, trigger.Connected, 1, 0},
		{"null route key", `{"requestContext":{"connectionId":"c1","routeKey":null}}`, trigger.Connected, 1, 0},
		{"context without route key", `{"requestContext":{"connectionId":"c1"}}`, trigger.UnknownEvent, 0, 0},
		{"empty records", `{"Records":[]}`, trigger.UnknownEvent, 0, 0},
		{"first record not stream", `{"Records":[{"sns":{}}]}`, trigger.UnknownEvent, 0, 0},
		{"empty object", `{}`, trigger.UnknownEvent, 0, 0},
		{"not json", `hello`, trigger.UnknownEvent, 0, 0},
		{"json array", `[1,2]`, trigger.UnknownEvent, 0, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			lc, st := &spyLifecycle{}, &spyStream{}
			r := New(lc, st, logger.NewNop())

			resp, err := r.Dispatch(context.Background(), []byte(tc.raw))
			require.NoError(t, err)
			assert.Equal(t, tc.want, resp)
			assert.Equal(t, tc.lifecycle, lc.calls)
			assert.Equal(t, tc.stream, st.records)
		})
	}
}

func TestRouter_EndToEnd(t *testing.T) {
	ctx := context.Background()
	log := logger.NewNop()
	reg := registry.NewMemory()
	sender := &captureSender{sent: map[string]string{}}

	r := New(
		lifecycle.NewManager(reg, credential.NewExtractor(), log),
		fanout.NewEngine(reg, sender, fanout.Options{MaxConcurrency: 4}, log),
		log,
	)

	const token = "eyJhbGciOiJub25lIn0.eyJzdWIiOiJ1c2VyLTEifQ."

	resp, err := r.Dispatch(ctx, []byte(`{"requestContext":{"connectionId":"c1","routeKey":"$connect"}}`))
	require.NoError(t, err)
	assert.Equal(t, 401, resp.StatusCode)

	resp, err = r.Dispatch(ctx, []byte(`{"requestContext":{"connectionId":"c1","routeKey":"$connect"},"queryStringParameters":{"Authorization":"`+token+`"}}`))
	require.NoError(t, err)
	assert.Equal(t, trigger.Connected, resp)

	resp, err = r.Dispatch(ctx, []byte(`{"requestContext":{"connectionId":"c2","routeKey":"$connect"},"headers":{"Authorization":"`+token+`"}}`))
	require.NoError(t, err)
	assert.Equal(t, trigger.Connected, resp)

	resp, err = r.Dispatch(ctx, []byte(`{"requestContext":{"connectionId":"c2","routeKey":"$default"}}`))
	require.NoError(t, err)
	assert.Equal(t, trigger.InvalidRequest, resp)

	resp, err = r.Dispatch(ctx, []byte(`{"requestContext":{"connectionId":"c2","routeKey":null}}`))
	require.NoError(t, err)
	assert.Equal(t, trigger.InvalidRequest, resp)

	data := base64.StdEncoding.EncodeToString([]byte(
		`{"FaceSearchResponse":[{"MatchedFaces":[{"Face":{"ExternalImageId":"alice"}},{"Face":{"ExternalImageId":"bob"}}]}]}`))
	resp, err = r.Dispatch(ctx, []byte(`{"Records":[{"kinesis":{"data":"`+data+`"}}]}`))
	require.NoError(t, err)
	assert.Equal(t, trigger.MessageSent, resp)
	assert.Len(t, sender.sent, 2)
	assert.JSONEq(t, `{"message":"Recognized faces: alice, bob"}`, sender.sent["c1"])

	resp, err = r.Dispatch(ctx, []byte(`{"requestContext":{"connectionId":"c1","routeKey":"$disconnect"}}`))
	require.NoError(t, err)
	assert.Equal(t, trigger.Disconnected, resp)

	ids, err := reg.ListAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"c2"}, ids)
}

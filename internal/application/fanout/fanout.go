// Package fanout turns a batch of face-search stream records into one
// notification and pushes it to every registered connection.
package fanout

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"go-face-notify/internal/domain/trigger"
	"go-face-notify/internal/infrastructure/logger"
)

// ErrDecode marks a stream record that could not be decoded.
var ErrDecode = errors.New("fanout: malformed stream record")

// MessagePrefix starts every notification text.
const MessagePrefix = "Recognized faces: "

// Lister enumerates the registered connections.
type Lister interface {
	ListAll(ctx context.Context) ([]string, error)
}

// Sender delivers one payload to one connection. Failures usually mean the
// connection has already gone away.
type Sender interface {
	PostToConnection(ctx context.Context, connectionID string, data []byte) error
}

// Notification is the message pushed to clients.
type Notification struct {
	Message string `json:"message"`
}

// NewNotification joins ids into the notification text, keeping their order.
func NewNotification(ids []string) Notification {
	return Notification{Message: MessagePrefix + strings.Join(ids, ", ")}
}

// Options tunes the engine.
type Options struct {
	// MaxConcurrency bounds in-flight deliveries. Values below 1 mean 1.
	MaxConcurrency int
	// SendTimeout bounds each delivery. Zero means no per-send timeout.
	SendTimeout time.Duration
	// StrictDecode fails the whole batch on the first malformed record
	// instead of skipping it.
	StrictDecode bool
}

// Engine is the event fan-out engine. It only reads the registry.
type Engine struct {
	lister Lister
	sender Sender
	opts   Options
	logger logger.Logger
}

func NewEngine(lister Lister, sender Sender, opts Options, log logger.Logger) *Engine {
	if opts.MaxConcurrency < 1 {
		opts.MaxConcurrency = 1
	}
	return &Engine{
		lister: lister,
		sender: sender,
		opts:   opts,
		logger: log.WithField("component", "fanout"),
	}
}

// Handle processes one stream batch.
func (e *Engine) Handle(ctx context.Context, records []trigger.StreamRecord) (trigger.Response, error) {
	e.logger.Infof("Processing stream batch of %d records", len(records))

	ids, err := e.collect(records)
	if err != nil {
		return trigger.Response{}, err
	}
	if len(ids) == 0 {
		e.logger.Info("No face detected, skipping delivery")
		return trigger.NoFaceDetected, nil
	}

	payload, err := json.Marshal(NewNotification(ids))
	if err != nil {
		return trigger.Response{}, fmt.Errorf("marshal notification: %w", err)
	}

	connections, err := e.lister.ListAll(ctx)
	if err != nil {
		return trigger.Response{}, fmt.Errorf("list connections: %w", err)
	}

	e.logger.Infof("Sending notification to %d connections", len(connections))
	delivered := e.deliver(ctx, connections, payload)
	e.logger.Infof("Notification delivered to %d/%d connections", delivered, len(connections))

	return trigger.MessageSent, nil
}

// collect decodes every record and gathers the matched identities in
// encounter order.
func (e *Engine) collect(records []trigger.StreamRecord) ([]string, error) {
	var ids []string
	for i, record := range records {
		payload, err := DecodeRecord(record)
		if err != nil {
			if e.opts.StrictDecode {
				return nil, fmt.Errorf("record %d: %w", i, err)
			}
			e.logger.Errorf("Skipping record %d: %v", i, err)
			continue
		}
		for _, id := range payload.ExternalImageIDs() {
			e.logger.Infof("Face recognized: %s", id)
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// deliver posts payload to every connection. A failed delivery is logged and
// never affects the others.
func (e *Engine) deliver(ctx context.Context, connections []string, payload []byte) int64 {
	var delivered atomic.Int64

	var eg errgroup.Group
	eg.SetLimit(e.opts.MaxConcurrency)
	for _, connectionID := range connections {
		eg.Go(func() error {
			sendCtx, cancel := e.sendContext(ctx)
			defer cancel()

			if err := e.sender.PostToConnection(sendCtx, connectionID, payload); err != nil {
				e.logger.WithField("connection_id", connectionID).Errorf("Failed to deliver notification: %v", err)
				return nil
			}
			delivered.Add(1)
			return nil
		})
	}
	_ = eg.Wait()

	return delivered.Load()
}

func (e *Engine) sendContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.opts.SendTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.opts.SendTimeout)
}

// DecodeRecord decodes base64 record data into a StreamPayload. The decoded
// bytes must be valid UTF-8 JSON.
func DecodeRecord(record trigger.StreamRecord) (*trigger.StreamPayload, error) {
	if record.Kinesis == nil {
		return nil, fmt.Errorf("%w: no stream data", ErrDecode)
	}
	raw, err := base64.StdEncoding.DecodeString(record.Kinesis.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: base64: %v", ErrDecode, err)
	}
	if !utf8.Valid(raw) {
		return nil, fmt.Errorf("%w: payload is not valid UTF-8", ErrDecode)
	}
	var payload trigger.StreamPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w: json: %v", ErrDecode, err)
	}
	return &payload, nil
}

// Package stream is the recognition event source. Face-search stream batches
// arrive as NATS messages, one trigger document per message, and are handed
// to the entry router.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"go-face-notify/internal/domain/trigger"
	"go-face-notify/internal/infrastructure/config"
	"go-face-notify/internal/infrastructure/logger"
)

// Dispatcher routes one raw trigger.
type Dispatcher interface {
	Dispatch(ctx context.Context, raw []byte) (trigger.Response, error)
}

// Connect opens the NATS connection described by cfg.
func Connect(cfg config.NATSConfig, log logger.Logger) (*nats.Conn, error) {
	log = log.WithFields(logger.Fields{"component": "nats", "instance": cfg.ServerURI})

	nc, err := nats.Connect(
		cfg.ServerURI,
		nats.Name("face-notify"),
		nats.Timeout(time.Duration(cfg.ConnectTimeout)*time.Second),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(cfg.Reconnect.MaxAttempts),
		nats.ReconnectWait(time.Duration(cfg.Reconnect.WaitInterval)*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warnf("NATS disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Infof("NATS reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			log.Info("NATS connection closed")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect %s: %w", cfg.ServerURI, err)
	}
	return nc, nil
}

// Consumer subscribes to the recognition subject and dispatches each message.
type Consumer struct {
	nc         *nats.Conn
	subject    string
	dispatcher Dispatcher
	logger     logger.Logger

	mu  sync.Mutex
	sub *nats.Subscription
}

func NewConsumer(nc *nats.Conn, subject string, dispatcher Dispatcher, log logger.Logger) *Consumer {
	return &Consumer{
		nc:         nc,
		subject:    subject,
		dispatcher: dispatcher,
		logger:     log.WithFields(logger.Fields{"component": "stream", "subject": subject}),
	}
}

// Start subscribes. Messages are processed one at a time in arrival order
// until ctx is done or Stop is called.
func (c *Consumer) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sub != nil {
		return fmt.Errorf("consumer already started")
	}

	sub, err := c.nc.Subscribe(c.subject, func(msg *nats.Msg) {
		c.handleMessage(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", c.subject, err)
	}
	c.sub = sub
	c.logger.Info("Stream consumer started")
	return nil
}

// Stop drains the subscription, letting in-flight messages finish.
func (c *Consumer) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sub == nil {
		return nil
	}
	err := c.sub.Drain()
	c.sub = nil
	c.logger.Info("Stream consumer stopped")
	return err
}

func (c *Consumer) handleMessage(ctx context.Context, msg *nats.Msg) {
	resp, err := c.dispatcher.Dispatch(ctx, msg.Data)
	if err != nil {
		c.logger.Errorf("Failed to process stream message: %v", err)
		resp = trigger.Response{StatusCode: http.StatusInternalServerError, Body: err.Error()}
	} else {
		c.logger.Infof("Stream message processed: %d %s", resp.StatusCode, resp.Body)
	}

	if msg.Reply == "" {
		return
	}
	data, err := json.Marshal(resp)
	if err != nil {
		c.logger.Errorf("Failed to encode reply: %v", err)
		return
	}
	if err := msg.Respond(data); err != nil {
		c.logger.Errorf("Failed to reply: %v", err)
	}
}

// Publish sends one stream batch document to subject and flushes.
func Publish(nc *nats.Conn, subject string, batch []byte) error {
	if err := nc.Publish(subject, batch); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nc.Flush()
}

package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"go-face-notify/internal/infrastructure/config"
)

type HTTPServer struct {
	handler http.Handler
	cfg     config.ServerConfig

	mu       sync.Mutex
	srv      *http.Server
	listener net.Listener
	stopped  bool
}

var _ Server = (*HTTPServer)(nil)

func NewHTTPServer(handler http.Handler, cfg config.ServerConfig) *HTTPServer {
	return &HTTPServer{
		handler: handler,
		cfg:     cfg,
	}
}

// Listen binds the configured address. Start calls it when the caller has
// not done so already.
func (h *HTTPServer) Listen() (net.Addr, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stopped {
		return nil, http.ErrServerClosed
	}
	if h.listener != nil {
		return h.listener.Addr(), nil
	}
	ln, err := net.Listen("tcp", h.cfg.Addr())
	if err != nil {
		return nil, err
	}
	h.listener = ln
	h.srv = &http.Server{
		Handler:      h.handler,
		ReadTimeout:  time.Duration(h.cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(h.cfg.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(h.cfg.IdleTimeout) * time.Second,
	}
	return ln.Addr(), nil
}

func (h *HTTPServer) Start(ctx context.Context) error {
	if _, err := h.Listen(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}

	h.mu.Lock()
	srv, ln := h.srv, h.listener
	h.mu.Unlock()

	var eg errgroup.Group
	eg.Go(func() error {
		err := srv.Serve(ln)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	})

	return eg.Wait()
}

func (h *HTTPServer) Stop(ctx context.Context) error {
	h.mu.Lock()
	srv := h.srv
	h.stopped = true
	h.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

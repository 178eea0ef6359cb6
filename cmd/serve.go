package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"go-face-notify/internal/application/credential"
	"go-face-notify/internal/application/fanout"
	"go-face-notify/internal/application/lifecycle"
	"go-face-notify/internal/application/router"
	"go-face-notify/internal/infrastructure/config"
	"go-face-notify/internal/infrastructure/hub"
	"go-face-notify/internal/infrastructure/logger"
	"go-face-notify/internal/infrastructure/registry"
	"go-face-notify/internal/infrastructure/server"
	"go-face-notify/internal/infrastructure/stream"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the relay: HTTP/WebSocket/SSE endpoints and the stream consumer",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return err
		}
		lCfg, err := cfg.Logging.LoggerConfig()
		if err != nil {
			return err
		}
		log := logger.NewLogrusLogger(lCfg)
		gin.SetMode(ginMode(cfg.Logging.Level))

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		app, err := newApplication(ctx, cfg, log)
		if err != nil {
			return err
		}
		return app.Run(WithSignal(ctx))
	},
}

type Application struct {
	logger   logger.Logger
	httpSrv  server.Server
	hub      *hub.Hub
	registry registry.Registry
	nc       *nats.Conn
	consumer *stream.Consumer
}

// newApplication wires the relay. The hub is started here so the routes can
// accept sessions as soon as the listener is up.
func newApplication(ctx context.Context, cfg *config.SystemConfig, log logger.Logger) (*Application, error) {
	reg, err := registry.New(ctx, cfg.Registry, log)
	if err != nil {
		return nil, fmt.Errorf("open %s registry: %w", cfg.Registry.Backend, err)
	}

	hubInstance := hub.New(log)
	if err := hubInstance.Start(ctx); err != nil {
		_ = reg.Close()
		return nil, fmt.Errorf("start hub: %w", err)
	}

	entry := router.New(
		lifecycle.NewManager(reg, credential.NewExtractor(), log),
		fanout.NewEngine(reg, hubInstance, fanout.Options{
			MaxConcurrency: cfg.Fanout.MaxConcurrency,
			SendTimeout:    cfg.Fanout.SendTimeoutDuration(),
			StrictDecode:   cfg.Fanout.StrictDecode,
		}, log),
		log,
	)

	app := &Application{
		logger:   log.WithField("app", "face-notify"),
		httpSrv:  server.NewHTTPServer(InitRouter(hubInstance, reg, entry, log), cfg.Server),
		hub:      hubInstance,
		registry: reg,
	}

	if cfg.Stream.Enabled {
		nc, err := stream.Connect(cfg.Stream.NATS, log)
		if err != nil {
			_ = hubInstance.Stop(ctx)
			_ = reg.Close()
			return nil, err
		}
		app.nc = nc
		app.consumer = stream.NewConsumer(nc, cfg.Stream.NATS.Subject, entry, log)
	}

	app.logger.Infof("Relay configured: listen=%s registry=%s stream=%v",
		cfg.Server.Addr(), cfg.Registry.Backend, cfg.Stream.Enabled)
	return app, nil
}

func (app *Application) Run(ctx context.Context) error {
	eg, gctx := errgroup.WithContext(ctx)

	if app.consumer != nil {
		if err := app.consumer.Start(ctx); err != nil {
			_ = app.stop()
			return err
		}
	}

	eg.Go(func() error {
		return app.httpSrv.Start(gctx)
	})

	eg.Go(func() error {
		// Returns on a signal or when the server fails to start
		<-gctx.Done()
		return app.stop()
	})

	return eg.Wait()
}

// stop shuts the relay down. Session handlers are drained before the
// registry closes so their $disconnect removals still reach the store.
func (app *Application) stop() error {
	gracefulshutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		5*time.Second,
	)
	defer cancel()

	// Stop the sources first so nothing is routed into a closing registry
	if app.consumer != nil {
		if err := app.consumer.Stop(); err != nil {
			app.logger.Errorf("failed to stop stream consumer: %v", err)
		}
	}
	if err := app.hub.Stop(gracefulshutdownCtx); err != nil {
		app.logger.Errorf("failed to stop hub: %v", err)
	}

	err := app.httpSrv.Stop(gracefulshutdownCtx)
	if drainErr := app.hub.Drain(gracefulshutdownCtx); drainErr != nil {
		app.logger.Errorf("session handlers still running at shutdown: %v", drainErr)
	}
	app.shutdown()
	return err
}

func (app *Application) shutdown() {
	if app.nc != nil {
		app.nc.Close()
	}
	if err := app.registry.Close(); err != nil {
		app.logger.Errorf("failed to close registry: %v", err)
	}
}

// ginMode keeps gin's route dump and debug warnings for debug logging only.
func ginMode(level string) string {
	if level == "debug" {
		return gin.DebugMode
	}
	return gin.ReleaseMode
}

func WithSignal(pctx context.Context) context.Context {
	ctx, cancel := context.WithCancel(pctx)

	go func() {
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

		<-sigc

		cancel()
	}()

	return ctx
}

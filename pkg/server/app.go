package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"TickerPulse/internal/handler/ws"
	"TickerPulse/internal/usecase"
	"TickerPulse/pkg/config"
	xhttp "TickerPulse/pkg/http"
	pkgkafka "TickerPulse/pkg/kafka"
	applogger "TickerPulse/pkg/logger"
)

type closer struct {
	name string
	fn   func(context.Context) error
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	engine     *usecase.Orchestrator
	httpServer *xhttp.Server
	hub        *ws.Hub
	consumer   *pkgkafka.Consumer
	closers    []closer

	hubCancel context.CancelFunc
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	engine *usecase.Orchestrator,
	httpServer *xhttp.Server,
	hub *ws.Hub,
) *App {
	if log == nil {
		log = applogger.NewNop()
	}
	return &App{
		cfg:        cfg,
		log:        log,
		engine:     engine,
		httpServer: httpServer,
		hub:        hub,
	}
}

// SetConsumer attaches the control-command consumer.
func (a *App) SetConsumer(c *pkgkafka.Consumer) { a.consumer = c }

// OnShutdown registers a release step; steps run in registration order after the engine stops.
func (a *App) OnShutdown(name string, fn func(context.Context) error) {
	a.closers = append(a.closers, closer{name: name, fn: fn})
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	a.log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Engine.StopTimeout+a.cfg.HTTP.ShutdownTimeout)
	defer cancel()
	return a.Shutdown(shutdownCtx)
}

// Start launches the hub, the HTTP server, the consumer and the engine.
func (a *App) Start(ctx context.Context) error {
	hubCtx, cancel := context.WithCancel(context.Background())
	a.hubCancel = cancel
	go a.hub.Run(hubCtx)

	if err := a.httpServer.Start(); err != nil {
		return fmt.Errorf("http server: %w", err)
	}

	if a.consumer != nil {
		if err := a.consumer.Start(context.WithoutCancel(ctx)); err != nil {
			return fmt.Errorf("kafka consumer: %w", err)
		}
	}

	if err := a.engine.Start(ctx); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	a.log.Info("application started",
		applogger.Int("port", a.cfg.HTTP.Port),
		applogger.String("storage", a.cfg.Storage.Backend),
		applogger.Bool("kafka", a.consumer != nil))
	return nil
}

// Shutdown stops intake first, then the engine, then releases resources.
func (a *App) Shutdown(ctx context.Context) error {
	a.log.Info("shutting down...")

	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	httpCtx, cancel := context.WithTimeout(ctx, a.httpServer.ShutdownTimeout())
	if err := a.httpServer.Stop(httpCtx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}
	cancel()

	if err := a.engine.Stop(ctx); err != nil {
		a.log.Warn("engine stop error", applogger.Error(err))
	}

	if a.hubCancel != nil {
		a.hubCancel()
	}

	var firstErr error
	for _, c := range a.closers {
		if err := c.fn(ctx); err != nil {
			a.log.Warn("close error", applogger.String("resource", c.name), applogger.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	a.log.Info("shutdown complete")
	return firstErr
}

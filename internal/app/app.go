package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/lookind/internal/config"
	"github.com/dokzlo13/lookind/internal/lookin"
)

// App is the daemon container that owns all services and their lifecycle.
type App struct {
	cfg      *config.Config
	services *Services
	ctx      context.Context
	cancel   context.CancelFunc
}

// New creates a new App instance with all services initialized but not started.
func New(cfg *config.Config) (*App, error) {
	services, err := NewServices(cfg, "daemon")
	if err != nil {
		return nil, err
	}

	return &App{
		cfg:      cfg,
		services: services,
	}, nil
}

// Services exposes the wired services.
func (a *App) Services() *Services {
	return a.services
}

// Start initializes and starts all services.
// The provided context is used for cancellation.
func (a *App) Start(ctx context.Context) error {
	a.ctx, a.cancel = context.WithCancel(ctx)

	// An unreachable device is not fatal; commands retry per request.
	if _, err := a.CheckDevice(a.ctx); err != nil {
		log.Warn().Err(err).Str("address", a.services.Client.Address()).Msg("Device not reachable yet")
	}

	if err := a.services.Start(a.ctx); err != nil {
		return err
	}

	log.Info().
		Str("device", a.services.Client.Address()).
		Bool("mqtt", a.services.MQTT != nil).
		Int("ac_remotes", len(a.cfg.AC.Remotes)).
		Msg("lookind started")
	return nil
}

// CheckDevice reads the device document and logs its identity.
func (a *App) CheckDevice(ctx context.Context) (*lookin.Device, error) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Device.Timeout.Duration())
	defer cancel()

	dev, err := a.services.Client.Device(ctx)
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("id", dev.ID).
		Str("name", dev.Name).
		Str("firmware", dev.Firmware).
		Msg("Connected to LOOKin device")
	return dev, nil
}

// Stop gracefully shuts down all services.
func (a *App) Stop() error {
	log.Info().Msg("Shutting down...")

	if a.cancel != nil {
		a.cancel()
	}

	if a.services != nil {
		return a.services.Stop()
	}

	return nil
}

// Wait blocks until the application context is cancelled.
func (a *App) Wait() {
	if a.ctx != nil {
		<-a.ctx.Done()
	}
}

// SignalContext creates a context that is cancelled when SIGINT or SIGTERM is received.
func SignalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Warn().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	return ctx
}

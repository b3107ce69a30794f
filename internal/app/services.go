package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/lookind/internal/ac"
	"github.com/dokzlo13/lookind/internal/auxstore"
	"github.com/dokzlo13/lookind/internal/config"
	"github.com/dokzlo13/lookind/internal/confirm"
	"github.com/dokzlo13/lookind/internal/db"
	"github.com/dokzlo13/lookind/internal/learn"
	"github.com/dokzlo13/lookind/internal/ledger"
	"github.com/dokzlo13/lookind/internal/lookin"
	"github.com/dokzlo13/lookind/internal/remote"
)

// Services is a container for all application services.
// It manages service initialization order and dependencies.
type Services struct {
	cfg *config.Config

	// Core infrastructure
	DB     *db.DB
	Ledger *ledger.Ledger
	Aux    *auxstore.Store
	Client *lookin.Client

	// Domain
	AC      *ac.Controller
	Remotes *remote.Manager

	// Background services
	Health        *HealthService
	Meteo         *MeteoService
	LedgerCleanup *LedgerCleanupService
	MQTT          *MQTTService
}

// NewServices creates all services with proper dependency injection.
// source tags ledger entries with the component that produced them.
func NewServices(cfg *config.Config, source string) (*Services, error) {
	if cfg.Device.Address == "" {
		return nil, errors.New("device.address is required")
	}

	s := &Services{cfg: cfg}

	// Initialize database
	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	s.DB = database

	s.Ledger = ledger.New(database.DB)
	s.Aux = auxstore.New(database.DB)

	s.Client = lookin.NewClient(
		cfg.Device.Address,
		cfg.Device.Timeout.Duration(),
		lookin.WithRateLimit(cfg.Device.RateLimitRPS, cfg.Device.RateLimitBurst),
		lookin.WithConfirm(confirm.Loop{
			Op:       "device update",
			Attempts: cfg.AC.Attempts,
			Window:   cfg.AC.Window.Duration(),
			Poll:     cfg.AC.PollInterval.Duration(),
		}),
	)

	// The bridge is created before the controller so it can observe outcomes
	if cfg.MQTT.Enabled {
		s.MQTT = NewMQTTService(cfg)
	}

	s.AC = ac.NewController(s.Client, ac.Config{
		Attempts:     cfg.AC.Attempts,
		Window:       cfg.AC.Window.Duration(),
		PollInterval: cfg.AC.PollInterval.Duration(),
	}, ac.WithObserver(s.observeAC(source)))

	s.Remotes = remote.NewManager(
		s.Client,
		remote.WithAuxStore(s.Aux),
		remote.WithEventLog(s.Ledger, source),
	)

	s.Health = NewHealthService(cfg, s.ready)
	s.Meteo = NewMeteoService(cfg, s.Client)
	s.LedgerCleanup = NewLedgerCleanupService(cfg, s.Ledger)

	return s, nil
}

// observeAC records every status change outcome and forwards it to MQTT.
func (s *Services) observeAC(source string) ac.Observer {
	return func(r ac.Result) {
		eventType := ledger.EventStatusApplied
		payload := map[string]any{
			"status":      r.Target.Hex(),
			"attempts":    r.Attempts,
			"duration_ms": r.Duration.Milliseconds(),
		}
		switch {
		case r.Err == nil:
		case errors.Is(r.Err, ac.ErrConfirmTimeout):
			eventType = ledger.EventStatusTimeout
		default:
			// cancelled or failed before confirmation
			eventType = ledger.EventStatusFailed
			payload["error"] = r.Err.Error()
		}
		if err := s.Ledger.AppendWithSource(eventType, r.UUID, source, payload); err != nil {
			log.Error().Err(err).Str("uuid", r.UUID).Msg("Failed to record AC outcome")
		}
		if s.MQTT != nil {
			s.MQTT.Bridge.Observe(r)
		}
	}
}

// LearnSession builds a learning session from the learn config section.
func (s *Services) LearnSession(overrides ...learn.Option) *learn.Session {
	return learn.NewSession(s.Client, learn.Config{
		Sensor:     s.cfg.Learn.Sensor,
		Period:     s.cfg.Learn.Period.Duration(),
		Duration:   s.cfg.Learn.Duration.Duration(),
		MaxSignals: s.cfg.Learn.MaxSignalsLimit(),
		MinMatches: s.cfg.Learn.MinMatches,
	}, overrides...)
}

// ready reports whether the daemon can do useful work.
func (s *Services) ready() error {
	if s.MQTT != nil && !s.MQTT.Bridge.IsConnected() {
		return fmt.Errorf("mqtt broker not connected")
	}
	return nil
}

// Start starts all services in the correct order.
func (s *Services) Start(ctx context.Context) error {
	if s.MQTT != nil {
		if err := s.MQTT.Start(ctx, s.AC); err != nil {
			return err
		}
	}

	s.Health.Start(ctx)
	s.Meteo.Start(ctx)
	s.LedgerCleanup.Start(ctx)

	return nil
}

// Stop gracefully stops all services.
func (s *Services) Stop() error {
	s.Close()
	return nil
}

// Close releases all resources.
func (s *Services) Close() {
	if s.MQTT != nil {
		s.MQTT.Close()
	}
	if s.Client != nil {
		s.Client.Close()
	}
	if s.DB != nil {
		s.DB.Close()
	}
}

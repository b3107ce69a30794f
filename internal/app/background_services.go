package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/lookind/internal/config"
	"github.com/dokzlo13/lookind/internal/ledger"
	"github.com/dokzlo13/lookind/internal/lookin"
	"github.com/dokzlo13/lookind/internal/metrics"
)

// LedgerCleanupService periodically drops ledger entries past retention.
type LedgerCleanupService struct {
	cfg    *config.Config
	ledger *ledger.Ledger
}

// NewLedgerCleanupService creates a new LedgerCleanupService.
func NewLedgerCleanupService(cfg *config.Config, l *ledger.Ledger) *LedgerCleanupService {
	return &LedgerCleanupService{cfg: cfg, ledger: l}
}

// Start runs the cleanup loop until ctx is done.
func (s *LedgerCleanupService) Start(ctx context.Context) {
	go s.run(ctx)
}

func (s *LedgerCleanupService) run(ctx context.Context) {
	interval := s.cfg.Ledger.CleanupInterval.Duration()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

func (s *LedgerCleanupService) cleanup() {
	retention := time.Duration(s.cfg.Ledger.RetentionDays) * 24 * time.Hour
	deleted, err := s.ledger.DeleteOlderThan(retention)
	if err != nil {
		log.Error().Err(err).Msg("Failed to cleanup old ledger entries")
	} else if deleted > 0 {
		log.Info().Int64("deleted", deleted).Dur("retention", retention).Msg("Cleaned up old ledger entries")
	}
}

// SensorReader reads one sensor document.
type SensorReader interface {
	Sensor(ctx context.Context, name string) (*lookin.SensorReading, error)
}

// MeteoService exports the device's temperature and humidity sensor as
// Prometheus gauges.
type MeteoService struct {
	cfg    *config.Config
	reader SensorReader
}

// NewMeteoService creates a new MeteoService.
func NewMeteoService(cfg *config.Config, reader SensorReader) *MeteoService {
	return &MeteoService{cfg: cfg, reader: reader}
}

// Start begins polling if enabled.
func (s *MeteoService) Start(ctx context.Context) {
	if !s.cfg.Meteo.Enabled {
		return
	}
	go s.run(ctx)
}

func (s *MeteoService) run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Meteo.Interval.Duration())
	defer ticker.Stop()

	s.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.poll(ctx)
		}
	}
}

func (s *MeteoService) poll(ctx context.Context) {
	reading, err := s.reader.Sensor(ctx, s.cfg.Meteo.Sensor)
	if err != nil {
		if ctx.Err() == nil {
			log.Warn().Err(err).Str("sensor", s.cfg.Meteo.Sensor).Msg("Meteo poll failed")
		}
		return
	}
	if v, ok := reading.Float("Temperature"); ok {
		metrics.MeteoTemperature.Set(v)
	}
	if v, ok := reading.Float("Humidity"); ok {
		metrics.MeteoHumidity.Set(v)
	}
}

package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/lookind/internal/config"
	"github.com/dokzlo13/lookind/internal/mqtt"
)

// MQTTService owns the broker bridge for AC remotes.
type MQTTService struct {
	cfg    *config.Config
	Bridge *mqtt.Bridge
}

// NewMQTTService creates the bridge without connecting.
func NewMQTTService(cfg *config.Config) *MQTTService {
	return &MQTTService{
		cfg: cfg,
		Bridge: mqtt.NewBridge(mqtt.Config{
			Broker:      cfg.MQTT.Broker,
			Username:    cfg.MQTT.Username,
			Password:    cfg.MQTT.Password,
			ClientID:    cfg.MQTT.ClientID,
			TopicPrefix: cfg.MQTT.TopicPrefix,
			QoS:         byte(cfg.MQTT.QoS),
			Retain:      cfg.MQTT.Retain,
		}),
	}
}

// Start connects, subscribes and announces the configured AC remotes.
func (s *MQTTService) Start(ctx context.Context, ctrl mqtt.Controller) error {
	if err := s.Bridge.Connect(); err != nil {
		return err
	}
	if err := s.Bridge.Start(ctx, ctrl); err != nil {
		return err
	}

	for _, id := range s.cfg.AC.Remotes {
		snap, err := ctrl.State(ctx, id)
		if err != nil {
			log.Warn().Err(err).Str("uuid", id).Msg("Failed to read AC state for announcement")
			continue
		}
		s.Bridge.PublishSnapshot(snap)
	}
	return nil
}

// Close disconnects from the broker.
func (s *MQTTService) Close() {
	s.Bridge.Disconnect()
}

// Package mqtt bridges AC remotes to an MQTT broker: set commands come in on
// <prefix>/ac/<uuid>/set and outcomes go out on <prefix>/ac/<uuid>/status.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/lookind/internal/ac"
	"github.com/dokzlo13/lookind/internal/metrics"
)

// Config holds MQTT configuration
type Config struct {
	Broker      string // e.g. tcp://localhost:1883
	Username    string
	Password    string
	ClientID    string
	TopicPrefix string
	QoS         byte
	Retain      bool
	QueueSize   int
}

// Controller is the AC surface the bridge drives.
type Controller interface {
	State(ctx context.Context, uuid string) (*ac.Snapshot, error)
	Update(ctx context.Context, uuid string, mutate func(*ac.Status) error) (ac.Status, error)
}

// Bridge wraps the broker connection.
type Bridge struct {
	client   paho.Client
	cfg      Config
	publish  func(topic string, payload []byte) error
	commands chan SetCommand
	statuses chan StatusMessage
	now      func() time.Time
}

// NewBridge creates a bridge. Nothing is contacted until Connect.
func NewBridge(cfg Config) *Bridge {
	cfg = withDefaults(cfg)

	opts := paho.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetPingTimeout(60 * time.Second)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(10 * time.Second)
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		log.Warn().Err(err).Msg("MQTT connection lost")
	})
	opts.SetOnConnectHandler(func(_ paho.Client) {
		log.Info().Str("broker", cfg.Broker).Msg("MQTT connected")
	})

	b := newBridge(cfg, nil)
	b.client = paho.NewClient(opts)
	b.publish = b.pahoPublish
	return b
}

func newBridge(cfg Config, publish func(topic string, payload []byte) error) *Bridge {
	cfg = withDefaults(cfg)
	return &Bridge{
		cfg:      cfg,
		publish:  publish,
		commands: make(chan SetCommand, cfg.QueueSize),
		statuses: make(chan StatusMessage, cfg.QueueSize),
		now:      time.Now,
	}
}

func withDefaults(cfg Config) Config {
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = DefaultTopicPrefix
	}
	cfg.TopicPrefix = strings.TrimSuffix(cfg.TopicPrefix, "/")
	if cfg.ClientID == "" {
		cfg.ClientID = "lookind-" + uuid.NewString()[:8]
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100
	}
	return cfg
}

// Connect establishes connection to MQTT broker
func (b *Bridge) Connect() error {
	if token := b.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	return nil
}

// Disconnect closes the connection to MQTT broker
func (b *Bridge) Disconnect() {
	if b.client != nil {
		b.client.Disconnect(250)
	}
}

// IsConnected checks if the client is connected
func (b *Bridge) IsConnected() bool {
	return b.client != nil && b.client.IsConnected()
}

// Start subscribes to set commands and runs the command and status workers
// until ctx is done.
func (b *Bridge) Start(ctx context.Context, ctrl Controller) error {
	filter := SetTopicFilter(b.cfg.TopicPrefix)
	token := b.client.Subscribe(filter, b.cfg.QoS, func(_ paho.Client, msg paho.Message) {
		b.receive(msg.Topic(), msg.Payload())
	})
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", filter, token.Error())
	}
	log.Info().Str("topic", filter).Msg("Subscribed to AC set commands")

	go b.processCommands(ctx, ctrl)
	go b.processStatuses(ctx)
	return nil
}

// receive queues a set command. Malformed messages are dropped.
func (b *Bridge) receive(topic string, payload []byte) {
	id, ok := parseSetTopic(b.cfg.TopicPrefix, topic)
	if !ok {
		metrics.MQTTMessagesTotal.WithLabelValues("in", "invalid").Inc()
		log.Warn().Str("topic", topic).Msg("Ignoring message on unexpected topic")
		return
	}
	cmd, err := ParseSetCommand(id, payload)
	if err != nil {
		metrics.MQTTMessagesTotal.WithLabelValues("in", "invalid").Inc()
		log.Warn().Err(err).Str("uuid", id).Msg("Ignoring set command")
		return
	}

	select {
	case b.commands <- cmd:
		metrics.MQTTMessagesTotal.WithLabelValues("in", "queued").Inc()
	default:
		metrics.MQTTMessagesTotal.WithLabelValues("in", "dropped").Inc()
		log.Warn().Str("uuid", id).Msg("Command queue full, dropping set command")
	}
}

func (b *Bridge) processCommands(ctx context.Context, ctrl Controller) {
	for {
		select {
		case cmd := <-b.commands:
			b.handle(ctx, ctrl, cmd)
		case <-ctx.Done():
			return
		}
	}
}

// handle runs one set command. Outcomes of the confirm loop reach the broker
// through Observe.
func (b *Bridge) handle(ctx context.Context, ctrl Controller, cmd SetCommand) {
	status, err := ctrl.Update(ctx, cmd.UUID, cmd.Mutate)
	if err != nil {
		log.Error().Err(err).Str("uuid", cmd.UUID).Msg("Failed to apply set command")
		return
	}
	log.Info().Str("uuid", cmd.UUID).Str("status", status.String()).Msg("Set command applied")
}

// Observe queues a controller outcome for publishing. It is meant to be
// registered as an ac.Observer.
func (b *Bridge) Observe(r ac.Result) {
	b.enqueue(resultMessage(r, b.now()))
}

// PublishSnapshot queues the status read from the device.
func (b *Bridge) PublishSnapshot(s *ac.Snapshot) {
	b.enqueue(snapshotMessage(s, b.now()))
}

func (b *Bridge) enqueue(msg StatusMessage) {
	select {
	case b.statuses <- msg:
	default:
		metrics.MQTTMessagesTotal.WithLabelValues("out", "dropped").Inc()
		log.Warn().Str("uuid", msg.UUID).Msg("Status queue full, dropping status")
	}
}

func (b *Bridge) processStatuses(ctx context.Context) {
	for {
		select {
		case msg := <-b.statuses:
			if err := b.publishStatus(msg); err != nil {
				log.Error().Err(err).Str("uuid", msg.UUID).Msg("Failed to publish status")
			}
		case <-ctx.Done():
			return
		}
	}
}

func (b *Bridge) publishStatus(msg StatusMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		metrics.MQTTMessagesTotal.WithLabelValues("out", "error").Inc()
		return fmt.Errorf("failed to marshal status: %w", err)
	}
	if err := b.publish(StatusTopic(b.cfg.TopicPrefix, msg.UUID), payload); err != nil {
		metrics.MQTTMessagesTotal.WithLabelValues("out", "error").Inc()
		return err
	}
	metrics.MQTTMessagesTotal.WithLabelValues("out", "ok").Inc()
	log.Debug().Str("uuid", msg.UUID).Bool("confirmed", msg.Confirmed).Msg("Status published")
	return nil
}

func (b *Bridge) pahoPublish(topic string, payload []byte) error {
	token := b.client.Publish(topic, b.cfg.QoS, b.cfg.Retain, payload)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, token.Error())
	}
	return nil
}

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Device          DeviceConfig      `yaml:"device"`
	Learn           LearnConfig       `yaml:"learn"`
	AC              ACConfig          `yaml:"ac"`
	Database        DatabaseConfig    `yaml:"database"`
	Log             LogConfig         `yaml:"log"`
	Healthcheck     HealthcheckConfig `yaml:"healthcheck"`
	MQTT            MQTTConfig        `yaml:"mqtt"`
	Meteo           MeteoConfig       `yaml:"meteo"`
	Ledger          LedgerConfig      `yaml:"ledger"`
	ShutdownTimeout Duration          `yaml:"shutdown_timeout"` // General shutdown timeout for graceful stops
}

// DeviceConfig contains LOOKin device connection settings
type DeviceConfig struct {
	Address        string   `yaml:"address"` // host[:port] or http://host
	Timeout        Duration `yaml:"timeout"` // HTTP timeout per request
	RateLimitRPS   float64  `yaml:"rate_limit_rps"`
	RateLimitBurst int      `yaml:"rate_limit_burst"`
}

// LearnConfig contains IR learning settings
type LearnConfig struct {
	Sensor     string   `yaml:"sensor"`
	Period     Duration `yaml:"period"`
	Duration   Duration `yaml:"duration"`
	MaxSignals int      `yaml:"max_signals"` // -1 = capture for the whole duration
	MinMatches int      `yaml:"min_matches"`
}

// ACConfig contains the status confirmation policy
type ACConfig struct {
	Attempts     int      `yaml:"attempts"`
	Window       Duration `yaml:"window"`
	PollInterval Duration `yaml:"poll_interval"`
	Remotes      []string `yaml:"remotes"` // AC remote UUIDs to announce over MQTT at startup
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`
	Colors bool   `yaml:"colors"`
	JSON   bool   `yaml:"json"`
}

// HealthcheckConfig contains health check and metrics server settings
type HealthcheckConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// MQTTConfig contains MQTT bridge settings
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         int    `yaml:"qos"` // 0 selects 1
	Retain      bool   `yaml:"retain"`
}

// MeteoConfig contains the temperature/humidity sensor poller settings
type MeteoConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Sensor   string   `yaml:"sensor"`
	Interval Duration `yaml:"interval"`
}

// LedgerConfig contains event ledger settings
type LedgerConfig struct {
	CleanupInterval Duration `yaml:"cleanup_interval"`
	RetentionDays   int      `yaml:"retention_days"`
}

// MaxSignalsLimit converts MaxSignals to the learn session form, where 0
// means unlimited.
func (c LearnConfig) MaxSignalsLimit() int {
	if c.MaxSignals < 0 {
		return 0
	}
	return c.MaxSignals
}

// Duration is a wrapper around time.Duration for YAML unmarshalling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse parses configuration content, expanding environment variables and
// applying defaults.
func Parse(data []byte) (*Config, error) {
	// Expand environment variables
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every default applied and no device
// address.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (cfg *Config) applyDefaults() {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "./lookind.sqlite"
	}

	// Device defaults
	if cfg.Device.Timeout == 0 {
		cfg.Device.Timeout = Duration(10 * time.Second)
	}
	if cfg.Device.RateLimitRPS == 0 {
		cfg.Device.RateLimitRPS = 5.0
	}
	if cfg.Device.RateLimitBurst == 0 {
		cfg.Device.RateLimitBurst = 1
	}

	// Learn defaults
	if cfg.Learn.Sensor == "" {
		cfg.Learn.Sensor = "IR"
	}
	if cfg.Learn.Period == 0 {
		cfg.Learn.Period = Duration(1 * time.Second)
	}
	if cfg.Learn.Duration == 0 {
		cfg.Learn.Duration = Duration(300 * time.Second)
	}
	if cfg.Learn.MaxSignals == 0 {
		cfg.Learn.MaxSignals = 10
	}
	if cfg.Learn.MinMatches == 0 {
		cfg.Learn.MinMatches = 2
	}

	// AC confirmation defaults
	if cfg.AC.Attempts == 0 {
		cfg.AC.Attempts = 5
	}
	if cfg.AC.Window == 0 {
		cfg.AC.Window = Duration(30 * time.Second)
	}
	if cfg.AC.PollInterval == 0 {
		cfg.AC.PollInterval = Duration(5 * time.Second)
	}

	// MQTT defaults
	if cfg.MQTT.Broker == "" {
		cfg.MQTT.Broker = "tcp://localhost:1883"
	}
	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = "lookin"
	}
	if cfg.MQTT.QoS == 0 {
		cfg.MQTT.QoS = 1
	}

	// Meteo defaults
	if cfg.Meteo.Sensor == "" {
		cfg.Meteo.Sensor = "Meteo"
	}
	if cfg.Meteo.Interval == 0 {
		cfg.Meteo.Interval = Duration(1 * time.Minute)
	}

	// Ledger defaults
	if cfg.Ledger.CleanupInterval == 0 {
		cfg.Ledger.CleanupInterval = Duration(24 * time.Hour)
	}
	if cfg.Ledger.RetentionDays == 0 {
		cfg.Ledger.RetentionDays = 30
	}

	// Healthcheck defaults
	if cfg.Healthcheck.Port == 0 {
		cfg.Healthcheck.Port = 9090
	}
	if cfg.Healthcheck.Host == "" {
		cfg.Healthcheck.Host = "0.0.0.0"
	}

	// General shutdown timeout
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = Duration(5 * time.Second)
	}
}

// Validate checks values that have no sensible default.
func (cfg *Config) Validate() error {
	if cfg.AC.Attempts < 0 {
		return fmt.Errorf("ac.attempts must not be negative")
	}
	if cfg.AC.PollInterval.Duration() > cfg.AC.Window.Duration() {
		return fmt.Errorf("ac.poll_interval (%s) exceeds ac.window (%s)", cfg.AC.PollInterval.Duration(), cfg.AC.Window.Duration())
	}
	if cfg.MQTT.QoS < 0 || cfg.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2")
	}
	return nil
}

// expandEnvVars expands environment variables in the format ${VAR} or ${VAR:default}
func expandEnvVars(input string) string {
	// Match ${VAR} or ${VAR:default}
	re := regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

	return re.ReplaceAllStringFunc(input, func(match string) string {
		parts := re.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultVal := ""
		if len(parts) >= 3 {
			defaultVal = parts[2]
		}

		if val := os.Getenv(varName); val != "" {
			return val
		}
		return defaultVal
	})
}

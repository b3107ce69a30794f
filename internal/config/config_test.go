package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("device:\n  address: 192.168.1.50\n"))
	require.NoError(t, err)

	assert.Equal(t, "192.168.1.50", cfg.Device.Address)
	assert.Equal(t, 10*time.Second, cfg.Device.Timeout.Duration())
	assert.Equal(t, 5.0, cfg.Device.RateLimitRPS)
	assert.Equal(t, "IR", cfg.Learn.Sensor)
	assert.Equal(t, time.Second, cfg.Learn.Period.Duration())
	assert.Equal(t, 300*time.Second, cfg.Learn.Duration.Duration())
	assert.Equal(t, 10, cfg.Learn.MaxSignalsLimit())
	assert.Equal(t, 2, cfg.Learn.MinMatches)
	assert.Equal(t, 5, cfg.AC.Attempts)
	assert.Equal(t, 30*time.Second, cfg.AC.Window.Duration())
	assert.Equal(t, 5*time.Second, cfg.AC.PollInterval.Duration())
	assert.Equal(t, "lookin", cfg.MQTT.TopicPrefix)
	assert.Equal(t, 1, cfg.MQTT.QoS)
	assert.False(t, cfg.MQTT.Enabled)
	assert.Equal(t, "Meteo", cfg.Meteo.Sensor)
	assert.Equal(t, 30, cfg.Ledger.RetentionDays)
	assert.Equal(t, 9090, cfg.Healthcheck.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "./lookind.sqlite", cfg.Database.Path)
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout.Duration())
}

func TestParse_Overrides(t *testing.T) {
	cfg, err := Parse([]byte(`
device:
  address: http://lookin.lan
  timeout: 3s
learn:
  max_signals: -1
  period: 500ms
ac:
  attempts: 3
  window: 20s
  poll_interval: 2s
  remotes: [A1B2, C3D4]
mqtt:
  enabled: true
  broker: tcp://broker:1883
  qos: 2
`))
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, cfg.Device.Timeout.Duration())
	assert.Equal(t, 0, cfg.Learn.MaxSignalsLimit())
	assert.Equal(t, 500*time.Millisecond, cfg.Learn.Period.Duration())
	assert.Equal(t, 3, cfg.AC.Attempts)
	assert.Equal(t, []string{"A1B2", "C3D4"}, cfg.AC.Remotes)
	assert.True(t, cfg.MQTT.Enabled)
	assert.Equal(t, 2, cfg.MQTT.QoS)
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse([]byte("ac:\n  window: 2s\n  poll_interval: 5s\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("mqtt:\n  qos: 3\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("device:\n  timeout: soon\n"))
	assert.Error(t, err)
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("LOOKIN_ADDRESS", "10.0.0.7")
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "device:\n  address: ${LOOKIN_ADDRESS}\nmqtt:\n  username: ${LOOKIN_MQTT_USER:guest}\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.7", cfg.Device.Address)
	assert.Equal(t, "guest", cfg.MQTT.Username)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Empty(t, cfg.Device.Address)
	assert.Equal(t, 5, cfg.AC.Attempts)
	require.NoError(t, cfg.Validate())
}

package mqtt

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dokzlo13/lookind/internal/ac"
)

// DefaultTopicPrefix is the root of every topic the bridge uses.
const DefaultTopicPrefix = "lookin"

// SetTopicFilter is the subscription for AC set commands.
func SetTopicFilter(prefix string) string {
	return prefix + "/ac/+/set"
}

// StatusTopic is where the status of one AC remote is published.
func StatusTopic(prefix, uuid string) string {
	return prefix + "/ac/" + uuid + "/status"
}

// parseSetTopic extracts the remote UUID from <prefix>/ac/<uuid>/set.
func parseSetTopic(prefix, topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, prefix+"/ac/")
	if !ok {
		return "", false
	}
	uuid, ok := strings.CutSuffix(rest, "/set")
	if !ok || uuid == "" || strings.Contains(uuid, "/") {
		return "", false
	}
	return uuid, true
}

// SetCommand is a partial AC status change. Absent fields keep the current
// value. Code, when present, replaces the whole word and excludes the other
// fields.
type SetCommand struct {
	UUID         string            `json:"-"`
	Mode         *ac.OperatingMode `json:"mode,omitempty"`
	Temperature  *int              `json:"temperature,omitempty"`
	TemperatureF *float64          `json:"temperature_f,omitempty"`
	Fan          *ac.FanSpeed      `json:"fan,omitempty"`
	Swing        *ac.SwingMode     `json:"swing,omitempty"`
	Code         string            `json:"code,omitempty"`
}

// ParseSetCommand decodes a set payload for uuid.
func ParseSetCommand(uuid string, payload []byte) (SetCommand, error) {
	cmd := SetCommand{UUID: uuid}
	dec := json.NewDecoder(strings.NewReader(string(payload)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cmd); err != nil {
		return SetCommand{}, fmt.Errorf("invalid set payload: %w", err)
	}
	cmd.UUID = uuid

	if cmd.Temperature != nil && cmd.TemperatureF != nil {
		return SetCommand{}, fmt.Errorf("temperature and temperature_f are exclusive")
	}
	if cmd.Code != "" && (cmd.Mode != nil || cmd.Temperature != nil || cmd.TemperatureF != nil || cmd.Fan != nil || cmd.Swing != nil) {
		return SetCommand{}, fmt.Errorf("code excludes the other fields")
	}
	if cmd.Code == "" && cmd.Mode == nil && cmd.Temperature == nil && cmd.TemperatureF == nil && cmd.Fan == nil && cmd.Swing == nil {
		return SetCommand{}, fmt.Errorf("set payload changes nothing")
	}

	// Reject out-of-range values here, before the device is read.
	scratch := ac.DefaultStatus()
	if err := cmd.Mutate(&scratch); err != nil {
		return SetCommand{}, fmt.Errorf("invalid set payload: %w", err)
	}
	return cmd, nil
}

// Mutate applies the command to s with the validating setters.
func (c SetCommand) Mutate(s *ac.Status) error {
	if c.Code != "" {
		parsed, err := ac.ParseCode(c.Code)
		if err != nil {
			return err
		}
		*s = parsed
		return nil
	}
	if c.Mode != nil {
		if err := s.SetMode(*c.Mode); err != nil {
			return err
		}
	}
	if c.Temperature != nil {
		if err := s.SetTargetCelsius(*c.Temperature); err != nil {
			return err
		}
	}
	if c.TemperatureF != nil {
		if err := s.SetTargetFahrenheit(*c.TemperatureF); err != nil {
			return err
		}
	}
	if c.Fan != nil {
		if err := s.SetFanSpeed(*c.Fan); err != nil {
			return err
		}
	}
	if c.Swing != nil {
		if err := s.SetSwing(*c.Swing); err != nil {
			return err
		}
	}
	return nil
}

// StatusMessage is published after every status change attempt.
type StatusMessage struct {
	UUID      string     `json:"uuid"`
	Status    *ac.Status `json:"status,omitempty"`
	Target    *ac.Status `json:"target,omitempty"`
	Confirmed bool       `json:"confirmed"`
	Attempts  int        `json:"attempts,omitempty"`
	Error     string     `json:"error,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// resultMessage converts a controller outcome. A confirmed target is the
// current status.
func resultMessage(r ac.Result, now time.Time) StatusMessage {
	target := r.Target
	msg := StatusMessage{
		UUID:      r.UUID,
		Target:    &target,
		Attempts:  r.Attempts,
		Timestamp: now.UTC(),
	}
	if r.Err != nil {
		msg.Error = r.Err.Error()
		return msg
	}
	msg.Confirmed = true
	msg.Status = &target
	return msg
}

// snapshotMessage reports a status read from the device.
func snapshotMessage(s *ac.Snapshot, now time.Time) StatusMessage {
	current := s.Current
	return StatusMessage{
		UUID:      s.UUID,
		Status:    &current,
		Confirmed: true,
		Timestamp: now.UTC(),
	}
}

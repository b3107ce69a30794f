// Package ac encodes air conditioner state into the device's 16-bit status
// word and drives the submit-and-confirm protocol used to change it.
//
// Status word layout (hex digits MTFS):
//
//	bits 12-15  operating mode
//	bits  8-11  target temperature, degrees Celsius minus 16
//	bits  4-7   fan speed
//	bits  0-3   swing mode
package ac

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Target temperature range in Celsius.
const (
	MinTargetCelsius = 16
	MaxTargetCelsius = 31
)

// ErrTemperatureRange is returned by the temperature setters.
var ErrTemperatureRange = errors.New("target temperature out of range")

// Status is the state of an air conditioner. The zero value is
// OFF, 16°C, fan RESERVED0, swing RESERVED0.
type Status struct {
	mode       OperatingMode
	tempOffset uint16
	fan        FanSpeed
	swing      SwingMode
}

// NewStatus builds a status through the validating setters.
func NewStatus(mode OperatingMode, targetC int, fan FanSpeed, swing SwingMode) (Status, error) {
	var s Status
	if err := s.SetMode(mode); err != nil {
		return Status{}, err
	}
	if err := s.SetTargetCelsius(targetC); err != nil {
		return Status{}, err
	}
	if err := s.SetFanSpeed(fan); err != nil {
		return Status{}, err
	}
	if err := s.SetSwing(swing); err != nil {
		return Status{}, err
	}
	return s, nil
}

// DefaultStatus is assumed for remotes that have never reported a status.
func DefaultStatus() Status {
	return Status{mode: ModeOff, tempOffset: 23 - MinTargetCelsius, fan: FanAuto, swing: SwingReserved0}
}

// FromCode decodes a status word. Every 16-bit value decodes.
func FromCode(code uint16) Status {
	return Status{
		mode:       OperatingMode(code & 0xF000),
		tempOffset: (code & 0x0F00) >> 8,
		fan:        FanSpeed(code & 0x00F0),
		swing:      SwingMode(code & 0x000F),
	}
}

// ParseCode decodes the hex form of a status word ("2A40", "0x2a40").
func ParseCode(s string) (Status, error) {
	h := strings.TrimSpace(s)
	h = strings.TrimPrefix(strings.TrimPrefix(h, "0x"), "0X")
	if len(h) == 0 || len(h) > 4 {
		return Status{}, fmt.Errorf("invalid status code %q", s)
	}
	v, err := strconv.ParseUint(h, 16, 16)
	if err != nil {
		return Status{}, fmt.Errorf("invalid status code %q: %w", s, err)
	}
	return FromCode(uint16(v)), nil
}

// Code encodes the status word.
func (s Status) Code() uint16 {
	return uint16(s.mode) | s.tempOffset<<8 | uint16(s.fan) | uint16(s.swing)
}

// Hex returns the 4-digit upper-case status code used in command paths.
func (s Status) Hex() string {
	return fmt.Sprintf("%04X", s.Code())
}

// Mode returns the operating mode.
func (s Status) Mode() OperatingMode { return s.mode }

// FanSpeed returns the fan speed.
func (s Status) FanSpeed() FanSpeed { return s.fan }

// Swing returns the swing mode.
func (s Status) Swing() SwingMode { return s.swing }

// TargetCelsius returns the target temperature.
func (s Status) TargetCelsius() int {
	return int(s.tempOffset) + MinTargetCelsius
}

// TargetFahrenheit returns the target temperature in Fahrenheit.
func (s Status) TargetFahrenheit() float64 {
	return CelsiusToFahrenheit(float64(s.TargetCelsius()))
}

// SetMode sets the operating mode.
func (s *Status) SetMode(m OperatingMode) error {
	if !m.Valid() {
		return fmt.Errorf("%w: operating mode 0x%04X", ErrInvalidMode, uint16(m))
	}
	s.mode = m
	return nil
}

// SetTargetCelsius sets the target temperature, rejecting values outside
// [MinTargetCelsius, MaxTargetCelsius].
func (s *Status) SetTargetCelsius(c int) error {
	if c < MinTargetCelsius || c > MaxTargetCelsius {
		return fmt.Errorf("%w: %d°C not in [%d, %d]", ErrTemperatureRange, c, MinTargetCelsius, MaxTargetCelsius)
	}
	s.tempOffset = uint16(c - MinTargetCelsius)
	return nil
}

// SetTargetFahrenheit converts f to Celsius, checks the range and truncates
// to a whole degree (75°F is 23°C).
func (s *Status) SetTargetFahrenheit(f float64) error {
	c := FahrenheitToCelsius(f)
	if math.IsNaN(c) || c < MinTargetCelsius || c > MaxTargetCelsius {
		return fmt.Errorf("%w: %.1f°F is %.1f°C, not in [%d, %d]", ErrTemperatureRange, f, c, MinTargetCelsius, MaxTargetCelsius)
	}
	return s.SetTargetCelsius(int(c))
}

// SetFanSpeed sets the fan speed.
func (s *Status) SetFanSpeed(f FanSpeed) error {
	if !f.Valid() {
		return fmt.Errorf("%w: fan speed 0x%04X", ErrInvalidMode, uint16(f))
	}
	s.fan = f
	return nil
}

// SetSwing sets the swing mode.
func (s *Status) SetSwing(m SwingMode) error {
	if !m.Valid() {
		return fmt.Errorf("%w: swing mode 0x%04X", ErrInvalidMode, uint16(m))
	}
	s.swing = m
	return nil
}

// Equal reports whether both statuses encode to the same word.
func (s Status) Equal(o Status) bool {
	return s == o
}

func (s Status) String() string {
	return fmt.Sprintf("ACStatus(%s, %d°C, %s, %s)", s.mode, s.TargetCelsius(), s.fan, s.swing)
}

type statusJSON struct {
	Mode        OperatingMode `json:"mode"`
	Temperature int           `json:"temperature"`
	Fan         FanSpeed      `json:"fan"`
	Swing       SwingMode     `json:"swing"`
	Code        string        `json:"code,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(statusJSON{
		Mode:        s.mode,
		Temperature: s.TargetCelsius(),
		Fan:         s.fan,
		Swing:       s.swing,
		Code:        s.Hex(),
	})
}

// UnmarshalJSON implements json.Unmarshaler. A "code" field wins over the
// named fields; otherwise the named fields go through the setters.
func (s *Status) UnmarshalJSON(data []byte) error {
	var in statusJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	if in.Code != "" {
		st, err := ParseCode(in.Code)
		if err != nil {
			return err
		}
		*s = st
		return nil
	}
	st, err := NewStatus(in.Mode, in.Temperature, in.Fan, in.Swing)
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// CelsiusToFahrenheit converts c to Fahrenheit.
func CelsiusToFahrenheit(c float64) float64 {
	return c*9/5 + 32
}

// FahrenheitToCelsius converts f to Celsius.
func FahrenheitToCelsius(f float64) float64 {
	return (f - 32) * 5 / 9
}

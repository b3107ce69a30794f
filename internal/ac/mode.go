package ac

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidMode is returned for values outside a status field.
var ErrInvalidMode = errors.New("invalid mode")

// OperatingMode occupies bits 12-15 of the status word and holds its value
// in place (COOL is 0x2000).
type OperatingMode uint16

const (
	ModeOff        OperatingMode = 0x0000
	ModeAuto       OperatingMode = 0x1000
	ModeCool       OperatingMode = 0x2000
	ModeHeat       OperatingMode = 0x3000
	ModeReserved4  OperatingMode = 0x4000 // documented as dry, ignored by units tested
	ModeReserved5  OperatingMode = 0x5000
	ModeReserved6  OperatingMode = 0x6000
	ModeReserved7  OperatingMode = 0x7000
	ModeReserved8  OperatingMode = 0x8000
	ModeReserved9  OperatingMode = 0x9000
	ModeReserved10 OperatingMode = 0xA000
	ModeReserved11 OperatingMode = 0xB000
	ModeReserved12 OperatingMode = 0xC000 // documented as vent, ignored by units tested
	ModeReserved13 OperatingMode = 0xD000
	ModeReserved14 OperatingMode = 0xE000
	ModeReserved15 OperatingMode = 0xF000
)

// FanSpeed occupies bits 4-7.
type FanSpeed uint16

const (
	FanReserved0  FanSpeed = 0x0000
	FanMinimum    FanSpeed = 0x0010
	FanMedium     FanSpeed = 0x0020
	FanMaximum    FanSpeed = 0x0030
	FanReserved4  FanSpeed = 0x0040
	FanReserved5  FanSpeed = 0x0050
	FanReserved6  FanSpeed = 0x0060
	FanReserved7  FanSpeed = 0x0070
	FanReserved8  FanSpeed = 0x0080
	FanReserved9  FanSpeed = 0x0090
	FanAuto       FanSpeed = 0x00A0
	FanReserved11 FanSpeed = 0x00B0
	FanReserved12 FanSpeed = 0x00C0
	FanReserved13 FanSpeed = 0x00D0
	FanReserved14 FanSpeed = 0x00E0
	FanReserved15 FanSpeed = 0x00F0
)

// SwingMode occupies bits 0-3. No value has confirmed semantics.
type SwingMode uint16

const (
	SwingReserved0 SwingMode = iota
	SwingReserved1
	SwingReserved2
	SwingReserved3
	SwingReserved4
	SwingReserved5
	SwingReserved6
	SwingReserved7
	SwingReserved8
	SwingReserved9
	SwingReserved10
	SwingReserved11
	SwingReserved12
	SwingReserved13
	SwingReserved14
	SwingReserved15
)

// bitField names the 16 codes of one nibble of the status word.
type bitField struct {
	label string
	shift uint
	names map[uint16]string // nibble -> name
}

var (
	modeField = bitField{label: "operating mode", shift: 12, names: map[uint16]string{
		0x0: "OFF", 0x1: "AUTO", 0x2: "COOL", 0x3: "HEAT",
	}}
	fanField = bitField{label: "fan speed", shift: 4, names: map[uint16]string{
		0x1: "MINIMUM", 0x2: "MEDIUM", 0x3: "MAXIMUM", 0xA: "AUTO",
	}}
	swingField = bitField{label: "swing mode", shift: 0, names: map[uint16]string{}}
)

func (f bitField) mask() uint16 {
	return 0xF << f.shift
}

func (f bitField) valid(v uint16) bool {
	return v&^f.mask() == 0
}

func (f bitField) format(v uint16) string {
	if !f.valid(v) {
		return fmt.Sprintf("INVALID(0x%04X)", v)
	}
	n := v >> f.shift
	if name, ok := f.names[n]; ok {
		return name
	}
	return "RESERVED" + strconv.Itoa(int(n))
}

// parse accepts a name ("COOL", "reserved4") case-insensitively.
func (f bitField) parse(s string) (uint16, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for n, known := range f.names {
		if known == name {
			return n << f.shift, nil
		}
	}
	if rest, ok := strings.CutPrefix(name, "RESERVED"); ok {
		n, err := strconv.Atoi(rest)
		if err == nil && n >= 0 && n <= 0xF {
			if _, named := f.names[uint16(n)]; !named {
				return uint16(n) << f.shift, nil
			}
		}
	}
	return 0, fmt.Errorf("%w: unknown %s %q", ErrInvalidMode, f.label, s)
}

func (m OperatingMode) String() string { return modeField.format(uint16(m)) }

// Valid reports whether m is one of the 16 operating mode codes.
func (m OperatingMode) Valid() bool { return modeField.valid(uint16(m)) }

// MarshalText implements encoding.TextMarshaler.
func (m OperatingMode) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("%w: operating mode 0x%04X", ErrInvalidMode, uint16(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *OperatingMode) UnmarshalText(text []byte) error {
	v, err := ParseOperatingMode(string(text))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// ParseOperatingMode parses a mode name such as "COOL" or "RESERVED4".
func ParseOperatingMode(s string) (OperatingMode, error) {
	v, err := modeField.parse(s)
	return OperatingMode(v), err
}

func (f FanSpeed) String() string { return fanField.format(uint16(f)) }

// Valid reports whether f is one of the 16 fan speed codes.
func (f FanSpeed) Valid() bool { return fanField.valid(uint16(f)) }

// MarshalText implements encoding.TextMarshaler.
func (f FanSpeed) MarshalText() ([]byte, error) {
	if !f.Valid() {
		return nil, fmt.Errorf("%w: fan speed 0x%04X", ErrInvalidMode, uint16(f))
	}
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *FanSpeed) UnmarshalText(text []byte) error {
	v, err := ParseFanSpeed(string(text))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// ParseFanSpeed parses a fan speed name such as "AUTO" or "RESERVED0".
func ParseFanSpeed(s string) (FanSpeed, error) {
	v, err := fanField.parse(s)
	return FanSpeed(v), err
}

func (s SwingMode) String() string { return swingField.format(uint16(s)) }

// Valid reports whether s is one of the 16 swing codes.
func (s SwingMode) Valid() bool { return swingField.valid(uint16(s)) }

// MarshalText implements encoding.TextMarshaler.
func (s SwingMode) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: swing mode 0x%04X", ErrInvalidMode, uint16(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *SwingMode) UnmarshalText(text []byte) error {
	v, err := ParseSwingMode(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseSwingMode parses a swing name such as "RESERVED3".
func ParseSwingMode(s string) (SwingMode, error) {
	v, err := swingField.parse(s)
	return SwingMode(v), err
}

package remote

import (
	"fmt"
	"strconv"
	"strings"
)

// Type is the device category of a remote.
type Type uint8

const (
	TypeCustom                 Type = 0x00
	TypeTV                     Type = 0x01
	TypeMedia                  Type = 0x02
	TypeLight                  Type = 0x03
	TypeHumidifierDehumidifier Type = 0x04
	TypeAirPurifier            Type = 0x05
	TypeRoboVacuumCleaner      Type = 0x06
	TypeDataDeviceFan          Type = 0x07
	TypeAirConditioner         Type = 0xEF
)

var typeNames = map[Type]string{
	TypeCustom:                 "CUSTOM",
	TypeTV:                     "TV",
	TypeMedia:                  "MEDIA",
	TypeLight:                  "LIGHT",
	TypeHumidifierDehumidifier: "HUMIDIFIER_DEHUMIDIFIER",
	TypeAirPurifier:            "AIRPURIFIER",
	TypeRoboVacuumCleaner:      "ROBOVACUUMCLEANER",
	TypeDataDeviceFan:          "DATADEVICEFAN",
	TypeAirConditioner:         "AIRCONDITIONER",
}

// Valid reports whether t is a known category.
func (t Type) Valid() bool {
	_, ok := typeNames[t]
	return ok
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Type(0x%02X)", uint8(t))
}

// Hex returns the device wire form, upper-case hex without padding ("EF", "1").
func (t Type) Hex() string {
	return strings.ToUpper(strconv.FormatUint(uint64(t), 16))
}

// ParseTypeHex parses the device wire form.
func ParseTypeHex(s string) (Type, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 16, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid remote type %q: %w", s, err)
	}
	t := Type(v)
	if !t.Valid() {
		return 0, fmt.Errorf("unknown remote type 0x%02X", v)
	}
	return t, nil
}

// ParseType accepts a category name (case-insensitive) or its hex code.
func ParseType(s string) (Type, error) {
	upper := strings.ToUpper(strings.TrimSpace(s))
	for t, name := range typeNames {
		if name == upper {
			return t, nil
		}
	}
	return ParseTypeHex(strings.TrimPrefix(upper, "0X"))
}

// MarshalText implements encoding.TextMarshaler.
func (t Type) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("unknown remote type 0x%02X", uint8(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Type) UnmarshalText(text []byte) error {
	v, err := ParseType(string(text))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

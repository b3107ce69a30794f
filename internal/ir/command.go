package ir

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// ErrUnsupported is returned for command and function variants this package
// can carry but not act on.
var ErrUnsupported = fmt.Errorf("ir: %w", errors.ErrUnsupported)

// Transmitter sends a raw signal through the device's IR emitter.
type Transmitter interface {
	SendRaw(ctx context.Context, sig RawSignal) error
}

// Command is one IR transmission stored in a function.
//
// Commands serialize to a single-key JSON object naming their type, the
// format used by the device API:
//
//	{"raw": {"Frequency": "38000", "Signal": "8000 -4500 ..."}}
type Command interface {
	// Type returns the wire type name, e.g. "raw".
	Type() string
	// Trigger transmits the command.
	Trigger(ctx context.Context, tx Transmitter) error
	json.Marshaler
}

// RawCommand is a raw timing transmission.
type RawCommand struct {
	Signal RawSignal
}

// NewRawCommand wraps sig.
func NewRawCommand(sig RawSignal) *RawCommand {
	return &RawCommand{Signal: sig}
}

func (c *RawCommand) Type() string { return "raw" }

// Trigger sends the signal.
func (c *RawCommand) Trigger(ctx context.Context, tx Transmitter) error {
	return tx.SendRaw(ctx, c.Signal)
}

// SimilarTo reports whether both commands carry the same signal up to jitter.
func (c *RawCommand) SimilarTo(other *RawCommand) bool {
	return Similar(c.Signal, other.Signal)
}

type rawPayload struct {
	Frequency json.Number `json:"Frequency"`
	Signal    string      `json:"Signal"`
}

type rawPayloadOut struct {
	Frequency string `json:"Frequency"`
	Signal    string `json:"Signal"`
}

// MarshalJSON implements json.Marshaler.
func (c *RawCommand) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]rawPayloadOut{
		"raw": {
			Frequency: strconv.Itoa(c.Signal.CarrierHz()),
			Signal:    c.Signal.String(),
		},
	})
}

// OpaqueCommand preserves a command type this package does not understand so
// that it survives a load/save round trip.
type OpaqueCommand struct {
	TypeName string
	Data     json.RawMessage
}

func (c *OpaqueCommand) Type() string { return c.TypeName }

// Trigger always fails with ErrUnsupported.
func (c *OpaqueCommand) Trigger(context.Context, Transmitter) error {
	return fmt.Errorf("command type %q: %w", c.TypeName, ErrUnsupported)
}

// MarshalJSON implements json.Marshaler.
func (c *OpaqueCommand) MarshalJSON() ([]byte, error) {
	data := c.Data
	if len(data) == 0 {
		data = json.RawMessage("null")
	}
	return json.Marshal(map[string]json.RawMessage{c.TypeName: data})
}

// UnmarshalCommand decodes a single-key command object. Unknown types become
// an OpaqueCommand.
func UnmarshalCommand(data []byte) (Command, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, fmt.Errorf("failed to decode command: %w", err)
	}
	if len(obj) != 1 {
		return nil, fmt.Errorf("command must have exactly one type key, got %d", len(obj))
	}

	var typeName string
	var body json.RawMessage
	for k, v := range obj {
		typeName, body = k, v
	}
	if typeName != "raw" {
		return &OpaqueCommand{TypeName: typeName, Data: body}, nil
	}

	var p rawPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("failed to decode raw command: %w", err)
	}
	freq := 0
	if p.Frequency != "" {
		f, err := p.Frequency.Int64()
		if err != nil {
			return nil, fmt.Errorf("invalid raw frequency %q: %w", p.Frequency, err)
		}
		freq = int(f)
	}
	sig, err := ParseRawSignal(p.Signal, freq)
	if err != nil {
		return nil, err
	}
	return NewRawCommand(sig), nil
}

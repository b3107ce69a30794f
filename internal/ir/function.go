package ir

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Kind is a function type understood by the device.
type Kind string

const (
	// KindSingle is a basic button backed by exactly one command.
	KindSingle Kind = "single"
	// KindToggle alternates between exactly two commands.
	KindToggle Kind = "toggle"
)

// ParseKind parses a kind name case-insensitively.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindSingle:
		return KindSingle, nil
	case KindToggle:
		return KindToggle, nil
	}
	return "", fmt.Errorf("unknown function kind %q", s)
}

// Arity returns the number of commands the kind requires.
func (k Kind) Arity() int {
	switch k {
	case KindSingle:
		return 1
	case KindToggle:
		return 2
	}
	return 0
}

// Function is a named, triggerable action of a remote.
type Function struct {
	name     string
	kind     Kind
	commands []Command
}

// NewFunction validates arity against kind and returns an immutable function.
func NewFunction(name string, kind Kind, commands ...Command) (*Function, error) {
	if name == "" {
		return nil, fmt.Errorf("function name is required")
	}
	want := kind.Arity()
	if want == 0 {
		return nil, fmt.Errorf("unknown function kind %q", kind)
	}
	if len(commands) != want {
		return nil, fmt.Errorf("function kind %q expects %d command(s), got %d", kind, want, len(commands))
	}
	for i, c := range commands {
		if c == nil {
			return nil, fmt.Errorf("command %d is nil", i)
		}
	}
	cmds := make([]Command, len(commands))
	copy(cmds, commands)
	return &Function{name: name, kind: kind, commands: cmds}, nil
}

// DeviceFunction describes a function whose commands live only on the device.
func DeviceFunction(name string, kind Kind) *Function {
	return &Function{name: name, kind: kind}
}

// Name returns the function name.
func (f *Function) Name() string { return f.name }

// Kind returns the function kind.
func (f *Function) Kind() Kind { return f.kind }

// Commands returns a copy of the command tuple, nil for device-only functions.
func (f *Function) Commands() []Command {
	if f.commands == nil {
		return nil
	}
	out := make([]Command, len(f.commands))
	copy(out, f.commands)
	return out
}

// HasCommands reports whether the commands are known locally.
func (f *Function) HasCommands() bool {
	return f.commands != nil
}

// Trigger transmits the function. Only single functions with local commands
// can be triggered.
func (f *Function) Trigger(ctx context.Context, tx Transmitter) error {
	if f.commands == nil {
		return fmt.Errorf("function %q has no local commands: %w", f.name, ErrUnsupported)
	}
	if f.kind != KindSingle {
		return fmt.Errorf("function %q of kind %q: %w", f.name, f.kind, ErrUnsupported)
	}
	return f.commands[0].Trigger(ctx, tx)
}

type functionJSON struct {
	Name     string            `json:"name"`
	Kind     Kind              `json:"type"`
	Commands []json.RawMessage `json:"irCommands"`
}

// MarshalJSON implements json.Marshaler.
func (f *Function) MarshalJSON() ([]byte, error) {
	out := functionJSON{Name: f.name, Kind: f.kind}
	if f.commands != nil {
		out.Commands = make([]json.RawMessage, 0, len(f.commands))
		for _, c := range f.commands {
			b, err := c.MarshalJSON()
			if err != nil {
				return nil, err
			}
			out.Commands = append(out.Commands, b)
		}
	}
	return json.Marshal(out)
}

// UnmarshalFunction decodes a function, validating arity. A missing kind
// means single.
func UnmarshalFunction(data []byte) (*Function, error) {
	var in functionJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("failed to decode function: %w", err)
	}
	kind := KindSingle
	if in.Kind != "" {
		k, err := ParseKind(string(in.Kind))
		if err != nil {
			return nil, err
		}
		kind = k
	}
	if in.Commands == nil {
		return DeviceFunction(in.Name, kind), nil
	}

	cmds := make([]Command, 0, len(in.Commands))
	for _, raw := range in.Commands {
		c, err := UnmarshalCommand(raw)
		if err != nil {
			return nil, err
		}
		cmds = append(cmds, c)
	}
	return NewFunction(in.Name, kind, cmds...)
}

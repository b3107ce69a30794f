package lookin

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Text decodes a JSON string, number or null into its text form. The device
// is inconsistent about quoting numeric fields.
type Text string

// UnmarshalJSON implements json.Unmarshaler.
func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*t = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
	default:
		*t = Text(data)
	}
	return nil
}

func (t Text) String() string { return string(t) }

// Float parses the text as a float.
func (t Text) Float() (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(string(t)), 64)
	return f, err == nil
}

// SensorReading is the document returned by sensors/<name>. The IR sensor
// fills Raw; other sensors (Meteo) report their own values.
type SensorReading struct {
	Raw     string
	Updated string
	Values  map[string]Text
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *SensorReading) UnmarshalJSON(data []byte) error {
	values, err := decodeFlat(data)
	if err != nil {
		return err
	}
	r.Values = values
	r.Raw = string(values["Raw"])
	r.Updated = string(values["Updated"])
	return nil
}

// Float returns a numeric sensor value such as "Temperature".
func (r *SensorReading) Float(key string) (float64, bool) {
	v, ok := r.Values[key]
	if !ok {
		return 0, false
	}
	return v.Float()
}

// decodeFlat keeps scalar fields and drops nested objects and arrays.
func decodeFlat(data []byte) (map[string]Text, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	out := make(map[string]Text, len(raw))
	for k, v := range raw {
		v = bytes.TrimSpace(v)
		if len(v) > 0 && (v[0] == '{' || v[0] == '[') {
			continue
		}
		var t Text
		if err := t.UnmarshalJSON(v); err != nil {
			return nil, err
		}
		out[k] = t
	}
	return out, nil
}

// Device is the document returned by GET device.
type Device struct {
	Type          string
	ID            string
	Name          string
	Firmware      string
	Time          string
	Timezone      string
	SensorMode    string
	BluetoothMode string
	Fields        map[string]Text
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Device) UnmarshalJSON(data []byte) error {
	fields, err := decodeFlat(data)
	if err != nil {
		return err
	}
	*d = Device{
		Type:          string(fields["Type"]),
		ID:            string(fields["ID"]),
		Name:          string(fields["Name"]),
		Firmware:      string(fields["Firmware"]),
		Time:          string(fields["Time"]),
		Timezone:      string(fields["Timezone"]),
		SensorMode:    string(fields["SensorMode"]),
		BluetoothMode: string(fields["BluetoothMode"]),
		Fields:        fields,
	}
	return nil
}

// DeviceUpdate lists the device settings to change. Nil fields are left
// alone. Firmware is only changed by vendor tooling.
type DeviceUpdate struct {
	Name          *string `json:"Name,omitempty"`
	Time          *string `json:"Time,omitempty"`
	Timezone      *string `json:"Timezone,omitempty"`
	SensorMode    *string `json:"SensorMode,omitempty"`
	BluetoothMode *string `json:"BluetoothMode,omitempty"`
}

func (u DeviceUpdate) fields() map[string]string {
	out := make(map[string]string)
	set := func(k string, v *string) {
		if v != nil {
			out[k] = *v
		}
	}
	set("Name", u.Name)
	set("Time", u.Time)
	set("Timezone", u.Timezone)
	set("SensorMode", u.SensorMode)
	set("BluetoothMode", u.BluetoothMode)
	return out
}

// Applied reports whether d shows every field of u.
func (u DeviceUpdate) Applied(d *Device) bool {
	for k, want := range u.fields() {
		if string(d.Fields[k]) != want {
			return false
		}
	}
	return true
}

// RemoteSummary is one entry of GET data.
type RemoteSummary struct {
	UUID    string `json:"UUID"`
	Type    string `json:"Type"`
	Updated Text   `json:"Updated"`
}

// FunctionRef names a function stored on the device. The device lists them
// either as bare names or as {"Name","Type"} objects.
type FunctionRef struct {
	Name string `json:"Name"`
	Type string `json:"Type,omitempty"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *FunctionRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &f.Name)
	}
	type plain FunctionRef
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*f = FunctionRef(p)
	return nil
}

// RemoteState is the document returned by GET data/<uuid>. Status and
// LastStatus are hex status words for air conditioner remotes and empty
// when the device has not reported one.
type RemoteState struct {
	UUID       string        `json:"UUID,omitempty"`
	Type       string        `json:"Type"`
	Name       string        `json:"Name"`
	Extra      string        `json:"Extra"`
	Status     Text          `json:"Status,omitempty"`
	LastStatus Text          `json:"LastStatus,omitempty"`
	Updated    Text          `json:"Updated"`
	Functions  []FunctionRef `json:"Functions"`
}

// FunctionNames returns the names of the device-defined functions.
func (s *RemoteState) FunctionNames() []string {
	names := make([]string, 0, len(s.Functions))
	for _, f := range s.Functions {
		names = append(names, f.Name)
	}
	return names
}

// RemoteDefinition is the body of POST data.
type RemoteDefinition struct {
	UUID    string `json:"UUID"`
	Type    string `json:"Type"`
	Name    string `json:"Name"`
	Extra   string `json:"Extra"`
	Updated string `json:"Updated"`
}

// RemoteUpdate is the body of PUT data/<uuid>. Nil fields are left alone.
type RemoteUpdate struct {
	Name    *string `json:"Name,omitempty"`
	Type    *string `json:"Type,omitempty"`
	Extra   *string `json:"Extra,omitempty"`
	Updated string  `json:"Updated"`
}

// FunctionData is a function as stored on the device.
type FunctionData struct {
	Type    string            `json:"type"`
	Signals []json.RawMessage `json:"signals"`
	Updated string            `json:"updated,omitempty"`
}

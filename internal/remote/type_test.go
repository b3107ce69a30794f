package remote

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeHex(t *testing.T) {
	tests := []struct {
		typ  Type
		hex  string
		name string
	}{
		{TypeCustom, "0", "CUSTOM"},
		{TypeTV, "1", "TV"},
		{TypeHumidifierDehumidifier, "4", "HUMIDIFIER_DEHUMIDIFIER"},
		{TypeDataDeviceFan, "7", "DATADEVICEFAN"},
		{TypeAirConditioner, "EF", "AIRCONDITIONER"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.hex, tt.typ.Hex())
		assert.Equal(t, tt.name, tt.typ.String())

		back, err := ParseTypeHex(tt.hex)
		require.NoError(t, err)
		assert.Equal(t, tt.typ, back)
	}

	got, err := ParseTypeHex("01")
	require.NoError(t, err)
	assert.Equal(t, TypeTV, got)

	_, err = ParseTypeHex("42")
	assert.Error(t, err)
	_, err = ParseTypeHex("xyz")
	assert.Error(t, err)
}

func TestParseType(t *testing.T) {
	got, err := ParseType("airconditioner")
	require.NoError(t, err)
	assert.Equal(t, TypeAirConditioner, got)

	got, err = ParseType("0xEF")
	require.NoError(t, err)
	assert.Equal(t, TypeAirConditioner, got)

	got, err = ParseType("light")
	require.NoError(t, err)
	assert.Equal(t, TypeLight, got)

	_, err = ParseType("toaster")
	assert.Error(t, err)
}

func TestTypeText(t *testing.T) {
	var v struct {
		Type Type `json:"type"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"type":"MEDIA"}`), &v))
	assert.Equal(t, TypeMedia, v.Type)

	b, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"MEDIA"}`, string(b))

	_, err = json.Marshal(struct{ T Type }{Type(0x42)})
	assert.Error(t, err)
	assert.Equal(t, "Type(0x42)", Type(0x42).String())
}

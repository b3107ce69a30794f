package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dokzlo13/lookind/internal/ac"
)

func TestParseACFlags(t *testing.T) {
	cmd, err := parseACFlags("A1B2", []string{"-mode", "cool", "-temp", "21", "-fan", "maximum"})
	require.NoError(t, err)
	assert.Equal(t, "A1B2", cmd.UUID)
	require.NotNil(t, cmd.Mode)
	assert.Equal(t, ac.ModeCool, *cmd.Mode)
	require.NotNil(t, cmd.Temperature)
	assert.Equal(t, 21, *cmd.Temperature)
	assert.Nil(t, cmd.Swing)

	st := ac.DefaultStatus()
	require.NoError(t, cmd.Mutate(&st))
	assert.Equal(t, ac.ModeCool, st.Mode())
	assert.Equal(t, 21, st.TargetCelsius())
}

func TestParseACFlags_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"nothing", nil},
		{"unknown mode", []string{"-mode", "turbo"}},
		{"code with mode", []string{"-code", "28A0", "-mode", "cool"}},
		{"both temperatures", []string{"-temp", "21", "-temp-f", "70"}},
		{"unknown flag", []string{"-power", "on"}},
		{"temperature too high", []string{"-temp", "40"}},
		{"bad code", []string{"-code", "ZZZZ"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseACFlags("A1B2", tt.args)
			assert.Error(t, err)
		})
	}
}

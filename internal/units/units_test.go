package units

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValid(t *testing.T) {
	t.Parallel()

	for _, unit := range ValidUnits {
		assert.True(t, IsValid(unit), "unit %q should be valid", unit)
	}
	assert.False(t, IsValid("furlongs"))
	assert.False(t, IsValid(""))
	assert.False(t, IsValid("CM"), "units are case sensitive")
}

func TestConvertDistance(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		cm     float64
		target string
		want   float64
	}{
		{"cm passthrough", 25, CM, 25},
		{"millimeters", 25, MM, 250},
		{"meters", 25, M, 0.25},
		{"inches", 2.54, IN, 1},
		{"unknown unit falls back to cm", 25, "parsec", 25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tt.want, ConvertDistance(tt.cm, tt.target), 1e-12)
		})
	}
}

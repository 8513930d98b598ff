package ingest

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyPayload(t *testing.T) {
	t.Parallel()

	tests := []struct {
		payload string
		want    string
	}{
		{"PS,0,120,45", EventTypeReading},
		{`{"clock":12.5,"rate":100,"sensors":2}`, EventTypeStatus},
		{"garbage line", EventTypeUnknown},
		{"", EventTypeUnknown},
		{"ps,0,1,2", EventTypeUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyPayload(tt.payload), "payload %q", tt.payload)
	}
}

func TestParseReading(t *testing.T) {
	t.Parallel()

	t.Run("valid line", func(t *testing.T) {
		t.Parallel()
		got, err := ParseReading("PS,2,1234,567")
		require.NoError(t, err)
		want := Sample{SensorIndex: 2, Proximity: 1234, Ambient: 567}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("ParseReading mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("tolerates whitespace around values", func(t *testing.T) {
		t.Parallel()
		got, err := ParseReading("PS, 1, 100, 50")
		require.NoError(t, err)
		assert.Equal(t, Sample{SensorIndex: 1, Proximity: 100, Ambient: 50}, got)
	})

	t.Run("rejects malformed lines", func(t *testing.T) {
		t.Parallel()
		for _, line := range []string{
			"PS,0,120",           // missing field
			"PS,0,120,45,9",      // extra field
			"XX,0,120,45",        // wrong tag
			"PS,300,120,45",      // index overflows uint8
			"PS,0,70000,45",      // proximity overflows uint16
			"PS,0,-1,45",         // negative
			"PS,zero,120,45",     // non-numeric
			"",
		} {
			_, err := ParseReading(line)
			assert.Error(t, err, "line %q should not parse", line)
		}
	})
}

func TestParseStatus(t *testing.T) {
	t.Parallel()

	status, err := ParseStatus(`{"clock":42.5,"rate":100,"sensors":3}`)
	require.NoError(t, err)
	assert.Equal(t, BridgeStatus{Clock: 42.5, Rate: 100, Sensors: 3}, status)

	_, err = ParseStatus("{not json")
	assert.Error(t, err)
}

package serialmux

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

func TestPortOptionsNormalize(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()
		got, err := PortOptions{}.Normalize()
		require.NoError(t, err)
		want := PortOptions{BaudRate: 115200, DataBits: 8, StopBits: 1, Parity: "N"}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("Normalize mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("parity aliases", func(t *testing.T) {
		t.Parallel()
		for in, want := range map[string]string{
			"none": "N", "EVEN": "E", "odd": "O", " e ": "E",
		} {
			got, err := PortOptions{Parity: in}.Normalize()
			require.NoError(t, err)
			assert.Equal(t, want, got.Parity, "parity %q", in)
		}
	})

	t.Run("rejects invalid values", func(t *testing.T) {
		t.Parallel()
		_, err := PortOptions{DataBits: 9}.Normalize()
		assert.ErrorContains(t, err, "data bits")
		_, err = PortOptions{StopBits: 3}.Normalize()
		assert.ErrorContains(t, err, "stop bits")
		_, err = PortOptions{Parity: "MARK"}.Normalize()
		assert.ErrorContains(t, err, "parity")
	})
}

func TestPortOptionsEqual(t *testing.T) {
	t.Parallel()

	a := PortOptions{}
	b := PortOptions{BaudRate: 115200, DataBits: 8, StopBits: 1, Parity: "none"}
	assert.True(t, a.Equal(b), "normalized options should compare equal")

	c := PortOptions{BaudRate: 9600}
	assert.False(t, a.Equal(c))

	bad := PortOptions{Parity: "MARK"}
	assert.False(t, a.Equal(bad), "invalid options never compare equal")
}

func TestPortOptionsSerialMode(t *testing.T) {
	t.Parallel()

	mode, err := PortOptions{BaudRate: 9600, Parity: "even", StopBits: 2}.SerialMode()
	require.NoError(t, err)
	assert.Equal(t, 9600, mode.BaudRate)
	assert.Equal(t, 8, mode.DataBits)
	assert.Equal(t, serial.EvenParity, mode.Parity)
	assert.Equal(t, serial.StopBits(2), mode.StopBits)

	_, err = PortOptions{DataBits: 3}.SerialMode()
	assert.Error(t, err)
}

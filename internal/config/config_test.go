package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kelvin-Chan/arduino-vishay-controller/internal/serialmux"
	"github.com/Kelvin-Chan/arduino-vishay-controller/internal/units"
)

func writeConfigFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestEmptyConfigDefaults(t *testing.T) {
	t.Parallel()
	cfg := EmptyConfig()

	assert.Equal(t, ":8080", cfg.GetListen())
	assert.Equal(t, "/dev/ttyACM0", cfg.GetSerialPort())
	assert.Equal(t, "sensor_data.db", cfg.GetDBPath())
	assert.Equal(t, units.CM, cfg.GetUnits())
	assert.Equal(t, 10*time.Second, cfg.GetStatsInterval())

	opts, err := cfg.GetPortOptions().Normalize()
	require.NoError(t, err)
	assert.Equal(t, 115200, opts.BaudRate)

	table := cfg.GetCalibrationTable()
	require.NoError(t, table.Validate())
}

func TestLoadConfig(t *testing.T) {
	t.Parallel()
	path := writeConfigFile(t, "controller.json", `{
		"listen": ":9000",
		"serial_port": "/dev/ttyUSB3",
		"baud_rate": 57600,
		"units": "mm",
		"stats_interval": "5s",
		"sensors": [
			{"index": 2, "prox_min": 10, "prox_max": 40},
			{"prox_min": 5, "prox_max": 15}
		]
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.GetListen())
	assert.Equal(t, "/dev/ttyUSB3", cfg.GetSerialPort())
	assert.Equal(t, units.MM, cfg.GetUnits())
	assert.Equal(t, 5*time.Second, cfg.GetStatsInterval())

	opts, err := cfg.GetPortOptions().Normalize()
	require.NoError(t, err)
	assert.Equal(t, 57600, opts.BaudRate)

	sensors := cfg.BuildSensors()
	require.Len(t, sensors, 2)
	assert.Equal(t, uint8(2), sensors[0].Index())
	assert.Equal(t, uint16(10), sensors[0].ExitThreshold())
	assert.Equal(t, uint16(40), sensors[0].EnterThreshold())
	// The second entry has no explicit index, so it takes its list position.
	assert.Equal(t, uint8(1), sensors[1].Index())
}

func TestLoadConfigRejectsBadFiles(t *testing.T) {
	t.Parallel()

	t.Run("wrong extension", func(t *testing.T) {
		t.Parallel()
		path := writeConfigFile(t, "controller.yaml", "{}")
		_, err := LoadConfig(path)
		assert.ErrorContains(t, err, ".json extension")
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json"))
		assert.ErrorContains(t, err, "failed to stat")
	})

	t.Run("malformed JSON", func(t *testing.T) {
		t.Parallel()
		path := writeConfigFile(t, "bad.json", "{not json")
		_, err := LoadConfig(path)
		assert.ErrorContains(t, err, "failed to parse")
	})
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     *Config
		wantErr string
	}{
		{
			name: "empty is valid",
			cfg:  EmptyConfig(),
		},
		{
			name:    "bad units",
			cfg:     &Config{Units: ptrString("furlongs")},
			wantErr: "invalid units",
		},
		{
			name:    "bad stats interval",
			cfg:     &Config{StatsInterval: ptrString("often")},
			wantErr: "invalid stats_interval",
		},
		{
			name:    "bad serial parity",
			cfg:     &Config{Parity: ptrString("maybe")},
			wantErr: "invalid serial options",
		},
		{
			name:    "prox table without dist table",
			cfg:     &Config{ProxTable: []uint16{100, 0}},
			wantErr: "given together",
		},
		{
			name: "ascending prox table",
			cfg: &Config{
				ProxTable: []uint16{0, 100},
				DistTable: []uint16{0, 10},
			},
			wantErr: "invalid calibration table",
		},
		{
			name: "inverted thresholds",
			cfg: &Config{Sensors: []SensorEntry{
				{ProxMin: ptrInt(40), ProxMax: ptrInt(10)},
			}},
			wantErr: "must be below",
		},
		{
			name: "collapsed hysteresis band",
			cfg: &Config{Sensors: []SensorEntry{
				{ProxMin: ptrInt(10), ProxMax: ptrInt(10)},
			}},
			wantErr: "must be below",
		},
		{
			name: "duplicate sensor index",
			cfg: &Config{Sensors: []SensorEntry{
				{Index: ptrInt(0)},
				{Index: ptrInt(0)},
			}},
			wantErr: "duplicate sensor index",
		},
		{
			name: "index out of range",
			cfg: &Config{Sensors: []SensorEntry{
				{Index: ptrInt(300)},
			}},
			wantErr: "out of range",
		},
		{
			name: "threshold above 16 bits",
			cfg: &Config{Sensors: []SensorEntry{
				{ProxMin: ptrInt(10), ProxMax: ptrInt(70000)},
			}},
			wantErr: "16-bit range",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}

func TestGetPortOptions(t *testing.T) {
	t.Parallel()
	cfg := &Config{
		BaudRate: ptrInt(9600),
		DataBits: ptrInt(7),
		StopBits: ptrInt(2),
		Parity:   ptrString("even"),
	}
	opts, err := cfg.GetPortOptions().Normalize()
	require.NoError(t, err)
	want := serialmux.PortOptions{
		BaudRate: 9600,
		DataBits: 7,
		StopBits: 2,
		Parity:   "even",
	}
	if diff := cmp.Diff(want, opts); diff != "" {
		t.Errorf("port options mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildSensorsDefault(t *testing.T) {
	t.Parallel()
	sensors := EmptyConfig().BuildSensors()
	require.Len(t, sensors, 1)
	assert.Equal(t, uint8(0), sensors[0].Index())
	assert.Equal(t, uint16(50), sensors[0].ExitThreshold())
	assert.Equal(t, uint16(200), sensors[0].EnterThreshold())
}

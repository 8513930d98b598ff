// Package config loads the controller configuration. The schema uses
// pointer fields so a partial JSON file inherits defaults for everything it
// omits; the Get* accessors supply those defaults.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Kelvin-Chan/arduino-vishay-controller/internal/sensor"
	"github.com/Kelvin-Chan/arduino-vishay-controller/internal/serialmux"
	"github.com/Kelvin-Chan/arduino-vishay-controller/internal/units"
)

// SensorEntry configures one sensor position on the bridge.
type SensorEntry struct {
	Index *int `json:"index,omitempty"`
	// ProxMin is the hysteresis exit threshold in proximity counts.
	ProxMin *int `json:"prox_min,omitempty"`
	// ProxMax is the hysteresis enter threshold in proximity counts.
	ProxMax *int `json:"prox_max,omitempty"`
}

// Config is the root controller configuration. The schema matches the JSON
// accepted on disk; fields omitted from the file retain their defaults, so
// partial configs are safe.
type Config struct {
	Listen     *string `json:"listen,omitempty"`
	SerialPort *string `json:"serial_port,omitempty"`
	BaudRate   *int    `json:"baud_rate,omitempty"`
	DataBits   *int    `json:"data_bits,omitempty"`
	StopBits   *int    `json:"stop_bits,omitempty"`
	Parity     *string `json:"parity,omitempty"`

	DBPath *string `json:"db_path,omitempty"`
	Units  *string `json:"units,omitempty"`

	// StatsInterval is a duration string like "10s".
	StatsInterval *string `json:"stats_interval,omitempty"`

	Sensors []SensorEntry `json:"sensors,omitempty"`

	// Calibration columns shared by all sensors; both or neither must be
	// given.
	ProxTable []uint16 `json:"prox_table,omitempty"`
	DistTable []uint16 `json:"dist_table,omitempty"`
}

// Helper functions to create pointers
func ptrString(v string) *string { return &v }
func ptrInt(v int) *int          { return &v }

// EmptyConfig returns a Config with all fields set to nil.
func EmptyConfig() *Config {
	return &Config{}
}

// LoadConfig loads a Config from a JSON file. The file is validated to
// ensure it has a .json extension and is under the max file size.
func LoadConfig(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *Config) Validate() error {
	if c.Units != nil && !units.IsValid(*c.Units) {
		return fmt.Errorf("invalid units %q: valid values are %s", *c.Units, units.GetValidUnitsString())
	}

	if c.StatsInterval != nil && *c.StatsInterval != "" {
		if _, err := time.ParseDuration(*c.StatsInterval); err != nil {
			return fmt.Errorf("invalid stats_interval '%s': %w", *c.StatsInterval, err)
		}
	}

	if _, err := c.GetPortOptions().Normalize(); err != nil {
		return fmt.Errorf("invalid serial options: %w", err)
	}

	if (c.ProxTable == nil) != (c.DistTable == nil) {
		return fmt.Errorf("prox_table and dist_table must be given together")
	}
	if c.ProxTable != nil {
		table := sensor.CalibrationTable{Prox: c.ProxTable, Dist: c.DistTable}
		if err := table.Validate(); err != nil {
			return fmt.Errorf("invalid calibration table: %w", err)
		}
	}

	seen := map[int]bool{}
	for i, entry := range c.Sensors {
		index := entry.GetIndex(i)
		if index < 0 || index > 255 {
			return fmt.Errorf("sensor %d: index %d out of range", i, index)
		}
		if seen[index] {
			return fmt.Errorf("duplicate sensor index %d", index)
		}
		seen[index] = true

		min, max := entry.GetProxMin(), entry.GetProxMax()
		if min < 0 || min > 65535 || max < 0 || max > 65535 {
			return fmt.Errorf("sensor %d: thresholds out of the 16-bit range", index)
		}
		// Equal or inverted thresholds collapse the hysteresis band and make
		// the presence flag chatter at the boundary.
		if min >= max {
			return fmt.Errorf("sensor %d: prox_min %d must be below prox_max %d", index, min, max)
		}
	}

	return nil
}

// GetListen returns the HTTP listen address or the default.
func (c *Config) GetListen() string {
	if c.Listen == nil || *c.Listen == "" {
		return ":8080"
	}
	return *c.Listen
}

// GetSerialPort returns the serial device path or the default.
func (c *Config) GetSerialPort() string {
	if c.SerialPort == nil || *c.SerialPort == "" {
		return "/dev/ttyACM0"
	}
	return *c.SerialPort
}

// GetPortOptions assembles the serial port options from the config.
func (c *Config) GetPortOptions() serialmux.PortOptions {
	opts := serialmux.PortOptions{}
	if c.BaudRate != nil {
		opts.BaudRate = *c.BaudRate
	}
	if c.DataBits != nil {
		opts.DataBits = *c.DataBits
	}
	if c.StopBits != nil {
		opts.StopBits = *c.StopBits
	}
	if c.Parity != nil {
		opts.Parity = *c.Parity
	}
	return opts
}

// GetDBPath returns the sqlite database path or the default.
func (c *Config) GetDBPath() string {
	if c.DBPath == nil || *c.DBPath == "" {
		return "sensor_data.db"
	}
	return *c.DBPath
}

// GetUnits returns the display units or the default.
func (c *Config) GetUnits() string {
	if c.Units == nil || *c.Units == "" {
		return units.CM
	}
	return *c.Units
}

// GetStatsInterval parses and returns the StatsInterval as a time.Duration.
func (c *Config) GetStatsInterval() time.Duration {
	if c.StatsInterval == nil || *c.StatsInterval == "" {
		return 10 * time.Second // default
	}
	d, err := time.ParseDuration(*c.StatsInterval)
	if err != nil {
		return 10 * time.Second // default on parse error
	}
	return d
}

// GetCalibrationTable returns the configured calibration table, or the stock
// table when none is given.
func (c *Config) GetCalibrationTable() sensor.CalibrationTable {
	if c.ProxTable == nil {
		return sensor.DefaultCalibrationTable()
	}
	return sensor.CalibrationTable{Prox: c.ProxTable, Dist: c.DistTable}
}

// GetIndex returns the entry's index, defaulting to its position in the
// sensors list.
func (e SensorEntry) GetIndex(position int) int {
	if e.Index == nil {
		return position
	}
	return *e.Index
}

// GetProxMin returns the hysteresis exit threshold or the default.
func (e SensorEntry) GetProxMin() int {
	if e.ProxMin == nil {
		return 50
	}
	return *e.ProxMin
}

// GetProxMax returns the hysteresis enter threshold or the default.
func (e SensorEntry) GetProxMax() int {
	if e.ProxMax == nil {
		return 200
	}
	return *e.ProxMax
}

// BuildSensors constructs the sensor bank from the configuration. With no
// sensors configured, a single sensor at index 0 with default thresholds is
// returned. Call Validate first; BuildSensors assumes a valid config.
func (c *Config) BuildSensors() []*sensor.Sensor {
	table := c.GetCalibrationTable()

	entries := c.Sensors
	if len(entries) == 0 {
		entries = []SensorEntry{{}}
	}

	sensors := make([]*sensor.Sensor, 0, len(entries))
	for i, entry := range entries {
		sensors = append(sensors, sensor.New(
			uint8(entry.GetIndex(i)),
			uint16(entry.GetProxMin()),
			uint16(entry.GetProxMax()),
			table,
		))
	}
	return sensors
}

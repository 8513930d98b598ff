package serialmux

import "strings"

// Bare commands the Arduino bridge accepts without an argument.
var allowedCommands = []string{
	"?",  // Query bridge information (firmware, sensor count)
	"V?", // Read firmware version
	"N?", // Read attached sensor count
	"C?", // Read bridge clock (ms since power-on)
	"T?", // Read current calibration table index per sensor
	"S",  // Start streaming PS/ALS readings
	"P",  // Pause streaming
	"X",  // Soft-reset bridge and attached sensors
	"A!", // Save current configuration to bridge EEPROM
	"A.", // Restore configuration from bridge EEPROM
}

// Assignment command prefixes; the value after '=' is device-validated.
var allowedCommandPrefixes = []string{
	"R=", // Sample rate in Hz (1-400)
	"L=", // VCNL IRED drive current in mA (50-200)
	"I=", // Proximity integration time (1T-8T)
	"G=", // ALS gain setting
	"B=", // UART baud rate
}

// IsAllowedCommand reports whether command is in the bridge command set.
// The admin console checks this before writing to the port so a typo cannot
// wedge the bridge's command parser mid-stream.
func IsAllowedCommand(command string) bool {
	for _, c := range allowedCommands {
		if command == c {
			return true
		}
	}
	for _, p := range allowedCommandPrefixes {
		if strings.HasPrefix(command, p) && len(command) > len(p) {
			return true
		}
	}
	return false
}

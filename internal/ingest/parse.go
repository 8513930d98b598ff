// Package ingest turns the bridge's serial line stream into sensor updates,
// stored samples, and presence events.
package ingest

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Payload classifications for lines arriving from the bridge.
const (
	EventTypeReading = "reading"
	EventTypeStatus  = "status"
	EventTypeUnknown = "unknown"
)

// ClassifyPayload inspects a payload string and returns a simple event type
// token. Reading lines are CSV with a fixed "PS" tag; everything the bridge
// says about itself (command acknowledgements, boot banner) is JSON.
func ClassifyPayload(payload string) string {
	if strings.HasPrefix(payload, "PS,") {
		return EventTypeReading
	}
	if strings.HasPrefix(payload, "{") {
		return EventTypeStatus
	}
	return EventTypeUnknown
}

// Sample is one raw reading pair from one sensor on the bridge.
type Sample struct {
	SensorIndex uint8
	Proximity   uint16
	Ambient     uint16
}

// ParseReading parses a "PS,<index>,<proximity>,<ambient>" line. Values are
// range checked against the sensor's 16-bit registers.
func ParseReading(line string) (Sample, error) {
	segments := strings.Split(line, ",")
	if len(segments) != 4 || segments[0] != "PS" {
		return Sample{}, fmt.Errorf("malformed reading line %q", line)
	}

	index, err := strconv.ParseUint(strings.TrimSpace(segments[1]), 10, 8)
	if err != nil {
		return Sample{}, fmt.Errorf("failed to parse sensor index: %v", err)
	}
	ps, err := strconv.ParseUint(strings.TrimSpace(segments[2]), 10, 16)
	if err != nil {
		return Sample{}, fmt.Errorf("failed to parse proximity: %v", err)
	}
	als, err := strconv.ParseUint(strings.TrimSpace(segments[3]), 10, 16)
	if err != nil {
		return Sample{}, fmt.Errorf("failed to parse ambient: %v", err)
	}

	return Sample{
		SensorIndex: uint8(index),
		Proximity:   uint16(ps),
		Ambient:     uint16(als),
	}, nil
}

// BridgeStatus is the JSON status line the bridge emits at boot and in
// response to commands.
type BridgeStatus struct {
	Clock   float64 `json:"clock"`
	Rate    int     `json:"rate"`
	Sensors int     `json:"sensors"`
	Error   string  `json:"error"`
}

// ParseStatus parses a JSON status payload.
func ParseStatus(payload string) (BridgeStatus, error) {
	var s BridgeStatus
	if err := json.Unmarshal([]byte(payload), &s); err != nil {
		return BridgeStatus{}, fmt.Errorf("failed to unmarshal JSON: %v", err)
	}
	return s, nil
}

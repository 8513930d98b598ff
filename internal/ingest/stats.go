package ingest

import (
	"fmt"
	"sync"
	"time"

	"github.com/Kelvin-Chan/arduino-vishay-controller/internal/monitoring"
	"github.com/Kelvin-Chan/arduino-vishay-controller/internal/timeutil"
)

// LineStats tracks bridge stream statistics with thread-safe operations.
type LineStats struct {
	mu            sync.Mutex
	clock         timeutil.Clock
	lineCount     int64
	sampleCount   int64
	parseErrCount int64
	eventCount    int64
	lastReset     time.Time
}

// NewLineStats creates a new LineStats instance.
func NewLineStats(clock timeutil.Clock) *LineStats {
	return &LineStats{
		clock:     clock,
		lastReset: clock.Now(),
	}
}

// AddLine increments the raw line count.
func (ls *LineStats) AddLine() {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.lineCount++
}

// AddSample increments the parsed sample count.
func (ls *LineStats) AddSample() {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.sampleCount++
}

// AddParseError increments the unparseable line count.
func (ls *LineStats) AddParseError() {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.parseErrCount++
}

// AddEvent increments the presence event count.
func (ls *LineStats) AddEvent() {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.eventCount++
}

// GetAndReset returns current stats and resets counters.
func (ls *LineStats) GetAndReset() (lines, samples, parseErrs, events int64, duration time.Duration) {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	now := ls.clock.Now()
	duration = now.Sub(ls.lastReset)
	lines = ls.lineCount
	samples = ls.sampleCount
	parseErrs = ls.parseErrCount
	events = ls.eventCount

	ls.lineCount = 0
	ls.sampleCount = 0
	ls.parseErrCount = 0
	ls.eventCount = 0
	ls.lastReset = now

	return
}

// LogStats logs formatted statistics for the interval since the last reset.
func (ls *LineStats) LogStats() {
	lines, samples, parseErrs, events, duration := ls.GetAndReset()
	if lines == 0 && parseErrs == 0 {
		return
	}

	linesPerSec := float64(lines) / duration.Seconds()
	samplesPerSec := float64(samples) / duration.Seconds()

	logMsg := fmt.Sprintf("Bridge stats (/sec): %.1f lines, %.1f samples", linesPerSec, samplesPerSec)
	if events > 0 {
		logMsg += fmt.Sprintf(", %d presence events", events)
	}
	if parseErrs > 0 {
		logMsg += fmt.Sprintf(", %d parse errors", parseErrs)
	}

	monitoring.Logf("%s", logMsg)
}

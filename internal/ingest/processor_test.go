package ingest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kelvin-Chan/arduino-vishay-controller/internal/db"
	"github.com/Kelvin-Chan/arduino-vishay-controller/internal/sensor"
	"github.com/Kelvin-Chan/arduino-vishay-controller/internal/serialmux"
	"github.com/Kelvin-Chan/arduino-vishay-controller/internal/timeutil"
)

// fakeRecorder collects records in memory.
type fakeRecorder struct {
	mu      sync.Mutex
	samples []db.Sample
	events  []db.PresenceEvent
	fail    bool
}

func (f *fakeRecorder) RecordSample(s db.Sample) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return fmt.Errorf("recorder unavailable")
	}
	f.samples = append(f.samples, s)
	return nil
}

func (f *fakeRecorder) RecordPresenceEvent(e db.PresenceEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return fmt.Errorf("recorder unavailable")
	}
	f.events = append(f.events, e)
	return nil
}

func (f *fakeRecorder) recorded() ([]db.Sample, []db.PresenceEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]db.Sample(nil), f.samples...), append([]db.PresenceEvent(nil), f.events...)
}

func testTable() sensor.CalibrationTable {
	return sensor.CalibrationTable{
		Prox: []uint16{30, 20, 10, 0},
		Dist: []uint16{30, 20, 10, 0},
	}
}

func newTestProcessor(rec Recorder) (*Processor, *timeutil.FakeClock) {
	clock := timeutil.NewFakeClock(time.Date(2021, 1, 29, 0, 0, 0, 0, time.UTC))
	sensors := []*sensor.Sensor{
		sensor.New(0, 5, 10, testTable()),
		sensor.New(1, 5, 10, testTable()),
	}
	return NewProcessor(sensors, rec, clock), clock
}

func TestHandleLineRecordsSamples(t *testing.T) {
	t.Parallel()

	rec := &fakeRecorder{}
	p, clock := newTestProcessor(rec)

	require.NoError(t, p.HandleLine("PS,0,25,50"))
	clock.Advance(10 * time.Millisecond)
	require.NoError(t, p.HandleLine("PS,1,7,60"))

	samples, events := rec.recorded()
	require.Len(t, samples, 2)
	// Sensor 0 entered proximity on its first sample (25 >= 10); sensor 1
	// stayed in the hysteresis band.
	require.Len(t, events, 1)
	assert.Equal(t, db.EventEnter, events[0].Type)

	first := samples[0]
	assert.Equal(t, uint8(0), first.SensorIndex)
	assert.Equal(t, uint16(25), first.Proximity)
	assert.Equal(t, uint16(50), first.Ambient)
	assert.Equal(t, uint16(25), first.ProximityMean)
	assert.InDelta(t, 25.0, first.DistanceCM, 1e-12)
	assert.True(t, first.InProximity)
	assert.Equal(t, time.Date(2021, 1, 29, 0, 0, 0, 0, time.UTC), first.Timestamp)

	assert.Equal(t, samples[1].Timestamp, first.Timestamp.Add(10*time.Millisecond))
}

func TestHandleLinePresenceEvents(t *testing.T) {
	t.Parallel()

	rec := &fakeRecorder{}
	p, _ := newTestProcessor(rec)

	for _, line := range []string{
		"PS,0,0,50",  // idle
		"PS,0,12,50", // enter
		"PS,0,12,50", // hold
		"PS,0,4,50",  // exit
	} {
		require.NoError(t, p.HandleLine(line))
	}

	_, events := rec.recorded()
	require.Len(t, events, 2)
	assert.Equal(t, db.EventEnter, events[0].Type)
	assert.Equal(t, uint16(12), events[0].Proximity)
	assert.Equal(t, db.EventExit, events[1].Type)
	assert.NotEmpty(t, events[0].EventID)
	assert.NotEqual(t, events[0].EventID, events[1].EventID)
}

func TestHandleLineBlockedEvents(t *testing.T) {
	t.Parallel()

	rec := &fakeRecorder{}
	p, _ := newTestProcessor(rec)

	// Dead ambient channel, then an enter: blocked fires with the enter.
	for i := 0; i < 30; i++ {
		require.NoError(t, p.HandleLine("PS,0,0,0"))
	}
	require.NoError(t, p.HandleLine("PS,0,100,0"))
	require.NoError(t, p.HandleLine("PS,0,2,0"))

	_, events := rec.recorded()
	var types []string
	for _, e := range events {
		types = append(types, e.Type)
	}
	assert.Equal(t, []string{db.EventEnter, db.EventBlocked, db.EventExit, db.EventUnblocked}, types)
}

func TestHandleLineErrors(t *testing.T) {
	t.Parallel()

	t.Run("unknown sensor index", func(t *testing.T) {
		t.Parallel()
		p, _ := newTestProcessor(&fakeRecorder{})
		assert.ErrorContains(t, p.HandleLine("PS,9,100,50"), "unconfigured sensor")
	})

	t.Run("garbage line", func(t *testing.T) {
		t.Parallel()
		p, _ := newTestProcessor(&fakeRecorder{})
		assert.Error(t, p.HandleLine("not a reading"))
	})

	t.Run("bridge status line is accepted", func(t *testing.T) {
		t.Parallel()
		p, _ := newTestProcessor(&fakeRecorder{})
		assert.NoError(t, p.HandleLine(`{"clock":1.5,"rate":100,"sensors":2}`))
	})

	t.Run("recorder failure surfaces", func(t *testing.T) {
		t.Parallel()
		p, _ := newTestProcessor(&fakeRecorder{fail: true})
		assert.ErrorContains(t, p.HandleLine("PS,0,100,50"), "failed to record sample")
	})

	t.Run("nil recorder still updates sensors", func(t *testing.T) {
		t.Parallel()
		p, _ := newTestProcessor(nil)
		require.NoError(t, p.HandleLine("PS,0,25,50"))
		snap, ok := p.Snapshot(0)
		require.True(t, ok)
		assert.Equal(t, uint32(1), snap.SampleCount)
	})
}

func TestSnapshots(t *testing.T) {
	t.Parallel()

	p, _ := newTestProcessor(nil)
	require.NoError(t, p.HandleLine("PS,1,25,50"))

	snaps := p.Snapshots()
	require.Len(t, snaps, 2)
	assert.Equal(t, uint8(0), snaps[0].Index)
	assert.Equal(t, uint8(1), snaps[1].Index)
	assert.Equal(t, uint32(0), snaps[0].SampleCount)
	assert.Equal(t, uint32(1), snaps[1].SampleCount)

	_, ok := p.Snapshot(9)
	assert.False(t, ok)
}

func TestResetSensor(t *testing.T) {
	t.Parallel()

	p, _ := newTestProcessor(nil)
	require.NoError(t, p.HandleLine("PS,0,25,50"))

	require.True(t, p.ResetSensor(0))
	snap, ok := p.Snapshot(0)
	require.True(t, ok)
	assert.Zero(t, snap.SampleCount)
	assert.Zero(t, snap.ProximityMean)

	assert.False(t, p.ResetSensor(9))
}

func TestRunConsumesSubscription(t *testing.T) {
	t.Parallel()

	rec := &fakeRecorder{}
	p, _ := newTestProcessor(rec)

	mux := serialmux.NewSerialMux(serialmux.NewMockSerialPort([]byte("PS,0,25,50\nPS,0,30,50\n")))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	monitorDone := make(chan error, 1)
	runDone := make(chan error, 1)
	go func() { runDone <- p.Run(ctx, mux, time.Minute) }()
	// Give Run a moment to subscribe before the monitor starts fanning out.
	time.Sleep(50 * time.Millisecond)
	go func() { monitorDone <- mux.Monitor(ctx) }()

	// The fan-out drops lines for slow receivers, so only the first line is
	// guaranteed to land.
	require.Eventually(t, func() bool {
		samples, _ := rec.recorded()
		return len(samples) >= 1
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-runDone, context.Canceled)
	<-monitorDone
}

func TestLineStats(t *testing.T) {
	t.Parallel()

	clock := timeutil.NewFakeClock(time.Unix(0, 0))
	ls := NewLineStats(clock)

	ls.AddLine()
	ls.AddLine()
	ls.AddSample()
	ls.AddParseError()
	ls.AddEvent()

	clock.Advance(2 * time.Second)
	lines, samples, parseErrs, events, duration := ls.GetAndReset()
	assert.Equal(t, int64(2), lines)
	assert.Equal(t, int64(1), samples)
	assert.Equal(t, int64(1), parseErrs)
	assert.Equal(t, int64(1), events)
	assert.Equal(t, 2*time.Second, duration)

	// Counters reset after read.
	lines, samples, parseErrs, events, _ = ls.GetAndReset()
	assert.Zero(t, lines)
	assert.Zero(t, samples)
	assert.Zero(t, parseErrs)
	assert.Zero(t, events)
}

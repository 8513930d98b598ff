package ingest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Kelvin-Chan/arduino-vishay-controller/internal/db"
	"github.com/Kelvin-Chan/arduino-vishay-controller/internal/monitoring"
	"github.com/Kelvin-Chan/arduino-vishay-controller/internal/sensor"
	"github.com/Kelvin-Chan/arduino-vishay-controller/internal/serialmux"
	"github.com/Kelvin-Chan/arduino-vishay-controller/internal/timeutil"
)

// Recorder persists conditioned output. *db.DB implements it; tests use an
// in-memory fake. A nil Recorder disables persistence (replay tooling).
type Recorder interface {
	RecordSample(db.Sample) error
	RecordPresenceEvent(db.PresenceEvent) error
}

// Snapshot is a read-only copy of one sensor's derived state, safe to hand
// to HTTP handlers while the processor keeps updating the sensor.
type Snapshot struct {
	Index         uint8   `json:"index"`
	SampleCount   uint32  `json:"sample_count"`
	ProximityMean uint16  `json:"proximity_mean"`
	ProximityStd  float64 `json:"proximity_std"`
	AmbientMean   uint16  `json:"ambient_mean"`
	AmbientStd    float64 `json:"ambient_std"`
	DistanceCM    float64 `json:"distance_cm"`
	InProximity   bool    `json:"in_proximity"`
	IsBlocked     bool    `json:"is_blocked"`
}

// Processor owns the sensor bank and is its only writer: every serial line
// flows through HandleLine, which serializes updates per the sensors'
// single-writer contract. The mutex exists so snapshot readers see a
// consistent state, not to allow concurrent writers.
type Processor struct {
	mu      sync.Mutex
	sensors map[uint8]*sensor.Sensor
	rec     Recorder
	clock   timeutil.Clock
	stats   *LineStats
}

// NewProcessor creates a Processor over the given sensor bank.
func NewProcessor(sensors []*sensor.Sensor, rec Recorder, clock timeutil.Clock) *Processor {
	bank := make(map[uint8]*sensor.Sensor, len(sensors))
	for _, s := range sensors {
		bank[s.Index()] = s
	}
	return &Processor{
		sensors: bank,
		rec:     rec,
		clock:   clock,
		stats:   NewLineStats(clock),
	}
}

// Stats exposes the stream counters for the Run loop's periodic logging.
func (p *Processor) Stats() *LineStats {
	return p.stats
}

// HandleLine processes one line from the bridge.
func (p *Processor) HandleLine(line string) error {
	p.stats.AddLine()

	switch ClassifyPayload(line) {
	case EventTypeReading:
		s, err := ParseReading(line)
		if err != nil {
			p.stats.AddParseError()
			return err
		}
		return p.handleReading(s)

	case EventTypeStatus:
		status, err := ParseStatus(line)
		if err != nil {
			p.stats.AddParseError()
			return err
		}
		if status.Error != "" {
			monitoring.Logf("bridge reported error: %s", status.Error)
		} else {
			monitoring.Logf("bridge status: %+v", status)
		}
		return nil

	default:
		p.stats.AddParseError()
		return fmt.Errorf("unrecognized payload %q", line)
	}
}

func (p *Processor) handleReading(in Sample) error {
	p.mu.Lock()
	s, ok := p.sensors[in.SensorIndex]
	if !ok {
		p.mu.Unlock()
		p.stats.AddParseError()
		return fmt.Errorf("reading for unconfigured sensor index %d", in.SensorIndex)
	}

	wasInProximity := s.InProximity()
	wasBlocked := s.IsBlocked()

	s.Update(in.Proximity, in.Ambient)

	now := p.clock.Now()
	record := db.Sample{
		SensorIndex:   s.Index(),
		Proximity:     in.Proximity,
		Ambient:       in.Ambient,
		ProximityMean: s.ProximityMean(),
		ProximityStd:  s.ProximityStd(),
		AmbientMean:   s.AmbientMean(),
		AmbientStd:    s.AmbientStd(),
		DistanceCM:    s.EstimatedDistance(),
		InProximity:   s.InProximity(),
		IsBlocked:     s.IsBlocked(),
		Timestamp:     now,
	}

	var events []db.PresenceEvent
	appendEvent := func(eventType string) {
		events = append(events, db.PresenceEvent{
			EventID:     uuid.NewString(),
			SensorIndex: s.Index(),
			Type:        eventType,
			Proximity:   in.Proximity,
			DistanceCM:  s.EstimatedDistance(),
			Timestamp:   now,
		})
	}
	if !wasInProximity && s.InProximity() {
		appendEvent(db.EventEnter)
	} else if wasInProximity && !s.InProximity() {
		appendEvent(db.EventExit)
	}
	if !wasBlocked && s.IsBlocked() {
		appendEvent(db.EventBlocked)
	} else if wasBlocked && !s.IsBlocked() {
		appendEvent(db.EventUnblocked)
	}
	p.mu.Unlock()

	p.stats.AddSample()
	for _, e := range events {
		p.stats.AddEvent()
		monitoring.Logf("sensor %d %s (ps=%d, distance %.1f cm)", e.SensorIndex, e.Type, e.Proximity, e.DistanceCM)
	}

	if p.rec == nil {
		return nil
	}
	if err := p.rec.RecordSample(record); err != nil {
		return fmt.Errorf("failed to record sample: %w", err)
	}
	for _, e := range events {
		if err := p.rec.RecordPresenceEvent(e); err != nil {
			return fmt.Errorf("failed to record presence event: %w", err)
		}
	}
	return nil
}

// Snapshot returns a copy of one sensor's state.
func (p *Processor) Snapshot(index uint8) (Snapshot, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.sensors[index]
	if !ok {
		return Snapshot{}, false
	}
	return snapshotOf(s), true
}

// Snapshots returns copies of every sensor's state, ordered by index.
func (p *Processor) Snapshots() []Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Snapshot, 0, len(p.sensors))
	for _, s := range p.sensors {
		out = append(out, snapshotOf(s))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// ResetSensor zeroes one sensor's statistical state. Reports whether the
// index exists.
func (p *Processor) ResetSensor(index uint8) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.sensors[index]
	if !ok {
		return false
	}
	s.Reset()
	return true
}

func snapshotOf(s *sensor.Sensor) Snapshot {
	return Snapshot{
		Index:         s.Index(),
		SampleCount:   s.SampleCount(),
		ProximityMean: s.ProximityMean(),
		ProximityStd:  s.ProximityStd(),
		AmbientMean:   s.AmbientMean(),
		AmbientStd:    s.AmbientStd(),
		DistanceCM:    s.EstimatedDistance(),
		InProximity:   s.InProximity(),
		IsBlocked:     s.IsBlocked(),
	}
}

// Run subscribes to the serial mux and processes lines until the context is
// cancelled, logging stream statistics every statsInterval.
func (p *Processor) Run(ctx context.Context, m serialmux.SerialMuxInterface, statsInterval time.Duration) error {
	id, lines := m.Subscribe()
	defer m.Unsubscribe(id)

	ticker := p.clock.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if err := p.HandleLine(line); err != nil {
				monitoring.Logf("error handling line: %v", err)
			}

		case <-ticker.C():
			p.stats.LogStats()

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Package sensor implements the signal conditioning core for Vishay
// VCNL-series IR proximity / ambient-light sensors. It turns the raw
// (proximity, ambient) sample stream from the sensor bridge into windowed
// statistics, a hysteresis-gated presence flag, a blocked-sensor flag, and a
// distance estimate.
//
// A Sensor is a plain mutable value with exactly one writer: all fields are
// bounded, there is no allocation after construction, and Update performs a
// fixed amount of arithmetic per sample. Callers that expose sensor state to
// other goroutines must serialize access themselves.
package sensor

import "math"

const (
	// HistoryLen is the capacity of the per-channel sample history.
	HistoryLen = 50

	// PSWindow is the number of recent proximity samples used for the
	// proximity mean and standard deviation.
	PSWindow = 25

	// ALSWindow is the number of recent ambient-light samples used for the
	// ambient mean and standard deviation.
	ALSWindow = 25
)

// Sensor holds the conditioning state for one physical sensor. The zero
// value is not usable; construct with New.
type Sensor struct {
	index       uint8
	sampleCount uint32

	// Calibration tables, borrowed from the caller for the lifetime of the
	// sensor. Never mutated here.
	proxTable []uint16
	distTable []uint16

	psHist  [HistoryLen]uint16
	alsHist [HistoryLen]uint16

	psWindowSum  uint32
	alsWindowSum uint32

	psMean  uint16
	psSTD   float64
	alsMean uint16
	alsSTD  float64

	estimatedDistance float64

	psProxMin uint16 // hysteresis exit threshold
	psProxMax uint16 // hysteresis enter threshold

	inProximity bool
	isBlocked   bool
}

// New creates a Sensor with the given identity, hysteresis thresholds, and
// calibration table, and resets its statistical state. The thresholds and
// table reference are immutable for the sensor's lifetime.
//
// proxMin is the exit threshold and proxMax the enter threshold; callers
// must supply proxMin < proxMax and a valid table (see
// CalibrationTable.Validate) — neither is checked here.
func New(index uint8, proxMin, proxMax uint16, table CalibrationTable) *Sensor {
	s := &Sensor{
		index:     index,
		psProxMin: proxMin,
		psProxMax: proxMax,
		proxTable: table.Prox,
		distTable: table.Dist,
	}
	s.Reset()
	return s
}

// Reset zeroes the sample count, window sums, histories, derived statistics,
// and both flags. Identity, thresholds, and the calibration table are
// preserved.
func (s *Sensor) Reset() {
	s.sampleCount = 0
	s.psMean = 0
	s.psSTD = 0
	s.alsMean = 0
	s.alsSTD = 0
	s.estimatedDistance = 0
	s.inProximity = false
	s.isBlocked = false
	s.psWindowSum = 0
	s.alsWindowSum = 0
	s.psHist = [HistoryLen]uint16{}
	s.alsHist = [HistoryLen]uint16{}
}

// Update folds one (proximity, ambient) sample pair into the sensor state:
// window sums, history, means, standard deviations, estimated distance, then
// the presence and blocked flags, in that fixed order.
//
// The standard deviation is recomputed by rescanning the active window on
// every update rather than incrementally. The rescan accumulates squared
// deviations from the floating point mean, not the truncated one, which
// keeps it exact when the window contents are identical.
func (s *Sensor) Update(psVal, alsVal uint16) {
	// Roll the proximity window sum. Until the window fills, samples only
	// accumulate; afterwards the sample leaving the window is still resident
	// in the history (HistoryLen >= PSWindow) and is subtracted out.
	if s.sampleCount < PSWindow {
		s.psWindowSum += uint32(psVal)
	} else {
		evict := (s.sampleCount - PSWindow) % HistoryLen
		s.psWindowSum -= uint32(s.psHist[evict])
		s.psWindowSum += uint32(psVal)
	}

	// Roll the ambient window sum the same way.
	if s.sampleCount < ALSWindow {
		s.alsWindowSum += uint32(alsVal)
	} else {
		evict := (s.sampleCount - ALSWindow) % HistoryLen
		s.alsWindowSum -= uint32(s.alsHist[evict])
		s.alsWindowSum += uint32(alsVal)
	}

	// Store the new samples in the circular history.
	slot := s.sampleCount % HistoryLen
	s.psHist[slot] = psVal
	s.alsHist[slot] = alsVal

	// Proximity mean over the filled portion of the window, truncated to the
	// channel's integer representation.
	var psMeanF float64
	if s.sampleCount+1 >= PSWindow {
		psMeanF = float64(s.psWindowSum) / PSWindow
	} else {
		psMeanF = float64(s.psWindowSum) / float64(s.sampleCount+1)
	}
	s.psMean = uint16(math.Floor(psMeanF))

	// Distance is estimated from the truncated mean, before the flags are
	// evaluated.
	s.estimatedDistance = EstimateDistance(s.psMean, s.proxTable, s.distTable)

	s.psSTD = s.windowStd(&s.psHist, psMeanF, PSWindow)

	// Ambient mean over the filled portion of the window.
	var alsMeanF float64
	if s.sampleCount >= ALSWindow-1 {
		alsMeanF = float64(s.alsWindowSum) / ALSWindow
	} else {
		alsMeanF = float64(s.alsWindowSum) / float64(s.sampleCount+1)
	}
	s.alsMean = uint16(math.Floor(alsMeanF))

	s.alsSTD = s.windowStd(&s.alsHist, alsMeanF, ALSWindow)

	// Hysteresis gate on the raw sample, not the smoothed mean: exit at or
	// below psProxMin, enter at or above psProxMax, hold in between.
	if s.inProximity && psVal <= s.psProxMin {
		s.inProximity = false
	} else if !s.inProximity && psVal >= s.psProxMax {
		s.inProximity = true
	}

	// A target close enough to occlude the sensor kills all ambient light:
	// zero mean with zero variance while in proximity marks the sensor as
	// blocked. A genuine reflective object still shows ambient variation.
	if !s.isBlocked && s.inProximity && s.alsMean == 0 && s.alsSTD == 0 {
		s.isBlocked = true
	} else if s.isBlocked && !s.inProximity {
		s.isBlocked = false
	}

	s.sampleCount++
}

// windowStd rescans the most recent min(sampleCount+1, window) entries of a
// channel history and returns the population standard deviation around mean.
// Indices walk backwards from the sample just stored, wrapping modulo
// HistoryLen.
func (s *Sensor) windowStd(hist *[HistoryLen]uint16, mean float64, window int) float64 {
	var errorSum float64
	var i int
	for i = 0; i < window; i++ {
		if int(s.sampleCount)-i < 0 {
			break
		}
		slot := (int(s.sampleCount) - i) % HistoryLen
		errorSum += math.Pow(float64(hist[slot])-mean, 2)
	}
	return math.Sqrt(errorSum / float64(i))
}

// Index returns the sensor's position identifier.
func (s *Sensor) Index() uint8 { return s.index }

// SampleCount returns the number of samples processed since the last reset.
func (s *Sensor) SampleCount() uint32 { return s.sampleCount }

// ProximityMean returns the truncated windowed proximity mean.
func (s *Sensor) ProximityMean() uint16 { return s.psMean }

// ProximityStd returns the windowed proximity standard deviation.
func (s *Sensor) ProximityStd() float64 { return s.psSTD }

// AmbientMean returns the truncated windowed ambient-light mean.
func (s *Sensor) AmbientMean() uint16 { return s.alsMean }

// AmbientStd returns the windowed ambient-light standard deviation.
func (s *Sensor) AmbientStd() float64 { return s.alsSTD }

// EstimatedDistance returns the distance estimate in centimeters derived
// from the proximity mean.
func (s *Sensor) EstimatedDistance() float64 { return s.estimatedDistance }

// InProximity reports whether a target is within the hysteresis gate.
func (s *Sensor) InProximity() bool { return s.inProximity }

// IsBlocked reports whether the sensor appears physically obstructed.
func (s *Sensor) IsBlocked() bool { return s.isBlocked }

// ProximityWindowSum returns the rolling sum over the most recent
// min(sampleCount, PSWindow) proximity samples.
func (s *Sensor) ProximityWindowSum() uint32 { return s.psWindowSum }

// AmbientWindowSum returns the rolling sum over the most recent
// min(sampleCount, ALSWindow) ambient samples.
func (s *Sensor) AmbientWindowSum() uint32 { return s.alsWindowSum }

// ExitThreshold returns the hysteresis exit threshold (psProxMin).
func (s *Sensor) ExitThreshold() uint16 { return s.psProxMin }

// EnterThreshold returns the hysteresis enter threshold (psProxMax).
func (s *Sensor) EnterThreshold() uint16 { return s.psProxMax }

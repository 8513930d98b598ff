package sensor

import "fmt"

// CalibrationTable pairs a proximity threshold column with its distance
// column. Tables are produced externally (bench calibration against a target
// at known distances) and are read-only for the lifetime of a session; a
// Sensor borrows the slices without copying.
type CalibrationTable struct {
	// Prox holds proximity count thresholds, descending from index 0.
	Prox []uint16
	// Dist holds the distance in centimeters for each threshold.
	Dist []uint16
}

// DefaultCalibrationTable returns the stock table for the VCNL4035 demo rig:
// the reference distance column against an evenly spaced proximity column.
func DefaultCalibrationTable() CalibrationTable {
	prox := make([]uint16, len(DefaultDistanceTable))
	for i := range prox {
		// 16 evenly spaced thresholds from 3750 counts down to 0.
		prox[i] = uint16(250 * (len(prox) - 1 - i))
	}
	return CalibrationTable{Prox: prox, Dist: DefaultDistanceTable}
}

// Validate checks the structural contract the estimator relies on: parallel
// non-empty columns with the proximity column strictly descending. Sensors
// do not validate tables themselves; callers run this once at construction
// time.
func (t CalibrationTable) Validate() error {
	if len(t.Prox) == 0 {
		return fmt.Errorf("calibration table is empty")
	}
	if len(t.Prox) != len(t.Dist) {
		return fmt.Errorf("calibration columns differ in length: %d proximity vs %d distance entries",
			len(t.Prox), len(t.Dist))
	}
	for i := 1; i < len(t.Prox); i++ {
		if t.Prox[i] >= t.Prox[i-1] {
			return fmt.Errorf("proximity column not descending at index %d: %d >= %d",
				i, t.Prox[i], t.Prox[i-1])
		}
	}
	return nil
}

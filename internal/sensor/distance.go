package sensor

// DefaultDistanceTable is the reference distance column in centimeters. Each
// entry pairs with the proximity threshold at the same index of a
// calibration's proximity column.
var DefaultDistanceTable = []uint16{
	0, 2, 4, 6, 8,
	10, 12, 14, 16, 18,
	20, 22, 24, 26, 28,
	30,
}

// EstimateDistance maps a proximity reading to a distance in centimeters by
// piecewise-linear interpolation over the calibration columns. proxTable
// must be ordered by descending proximity threshold; distTable is the
// parallel distance column.
//
// Readings at or above the first threshold return distTable[0] directly;
// readings below every threshold return the last distance as a floor
// fallback. The function is pure and usable without a Sensor.
func EstimateDistance(psVal uint16, proxTable, distTable []uint16) float64 {
	n := len(proxTable)
	if len(distTable) < n {
		n = len(distTable)
	}

	for i := 0; i < n; i++ {
		if psVal >= proxTable[i] {
			if i == 0 {
				return float64(distTable[0])
			}
			// Interpolate between the bracketing calibration points.
			return float64(distTable[i-1]) +
				(float64(psVal)-float64(proxTable[i-1]))*
					(float64(distTable[i])-float64(distTable[i-1]))/
					(float64(proxTable[i])-float64(proxTable[i-1]))
		}
	}

	if n == 0 {
		return 0
	}
	return float64(distTable[n-1])
}

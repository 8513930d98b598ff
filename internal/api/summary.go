package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/Kelvin-Chan/arduino-vishay-controller/internal/units"
)

// SensorSummary aggregates the recently stored samples of one sensor.
// Distances are reported in the requested units; proximity and ambient
// figures stay in raw sensor counts.
type SensorSummary struct {
	SensorIndex   uint8   `json:"sensor_index"`
	SampleCount   int     `json:"sample_count"`
	ProximityMean float64 `json:"proximity_mean"`
	ProximityStd  float64 `json:"proximity_std"`
	AmbientMean   float64 `json:"ambient_mean"`
	AmbientStd    float64 `json:"ambient_std"`
	MinDistance   float64 `json:"min_distance"`
	MaxDistance   float64 `json:"max_distance"`
	P50Distance   float64 `json:"p50_distance"`
	P85Distance   float64 `json:"p85_distance"`
	P98Distance   float64 `json:"p98_distance"`
	Units         string  `json:"units"`
}

func (s *Server) showSensorSummary(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	index, err := pathSensorIndex(r)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	targetUnits, err := s.requestUnits(r)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	limit, err := parseLimit(r, 500, 5000)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	samples, err := s.db.RecentSamples(int(index), limit)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to retrieve samples: %v", err))
		return
	}
	if len(samples) == 0 {
		s.writeJSONError(w, http.StatusNotFound, fmt.Sprintf("No samples stored for sensor %d", index))
		return
	}

	proximity := make([]float64, len(samples))
	ambient := make([]float64, len(samples))
	distances := make([]float64, len(samples))
	for i, sample := range samples {
		proximity[i] = float64(sample.Proximity)
		ambient[i] = float64(sample.Ambient)
		distances[i] = units.ConvertDistance(sample.DistanceCM, targetUnits)
	}

	// stat.Quantile requires sorted input.
	sort.Float64s(distances)

	proxMean, proxStd := stat.MeanStdDev(proximity, nil)
	alsMean, alsStd := stat.MeanStdDev(ambient, nil)

	summary := SensorSummary{
		SensorIndex:   index,
		SampleCount:   len(samples),
		ProximityMean: proxMean,
		ProximityStd:  proxStd,
		AmbientMean:   alsMean,
		AmbientStd:    alsStd,
		MinDistance:   distances[0],
		MaxDistance:   distances[len(distances)-1],
		P50Distance:   stat.Quantile(0.50, stat.Empirical, distances, nil),
		P85Distance:   stat.Quantile(0.85, stat.Empirical, distances, nil),
		P98Distance:   stat.Quantile(0.98, stat.Empirical, distances, nil),
		Units:         targetUnits,
	}

	if err := json.NewEncoder(w).Encode(summary); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write summary")
		return
	}
}

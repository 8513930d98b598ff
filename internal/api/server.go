package api

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/Kelvin-Chan/arduino-vishay-controller/internal/db"
	"github.com/Kelvin-Chan/arduino-vishay-controller/internal/ingest"
	"github.com/Kelvin-Chan/arduino-vishay-controller/internal/sensor"
	"github.com/Kelvin-Chan/arduino-vishay-controller/internal/serialmux"
	"github.com/Kelvin-Chan/arduino-vishay-controller/internal/units"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

type Server struct {
	m         serialmux.SerialMuxInterface
	db        *db.DB
	processor *ingest.Processor
	units     string
}

func NewServer(m serialmux.SerialMuxInterface, database *db.DB, processor *ingest.Processor, units string) *Server {
	return &Server{
		m:         m,
		db:        database,
		processor: processor,
		units:     units,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400 && statusCode < 500:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 500:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/sensors", s.listSensors)
	mux.HandleFunc("/api/sensors/{index}", s.showSensor)
	mux.HandleFunc("/api/sensors/{index}/summary", s.showSensorSummary)
	mux.HandleFunc("/api/sensors/{index}/reset", s.resetSensor)
	mux.HandleFunc("/api/events", s.listEvents)
	mux.HandleFunc("/api/samples", s.listSamples)
	mux.HandleFunc("/api/distance", s.showDistance)
	mux.HandleFunc("/api/config", s.showConfig)
	mux.HandleFunc("/command", s.sendCommandHandler)
	return mux
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// requestUnits resolves the display units for a request. The query parameter
// overrides the server default.
func (s *Server) requestUnits(r *http.Request) (string, error) {
	u := r.URL.Query().Get("units")
	if u == "" {
		return s.units, nil
	}
	if !units.IsValid(u) {
		return "", fmt.Errorf("invalid 'units' parameter %q: valid values are %s", u, units.GetValidUnitsString())
	}
	return u, nil
}

// parseLimit reads the optional limit query parameter, capped at max.
func parseLimit(r *http.Request, def, max int) (int, error) {
	l := r.URL.Query().Get("limit")
	if l == "" {
		return def, nil
	}
	parsed, err := strconv.Atoi(l)
	if err != nil || parsed < 1 {
		return 0, fmt.Errorf("invalid 'limit' parameter")
	}
	if parsed > max {
		return max, nil
	}
	return parsed, nil
}

// sensorSnapshot is the wire form of a sensor snapshot with distance
// converted to the requested units.
type sensorSnapshot struct {
	ingest.Snapshot
	Distance float64 `json:"distance"`
	Units    string  `json:"units"`
}

func (s *Server) toAPISnapshot(snap ingest.Snapshot, targetUnits string) sensorSnapshot {
	return sensorSnapshot{
		Snapshot: snap,
		Distance: units.ConvertDistance(snap.DistanceCM, targetUnits),
		Units:    targetUnits,
	}
}

func (s *Server) listSensors(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	targetUnits, err := s.requestUnits(r)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	snaps := s.processor.Snapshots()
	apiSnaps := make([]sensorSnapshot, len(snaps))
	for i, snap := range snaps {
		apiSnaps[i] = s.toAPISnapshot(snap, targetUnits)
	}

	if err := json.NewEncoder(w).Encode(apiSnaps); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write sensors")
		return
	}
}

// pathSensorIndex parses the {index} path segment.
func pathSensorIndex(r *http.Request) (uint8, error) {
	raw := r.PathValue("index")
	parsed, err := strconv.ParseUint(raw, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid sensor index %q", raw)
	}
	return uint8(parsed), nil
}

func (s *Server) showSensor(w http.ResponseWriter, r *http.Request) {
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

	snap, ok := s.processor.Snapshot(index)
	if !ok {
		s.writeJSONError(w, http.StatusNotFound, fmt.Sprintf("No sensor at index %d", index))
		return
	}

	if err := json.NewEncoder(w).Encode(s.toAPISnapshot(snap, targetUnits)); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write sensor")
		return
	}
}

func (s *Server) resetSensor(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	index, err := pathSensorIndex(r)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	if !s.processor.ResetSensor(index) {
		s.writeJSONError(w, http.StatusNotFound, fmt.Sprintf("No sensor at index %d", index))
		return
	}

	json.NewEncoder(w).Encode(map[string]string{"status": "reset"})
}

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	limit, err := parseLimit(r, 100, 1000)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	events, err := s.db.PresenceEvents(limit)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to retrieve events: %v", err))
		return
	}

	if err := json.NewEncoder(w).Encode(events); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write events")
		return
	}
}

func (s *Server) listSamples(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	sensorIndex := -1 // all sensors
	if raw := r.URL.Query().Get("sensor"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 8)
		if err != nil {
			s.writeJSONError(w, http.StatusBadRequest, "Invalid 'sensor' parameter")
			return
		}
		sensorIndex = int(parsed)
	}

	limit, err := parseLimit(r, 100, 1000)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	samples, err := s.db.RecentSamples(sensorIndex, limit)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to retrieve samples: %v", err))
		return
	}

	if err := json.NewEncoder(w).Encode(samples); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write samples")
		return
	}
}

func (s *Server) showDistance(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	raw := r.URL.Query().Get("ps")
	psVal, err := strconv.ParseUint(raw, 10, 16)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "Invalid 'ps' parameter")
		return
	}

	targetUnits, err := s.requestUnits(r)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	table := sensor.DefaultCalibrationTable()
	distanceCM := sensor.EstimateDistance(uint16(psVal), table.Prox, table.Dist)

	resp := map[string]interface{}{
		"ps":       psVal,
		"distance": units.ConvertDistance(distanceCM, targetUnits),
		"units":    targetUnits,
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write distance")
		return
	}
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	config := map[string]interface{}{
		"units": s.units,
	}

	if err := json.NewEncoder(w).Encode(config); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write config")
		return
	}
}

func (s *Server) sendCommandHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	command := r.FormValue("command")
	if !serialmux.IsAllowedCommand(command) {
		http.Error(w, "Command not allowed", http.StatusBadRequest)
		return
	}

	if err := s.m.SendCommand(command); err != nil {
		http.Error(w, "Failed to send command", http.StatusInternalServerError)
		return
	}
	io.WriteString(w, "Command sent successfully")
}

// Package monitor serves debugging charts of the sensor streams. These are
// unauthenticated HTML pages rendered server-side with go-echarts, meant for
// bench checks rather than a production UI.
package monitor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/Kelvin-Chan/arduino-vishay-controller/internal/db"
	"github.com/Kelvin-Chan/arduino-vishay-controller/internal/ingest"
)

const echartsAssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

type WebServer struct {
	processor *ingest.Processor
	db        *db.DB
}

func NewWebServer(processor *ingest.Processor, database *db.DB) *WebServer {
	return &WebServer{processor: processor, db: database}
}

// RegisterRoutes attaches the monitor pages to mux.
func (ws *WebServer) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/monitor", ws.handleDashboard)
	mux.HandleFunc("/monitor/charts", ws.handleSensorChart)
	mux.HandleFunc("/monitor/distance", ws.handleDistanceChart)
}

func (ws *WebServer) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// sensorParam reads the sensor query parameter, defaulting to 0.
func sensorParam(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("sensor")
	if raw == "" {
		return 0, nil
	}
	parsed, err := strconv.ParseUint(raw, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid 'sensor' parameter %q", raw)
	}
	return int(parsed), nil
}

// chartSamples fetches recent rows and reverses them into chronological
// order for plotting.
func (ws *WebServer) chartSamples(r *http.Request) (int, []db.Sample, error) {
	sensorIndex, err := sensorParam(r)
	if err != nil {
		return 0, nil, err
	}

	limit := 500
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 5000 {
			limit = parsed
		}
	}

	samples, err := ws.db.RecentSamples(sensorIndex, limit)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to get samples: %w", err)
	}

	for i, j := 0, len(samples)-1; i < j; i, j = i+1, j-1 {
		samples[i], samples[j] = samples[j], samples[i]
	}
	return sensorIndex, samples, nil
}

// handleSensorChart renders raw and smoothed proximity and ambient counts
// for one sensor as a line chart.
// Query params:
//   - sensor (optional; default 0)
//   - limit (optional; default 500, max 5000)
func (ws *WebServer) handleSensorChart(w http.ResponseWriter, r *http.Request) {
	sensorIndex, samples, err := ws.chartSamples(r)
	if err != nil {
		ws.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(samples) == 0 {
		ws.writeJSONError(w, http.StatusNotFound, fmt.Sprintf("no samples stored for sensor %d", sensorIndex))
		return
	}

	x := make([]string, len(samples))
	psRaw := make([]opts.LineData, len(samples))
	psMean := make([]opts.LineData, len(samples))
	alsRaw := make([]opts.LineData, len(samples))
	alsMean := make([]opts.LineData, len(samples))
	for i, s := range samples {
		x[i] = s.Timestamp.Format("15:04:05.000")
		psRaw[i] = opts.LineData{Value: s.Proximity}
		psMean[i] = opts.LineData{Value: s.ProximityMean}
		alsRaw[i] = opts.LineData{Value: s.Ambient}
		alsMean[i] = opts.LineData{Value: s.AmbientMean}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Sensor Counts", Theme: "dark", Width: "1200px", Height: "600px", AssetsHost: echartsAssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: "Proximity and Ambient Counts", Subtitle: fmt.Sprintf("sensor=%d points=%d", sensorIndex, len(samples))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	line.SetXAxis(x).
		AddSeries("ps raw", psRaw).
		AddSeries("ps mean", psMean).
		AddSeries("als raw", alsRaw).
		AddSeries("als mean", alsMean)

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// handleDistanceChart renders the estimated distance for one sensor, with
// the presence flag overlaid as a step series.
func (ws *WebServer) handleDistanceChart(w http.ResponseWriter, r *http.Request) {
	sensorIndex, samples, err := ws.chartSamples(r)
	if err != nil {
		ws.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(samples) == 0 {
		ws.writeJSONError(w, http.StatusNotFound, fmt.Sprintf("no samples stored for sensor %d", sensorIndex))
		return
	}

	x := make([]string, len(samples))
	distance := make([]opts.LineData, len(samples))
	presence := make([]opts.LineData, len(samples))
	maxDistance := 0.0
	for i, s := range samples {
		x[i] = s.Timestamp.Format("15:04:05.000")
		distance[i] = opts.LineData{Value: s.DistanceCM}
		if s.DistanceCM > maxDistance {
			maxDistance = s.DistanceCM
		}
	}
	if maxDistance == 0 {
		maxDistance = 1.0
	}
	// Scale the boolean flag to the distance axis so both are readable on
	// one chart.
	for i, s := range samples {
		if s.InProximity {
			presence[i] = opts.LineData{Value: maxDistance}
		} else {
			presence[i] = opts.LineData{Value: 0}
		}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Estimated Distance", Theme: "dark", Width: "1200px", Height: "600px", AssetsHost: echartsAssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: "Estimated Distance", Subtitle: fmt.Sprintf("sensor=%d points=%d", sensorIndex, len(samples))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "cm"}),
	)
	line.SetXAxis(x).
		AddSeries("distance (cm)", distance).
		AddSeries("in proximity", presence, charts.WithLineChartOpts(opts.LineChart{Step: "start"}))

	page := components.NewPage()
	page.SetAssetsHost(echartsAssetsHost)
	page.AddCharts(line)

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("render error: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// handleDashboard renders a plain page with iframes for each configured
// sensor.
func (ws *WebServer) handleDashboard(w http.ResponseWriter, r *http.Request) {
	snaps := ws.processor.Snapshots()

	var frames bytes.Buffer
	for _, snap := range snaps {
		fmt.Fprintf(&frames, `
  <h2>Sensor %d</h2>
  <iframe src="/monitor/charts?sensor=%d" width="1240" height="660" frameborder="0"></iframe>
  <iframe src="/monitor/distance?sensor=%d" width="1240" height="660" frameborder="0"></iframe>`,
			snap.Index, snap.Index, snap.Index)
	}

	doc := fmt.Sprintf(dashboardHTML, time.Now().UTC().Format(time.RFC3339), frames.String())
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(doc))
}

const dashboardHTML = `<!DOCTYPE html>
<html>
<head>
  <title>Sensor Monitor</title>
  <style>
    body { background: #1e1e1e; color: #ddd; font-family: monospace; }
    iframe { display: block; margin-bottom: 1em; background: #fff; }
  </style>
</head>
<body>
  <h1>Sensor Monitor</h1>
  <p>rendered %s</p>%s
</body>
</html>
`

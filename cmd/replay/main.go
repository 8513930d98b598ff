// Command replay runs a captured bridge log through the sensor pipeline
// without a serial port or database. It prints presence transitions and a
// final per-sensor summary, which makes it useful for checking calibration
// tables and thresholds against recorded data.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/Kelvin-Chan/arduino-vishay-controller/internal/ingest"
	"github.com/Kelvin-Chan/arduino-vishay-controller/internal/sensor"
	"github.com/Kelvin-Chan/arduino-vishay-controller/internal/timeutil"
	"github.com/Kelvin-Chan/arduino-vishay-controller/internal/units"
)

func main() {
	fixtures := flag.String("fixtures", "fixtures.txt", "Path to a captured bridge log")
	sensorCount := flag.Int("sensors", 1, "Number of sensor positions in the capture")
	proxMin := flag.Int("prox-min", 50, "Hysteresis exit threshold (counts)")
	proxMax := flag.Int("prox-max", 200, "Hysteresis enter threshold (counts)")
	unitsFlag := flag.String("units", units.CM, "Display units: cm, mm, m, in")
	verbose := flag.Bool("v", false, "Print every parsed sample")
	flag.Parse()

	if *proxMin >= *proxMax {
		log.Fatalf("prox-min %d must be below prox-max %d", *proxMin, *proxMax)
	}
	if !units.IsValid(*unitsFlag) {
		log.Fatalf("invalid units %q: valid values are %s", *unitsFlag, units.GetValidUnitsString())
	}

	f, err := os.Open(*fixtures)
	if err != nil {
		log.Fatalf("failed to open fixtures file: %v", err)
	}
	defer f.Close()

	table := sensor.DefaultCalibrationTable()
	sensors := make([]*sensor.Sensor, *sensorCount)
	for i := range sensors {
		sensors[i] = sensor.New(uint8(i), uint16(*proxMin), uint16(*proxMax), table)
	}

	// nil recorder: nothing is persisted during replay
	processor := ingest.NewProcessor(sensors, nil, timeutil.RealClock{})

	present := make(map[uint8]bool, len(sensors))
	blocked := make(map[uint8]bool, len(sensors))

	lineNo := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if line == "" {
			continue
		}

		if err := processor.HandleLine(line); err != nil {
			log.Printf("line %d: %v", lineNo, err)
			continue
		}

		for _, snap := range processor.Snapshots() {
			if *verbose {
				fmt.Printf("line %d sensor %d: ps_mean=%d als_mean=%d distance=%.1f%s\n",
					lineNo, snap.Index, snap.ProximityMean, snap.AmbientMean,
					units.ConvertDistance(snap.DistanceCM, *unitsFlag), *unitsFlag)
			}
			if snap.InProximity != present[snap.Index] {
				present[snap.Index] = snap.InProximity
				state := "exited"
				if snap.InProximity {
					state = "entered"
				}
				fmt.Printf("line %d: sensor %d %s proximity at %.1f%s\n",
					lineNo, snap.Index, state,
					units.ConvertDistance(snap.DistanceCM, *unitsFlag), *unitsFlag)
			}
			if snap.IsBlocked != blocked[snap.Index] {
				blocked[snap.Index] = snap.IsBlocked
				state := "unblocked"
				if snap.IsBlocked {
					state = "blocked"
				}
				fmt.Printf("line %d: sensor %d %s\n", lineNo, snap.Index, state)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		log.Fatalf("failed to read fixtures file: %v", err)
	}

	fmt.Println()
	for _, snap := range processor.Snapshots() {
		fmt.Printf("sensor %d: %d samples, ps_mean=%d ps_std=%.2f als_mean=%d als_std=%.2f distance=%.1f%s present=%v blocked=%v\n",
			snap.Index, snap.SampleCount, snap.ProximityMean, snap.ProximityStd,
			snap.AmbientMean, snap.AmbientStd,
			units.ConvertDistance(snap.DistanceCM, *unitsFlag), *unitsFlag,
			snap.InProximity, snap.IsBlocked)
	}
}

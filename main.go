package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/Kelvin-Chan/arduino-vishay-controller/internal/api"
	"github.com/Kelvin-Chan/arduino-vishay-controller/internal/config"
	"github.com/Kelvin-Chan/arduino-vishay-controller/internal/db"
	"github.com/Kelvin-Chan/arduino-vishay-controller/internal/ingest"
	"github.com/Kelvin-Chan/arduino-vishay-controller/internal/monitor"
	"github.com/Kelvin-Chan/arduino-vishay-controller/internal/serialmux"
	"github.com/Kelvin-Chan/arduino-vishay-controller/internal/timeutil"
	"github.com/Kelvin-Chan/arduino-vishay-controller/internal/version"
)

var (
	devMode       = flag.Bool("dev", false, "Run in dev mode (replays fixtures.txt instead of opening a serial port)")
	listen        = flag.String("listen", "", "Listen address (overrides config)")
	configPath    = flag.String("config", "", "Path to a JSON config file")
	serialPort    = flag.String("serial", "", "Serial device path (overrides config)")
	dbPath        = flag.String("db", "", "Path to the sqlite database (overrides config)")
	unitsFlag     = flag.String("units", "", "Display units: cm, mm, m, in (overrides config)")
	disableSerial = flag.Bool("disable-serial", false, "Run without any serial port (API and stored data only)")
	showVersion   = flag.Bool("version", false, "Print version and exit")
)

func loadConfig() (*config.Config, error) {
	cfg := config.EmptyConfig()
	if *configPath != "" {
		loaded, err := config.LoadConfig(*configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	// Flags override the file.
	if *listen != "" {
		cfg.Listen = listen
	}
	if *serialPort != "" {
		cfg.SerialPort = serialPort
	}
	if *dbPath != "" {
		cfg.DBPath = dbPath
	}
	if *unitsFlag != "" {
		cfg.Units = unitsFlag
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func buildMux(cfg *config.Config) (serialmux.SerialMuxInterface, error) {
	if *disableSerial {
		return serialmux.NewDisabledSerialMux(), nil
	}
	if *devMode {
		data, err := os.ReadFile("fixtures.txt")
		if err != nil {
			return nil, fmt.Errorf("failed to open fixtures file: %w", err)
		}
		return serialmux.NewMockSerialMux(data), nil
	}
	return serialmux.NewRealSerialMux(cfg.GetSerialPort(), cfg.GetPortOptions())
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("arduino-vishay-controller %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	m, err := buildMux(cfg)
	if err != nil {
		log.Fatalf("failed to create serial mux: %v", err)
	}
	defer m.Close()

	database, err := db.NewDB(cfg.GetDBPath())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	sensors := cfg.BuildSensors()
	processor := ingest.NewProcessor(sensors, database, timeutil.RealClock{})

	if !*disableSerial {
		if err := m.Initialize(); err != nil {
			log.Printf("failed to initialise bridge: %v", err)
		}
	}

	// Wait group for the serial monitor, ingest, and HTTP server routines
	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// run the monitor routine to manage IO on the serial port
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := m.Monitor(ctx); err != nil && err != context.Canceled {
			log.Printf("failed to monitor serial port: %v", err)
		}
		log.Print("monitor routine terminated")
	}()

	// subscribe to the serial stream and feed lines through the sensor
	// pipeline
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := processor.Run(ctx, m, cfg.GetStatsInterval()); err != nil && err != context.Canceled {
			log.Printf("ingest routine failed: %v", err)
		}
		log.Print("ingest routine terminated")
	}()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := http.NewServeMux()

		// mount the admin debugging routes
		database.AttachAdminRoutes(mux)
		m.AttachAdminRoutes(mux)

		// API handlers
		apiServer := api.NewServer(m, database, processor, cfg.GetUnits())
		mux.Handle("/api/", apiServer.ServeMux())
		mux.Handle("/command", apiServer.ServeMux())

		// monitor charts
		monitor.NewWebServer(processor, database).RegisterRoutes(mux)

		server := &http.Server{
			Addr:    cfg.GetListen(),
			Handler: api.LoggingMiddleware(mux),
		}

		// Start server in a goroutine so it doesn't block
		go func() {
			log.Printf("listening on %s", cfg.GetListen())
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		// Wait for context cancellation to shut down server
		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}

		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}

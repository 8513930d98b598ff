// Package db persists conditioned sensor output: one row per processed
// sample and one row per presence transition. The schema is managed by
// embedded golang-migrate migrations.
package db

import (
	"compress/gzip"
	"database/sql"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tailscale/tailsql/server/tailsql"
	"tailscale.com/tsweb"
)

type DB struct {
	*sql.DB
}

// NewDB opens (creating if necessary) the sqlite database at path and brings
// the schema up to the latest migration.
func NewDB(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	db := &DB{sqlDB}
	if err := db.MigrateUp(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

// Sample is one fully conditioned reading: the raw channel values plus every
// derived statistic at that instant.
type Sample struct {
	SensorIndex   uint8     `json:"sensor_index"`
	Proximity     uint16    `json:"proximity"`
	Ambient       uint16    `json:"ambient"`
	ProximityMean uint16    `json:"proximity_mean"`
	ProximityStd  float64   `json:"proximity_std"`
	AmbientMean   uint16    `json:"ambient_mean"`
	AmbientStd    float64   `json:"ambient_std"`
	DistanceCM    float64   `json:"distance_cm"`
	InProximity   bool      `json:"in_proximity"`
	IsBlocked     bool      `json:"is_blocked"`
	Timestamp     time.Time `json:"timestamp"`
}

// Presence event types.
const (
	EventEnter     = "enter"
	EventExit      = "exit"
	EventBlocked   = "blocked"
	EventUnblocked = "unblocked"
)

// PresenceEvent is one hysteresis or blocked-flag transition.
type PresenceEvent struct {
	EventID     string    `json:"event_id"`
	SensorIndex uint8     `json:"sensor_index"`
	Type        string    `json:"type"`
	Proximity   uint16    `json:"proximity"`
	DistanceCM  float64   `json:"distance_cm"`
	Timestamp   time.Time `json:"timestamp"`
}

func (db *DB) RecordSample(s Sample) error {
	_, err := db.Exec(
		`INSERT INTO samples (
			sensor_index, proximity, ambient, proximity_mean, proximity_std,
			ambient_mean, ambient_std, distance_cm, in_proximity, is_blocked, unix_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.SensorIndex, s.Proximity, s.Ambient, s.ProximityMean, s.ProximityStd,
		s.AmbientMean, s.AmbientStd, s.DistanceCM, s.InProximity, s.IsBlocked,
		s.Timestamp.UnixMilli(),
	)
	return err
}

func (db *DB) RecordPresenceEvent(e PresenceEvent) error {
	_, err := db.Exec(
		`INSERT INTO presence_events (
			event_id, sensor_index, event_type, proximity, distance_cm, unix_ms
		) VALUES (?, ?, ?, ?, ?, ?)`,
		e.EventID, e.SensorIndex, e.Type, e.Proximity, e.DistanceCM,
		e.Timestamp.UnixMilli(),
	)
	return err
}

// RecentSamples returns up to limit samples, newest first. A negative
// sensorIndex selects all sensors.
func (db *DB) RecentSamples(sensorIndex int, limit int) ([]Sample, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT sensor_index, proximity, ambient, proximity_mean, proximity_std,
			ambient_mean, ambient_std, distance_cm, in_proximity, is_blocked, unix_ms
		FROM samples`
	args := []any{}
	if sensorIndex >= 0 {
		query += ` WHERE sensor_index = ?`
		args = append(args, sensorIndex)
	}
	query += ` ORDER BY unix_ms DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []Sample
	for rows.Next() {
		var s Sample
		var unixMs int64
		if err := rows.Scan(
			&s.SensorIndex, &s.Proximity, &s.Ambient, &s.ProximityMean, &s.ProximityStd,
			&s.AmbientMean, &s.AmbientStd, &s.DistanceCM, &s.InProximity, &s.IsBlocked,
			&unixMs,
		); err != nil {
			return nil, err
		}
		s.Timestamp = time.UnixMilli(unixMs).UTC()
		samples = append(samples, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return samples, nil
}

// PresenceEvents returns up to limit presence events, newest first.
func (db *DB) PresenceEvents(limit int) ([]PresenceEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := db.Query(
		`SELECT event_id, sensor_index, event_type, proximity, distance_cm, unix_ms
		FROM presence_events ORDER BY unix_ms DESC, event_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []PresenceEvent
	for rows.Next() {
		var e PresenceEvent
		var unixMs int64
		if err := rows.Scan(&e.EventID, &e.SensorIndex, &e.Type, &e.Proximity, &e.DistanceCM, &unixMs); err != nil {
			return nil, err
		}
		e.Timestamp = time.UnixMilli(unixMs).UTC()
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return events, nil
}

func (db *DB) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)
	// create a tailSQL instance and point it to our DB
	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		log.Fatalf("failed to create tailsql server: %v", err)
	}
	tsql.SetDB("sqlite://sensors.db", db.DB, &tailsql.DBOptions{
		Label: "Sensor DB",
	})

	// mount the tailSQL server on the debug /tailsql path
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())

	debug.Handle("backup", "Create and download a backup of the database now", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		unixTime := time.Now().Unix()
		backupPath := fmt.Sprintf("backup-%d.db", unixTime)
		if _, err := db.DB.Exec("VACUUM INTO ?", backupPath); err != nil {
			http.Error(w, fmt.Sprintf("Failed to create backup: %v", err), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", backupPath))
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Encoding", "gzip")

		backupFile, err := os.Open(backupPath)
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to open backup file: %v", err), http.StatusInternalServerError)
			return
		}

		// close the backup file after sending it
		// and remove it from the filesystem
		defer func() {
			backupFile.Close()
			if err := os.Remove(backupPath); err != nil {
				log.Printf("Failed to remove backup file: %v", err)
			}
		}()

		gzipWriter := gzip.NewWriter(w)
		defer gzipWriter.Close()

		if _, err := io.Copy(gzipWriter, backupFile); err != nil {
			http.Error(w, fmt.Sprintf("Failed to write backup file: %v", err), http.StatusInternalServerError)
			return
		}
	}))
}

// Package store is the relational side of the viewer: vehicles and their
// per-session telemetry samples in sqlite. The visualization core reaches it
// only through the bulk FetchRawSamples read.
package store

import (
	"compress/gzip"
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/tailscale/tailsql/server/tailsql"
	_ "modernc.org/sqlite"
	"tailscale.com/tsweb"

	"github.com/fleetsight/fleetsight/internal/telemetry"
)

type Store struct {
	*sql.DB
	path string
}

// NewStore opens (creating if needed) the sqlite database at path and
// ensures the base schema exists.
func NewStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS vehicles (
			vehicle_id        TEXT PRIMARY KEY,
			name              TEXT,
			registration      TEXT,
			created_at        TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS telemetry_samples (
			sample_id         INTEGER PRIMARY KEY AUTOINCREMENT,
			vehicle_id        TEXT NOT NULL,
			timestamp         TEXT NOT NULL,
			latitude          DOUBLE,
			longitude         DOUBLE,
			ground_speed_kph  DOUBLE,
			engine_rpm        BIGINT,
			FOREIGN KEY(vehicle_id) REFERENCES vehicles(vehicle_id)
		);
		CREATE INDEX IF NOT EXISTS idx_samples_vehicle_time
			ON telemetry_samples(vehicle_id, timestamp);
	`)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{DB: db, path: path}, nil
}

// Vehicle is one fleet vehicle row.
type Vehicle struct {
	ID           string    `json:"vehicle_id"`
	Name         string    `json:"name"`
	Registration string    `json:"registration"`
	CreatedAt    time.Time `json:"created_at"`
}

// UpsertVehicle inserts or updates a vehicle row.
func (s *Store) UpsertVehicle(v Vehicle) error {
	_, err := s.Exec(`
		INSERT INTO vehicles (vehicle_id, name, registration)
		VALUES (?, ?, ?)
		ON CONFLICT(vehicle_id) DO UPDATE SET
			name = excluded.name,
			registration = excluded.registration`,
		v.ID, v.Name, v.Registration,
	)
	return err
}

// ListVehicles returns all vehicles ordered by id.
func (s *Store) ListVehicles() ([]Vehicle, error) {
	rows, err := s.Query(`
		SELECT vehicle_id, COALESCE(name, ''), COALESCE(registration, ''), created_at
		FROM vehicles ORDER BY vehicle_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vehicles []Vehicle
	for rows.Next() {
		var v Vehicle
		var created string
		if err := rows.Scan(&v.ID, &v.Name, &v.Registration, &created); err != nil {
			return nil, err
		}
		if t, err := time.Parse(time.DateTime, created); err == nil {
			v.CreatedAt = t
		}
		vehicles = append(vehicles, v)
	}
	return vehicles, rows.Err()
}

// RecordSample appends one raw telemetry reading for a vehicle. Nullable
// sensor fields are stored as NULLs, not sentinels.
func (s *Store) RecordSample(sample telemetry.RawSample) error {
	if sample.VehicleID == "" {
		return fmt.Errorf("record sample: vehicle id is required")
	}
	_, err := s.Exec(`
		INSERT INTO telemetry_samples
			(vehicle_id, timestamp, latitude, longitude, ground_speed_kph, engine_rpm)
		VALUES (?, ?, ?, ?, ?, ?)`,
		sample.VehicleID,
		sample.Timestamp.UTC().Format(time.RFC3339Nano),
		nullFloat(sample.Latitude),
		nullFloat(sample.Longitude),
		nullFloat(sample.GroundSpeedKPH),
		nullInt(sample.EngineRPM),
	)
	return err
}

// FetchRawSamples is the bulk read the visualization session performs once
// per activation. Samples come back in insertion order; the sanitizer owns
// temporal ordering.
func (s *Store) FetchRawSamples(ctx context.Context, vehicleID string) ([]telemetry.RawSample, error) {
	rows, err := s.QueryContext(ctx, `
		SELECT sample_id, vehicle_id, timestamp, latitude, longitude, ground_speed_kph, engine_rpm
		FROM telemetry_samples
		WHERE vehicle_id = ?
		ORDER BY sample_id`,
		vehicleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []telemetry.RawSample
	for rows.Next() {
		var (
			sample telemetry.RawSample
			ts     string
			lat    sql.NullFloat64
			lon    sql.NullFloat64
			speed  sql.NullFloat64
			rpm    sql.NullInt64
		)
		if err := rows.Scan(&sample.ID, &sample.VehicleID, &ts, &lat, &lon, &speed, &rpm); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("sample %d: bad timestamp %q: %w", sample.ID, ts, err)
		}
		sample.Timestamp = t
		sample.Latitude = floatPtr(lat)
		sample.Longitude = floatPtr(lon)
		sample.GroundSpeedKPH = floatPtr(speed)
		sample.EngineRPM = intPtr(rpm)
		samples = append(samples, sample)
	}
	return samples, rows.Err()
}

// UpdateSample edits one telemetry record. Values are range-checked before
// the write; out-of-range edits indicate an operator mistake and are
// rejected rather than clamped.
func (s *Store) UpdateSample(sample telemetry.RawSample) error {
	if err := validateSample(sample); err != nil {
		return err
	}
	res, err := s.Exec(`
		UPDATE telemetry_samples
		SET timestamp = ?, latitude = ?, longitude = ?, ground_speed_kph = ?, engine_rpm = ?
		WHERE sample_id = ?`,
		sample.Timestamp.UTC().Format(time.RFC3339Nano),
		nullFloat(sample.Latitude),
		nullFloat(sample.Longitude),
		nullFloat(sample.GroundSpeedKPH),
		nullInt(sample.EngineRPM),
		sample.ID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("update sample: no sample with id %d", sample.ID)
	}
	return nil
}

// validateSample applies the editing range rules.
func validateSample(sample telemetry.RawSample) error {
	if sample.Latitude != nil && (*sample.Latitude < -90 || *sample.Latitude > 90) {
		return fmt.Errorf("latitude %v out of range [-90, 90]", *sample.Latitude)
	}
	if sample.Longitude != nil && (*sample.Longitude < -180 || *sample.Longitude > 180) {
		return fmt.Errorf("longitude %v out of range [-180, 180]", *sample.Longitude)
	}
	if sample.GroundSpeedKPH != nil && *sample.GroundSpeedKPH < 0 {
		return fmt.Errorf("ground speed %v must be non-negative", *sample.GroundSpeedKPH)
	}
	if sample.EngineRPM != nil && *sample.EngineRPM < 0 {
		return fmt.Errorf("engine rpm %d must be non-negative", *sample.EngineRPM)
	}
	return nil
}

// AttachAdminRoutes mounts the debug surface: a tailsql console over the
// live database and an on-demand gzip backup download.
func (s *Store) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		log.Fatalf("failed to create tailsql server: %v", err)
	}
	tsql.SetDB("sqlite://"+s.path, s.DB, &tailsql.DBOptions{
		Label: "Fleet telemetry DB",
	})
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())

	debug.Handle("backup", "Create and download a database backup", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		backupPath := fmt.Sprintf("backup-%d.db", time.Now().Unix())
		if _, err := s.Exec("VACUUM INTO ?", backupPath); err != nil {
			http.Error(w, fmt.Sprintf("failed to create backup: %v", err), http.StatusInternalServerError)
			return
		}
		backupFile, err := os.Open(backupPath)
		if err != nil {
			http.Error(w, fmt.Sprintf("failed to open backup: %v", err), http.StatusInternalServerError)
			return
		}
		defer func() {
			backupFile.Close()
			if err := os.Remove(backupPath); err != nil {
				log.Printf("failed to remove backup file: %v", err)
			}
		}()

		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.gz", backupPath))
		w.Header().Set("Content-Type", "application/octet-stream")
		gz := gzip.NewWriter(w)
		defer gz.Close()
		// Stream rather than slurp so memory stays flat on large databases.
		if _, err := io.Copy(gz, backupFile); err != nil {
			log.Printf("failed to write backup response: %v", err)
		}
	}))
}

func nullFloat(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

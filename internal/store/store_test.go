package store

import (
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fleetsight/fleetsight/internal/telemetry"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "telemetry.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestUpsertAndListVehicles(t *testing.T) {
	s := newTestStore(t)

	if err := s.UpsertVehicle(Vehicle{ID: "veh-2", Name: "Box truck"}); err != nil {
		t.Fatalf("UpsertVehicle: %v", err)
	}
	if err := s.UpsertVehicle(Vehicle{ID: "veh-1", Name: "Van", Registration: "AB-12-CD"}); err != nil {
		t.Fatalf("UpsertVehicle: %v", err)
	}
	// Update in place.
	if err := s.UpsertVehicle(Vehicle{ID: "veh-2", Name: "Box truck 7.5t"}); err != nil {
		t.Fatalf("UpsertVehicle update: %v", err)
	}

	vehicles, err := s.ListVehicles()
	if err != nil {
		t.Fatalf("ListVehicles: %v", err)
	}
	if len(vehicles) != 2 {
		t.Fatalf("got %d vehicles, want 2", len(vehicles))
	}
	if vehicles[0].ID != "veh-1" || vehicles[1].ID != "veh-2" {
		t.Errorf("vehicles not ordered by id: %+v", vehicles)
	}
	if vehicles[1].Name != "Box truck 7.5t" {
		t.Errorf("upsert did not update name: %q", vehicles[1].Name)
	}
}

func TestRecordAndFetchSamples(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	samples := []telemetry.RawSample{
		{
			VehicleID:      "veh-1",
			Timestamp:      base,
			Latitude:       telemetry.Float64(52.1),
			Longitude:      telemetry.Float64(5.2),
			GroundSpeedKPH: telemetry.Float64(31.5),
			EngineRPM:      telemetry.Int(2100),
		},
		{
			VehicleID: "veh-1",
			Timestamp: base.Add(time.Second),
			// No GPS fix, no engine reading: all sensor fields NULL.
		},
		{
			VehicleID: "veh-2",
			Timestamp: base,
			Latitude:  telemetry.Float64(48.9),
			Longitude: telemetry.Float64(2.3),
		},
	}
	for _, sample := range samples {
		if err := s.RecordSample(sample); err != nil {
			t.Fatalf("RecordSample: %v", err)
		}
	}

	got, err := s.FetchRawSamples(context.Background(), "veh-1")
	if err != nil {
		t.Fatalf("FetchRawSamples: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d samples for veh-1, want 2", len(got))
	}

	first := got[0]
	if !first.Timestamp.Equal(base) {
		t.Errorf("timestamp = %v, want %v", first.Timestamp, base)
	}
	if first.Latitude == nil || *first.Latitude != 52.1 {
		t.Errorf("latitude = %v, want 52.1", first.Latitude)
	}
	if first.GroundSpeedKPH == nil || *first.GroundSpeedKPH != 31.5 {
		t.Errorf("speed = %v, want 31.5", first.GroundSpeedKPH)
	}
	if first.EngineRPM == nil || *first.EngineRPM != 2100 {
		t.Errorf("rpm = %v, want 2100", first.EngineRPM)
	}

	second := got[1]
	if second.Latitude != nil || second.Longitude != nil || second.GroundSpeedKPH != nil || second.EngineRPM != nil {
		t.Errorf("nulls not round-tripped: %+v", second)
	}
}

func TestRecordSampleRequiresVehicle(t *testing.T) {
	s := newTestStore(t)
	err := s.RecordSample(telemetry.RawSample{Timestamp: time.Now()})
	if err == nil {
		t.Fatal("RecordSample accepted a sample without a vehicle id")
	}
}

func TestFetchRawSamplesUnknownVehicle(t *testing.T) {
	s := newTestStore(t)
	got, err := s.FetchRawSamples(context.Background(), "nope")
	if err != nil {
		t.Fatalf("FetchRawSamples: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d samples for unknown vehicle, want 0", len(got))
	}
}

func TestUpdateSample(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	if err := s.RecordSample(telemetry.RawSample{
		VehicleID: "veh-1",
		Timestamp: base,
		Latitude:  telemetry.Float64(52.1),
		Longitude: telemetry.Float64(5.2),
	}); err != nil {
		t.Fatal(err)
	}
	fetched, err := s.FetchRawSamples(context.Background(), "veh-1")
	if err != nil {
		t.Fatal(err)
	}

	edit := fetched[0]
	edit.GroundSpeedKPH = telemetry.Float64(44)
	if err := s.UpdateSample(edit); err != nil {
		t.Fatalf("UpdateSample: %v", err)
	}

	fetched, err = s.FetchRawSamples(context.Background(), "veh-1")
	if err != nil {
		t.Fatal(err)
	}
	if fetched[0].GroundSpeedKPH == nil || *fetched[0].GroundSpeedKPH != 44 {
		t.Errorf("edit not persisted: %+v", fetched[0])
	}
}

func TestUpdateSampleRangeValidation(t *testing.T) {
	s := newTestStore(t)

	tests := []struct {
		name   string
		mutate func(*telemetry.RawSample)
	}{
		{"latitude too high", func(r *telemetry.RawSample) { r.Latitude = telemetry.Float64(91) }},
		{"latitude too low", func(r *telemetry.RawSample) { r.Latitude = telemetry.Float64(-90.5) }},
		{"longitude too high", func(r *telemetry.RawSample) { r.Longitude = telemetry.Float64(181) }},
		{"negative speed", func(r *telemetry.RawSample) { r.GroundSpeedKPH = telemetry.Float64(-1) }},
		{"negative rpm", func(r *telemetry.RawSample) { r.EngineRPM = telemetry.Int(-100) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sample := telemetry.RawSample{ID: 1, VehicleID: "veh-1", Timestamp: time.Now()}
			tt.mutate(&sample)
			if err := s.UpdateSample(sample); err == nil {
				t.Error("out-of-range edit was accepted")
			}
		})
	}
}

func TestUpdateSampleUnknownID(t *testing.T) {
	s := newTestStore(t)
	err := s.UpdateSample(telemetry.RawSample{ID: 12345, Timestamp: time.Now()})
	if err == nil {
		t.Fatal("UpdateSample accepted an unknown sample id")
	}
}

func TestMigrations(t *testing.T) {
	s := newTestStore(t)
	const dir = "../../migrations"

	if err := s.MigrateUp(dir); err != nil {
		t.Fatalf("MigrateUp: %v", err)
	}
	version, dirty, err := s.MigrateVersion(dir)
	if err != nil {
		t.Fatalf("MigrateVersion: %v", err)
	}
	if version != 1 || dirty {
		t.Errorf("version = %d dirty = %v, want 1 clean", version, dirty)
	}

	// Up again is a no-op.
	if err := s.MigrateUp(dir); err != nil {
		t.Fatalf("MigrateUp (repeat): %v", err)
	}

	if err := s.MigrateDown(dir); err != nil {
		t.Fatalf("MigrateDown: %v", err)
	}
	version, _, err = s.MigrateVersion(dir)
	if err != nil {
		t.Fatalf("MigrateVersion after down: %v", err)
	}
	if version != 0 {
		t.Errorf("version after down = %d, want 0", version)
	}
}

func TestAttachAdminRoutesBackup(t *testing.T) {
	tmpDir := t.TempDir()

	// Backup files are created in the working directory; keep them in the
	// temp dir.
	oldWd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(oldWd); err != nil {
			t.Errorf("Failed to restore working directory: %v", err)
		}
	})
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("Failed to change to temp directory: %v", err)
	}

	s, err := NewStore(filepath.Join(tmpDir, "telemetry.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer s.Close()
	if err := s.UpsertVehicle(Vehicle{ID: "veh-1", Name: "Van"}); err != nil {
		t.Fatalf("UpsertVehicle: %v", err)
	}

	mux := http.NewServeMux()
	s.AttachAdminRoutes(mux)

	req := httptest.NewRequest(http.MethodGet, "/debug/backup", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code == http.StatusNotFound {
		t.Fatal("Route /debug/backup should be registered, got 404")
	}
	if w.Code != http.StatusOK {
		t.Skipf("backup endpoint gated, status %d", w.Code)
	}

	if cd := w.Header().Get("Content-Disposition"); cd == "" {
		t.Error("Expected Content-Disposition header for backup download")
	}

	// The streamed body must gunzip back to a sqlite database.
	gz, err := gzip.NewReader(w.Body)
	if err != nil {
		t.Fatalf("backup body is not gzip: %v", err)
	}
	defer gz.Close()
	header := make([]byte, 16)
	if _, err := io.ReadFull(gz, header); err != nil {
		t.Fatalf("failed to read backup header: %v", err)
	}
	if !strings.HasPrefix(string(header), "SQLite format 3") {
		t.Errorf("backup does not start with sqlite magic: %q", header)
	}

	// The temporary VACUUM file is removed after streaming.
	leftovers, err := filepath.Glob("backup-*.db")
	if err != nil {
		t.Fatalf("Failed to list files: %v", err)
	}
	if len(leftovers) != 0 {
		t.Errorf("backup files not cleaned up: %v", leftovers)
	}
}

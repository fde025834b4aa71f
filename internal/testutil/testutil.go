// Package testutil provides shared test helpers and telemetry fixtures.
package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fleetsight/fleetsight/internal/telemetry"
)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// NewJSONRequest creates a test HTTP request with v encoded as JSON body.
func NewJSONRequest(t *testing.T, method, path string, v interface{}) *http.Request {
	t.Helper()
	body, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to encode request body: %v", err)
	}
	return httptest.NewRequest(method, path, bytes.NewReader(body))
}

// TrackFixture builds n well-formed raw samples for one vehicle, one second
// apart, nudging latitude north each step and holding a ground speed of
// 36 km/h. The samples survive sanitisation unchanged.
func TrackFixture(vehicleID string, n int) []telemetry.RawSample {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	samples := make([]telemetry.RawSample, n)
	for i := range samples {
		samples[i] = telemetry.RawSample{
			VehicleID:      vehicleID,
			Timestamp:      base.Add(time.Duration(i) * time.Second),
			Latitude:       telemetry.Float64(10 + float64(i)*0.0001),
			Longitude:      telemetry.Float64(10),
			GroundSpeedKPH: telemetry.Float64(36),
			EngineRPM:      telemetry.Int(1800),
		}
	}
	return samples
}

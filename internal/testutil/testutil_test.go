package testutil

import (
	"errors"
	"net/http"
	"testing"

	"github.com/fleetsight/fleetsight/internal/telemetry"
)

func TestAssertHelpers(t *testing.T) {
	t.Parallel()

	AssertStatusCode(t, http.StatusOK, http.StatusOK)
	AssertNoError(t, nil)
	AssertError(t, errors.New("test error"))
}

func TestAssertNoError_FailurePath(t *testing.T) {
	t.Parallel()

	ok := t.Run("unexpected error", func(t *testing.T) {
		AssertNoError(t, errors.New("boom"))
	})
	if ok {
		t.Fatal("expected subtest to fail when error is non-nil")
	}
}

func TestNewJSONRequest(t *testing.T) {
	t.Parallel()

	req := NewJSONRequest(t, http.MethodPost, "/api/samples", map[string]string{"vehicle_id": "veh-1"})
	if req.Method != http.MethodPost {
		t.Errorf("method = %s, want POST", req.Method)
	}
	if req.URL.Path != "/api/samples" {
		t.Errorf("path = %s, want /api/samples", req.URL.Path)
	}
}

func TestTrackFixture(t *testing.T) {
	t.Parallel()

	samples := TrackFixture("veh-1", 5)
	if len(samples) != 5 {
		t.Fatalf("len = %d, want 5", len(samples))
	}
	for i, s := range samples {
		if s.VehicleID != "veh-1" {
			t.Errorf("sample %d vehicle = %q", i, s.VehicleID)
		}
		if s.Latitude == nil || s.Longitude == nil || s.GroundSpeedKPH == nil {
			t.Errorf("sample %d has nil sensor fields", i)
		}
	}
	if !samples[1].Timestamp.After(samples[0].Timestamp) {
		t.Error("timestamps not increasing")
	}

	// A fixture must survive the sanitiser intact.
	if got := telemetry.Sanitize(samples); len(got) != 5 {
		t.Errorf("sanitised fixture has %d points, want 5", len(got))
	}
}

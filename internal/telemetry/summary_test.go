package telemetry

import (
	"math"
	"testing"
)

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil)
	if s.Points != 0 || s.DistanceMeters != 0 || s.AvgSpeedKPH != 0 {
		t.Errorf("empty summary not zeroed: %+v", s)
	}
}

func TestSummarizeNoSpeedData(t *testing.T) {
	traj := []TrajectoryPoint{
		{Latitude: 10, Longitude: 10},
		{Latitude: 10, Longitude: 10.001},
	}
	s := Summarize(traj)
	if s.Points != 2 {
		t.Errorf("Points = %d, want 2", s.Points)
	}
	if s.DistanceMeters < 100 || s.DistanceMeters > 120 {
		t.Errorf("DistanceMeters = %v, want ~110", s.DistanceMeters)
	}
	if s.AvgSpeedKPH != 0 || s.MaxSpeedKPH != 0 || s.P95SpeedKPH != 0 {
		t.Errorf("speed aggregates should be zero without readings: %+v", s)
	}
}

func TestSummarizeSpeeds(t *testing.T) {
	traj := []TrajectoryPoint{
		{Latitude: 10, Longitude: 10, GroundSpeedKPH: Float64(10)},
		{Latitude: 10, Longitude: 10.0001, GroundSpeedKPH: Float64(20)},
		{Latitude: 10, Longitude: 10.0002, GroundSpeedKPH: Float64(30)},
		{Latitude: 10, Longitude: 10.0003}, // no reading, excluded from speed stats
	}
	s := Summarize(traj)
	if s.Points != 4 {
		t.Errorf("Points = %d, want 4", s.Points)
	}
	if math.Abs(s.AvgSpeedKPH-20) > 1e-9 {
		t.Errorf("AvgSpeedKPH = %v, want 20", s.AvgSpeedKPH)
	}
	if s.MaxSpeedKPH != 30 {
		t.Errorf("MaxSpeedKPH = %v, want 30", s.MaxSpeedKPH)
	}
	if s.P95SpeedKPH < 20 || s.P95SpeedKPH > 30 {
		t.Errorf("P95SpeedKPH = %v, want within [20, 30]", s.P95SpeedKPH)
	}
}

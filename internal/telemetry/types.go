// Package telemetry holds the per-session sensor sample model and the track
// reconstruction pipeline that turns raw GPS readings into a clean trajectory.
package telemetry

import "time"

// RawSample is one telemetry reading as received from the feed. GPS and
// engine fields are nullable because collectors emit partial records when a
// sensor has no fix or no reading. A RawSample is never mutated after
// ingestion; the raw list is discarded once sanitisation has produced a
// trajectory.
type RawSample struct {
	ID             int64     `json:"id,omitempty"`
	VehicleID      string    `json:"vehicle_id,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
	Latitude       *float64  `json:"latitude"`
	Longitude      *float64  `json:"longitude"`
	GroundSpeedKPH *float64  `json:"ground_speed_kph"`
	EngineRPM      *int      `json:"engine_rpm"`
}

// TrajectoryPoint is a RawSample that survived sanitisation. Position is
// validated once at ingestion, so latitude and longitude are plain values;
// speed and engine readings stay nullable. A trajectory is strictly
// non-decreasing in time and every consecutive pair is within the plausible
// movement bound.
type TrajectoryPoint struct {
	Timestamp      time.Time `json:"timestamp"`
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	GroundSpeedKPH *float64  `json:"ground_speed_kph"`
	EngineRPM      *int      `json:"engine_rpm"`
}

// Helper constructors for nullable fields, used by tests and the store.
func Float64(v float64) *float64 { return &v }
func Int(v int) *int             { return &v }

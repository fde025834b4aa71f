package telemetry

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/fleetsight/fleetsight/internal/geo"
)

// Summary aggregates a cleaned trajectory for the vehicle detail view.
type Summary struct {
	Points         int     `json:"points"`
	DistanceMeters float64 `json:"distance_meters"`
	AvgSpeedKPH    float64 `json:"avg_speed_kph"`
	MaxSpeedKPH    float64 `json:"max_speed_kph"`
	P95SpeedKPH    float64 `json:"p95_speed_kph"`
}

// Summarize computes track statistics over the points that carry a speed
// reading. Speed aggregates are zero when no point has one.
func Summarize(trajectory []TrajectoryPoint) Summary {
	s := Summary{Points: len(trajectory)}

	for i := 1; i < len(trajectory); i++ {
		prev, curr := trajectory[i-1], trajectory[i]
		s.DistanceMeters += geo.DistanceMeters(prev.Latitude, prev.Longitude,
			curr.Latitude, curr.Longitude)
	}

	var speeds []float64
	for _, p := range trajectory {
		if p.GroundSpeedKPH != nil {
			speeds = append(speeds, *p.GroundSpeedKPH)
		}
	}
	if len(speeds) == 0 {
		return s
	}

	s.AvgSpeedKPH = stat.Mean(speeds, nil)

	sort.Float64s(speeds)
	s.MaxSpeedKPH = speeds[len(speeds)-1]
	s.P95SpeedKPH = stat.Quantile(0.95, stat.Empirical, speeds, nil)
	return s
}

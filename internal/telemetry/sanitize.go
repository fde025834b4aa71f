package telemetry

import (
	"math"
	"sort"

	"github.com/fleetsight/fleetsight/internal/geo"
)

// MaxJumpMeters is the plausible-movement bound between two consecutive
// readings. Any larger jump indicates a GPS glitch rather than real travel.
// This is a tuning choice, not a law of physics: it assumes road-vehicle
// speed profiles and the feed's typical sampling interval.
const MaxJumpMeters = 500.0

// Sanitize turns a raw, unordered, noisy sample list into a clean
// time-ordered trajectory using the default jump bound. It is total over any
// finite input: malformed samples are filtered, never reported as errors.
func Sanitize(samples []RawSample) []TrajectoryPoint {
	return SanitizeMaxJump(samples, MaxJumpMeters)
}

// SanitizeMaxJump is Sanitize with an explicit jump bound, for tuned
// deployments.
//
// The pipeline runs three stages in order:
//
//  1. Validity filter: drop samples with a missing, zero, or out-of-range
//     coordinate. Zero is the collector's "no fix" sentinel, so a genuine
//     reading at 0°,0° is dropped too; known limitation.
//  2. Stable sort ascending by timestamp. Equal timestamps keep their
//     arrival order.
//  3. Anchor-based outlier rejection: the first survivor is always accepted;
//     each later candidate is accepted only if its distance to the last
//     accepted point is strictly under the bound. Rejected points are
//     discarded permanently and never become the comparison anchor.
func SanitizeMaxJump(samples []RawSample, maxJumpMeters float64) []TrajectoryPoint {
	valid := make([]TrajectoryPoint, 0, len(samples))
	for _, s := range samples {
		if !hasValidFix(s) {
			continue
		}
		valid = append(valid, TrajectoryPoint{
			Timestamp:      s.Timestamp,
			Latitude:       *s.Latitude,
			Longitude:      *s.Longitude,
			GroundSpeedKPH: s.GroundSpeedKPH,
			EngineRPM:      s.EngineRPM,
		})
	}
	if len(valid) == 0 {
		return []TrajectoryPoint{}
	}

	sort.SliceStable(valid, func(i, j int) bool {
		return valid[i].Timestamp.Before(valid[j].Timestamp)
	})

	accepted := make([]TrajectoryPoint, 0, len(valid))
	accepted = append(accepted, valid[0])
	for _, candidate := range valid[1:] {
		anchor := accepted[len(accepted)-1]
		jump := geo.DistanceMeters(anchor.Latitude, anchor.Longitude,
			candidate.Latitude, candidate.Longitude)
		if jump < maxJumpMeters {
			accepted = append(accepted, candidate)
		}
	}
	return accepted
}

// hasValidFix reports whether a sample carries a usable GPS position.
func hasValidFix(s RawSample) bool {
	if s.Latitude == nil || s.Longitude == nil {
		return false
	}
	lat, lon := *s.Latitude, *s.Longitude
	if lat == 0 || lon == 0 {
		return false
	}
	return math.Abs(lat) <= 90 && math.Abs(lon) <= 180
}

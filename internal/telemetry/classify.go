package telemetry

// SpeedClass is the discrete bucket a ground speed falls into, used for
// path-segment colouring and the legend.
type SpeedClass int

const (
	SpeedUnknown SpeedClass = iota
	SpeedSlow
	SpeedMedium
	SpeedFast
)

// Classification thresholds in km/h.
const (
	SlowMaxKPH   = 5.0
	MediumMaxKPH = 15.0
)

// Classify maps a nullable ground speed in km/h to its bucket.
func Classify(speedKPH *float64) SpeedClass {
	if speedKPH == nil {
		return SpeedUnknown
	}
	switch {
	case *speedKPH < SlowMaxKPH:
		return SpeedSlow
	case *speedKPH < MediumMaxKPH:
		return SpeedMedium
	default:
		return SpeedFast
	}
}

// Color returns the fixed display colour for the class.
func (c SpeedClass) Color() string {
	switch c {
	case SpeedSlow:
		return "green"
	case SpeedMedium:
		return "amber"
	case SpeedFast:
		return "red"
	default:
		return "gray"
	}
}

// Label returns the legend label for the class.
func (c SpeedClass) Label() string {
	switch c {
	case SpeedSlow:
		return "Stationary/Slow"
	case SpeedMedium:
		return "Medium"
	case SpeedFast:
		return "Fast"
	default:
		return "No speed data"
	}
}

func (c SpeedClass) String() string {
	switch c {
	case SpeedSlow:
		return "slow"
	case SpeedMedium:
		return "medium"
	case SpeedFast:
		return "fast"
	default:
		return "unknown"
	}
}

// SegmentClass classifies the trajectory segment between two adjacent points
// by the average of the endpoint speeds. A missing endpoint speed counts as 0
// for the averaging only; the averaged value is always classified as a
// present speed.
func SegmentClass(a, b TrajectoryPoint) SpeedClass {
	avg := (speedOrZero(a) + speedOrZero(b)) / 2
	return Classify(&avg)
}

// SegmentClasses returns the class of each consecutive segment pair; the
// result has len(trajectory)-1 entries, or none for trajectories shorter
// than two points.
func SegmentClasses(trajectory []TrajectoryPoint) []SpeedClass {
	if len(trajectory) < 2 {
		return nil
	}
	classes := make([]SpeedClass, len(trajectory)-1)
	for i := range classes {
		classes[i] = SegmentClass(trajectory[i], trajectory[i+1])
	}
	return classes
}

func speedOrZero(p TrajectoryPoint) float64 {
	if p.GroundSpeedKPH == nil {
		return 0
	}
	return *p.GroundSpeedKPH
}

// Package view derives display-ready projections of playback state and
// orchestrates one visualization session between the telemetry feed, the
// playhead controller, and the renderer.
package view

import (
	"fmt"
	"strings"

	"github.com/fleetsight/fleetsight/internal/playback"
	"github.com/fleetsight/fleetsight/internal/telemetry"
)

// Readouts are padded with em-spaces so the info panel columns stay aligned
// in a proportional font.
const emSpace = " "

const (
	speedPlaceholder  = emSpace + emSpace + emSpace + "--"
	enginePlaceholder = "----"
)

// Readouts is a pure projection of (trajectory, playback state) for the
// info panel. It owns no state and is safe to derive on every transition.
type Readouts struct {
	Speed           string  `json:"speed"`
	Engine          string  `json:"engine"`
	Position        string  `json:"position"`
	ProgressPercent float64 `json:"progress_percent"`
}

// Project derives the readouts for the current playhead position.
func Project(trajectory []telemetry.TrajectoryPoint, st playback.State) Readouts {
	r := Readouts{
		Speed:           speedPlaceholder,
		Engine:          enginePlaceholder,
		Position:        PositionReadout(st.Index, len(trajectory)),
		ProgressPercent: ProgressPercent(st.Index, len(trajectory)),
	}
	if len(trajectory) == 0 {
		return r
	}
	p := trajectory[st.Index]
	r.Speed = SpeedReadout(p.GroundSpeedKPH)
	r.Engine = EngineReadout(p.EngineRPM)
	return r
}

// SpeedReadout formats a nullable ground speed to one decimal place,
// left-padded to width 5.
func SpeedReadout(speedKPH *float64) string {
	if speedKPH == nil {
		return speedPlaceholder
	}
	return padLeft(fmt.Sprintf("%.1f", *speedKPH), 5)
}

// EngineReadout formats a nullable engine speed, left-padded to width 4.
func EngineReadout(rpm *int) string {
	if rpm == nil {
		return enginePlaceholder
	}
	return padLeft(fmt.Sprintf("%d", *rpm), 4)
}

// PositionReadout renders "current / total" with the one-based current
// position left-padded to the digit width of the total.
func PositionReadout(index, total int) string {
	if total == 0 {
		return "0 / 0"
	}
	width := len(fmt.Sprintf("%d", total))
	return fmt.Sprintf("%s / %d", padLeft(fmt.Sprintf("%d", index+1), width), total)
}

// ProgressPercent is the playhead position as a percentage of the
// trajectory, 0 for trajectories of one point or fewer.
func ProgressPercent(index, total int) float64 {
	if total <= 1 {
		return 0
	}
	return float64(index) / float64(total-1) * 100
}

// padLeft pads s with em-spaces to width runes. Strings already at or past
// the width pass through unchanged.
func padLeft(s string, width int) string {
	n := width - len([]rune(s))
	if n <= 0 {
		return s
	}
	return strings.Repeat(emSpace, n) + s
}

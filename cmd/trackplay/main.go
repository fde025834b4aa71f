// Command trackplay replays one vehicle's cleaned track in the terminal,
// printing the playhead readouts frame by frame at the configured rate.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/fleetsight/fleetsight/internal/config"
	"github.com/fleetsight/fleetsight/internal/playback"
	"github.com/fleetsight/fleetsight/internal/store"
	"github.com/fleetsight/fleetsight/internal/telemetry"
	"github.com/fleetsight/fleetsight/internal/view"
)

var (
	dbFile     = flag.String("db", "telemetry.db", "Path to the telemetry database")
	vehicleID  = flag.String("vehicle", "", "Vehicle to replay (required)")
	rate       = flag.Float64("rate", 1.0, "Playback rate (0.5, 1, 2, or 4)")
	tuningFile = flag.String("tuning", "", "Optional tuning config JSON")
)

// ANSI colours for the segment classes.
var classColors = map[string]string{
	"green": "\033[32m",
	"amber": "\033[33m",
	"red":   "\033[31m",
	"gray":  "\033[90m",
}

const colorReset = "\033[0m"

// terminalRenderer writes track and playhead updates to stdout.
type terminalRenderer struct {
	done chan struct{}
	last int
}

func (r *terminalRenderer) RenderTrack(trajectory []telemetry.TrajectoryPoint, classes []telemetry.SpeedClass) {
	summary := telemetry.Summarize(trajectory)
	fmt.Printf("track: %d points, %.0f m, avg %.1f km/h, max %.1f km/h\n",
		summary.Points, summary.DistanceMeters, summary.AvgSpeedKPH, summary.MaxSpeedKPH)
	for i, class := range classes {
		color := classColors[class.Color()]
		fmt.Printf("  segment %3d: %s%-7s%s %s\n", i, color, class.String(), colorReset, class.Label())
	}
	r.last = len(trajectory) - 1
}

func (r *terminalRenderer) RenderNoData() {
	fmt.Println("no data to display")
	close(r.done)
}

func (r *terminalRenderer) RenderPlayhead(point telemetry.TrajectoryPoint, st playback.State, readouts view.Readouts) {
	fmt.Printf("[%s] (%9.5f, %10.5f) speed %s km/h  rpm %s  %s  %5.1f%%\n",
		point.Timestamp.Format("15:04:05"),
		point.Latitude, point.Longitude,
		readouts.Speed, readouts.Engine, readouts.Position, readouts.ProgressPercent)

	// The final tick stops and rewinds; that transition ends the replay.
	if !st.Playing && st.Index == 0 && r.last > 0 {
		select {
		case <-r.done:
		default:
			close(r.done)
		}
	}
}

func main() {
	flag.Parse()

	if *vehicleID == "" {
		log.Fatal("vehicle is required")
	}
	if !playback.IsValidRate(*rate) {
		log.Fatalf("invalid rate %v (valid: 0.5, 1, 2, 4)", *rate)
	}

	tuning := config.EmptyTuningConfig()
	if *tuningFile != "" {
		var err error
		tuning, err = config.LoadTuningConfig(*tuningFile)
		if err != nil {
			log.Fatalf("failed to load tuning config: %v", err)
		}
	}

	st, err := store.NewStore(*dbFile)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer st.Close()

	renderer := &terminalRenderer{done: make(chan struct{})}
	session := view.NewSession(st, renderer, nil, playback.Config{
		TickInterval: tuning.GetTickInterval(),
		SkipFraction: tuning.GetSkipFraction(),
	})
	session.SetMaxJump(tuning.GetMaxJumpMeters())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := session.Activate(ctx, *vehicleID); err != nil {
		log.Fatalf("failed to activate session: %v", err)
	}
	if len(session.Trajectory()) == 0 {
		os.Exit(0)
	}

	ctrl := session.Controller()
	if err := ctrl.SetRate(*rate); err != nil {
		log.Fatalf("failed to set rate: %v", err)
	}
	ctrl.Play()

	select {
	case <-renderer.done:
	case <-ctx.Done():
		ctrl.Pause()
		fmt.Println("\ninterrupted")
	}
}

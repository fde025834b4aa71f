package view

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/fleetsight/fleetsight/internal/monitoring"
	"github.com/fleetsight/fleetsight/internal/playback"
	"github.com/fleetsight/fleetsight/internal/telemetry"
	"github.com/fleetsight/fleetsight/internal/timeutil"
)

// ErrFeedUnavailable wraps a failed bulk fetch. It is reported once per
// activation; there is no retry inside the session.
var ErrFeedUnavailable = errors.New("view: telemetry feed unavailable")

// Feed is the inbound collaborator: one bulk read per view activation.
type Feed interface {
	FetchRawSamples(ctx context.Context, vehicleID string) ([]telemetry.RawSample, error)
}

// Renderer is the outbound collaborator. The session pushes: the full
// cleaned trajectory with per-segment classes on every replacement, and the
// current point with its readouts on every playhead change. Renderer
// methods are invoked synchronously from controller notifications and must
// not call back into the session or its controller.
type Renderer interface {
	// RenderTrack is called when the trajectory is replaced.
	RenderTrack(trajectory []telemetry.TrajectoryPoint, classes []telemetry.SpeedClass)

	// RenderNoData is called when sanitisation produced an empty trajectory.
	RenderNoData()

	// RenderPlayhead is called on every playhead state change.
	RenderPlayhead(point telemetry.TrajectoryPoint, st playback.State, readouts Readouts)
}

// Session binds one vehicle's movement-visualization view together: it
// fetches raw samples, sanitises them into a trajectory, and owns the
// playhead controller for that trajectory's lifetime. Re-activation
// replaces trajectory and controller state together, never one without the
// other.
type Session struct {
	ID       string
	feed     Feed
	renderer Renderer
	ctrl     *playback.Controller

	mu         sync.Mutex
	maxJump    float64
	trajectory []telemetry.TrajectoryPoint
	vehicleID  string
}

// NewSession creates a session around a feed and renderer. The controller
// starts stopped with an empty trajectory; call Activate to load data.
func NewSession(feed Feed, renderer Renderer, clock timeutil.Clock, cfg playback.Config) *Session {
	s := &Session{
		ID:       uuid.NewString(),
		feed:     feed,
		renderer: renderer,
		ctrl:     playback.NewController(clock, cfg),
		maxJump:  telemetry.MaxJumpMeters,
	}
	s.ctrl.Subscribe(s.onStateChange)
	return s
}

// SetMaxJump overrides the sanitiser's jump bound for subsequent
// activations, in meters. Values at or below zero are ignored.
func (s *Session) SetMaxJump(meters float64) {
	if meters <= 0 {
		return
	}
	s.mu.Lock()
	s.maxJump = meters
	s.mu.Unlock()
}

// Controller exposes the transport surface (play, pause, seek, skip, rate)
// for the session's playhead.
func (s *Session) Controller() *playback.Controller {
	return s.ctrl
}

// Trajectory returns the cleaned trajectory currently driving the view.
// Callers must not mutate it.
func (s *Session) Trajectory() []telemetry.TrajectoryPoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trajectory
}

// Activate performs the one bulk fetch for a vehicle, sanitises the result,
// and swaps the trajectory in. A fetch failure is surfaced as a single
// ErrFeedUnavailable; an empty trajectory is not an error, just a state in
// which playback operations are no-ops.
func (s *Session) Activate(ctx context.Context, vehicleID string) error {
	raw, err := s.feed.FetchRawSamples(ctx, vehicleID)
	if err != nil {
		return fmt.Errorf("%w: vehicle %s: %v", ErrFeedUnavailable, vehicleID, err)
	}

	s.mu.Lock()
	maxJump := s.maxJump
	s.mu.Unlock()

	trajectory := telemetry.SanitizeMaxJump(raw, maxJump)
	monitoring.Logf("session %s: vehicle %s: %d raw samples -> %d trajectory points",
		s.ID, vehicleID, len(raw), len(trajectory))

	s.mu.Lock()
	s.trajectory = trajectory
	s.vehicleID = vehicleID
	s.mu.Unlock()

	// Controller state and trajectory are replaced together; the reset
	// notification re-renders the playhead at index 0.
	s.ctrl.SetTrajectory(trajectory)

	if len(trajectory) == 0 {
		s.renderer.RenderNoData()
		return nil
	}
	s.renderer.RenderTrack(trajectory, telemetry.SegmentClasses(trajectory))
	return nil
}

// onStateChange pushes the current point and readouts to the renderer. It
// runs synchronously inside controller notifications, so renderer updates
// arrive in strict index order during automatic playback.
func (s *Session) onStateChange(st playback.State) {
	s.mu.Lock()
	trajectory := s.trajectory
	s.mu.Unlock()

	if len(trajectory) == 0 || st.Index >= len(trajectory) {
		return
	}
	s.renderer.RenderPlayhead(trajectory[st.Index], st, Project(trajectory, st))
}

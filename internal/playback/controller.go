// Package playback drives a controllable virtual playhead over a cleaned
// trajectory: transport operations (play, pause, seek, skip, rate) plus the
// timing loop that advances the playhead during automatic playback.
package playback

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/fleetsight/fleetsight/internal/telemetry"
	"github.com/fleetsight/fleetsight/internal/timeutil"
)

// BaseTickInterval is the playhead advance period at 1x rate. Tunable, not a
// law of physics: it matches the feed's typical sampling cadence.
const BaseTickInterval = 150 * time.Millisecond

// DefaultSkipFraction is the share of the trajectory covered by one
// skip back/forward step.
const DefaultSkipFraction = 0.1

// ValidRates are the permitted playback rate multipliers.
var ValidRates = []float64{0.5, 1, 2, 4}

// ErrInvalidRate is returned by SetRate for a rate outside ValidRates. An
// invalid rate is a caller bug, so it is rejected rather than clamped.
var ErrInvalidRate = errors.New("playback: invalid rate")

// IsValidRate reports whether r is a permitted playback rate.
func IsValidRate(r float64) bool {
	for _, v := range ValidRates {
		if r == v {
			return true
		}
	}
	return false
}

// State is a snapshot of the playhead. Index is always a valid index into
// the current trajectory, or 0 when the trajectory is empty.
type State struct {
	Index   int     `json:"index"`
	Playing bool    `json:"playing"`
	Rate    float64 `json:"rate"`
}

// Config holds controller tuning. Zero values fall back to defaults.
type Config struct {
	// TickInterval is the playhead advance period at 1x rate.
	TickInterval time.Duration

	// SkipFraction is the share of the trajectory one skip step covers.
	SkipFraction float64
}

// DefaultConfig returns the production tuning.
func DefaultConfig() Config {
	return Config{
		TickInterval: BaseTickInterval,
		SkipFraction: DefaultSkipFraction,
	}
}

// Controller owns the playhead state for one visualization session. All
// transport operations and timer ticks are serialized by one mutex, so
// subscribers observe transitions in order; during automatic playback that
// order is strict index order. The trajectory is replaced wholesale and
// never patched, which keeps Index valid for the currently held points.
type Controller struct {
	mu         sync.Mutex
	clock      timeutil.Clock
	cfg        Config
	trajectory []telemetry.TrajectoryPoint
	state      State

	// ticker is the single live timer; generation invalidates in-flight
	// ticks from a previous timer so nothing fires after Pause returns.
	// tickerQuit is closed on stop so the tick goroutine exits even when
	// no further tick is ever delivered.
	ticker     timeutil.Ticker
	tickerQuit chan struct{}
	generation uint64

	subscribers []func(State)
}

// NewController creates a stopped controller at index 0 with rate 1 and an
// empty trajectory.
func NewController(clock timeutil.Clock, cfg Config) *Controller {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = BaseTickInterval
	}
	if cfg.SkipFraction <= 0 {
		cfg.SkipFraction = DefaultSkipFraction
	}
	return &Controller{
		clock: clock,
		cfg:   cfg,
		state: State{Rate: 1},
	}
}

// Subscribe registers fn to be invoked synchronously on every state
// transition. Subscribers run with the controller lock held and must not
// call back into the controller.
func (c *Controller) Subscribe(fn func(State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribers = append(c.subscribers, fn)
}

// SetTrajectory replaces the trajectory and resets the playhead together:
// playback stops, index returns to 0. The slice is treated as immutable
// read-only state from here on.
func (c *Controller) SetTrajectory(points []telemetry.TrajectoryPoint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopTickerLocked()
	c.trajectory = points
	c.state.Playing = false
	c.state.Index = 0
	c.notifyLocked()
}

// Trajectory returns the currently held trajectory. Callers must not
// mutate it.
func (c *Controller) Trajectory() []telemetry.TrajectoryPoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.trajectory
}

// State returns a snapshot of the playhead.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Point returns the current trajectory point, or ok=false when the
// trajectory is empty.
func (c *Controller) Point() (telemetry.TrajectoryPoint, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.trajectory) == 0 {
		return telemetry.TrajectoryPoint{}, false
	}
	return c.trajectory[c.state.Index], true
}

// Play starts automatic playback. No-op on an empty trajectory or when
// already playing; the single-timer guarantee means starting playback never
// stacks a second ticker.
func (c *Controller) Play() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.trajectory) == 0 || c.state.Playing {
		return
	}
	c.state.Playing = true
	c.startTickerLocked()
	c.notifyLocked()
}

// Pause stops automatic playback. Idempotent. When Pause returns, no
// further tick is observable: any in-flight tick from the cancelled timer
// is invalidated before the lock is released.
func (c *Controller) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.state.Playing {
		return
	}
	c.stopTickerLocked()
	c.state.Playing = false
	c.notifyLocked()
}

// Reset pauses playback and rewinds the playhead to 0.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	wasPlaying := c.state.Playing
	if wasPlaying {
		c.stopTickerLocked()
		c.state.Playing = false
	}
	moved := c.state.Index != 0
	c.state.Index = 0
	if wasPlaying || moved {
		c.notifyLocked()
	}
}

// Seek moves the playhead to index, clamped to the trajectory bounds. It
// does not change whether playback is running. No-op on an empty
// trajectory.
func (c *Controller) Seek(index int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seekLocked(index)
}

// SkipBack moves the playhead backward by one skip step.
func (c *Controller) SkipBack() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seekLocked(c.state.Index - c.skipStepLocked())
}

// SkipForward moves the playhead forward by one skip step.
func (c *Controller) SkipForward() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seekLocked(c.state.Index + c.skipStepLocked())
}

// SetRate changes the playback rate to one of ValidRates. If playback is
// running the timer is restarted at the new period under the lock, so the
// change takes effect without a stale long-period tick firing first.
func (c *Controller) SetRate(rate float64) error {
	if !IsValidRate(rate) {
		return fmt.Errorf("%w: %v (valid: %v)", ErrInvalidRate, rate, ValidRates)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if rate == c.state.Rate {
		return nil
	}
	c.state.Rate = rate
	if c.state.Playing {
		c.stopTickerLocked()
		c.startTickerLocked()
	}
	c.notifyLocked()
	return nil
}

// seekLocked clamps and applies a playhead move, notifying only when the
// index actually changes.
func (c *Controller) seekLocked(index int) {
	if len(c.trajectory) == 0 {
		return
	}
	if index < 0 {
		index = 0
	}
	if index > len(c.trajectory)-1 {
		index = len(c.trajectory) - 1
	}
	if index == c.state.Index {
		return
	}
	c.state.Index = index
	c.notifyLocked()
}

func (c *Controller) skipStepLocked() int {
	return int(c.cfg.SkipFraction * float64(len(c.trajectory)))
}

// tickPeriodLocked derives the ticker period from the configured base
// interval and the current rate.
func (c *Controller) tickPeriodLocked() time.Duration {
	return time.Duration(math.Round(float64(c.cfg.TickInterval) / c.state.Rate))
}

func (c *Controller) startTickerLocked() {
	c.generation++
	gen := c.generation
	ticker := c.clock.NewTicker(c.tickPeriodLocked())
	quit := make(chan struct{})
	c.ticker = ticker
	c.tickerQuit = quit
	go c.runTicks(ticker, quit, gen)
}

// stopTickerLocked cancels the live timer and bumps the generation so any
// tick already dequeued by runTicks is dropped when it reaches the lock.
// Closing the quit channel unparks the tick goroutine; a stopped ticker
// never delivers again, so waiting on its channel alone would leak it.
func (c *Controller) stopTickerLocked() {
	if c.ticker != nil {
		c.ticker.Stop()
		c.ticker = nil
	}
	if c.tickerQuit != nil {
		close(c.tickerQuit)
		c.tickerQuit = nil
	}
	c.generation++
}

// runTicks drains the ticker until its generation is invalidated or the
// quit channel closes.
func (c *Controller) runTicks(ticker timeutil.Ticker, quit <-chan struct{}, gen uint64) {
	for {
		select {
		case <-quit:
			return
		case _, ok := <-ticker.C():
			if !ok {
				return
			}
			if !c.step(gen) {
				return
			}
		}
	}
}

// step applies one automatic playhead advance. A tick at the final index
// stops playback and rewinds to the start rather than replaying.
func (c *Controller) step(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation || !c.state.Playing {
		return false
	}
	if c.state.Index >= len(c.trajectory)-1 {
		c.stopTickerLocked()
		c.state.Playing = false
		c.state.Index = 0
		c.notifyLocked()
		return false
	}
	c.state.Index++
	c.notifyLocked()
	return true
}

func (c *Controller) notifyLocked() {
	for _, fn := range c.subscribers {
		fn(c.state)
	}
}

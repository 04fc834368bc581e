// File: internal/actuator/actuator.go

// Package actuator turns scroll intentions into touch gestures on a blind
// device. There is no pixel feedback: once a plan says "N gestures", the only
// way to land near the predicted position is to keep the cumulative swiped
// distance pinned to N times the nominal distance, even though each individual
// gesture is randomized to look human. The debt accumulator does exactly that.
package actuator

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TouchInjector is the single gesture primitive the actuator consumes: a swipe
// from (x1,y1) to (x2,y2) over a duration. The transport behind it (adb, CDP
// input domain, anything else) is not the actuator's concern.
type TouchInjector interface {
	Swipe(ctx context.Context, x1, y1, x2, y2 int, duration time.Duration) error
}

// Mode selects how a gesture distance is chosen.
type Mode int

const (
	// ModeCompensated randomizes every gesture while folding the running
	// error into the next one, so the sequence total converges on
	// count * nominal distance. Used whenever a plan's gesture count must
	// translate into a predictable total distance.
	ModeCompensated Mode = iota
	// ModeFixed swipes exactly the nominal distance. Used for calibration.
	ModeFixed
	// ModeRandom jitters freely with no error tracking. Fine for browsing
	// where nobody counts pixels.
	ModeRandom
)

func (m Mode) String() string {
	switch m {
	case ModeCompensated:
		return "compensated"
	case ModeFixed:
		return "fixed"
	case ModeRandom:
		return "random"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Config tunes gesture synthesis for one device session.
type Config struct {
	// NominalDistance is the per-gesture baseline in pixels. Predictions are
	// made against this value, so compensated gestures never exceed it.
	NominalDistance int
	// RandomWindow is the full width of the distance randomization window.
	RandomWindow int

	// Swipe column and travel on the device screen.
	ScrollX      int
	ScrollStartY int
	ScrollEndY   int
	// XJitter widens the swipe column by +/- this many pixels.
	XJitter int

	// Swipe duration range.
	DurationMin time.Duration
	DurationMax time.Duration

	// Probabilistic pause after a gesture, as if stopping to read.
	ReadingPauseEnabled     bool
	ReadingPauseProbability float64
	ReadingPauseMin         time.Duration
	ReadingPauseMax         time.Duration

	// Rng overrides the random source; nil seeds from the clock. Tests
	// inject a fixed seed here.
	Rng *rand.Rand
}

// Actuator owns the debt state for exactly one device session. Sharing an
// actuator across devices would cross-contaminate their error accounting.
type Actuator struct {
	device TouchInjector
	cfg    Config
	rng    *rand.Rand
	log    *zap.Logger

	// debt is the signed accumulated error against the nominal distance:
	// positive means the device has scrolled further than nominal so far.
	debt int
}

// New creates an actuator for a single device session.
func New(device TouchInjector, cfg Config, logger *zap.Logger) (*Actuator, error) {
	if cfg.NominalDistance <= 0 {
		return nil, fmt.Errorf("actuator: nominal distance must be positive, got %d", cfg.NominalDistance)
	}
	if cfg.RandomWindow < 0 {
		return nil, fmt.Errorf("actuator: random window must not be negative, got %d", cfg.RandomWindow)
	}

	rng := cfg.Rng
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	return &Actuator{
		device: device,
		cfg:    cfg,
		rng:    rng,
		log: logger.Named("actuator").With(
			zap.String("session", uuid.NewString()[:8])),
	}, nil
}

// ResetDebt marks the start of a new bounded scroll sequence. Debt never
// carries over between unrelated sequences.
func (a *Actuator) ResetDebt() {
	a.debt = 0
}

// Debt reports the current signed error in pixels.
func (a *Actuator) Debt() int {
	return a.debt
}

// ScrollDown issues one downward scroll gesture (content moves up) and returns
// the actual swiped distance.
func (a *Actuator) ScrollDown(ctx context.Context, mode Mode) (int, error) {
	distance := a.chooseDistance(mode)

	x := a.cfg.ScrollX
	if mode != ModeFixed && a.cfg.XJitter > 0 {
		x += a.rng.Intn(2*a.cfg.XJitter+1) - a.cfg.XJitter
	}

	startY := a.cfg.ScrollStartY
	if err := a.swipe(ctx, x, startY, x, startY-distance); err != nil {
		return 0, err
	}

	if mode == ModeCompensated {
		a.debt += distance - a.cfg.NominalDistance
		a.log.Debug("Compensated gesture issued",
			zap.Int("distance", distance),
			zap.Int("debt", a.debt))
	}

	if mode != ModeFixed {
		a.maybeReadingPause(ctx)
	}
	return distance, nil
}

// ScrollUp issues one upward recovery gesture (content moves down) at a plain
// randomized distance. Upward travel is never part of a compensated sequence.
func (a *Actuator) ScrollUp(ctx context.Context) (int, error) {
	distance := a.randomAround(a.cfg.NominalDistance, a.cfg.RandomWindow)

	x := a.cfg.ScrollX
	if a.cfg.XJitter > 0 {
		x += a.rng.Intn(2*a.cfg.XJitter+1) - a.cfg.XJitter
	}

	startY := a.cfg.ScrollEndY
	if err := a.swipe(ctx, x, startY, x, startY+distance); err != nil {
		return 0, err
	}
	return distance, nil
}

// chooseDistance picks the distance for one downward gesture.
func (a *Actuator) chooseDistance(mode Mode) int {
	nominal := a.cfg.NominalDistance
	window := a.cfg.RandomWindow

	switch mode {
	case ModeFixed:
		return nominal
	case ModeRandom:
		return a.randomAround(nominal, window)
	}

	// Compensated: aim for the nominal distance minus what previous gestures
	// already over- or under-shot, then randomize inside a window that is
	// clamped so a single gesture never exceeds the nominal baseline.
	target := nominal - a.debt

	lo := max(nominal-window, target-window/2)
	hi := min(nominal, target+window/2)
	if lo > hi {
		lo, hi = hi, lo
	}

	return lo + a.rng.Intn(hi-lo+1)
}

// randomAround returns a uniform distance in [nominal-window, nominal+window].
func (a *Actuator) randomAround(nominal, window int) int {
	if window <= 0 {
		return nominal
	}
	return nominal + a.rng.Intn(2*window+1) - window
}

func (a *Actuator) swipe(ctx context.Context, x1, y1, x2, y2 int) error {
	duration := a.cfg.DurationMin
	if spread := a.cfg.DurationMax - a.cfg.DurationMin; spread > 0 {
		duration += time.Duration(a.rng.Int63n(int64(spread)))
	}
	if err := a.device.Swipe(ctx, x1, y1, x2, y2, duration); err != nil {
		return fmt.Errorf("actuator: swipe failed: %w", err)
	}
	return nil
}

// maybeReadingPause occasionally sleeps as if the user stopped to read.
func (a *Actuator) maybeReadingPause(ctx context.Context) {
	cfg := a.cfg
	if !cfg.ReadingPauseEnabled || a.rng.Float64() >= cfg.ReadingPauseProbability {
		return
	}

	pause := cfg.ReadingPauseMin
	if spread := cfg.ReadingPauseMax - cfg.ReadingPauseMin; spread > 0 {
		pause += time.Duration(a.rng.Int63n(int64(spread)))
	}

	a.log.Debug("Reading pause", zap.Duration("pause", pause))
	select {
	case <-ctx.Done():
	case <-time.After(pause):
	}
}

// File: internal/actuator/actuator_test.go
package actuator

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// recordingInjector captures every swipe it is asked to perform.
type recordingInjector struct {
	swipes []swipe
	err    error
}

type swipe struct {
	x1, y1, x2, y2 int
	duration       time.Duration
}

func (r *recordingInjector) Swipe(_ context.Context, x1, y1, x2, y2 int, d time.Duration) error {
	if r.err != nil {
		return r.err
	}
	r.swipes = append(r.swipes, swipe{x1, y1, x2, y2, d})
	return nil
}

func testConfig(seed int64) Config {
	return Config{
		NominalDistance: 400,
		RandomWindow:    200,
		ScrollX:         360,
		ScrollStartY:    1100,
		ScrollEndY:      400,
		XJitter:         30,
		DurationMin:     300 * time.Millisecond,
		DurationMax:     600 * time.Millisecond,
		Rng:             rand.New(rand.NewSource(seed)),
	}
}

func newTestActuator(t *testing.T, inj TouchInjector, seed int64) *Actuator {
	t.Helper()
	a, err := New(inj, testConfig(seed), zap.NewNop())
	require.NoError(t, err)
	return a
}

func TestNewRejectsBadConfig(t *testing.T) {
	_, err := New(&recordingInjector{}, Config{NominalDistance: 0}, zap.NewNop())
	assert.Error(t, err)

	_, err = New(&recordingInjector{}, Config{NominalDistance: 400, RandomWindow: -1}, zap.NewNop())
	assert.Error(t, err)
}

func TestFixedModeIsExact(t *testing.T) {
	inj := &recordingInjector{}
	a := newTestActuator(t, inj, 1)

	dist, err := a.ScrollDown(context.Background(), ModeFixed)
	require.NoError(t, err)
	assert.Equal(t, 400, dist)

	require.Len(t, inj.swipes, 1)
	s := inj.swipes[0]
	assert.Equal(t, 360, s.x1, "fixed mode must not jitter the swipe column")
	assert.Equal(t, s.x1, s.x2)
	assert.Equal(t, 1100, s.y1)
	assert.Equal(t, 700, s.y2)
	assert.Equal(t, 0, a.Debt(), "fixed gestures do not touch the debt")
}

func TestCompensatedGestureNeverExceedsNominal(t *testing.T) {
	for seed := int64(0); seed < 20; seed++ {
		inj := &recordingInjector{}
		a := newTestActuator(t, inj, seed)
		a.ResetDebt()

		for i := 0; i < 50; i++ {
			dist, err := a.ScrollDown(context.Background(), ModeCompensated)
			require.NoError(t, err)
			assert.LessOrEqual(t, dist, 400, "seed=%d gesture=%d", seed, i)
			assert.GreaterOrEqual(t, dist, 200, "seed=%d gesture=%d", seed, i)
		}
	}
}

func TestCompensatedSequenceBoundedDrift(t *testing.T) {
	// Over K gestures the sum of actual distances must stay within one
	// gesture's randomization window of K * nominal, even though every
	// individual distance is random.
	const gestures = 40
	const nominal = 400
	const window = 200

	for seed := int64(0); seed < 25; seed++ {
		inj := &recordingInjector{}
		a := newTestActuator(t, inj, seed)
		a.ResetDebt()

		total := 0
		for i := 0; i < gestures; i++ {
			dist, err := a.ScrollDown(context.Background(), ModeCompensated)
			require.NoError(t, err)
			total += dist
		}

		drift := gestures*nominal - total
		assert.GreaterOrEqual(t, drift, 0, "seed=%d: compensated total overshot", seed)
		assert.LessOrEqual(t, drift, window, "seed=%d: drift escaped the window", seed)
		assert.Equal(t, total, gestures*nominal+a.Debt(),
			"seed=%d: debt must account exactly for the drift", seed)
	}
}

func TestResetDebtStartsSequenceClean(t *testing.T) {
	inj := &recordingInjector{}
	a := newTestActuator(t, inj, 7)

	for i := 0; i < 5; i++ {
		_, err := a.ScrollDown(context.Background(), ModeCompensated)
		require.NoError(t, err)
	}

	a.ResetDebt()
	assert.Equal(t, 0, a.Debt())
}

func TestRandomModeDoesNotAccumulateDebt(t *testing.T) {
	inj := &recordingInjector{}
	a := newTestActuator(t, inj, 3)

	for i := 0; i < 10; i++ {
		dist, err := a.ScrollDown(context.Background(), ModeRandom)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, dist, 200)
		assert.LessOrEqual(t, dist, 600)
	}
	assert.Equal(t, 0, a.Debt())
}

func TestScrollUpSwipesDownward(t *testing.T) {
	inj := &recordingInjector{}
	a := newTestActuator(t, inj, 11)

	dist, err := a.ScrollUp(context.Background())
	require.NoError(t, err)
	require.Len(t, inj.swipes, 1)

	s := inj.swipes[0]
	assert.Equal(t, 400, s.y1)
	assert.Equal(t, 400+dist, s.y2, "scroll up swipes toward the screen bottom")
}

func TestSwipeDurationStaysInRange(t *testing.T) {
	inj := &recordingInjector{}
	a := newTestActuator(t, inj, 13)

	for i := 0; i < 20; i++ {
		_, err := a.ScrollDown(context.Background(), ModeRandom)
		require.NoError(t, err)
	}
	for _, s := range inj.swipes {
		assert.GreaterOrEqual(t, s.duration, 300*time.Millisecond)
		assert.Less(t, s.duration, 600*time.Millisecond)
	}
}

func TestInjectorFailurePropagates(t *testing.T) {
	inj := &recordingInjector{err: errors.New("device offline")}
	a := newTestActuator(t, inj, 17)

	_, err := a.ScrollDown(context.Background(), ModeCompensated)
	require.Error(t, err)
	assert.Equal(t, 0, a.Debt(), "a failed swipe must not charge the debt")
}

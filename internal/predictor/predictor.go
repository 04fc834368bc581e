// File: internal/predictor/predictor.go

// Package predictor converts a measured element position into the number of
// scroll gestures needed to bring it to a desired spot on the device screen.
// The device gives no feedback, so the count has to be right up front; the two
// policies below trade overshoot risk differently.
package predictor

import "math"

// Params carries the calibration model for the margin-padded policy.
type Params struct {
	// GestureDistance is the nominal per-gesture scroll distance in pixels.
	GestureDistance float64
	// Calibration discounts the nominal distance for swipe-to-scroll loss
	// (a 400px swipe typically moves the page ~340px). Must be <= 1.
	Calibration float64
	// Margin padding: extra gestures proportional to the raw count, clamped
	// to [MarginMin, MarginMax].
	MarginRatio float64
	MarginMin   int
	MarginMax   int
}

// MarginPaddedCount predicts the gesture count for the broad search phase,
// where overshooting the target is acceptable and undershooting means extra
// blind probing. The calibration factor shrinks the effective per-gesture
// distance and a clamped margin pads the result.
func MarginPaddedCount(elementY, targetFraction, viewportHeight float64, p Params) int {
	targetScreenY := viewportHeight * targetFraction
	need := elementY - targetScreenY

	effective := p.GestureDistance * p.Calibration
	if effective <= 0 {
		return 0
	}

	raw := need / effective

	margin := int(math.Round(raw * p.MarginRatio))
	if margin < p.MarginMin {
		margin = p.MarginMin
	}
	if margin > p.MarginMax {
		margin = p.MarginMax
	}

	count := int(math.Floor(raw)) + margin
	if count < 0 {
		return 0
	}
	return count
}

// MarginFreeCount predicts the gesture count for the final approach to a
// specific link. No calibration is applied because the compensating actuator
// already normalizes every gesture to the nominal distance, and no margin is
// added: the count always rounds down. Undershoot is recovered by scrolling
// a little further; overshoot would require scrolling back past content the
// session has already "read", which is the expensive direction.
func MarginFreeCount(elementY, targetFraction, viewportHeight, gestureDistance float64) int {
	if gestureDistance <= 0 {
		return 0
	}

	targetScreenY := viewportHeight * targetFraction
	need := elementY - targetScreenY

	count := int(math.Floor(need / gestureDistance))
	if count < 0 {
		return 0
	}
	return count
}

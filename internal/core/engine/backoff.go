package engine

import (
	"math"
	"math/rand/v2"
	"time"
)

// minEnforcedDelay is the floor applied after jitter so random rolls can
// never produce a zero or negative sleep.
const minEnforcedDelay = time.Second

// BackoffDelay computes the exponential delay for the given attempt:
// min(base * multiplier^attempt, cap). Attempt 0 yields the base delay.
func BackoffDelay(attempt int, base time.Duration, multiplier float64, cap time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	if attempt < 0 {
		attempt = 0
	}
	if multiplier < 1 {
		multiplier = 1
	}

	delay := float64(base) * math.Pow(multiplier, float64(attempt))
	if cap > 0 && delay > float64(cap) {
		return cap
	}
	if delay > float64(math.MaxInt64) {
		return cap
	}
	return time.Duration(delay)
}

// AddJitter spreads a delay uniformly within ±percent/2 of its value,
// clamped to the 1s floor. percent is a ratio, e.g. 0.3 for ±15%.
func AddJitter(d time.Duration, percent float64) time.Duration {
	return jitterWith(d, percent, rand.Float64())
}

// jitterWith applies the jitter formula with an explicit roll in [0,1).
func jitterWith(d time.Duration, percent float64, roll float64) time.Duration {
	if d <= 0 {
		return minEnforcedDelay
	}
	if percent < 0 {
		percent = 0
	}

	// Uniform in [1 - percent/2, 1 + percent/2).
	factor := 1 + percent*(roll-0.5)
	jittered := time.Duration(float64(d) * factor)
	if jittered < minEnforcedDelay {
		return minEnforcedDelay
	}
	return jittered
}

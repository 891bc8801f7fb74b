package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBackoffDelayGrowth(t *testing.T) {
	base := 10 * time.Second
	cap := 5 * time.Minute

	require.Equal(t, 10*time.Second, BackoffDelay(0, base, 2, cap))
	require.Equal(t, 20*time.Second, BackoffDelay(1, base, 2, cap))
	require.Equal(t, 40*time.Second, BackoffDelay(2, base, 2, cap))
	require.Equal(t, 80*time.Second, BackoffDelay(3, base, 2, cap))
}

func TestBackoffDelayCapped(t *testing.T) {
	require.Equal(t, time.Minute, BackoffDelay(10, 10*time.Second, 2, time.Minute))
	require.Equal(t, time.Minute, BackoffDelay(100, 10*time.Second, 2, time.Minute))
}

func TestBackoffDelayDegenerateInputs(t *testing.T) {
	require.Equal(t, time.Duration(0), BackoffDelay(3, 0, 2, time.Minute))
	require.Equal(t, 10*time.Second, BackoffDelay(-1, 10*time.Second, 2, time.Minute))
	// Multiplier below 1 must never shrink the delay.
	require.Equal(t, 10*time.Second, BackoffDelay(4, 10*time.Second, 0.5, time.Minute))
}

func TestJitterBounds(t *testing.T) {
	cases := []struct {
		delay   time.Duration
		percent float64
	}{
		{30 * time.Second, 0.4},
		{10 * time.Second, 0.3},
		{5 * time.Second, 0.2},
		{2 * time.Second, 1.0},
	}

	for _, tc := range cases {
		lower := time.Duration(float64(tc.delay) * (1 - tc.percent/2))
		if lower < time.Second {
			lower = time.Second
		}
		upper := time.Duration(float64(tc.delay) * (1 + tc.percent/2))

		for _, roll := range []float64{0, 0.25, 0.5, 0.75, 0.999} {
			got := jitterWith(tc.delay, tc.percent, roll)
			require.GreaterOrEqual(t, got, lower, "delay=%s percent=%v roll=%v", tc.delay, tc.percent, roll)
			require.LessOrEqual(t, got, upper, "delay=%s percent=%v roll=%v", tc.delay, tc.percent, roll)
		}
	}
}

func TestJitterFloor(t *testing.T) {
	// A low roll on a small delay must still yield at least one second.
	require.Equal(t, time.Second, jitterWith(time.Second, 1.0, 0))
	require.Equal(t, time.Second, jitterWith(0, 0.5, 0.5))
}

package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/feedlens/feedlens/internal/core"
	"github.com/feedlens/feedlens/internal/core/feed"
)

// timeline provides an injected clock plus a sleep that advances it, so
// admission waits are deterministic and instant.
type timeline struct {
	now    time.Time
	sleeps []time.Duration
}

func newTimeline() *timeline {
	return &timeline{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (tl *timeline) clock() time.Time {
	return tl.now
}

func (tl *timeline) sleep(ctx context.Context, d time.Duration) error {
	tl.sleeps = append(tl.sleeps, d)
	tl.now = tl.now.Add(d)
	return ctx.Err()
}

// callSleep returns the total sleep recorded since the given mark.
func (tl *timeline) since(mark int) time.Duration {
	var total time.Duration
	for _, d := range tl.sleeps[mark:] {
		total += d
	}
	return total
}

func testProfile() core.RateLimitProfile {
	return core.RateLimitProfile{
		Name:              "conservative",
		RequestsPerMinute: 2,
		RequestsPerHour:   100,
		MinDelay:          time.Second,
		MaxDelay:          10 * time.Minute,
		BurstCapacity:     3,
		JitterPercent:     0, // deterministic pacing for tests
	}
}

func newTestController(tl *timeline, profile core.RateLimitProfile) *AdmissionController {
	c := NewAdmissionController(profile)
	c.Clock = tl.clock
	c.Sleep = tl.sleep
	return c
}

func TestBurstThenTokenWaits(t *testing.T) {
	tl := newTimeline()
	c := newTestController(tl, testProfile())
	ctx := context.Background()

	// First three requests ride the burst: only the pacing delay applies.
	for i := 0; i < 3; i++ {
		mark := len(tl.sleeps)
		_, err := c.WaitForPermission(ctx)
		require.NoError(t, err)
		require.Equal(t, time.Second, tl.since(mark), "request %d should only pay the pacing delay", i+1)
	}

	// Fourth and fifth must wait roughly one refill period (30s at 2/min).
	for i := 3; i < 5; i++ {
		mark := len(tl.sleeps)
		waited, err := c.WaitForPermission(ctx)
		require.NoError(t, err)
		total := tl.since(mark)
		require.Equal(t, waited, total)
		require.GreaterOrEqual(t, total, 25*time.Second, "request %d", i+1)
		require.LessOrEqual(t, total, 31*time.Second, "request %d", i+1)
	}
}

func TestCatalogConservativeBurstCadence(t *testing.T) {
	tl := newTimeline()
	profile, ok := core.FindProfile("conservative")
	require.True(t, ok)
	c := newTestController(tl, *profile)
	ctx := context.Background()

	// The catalog profile itself must deliver the burst near-instantly;
	// only the small jittered pacing delay applies.
	for i := 0; i < 3; i++ {
		mark := len(tl.sleeps)
		_, err := c.WaitForPermission(ctx)
		require.NoError(t, err)
		require.Less(t, tl.since(mark), 5*time.Second, "burst request %d", i+1)
	}

	// Past the burst the refill interval dominates: roughly 30s at 2/min.
	for i := 3; i < 5; i++ {
		mark := len(tl.sleeps)
		_, err := c.WaitForPermission(ctx)
		require.NoError(t, err)
		total := tl.since(mark)
		require.GreaterOrEqual(t, total, 20*time.Second, "request %d", i+1)
		require.LessOrEqual(t, total, 35*time.Second, "request %d", i+1)
	}
}

func TestHourBudgetWaitsOutWindow(t *testing.T) {
	tl := newTimeline()
	profile := testProfile()
	profile.RequestsPerHour = 3
	profile.BurstCapacity = 10
	c := newTestController(tl, profile)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := c.WaitForPermission(ctx)
		require.NoError(t, err)
	}
	_, count := c.Window()
	require.Equal(t, 3, count)

	// The budget is spent: the fourth admission waits out the rest of the
	// hour, then a fresh window opens.
	mark := len(tl.sleeps)
	_, err := c.WaitForPermission(ctx)
	require.NoError(t, err)
	require.GreaterOrEqual(t, tl.since(mark), 59*time.Minute)

	_, count = c.Window()
	require.Equal(t, 1, count)
}

func TestSeededWindowChargesPriorRuns(t *testing.T) {
	tl := newTimeline()
	c := newTestController(tl, testProfile())
	ctx := context.Background()

	// A previous run spent the whole hour budget 30 minutes ago.
	c.SeedWindow(tl.now.Add(-30*time.Minute), 100)

	mark := len(tl.sleeps)
	_, err := c.WaitForPermission(ctx)
	require.NoError(t, err)
	total := tl.since(mark)
	require.GreaterOrEqual(t, total, 30*time.Minute)
	require.LessOrEqual(t, total, 31*time.Minute)
}

func TestSeedWindowIgnoresExpiredState(t *testing.T) {
	tl := newTimeline()
	c := newTestController(tl, testProfile())
	ctx := context.Background()

	c.SeedWindow(tl.now.Add(-2*time.Hour), 500)

	mark := len(tl.sleeps)
	_, err := c.WaitForPermission(ctx)
	require.NoError(t, err)
	require.Less(t, tl.since(mark), 2*time.Second)
}

func TestTokensStayBounded(t *testing.T) {
	tl := newTimeline()
	profile := testProfile()
	c := newTestController(tl, profile)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, err := c.WaitForPermission(ctx)
		require.NoError(t, err)

		status := c.Status()
		require.GreaterOrEqual(t, status.Tokens, 0.0)
		require.LessOrEqual(t, status.Tokens, profile.BurstCapacity)
	}

	// Idle time refills up to the cap and no further.
	tl.now = tl.now.Add(time.Hour)
	status := c.Status()
	require.Equal(t, profile.BurstCapacity, status.Tokens)
}

func TestBreakerOpensAfterThreshold(t *testing.T) {
	tl := newTimeline()
	c := newTestController(tl, testProfile())

	rateLimited := &feed.Error{StatusCode: 429, Message: "too many requests"}
	for i := 0; i < 3; i++ {
		c.RecordRequest(false, 429, rateLimited)
	}

	status := c.Status()
	require.True(t, status.CircuitBreakerOpen)
	require.Equal(t, 3, status.ConsecutiveFailures)
	require.Equal(t, 3, status.BackoffAttempts)
	require.NotNil(t, status.BreakerResetAt)
}

func TestBreakerWaitsFullResetWindow(t *testing.T) {
	tl := newTimeline()
	c := newTestController(tl, testProfile())
	ctx := context.Background()

	rateLimited := &feed.Error{StatusCode: 429, Message: "too many requests"}
	for i := 0; i < 3; i++ {
		c.RecordRequest(false, 429, rateLimited)
	}
	require.True(t, c.Status().CircuitBreakerOpen)

	mark := len(tl.sleeps)
	_, err := c.WaitForPermission(ctx)
	require.NoError(t, err)

	// The first suspension is the untouched cool-down.
	require.Equal(t, DefaultResetWindow, tl.sleeps[mark])

	status := c.Status()
	require.False(t, status.CircuitBreakerOpen)
	require.Equal(t, 0, status.ConsecutiveFailures)
	require.Equal(t, 0, status.BackoffAttempts)
}

func TestNonRateLimitFailuresDoNotTrip(t *testing.T) {
	tl := newTimeline()
	c := newTestController(tl, testProfile())

	upstream := &feed.Error{StatusCode: 500, Message: "internal"}
	for i := 0; i < 5; i++ {
		c.RecordRequest(false, 500, upstream)
	}

	status := c.Status()
	require.False(t, status.CircuitBreakerOpen)
	require.Equal(t, 5, status.ConsecutiveFailures)
	require.Equal(t, 0, status.BackoffAttempts)
}

func TestSuccessResetsFailureCounters(t *testing.T) {
	tl := newTimeline()
	c := newTestController(tl, testProfile())

	rateLimited := &feed.Error{StatusCode: 429, Message: "too many requests"}
	c.RecordRequest(false, 429, rateLimited)
	c.RecordRequest(false, 429, rateLimited)
	require.Equal(t, 2, c.Status().ConsecutiveFailures)

	c.RecordRequest(true, 200, nil)

	status := c.Status()
	require.Equal(t, 0, status.ConsecutiveFailures)
	require.Equal(t, 0, status.BackoffAttempts)
	require.False(t, status.CircuitBreakerOpen)
}

func TestBackoffLengthensPacingDelay(t *testing.T) {
	tl := newTimeline()
	profile := testProfile()
	profile.MinDelay = 2 * time.Second
	profile.BurstCapacity = 10
	c := newTestController(tl, profile)
	ctx := context.Background()

	// Two rate-limit failures: backoff attempt 2 doubles the base once.
	rateLimited := &feed.Error{StatusCode: 503, Message: "service unavailable"}
	c.RecordRequest(false, 503, rateLimited)
	c.RecordRequest(false, 503, rateLimited)

	mark := len(tl.sleeps)
	_, err := c.WaitForPermission(ctx)
	require.NoError(t, err)
	require.Equal(t, 4*time.Second, tl.since(mark))
}

func TestUpdateProfileClampsTokens(t *testing.T) {
	tl := newTimeline()
	c := newTestController(tl, testProfile())

	smaller := testProfile()
	smaller.Name = "tighter"
	smaller.BurstCapacity = 1
	c.UpdateProfile(smaller)

	status := c.Status()
	require.Equal(t, "tighter", status.Profile)
	require.LessOrEqual(t, status.Tokens, 1.0)
}

func TestRequestLogBounded(t *testing.T) {
	tl := newTimeline()
	c := newTestController(tl, testProfile())

	for i := 0; i < 150; i++ {
		c.RecordRequest(true, 200, nil)
	}

	require.Len(t, c.History(), 100)
	require.Equal(t, 100, c.Status().RecentRequests)
}

func TestWaitForPermissionHonorsCancellation(t *testing.T) {
	c := NewAdmissionController(testProfile())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.WaitForPermission(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

package engine

import (
	"context"
	"sync"
	"time"

	"github.com/feedlens/feedlens/internal/core"
)

// requestLogSize bounds the controller's request history ring.
const requestLogSize = 100

// backoffMultiplier grows the failure backoff between attempts.
const backoffMultiplier = 2.0

// budgetWindow is the rolling window for the RequestsPerHour budget.
const budgetWindow = time.Hour

// AdmissionController gates each outbound feed request with a token bucket,
// a pacing delay, and a circuit breaker. One controller instance serves one
// logical collection run; its state is guarded for snapshot readers but the
// admission sequence itself is strictly serial.
type AdmissionController struct {
	Clock func() time.Time
	// Sleep suspends the calling flow; injectable for tests. The default
	// honors context cancellation.
	Sleep func(ctx context.Context, d time.Duration) error

	mu                  sync.Mutex
	profile             core.RateLimitProfile
	tokens              float64
	lastRefill          time.Time
	consecutiveFailures int
	backoffAttempts     int
	breaker             *CircuitBreaker
	history             []core.RequestLog
	windowStart         time.Time
	windowCount         int
}

// NewAdmissionController builds a controller primed with a full burst.
func NewAdmissionController(profile core.RateLimitProfile) *AdmissionController {
	c := &AdmissionController{
		profile: profile,
		tokens:  profile.BurstCapacity,
		breaker: &CircuitBreaker{},
	}
	c.breaker.Clock = c.now
	return c
}

// ConfigureBreaker overrides the circuit breaker threshold and reset window.
// Zero values keep the defaults.
func (c *AdmissionController) ConfigureBreaker(threshold int, resetWindow time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.breaker.Threshold = threshold
	c.breaker.ResetWindow = resetWindow
}

// WaitForPermission suspends the caller until the next request may proceed:
// breaker cool-down first, then the hour budget, then token accumulation,
// then the pacing delay. It returns the total suspension so callers can
// surface it as advisory status. The only error it returns is context
// cancellation.
func (c *AdmissionController) WaitForPermission(ctx context.Context) (time.Duration, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	var total time.Duration

	// Breaker cool-down. Waiting it out closes the breaker and clears the
	// failure counters, per the two-state design.
	c.mu.Lock()
	if c.breaker.IsOpen() {
		remaining := c.breaker.Remaining()
		c.mu.Unlock()
		if remaining > 0 {
			if err := c.sleep(ctx, remaining); err != nil {
				return total, err
			}
			total += remaining
		}
		c.mu.Lock()
		c.breaker.Reset()
		c.consecutiveFailures = 0
		c.backoffAttempts = 0
	}

	// Rolling-hour budget. Once RequestsPerHour admissions have landed in
	// the current window, the remainder of the window is waited out and a
	// fresh window starts.
	c.rollWindowLocked()
	if c.profile.RequestsPerHour > 0 && c.windowCount >= c.profile.RequestsPerHour {
		wait := c.windowStart.Add(budgetWindow).Sub(c.now())
		c.mu.Unlock()
		if wait > 0 {
			if err := c.sleep(ctx, wait); err != nil {
				return total, err
			}
			total += wait
		}
		c.mu.Lock()
		c.rollWindowLocked()
	}

	// Lazy refill; wait out the deficit if less than one token is banked.
	c.refillLocked()
	if c.tokens < 1 {
		wait := c.tokenWaitLocked()
		c.mu.Unlock()
		if err := c.sleep(ctx, wait); err != nil {
			return total, err
		}
		total += wait
		c.mu.Lock()
		c.refillLocked()
	}

	c.tokens--
	if c.tokens < 0 {
		c.tokens = 0
	}
	c.windowCount++

	delay := c.pacingDelayLocked()
	c.mu.Unlock()

	if err := c.sleep(ctx, delay); err != nil {
		return total, err
	}
	total += delay

	return total, nil
}

// RecordRequest reports the outcome of a request. It never fails; all
// effects are internal counter and breaker updates.
func (c *AdmissionController) RecordRequest(success bool, responseCode int, reqErr error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := core.RequestLog{
		At:           c.now(),
		Success:      success,
		ResponseCode: responseCode,
	}

	if success {
		c.consecutiveFailures = 0
		c.backoffAttempts = 0
		c.appendLogLocked(entry)
		return
	}

	class := Classify(reqErr)
	if class == FailureNone {
		// A failure report without a tagged error still counts.
		class = FailureUpstream
	}
	if class != FailureRateLimit && IsRateLimitCode(responseCode) {
		class = FailureRateLimit
	}
	entry.ErrorKind = string(class)

	c.consecutiveFailures++
	if class == FailureRateLimit {
		c.backoffAttempts++
		if c.consecutiveFailures >= c.breaker.threshold() {
			c.breaker.Trip()
		}
	}

	c.appendLogLocked(entry)
}

// Status returns a read-only snapshot for reporting.
func (c *AdmissionController) Status() core.RateLimitStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.refillLocked()

	status := core.RateLimitStatus{
		Profile:             c.profile.Name,
		Tokens:              c.tokens,
		BurstCapacity:       c.profile.BurstCapacity,
		ConsecutiveFailures: c.consecutiveFailures,
		BackoffAttempts:     c.backoffAttempts,
		CircuitBreakerOpen:  c.breaker.IsOpen(),
		RecentRequests:      len(c.history),
	}

	if resetAt, ok := c.breaker.ResetAt(); ok {
		status.BreakerResetAt = &resetAt
	}

	for _, entry := range c.history {
		if !entry.Success {
			status.RecentFailures++
		}
	}

	return status
}

// SeedWindow primes the rolling-hour budget from state a previous run
// persisted. An expired or zero window start is ignored; the first admission
// then opens a fresh window.
func (c *AdmissionController) SeedWindow(start time.Time, count int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if start.IsZero() || c.now().Sub(start) >= budgetWindow {
		return
	}
	c.windowStart = start
	if count > 0 {
		c.windowCount = count
	}
}

// Window reports the current budget window start and the admissions charged
// against it.
func (c *AdmissionController) Window() (time.Time, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rollWindowLocked()
	return c.windowStart, c.windowCount
}

// History returns a copy of the bounded request log, newest last.
func (c *AdmissionController) History() []core.RequestLog {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]core.RequestLog, len(c.history))
	copy(out, c.history)
	return out
}

// UpdateProfile hot-swaps pacing parameters. The token balance is clamped to
// the new burst capacity; failure and breaker state carry over.
func (c *AdmissionController) UpdateProfile(profile core.RateLimitProfile) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.refillLocked()
	c.profile = profile
	if c.tokens > profile.BurstCapacity {
		c.tokens = profile.BurstCapacity
	}
}

// rollWindowLocked opens a fresh budget window when none exists or the
// current one has aged out.
func (c *AdmissionController) rollWindowLocked() {
	now := c.now()
	if c.windowStart.IsZero() || now.Sub(c.windowStart) >= budgetWindow {
		c.windowStart = now
		c.windowCount = 0
	}
}

// refillLocked accrues tokens from elapsed wall-clock time. There is no
// background timer; refill happens on demand.
func (c *AdmissionController) refillLocked() {
	now := c.now()
	if c.lastRefill.IsZero() {
		c.lastRefill = now
		return
	}

	elapsed := now.Sub(c.lastRefill)
	if elapsed <= 0 {
		return
	}

	c.tokens += elapsed.Seconds() * c.ratePerSecond()
	if c.tokens > c.profile.BurstCapacity {
		c.tokens = c.profile.BurstCapacity
	}
	c.lastRefill = now
}

// tokenWaitLocked computes the time to accumulate exactly one token.
func (c *AdmissionController) tokenWaitLocked() time.Duration {
	rate := c.ratePerSecond()
	if rate <= 0 {
		return minEnforcedDelay
	}
	deficit := 1 - c.tokens
	if deficit <= 0 {
		return 0
	}
	return time.Duration(deficit / rate * float64(time.Second))
}

// pacingDelayLocked computes the post-token delay: the jittered minimum
// delay, lengthened (never shortened) by exponential backoff while failures
// are outstanding.
func (c *AdmissionController) pacingDelayLocked() time.Duration {
	delay := AddJitter(c.profile.MinDelay, c.profile.JitterPercent)

	if c.consecutiveFailures > 0 && c.backoffAttempts > 0 {
		backoff := BackoffDelay(c.backoffAttempts-1, c.profile.MinDelay, backoffMultiplier, c.profile.MaxDelay)
		backoff = AddJitter(backoff, c.profile.JitterPercent)
		if backoff > delay {
			delay = backoff
		}
	}

	if delay < minEnforcedDelay {
		delay = minEnforcedDelay
	}
	return delay
}

func (c *AdmissionController) ratePerSecond() float64 {
	return c.profile.RequestsPerMinute / 60
}

func (c *AdmissionController) appendLogLocked(entry core.RequestLog) {
	c.history = append(c.history, entry)
	if len(c.history) > requestLogSize {
		c.history = c.history[len(c.history)-requestLogSize:]
	}
}

func (c *AdmissionController) now() time.Time {
	if c != nil && c.Clock != nil {
		return c.Clock()
	}
	return time.Now().UTC()
}

func (c *AdmissionController) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	if c.Sleep != nil {
		return c.Sleep(ctx, d)
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

package core

import (
	"strings"
	"time"
)

// RiskLevel grades how likely a pacing profile is to draw upstream attention.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// RateLimitProfile is an immutable pacing preset. RequestsPerMinute drives the
// token bucket refill; RequestsPerHour is the separate long-run budget the
// estimator uses. The two are deliberately independent knobs. MinDelay stacks
// on top of token waits, so catalog values stay small relative to the refill
// interval; the refill is what sets the steady-state cadence.
type RateLimitProfile struct {
	Name              string        `json:"name"`
	Description       string        `json:"description,omitempty"`
	RequestsPerMinute float64       `json:"requests_per_minute"`
	RequestsPerHour   int           `json:"requests_per_hour"`
	MinDelay          time.Duration `json:"min_delay"`
	MaxDelay          time.Duration `json:"max_delay"`
	BurstCapacity     float64       `json:"burst_capacity"`
	JitterPercent     float64       `json:"jitter_percent"`
	MaxItemsCeiling   int           `json:"max_items_ceiling"`
	Risk              RiskLevel     `json:"risk"`
}

// BuiltInProfiles is the pacing catalog bundled with Feedlens.
var BuiltInProfiles = []RateLimitProfile{
	{
		Name:              "conservative",
		Description:       "Slowest pull, safest for long-lived accounts",
		RequestsPerMinute: 2,
		RequestsPerHour:   100,
		MinDelay:          2 * time.Second,
		MaxDelay:          10 * time.Minute,
		BurstCapacity:     3,
		JitterPercent:     0.4,
		MaxItemsCeiling:   500,
		Risk:              RiskLow,
	},
	{
		Name:              "moderate",
		Description:       "Balanced pull rate for routine collection",
		RequestsPerMinute: 5,
		RequestsPerHour:   250,
		MinDelay:          2 * time.Second,
		MaxDelay:          5 * time.Minute,
		BurstCapacity:     5,
		JitterPercent:     0.3,
		MaxItemsCeiling:   1000,
		Risk:              RiskMedium,
	},
	{
		Name:              "aggressive",
		Description:       "Fastest pull, only for short runs on expendable accounts",
		RequestsPerMinute: 8,
		RequestsPerHour:   400,
		MinDelay:          time.Second,
		MaxDelay:          2 * time.Minute,
		BurstCapacity:     8,
		JitterPercent:     0.2,
		MaxItemsCeiling:   2000,
		Risk:              RiskHigh,
	},
}

// DefaultProfile is used when no profile is named.
const DefaultProfile = "conservative"

// FindProfile looks up a built-in pacing profile by name.
func FindProfile(name string) (*RateLimitProfile, bool) {
	needle := strings.TrimSpace(strings.ToLower(name))
	if needle == "" {
		return nil, false
	}

	for _, profile := range BuiltInProfiles {
		if strings.EqualFold(profile.Name, needle) {
			copied := profile
			return &copied, true
		}
	}

	return nil, false
}

// ProfileNames returns catalog names in declaration order.
func ProfileNames() []string {
	names := make([]string, 0, len(BuiltInProfiles))
	for _, profile := range BuiltInProfiles {
		names = append(names, profile.Name)
	}
	return names
}

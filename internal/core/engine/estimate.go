package engine

import (
	"fmt"
	"math"
	"time"

	"github.com/feedlens/feedlens/internal/core"
)

// Estimator projections are advisory only: they help an operator pick a
// profile and a sane max-items cap before a run. The admission controller
// never consults them.

// recommendedHorizonHours converts the hourly budget into a recommended
// per-run item cap before the profile ceiling applies.
const recommendedHorizonHours = 5

// warnAfter flags runs projected to exceed this wall-clock length.
const warnAfter = 4 * time.Hour

// EstimateOptions tune a projection.
type EstimateOptions struct {
	// FilterEfficiency is the expected keep ratio (0 < e <= 1). Collecting N
	// items at efficiency e requires pulling N/e upstream items.
	FilterEfficiency float64
	// PerItemProcessing adds linear local processing time per item.
	PerItemProcessing time.Duration
}

// CollectionEstimate is one projected run.
type CollectionEstimate struct {
	Profile             string         `json:"profile"`
	Count               int            `json:"count"`
	EstimatedMinutes    int            `json:"estimated_minutes"`
	ItemsPerHour        int            `json:"items_per_hour"`
	RecommendedMaxItems int            `json:"recommended_max_items"`
	Risk                core.RiskLevel `json:"risk"`
	Warning             string         `json:"warning,omitempty"`
	Feasible            bool           `json:"feasible"`
}

// Estimate projects the wall-clock cost of collecting count items under a
// profile. estimatedMinutes is ceil(adjustedCount / requestsPerMinute) plus
// any linear processing time.
func Estimate(count int, profile core.RateLimitProfile, opts EstimateOptions) CollectionEstimate {
	adjusted := float64(count)
	if opts.FilterEfficiency > 0 && opts.FilterEfficiency < 1 {
		adjusted = float64(count) / opts.FilterEfficiency
	}

	minutes := 0
	if profile.RequestsPerMinute > 0 {
		minutes = int(math.Ceil(adjusted / profile.RequestsPerMinute))
	}
	if opts.PerItemProcessing > 0 {
		minutes += int(math.Ceil(float64(count) * opts.PerItemProcessing.Minutes()))
	}

	recommended := RecommendedMaxItems(profile)

	estimate := CollectionEstimate{
		Profile:             profile.Name,
		Count:               count,
		EstimatedMinutes:    minutes,
		ItemsPerHour:        profile.RequestsPerHour,
		RecommendedMaxItems: recommended,
		Risk:                assessRisk(count, recommended, minutes, profile.Risk),
		Feasible:            true,
	}

	switch {
	case count > recommended:
		estimate.Warning = fmt.Sprintf("%d items exceeds the recommended cap of %d for the %s profile", count, recommended, profile.Name)
	case time.Duration(minutes)*time.Minute > warnAfter:
		estimate.Warning = fmt.Sprintf("projected run of %dm exceeds %s; consider a faster profile or a smaller cap", minutes, warnAfter)
	}

	return estimate
}

// RecommendedMaxItems derives a per-run cap from the hourly budget, bounded
// by the profile ceiling.
func RecommendedMaxItems(profile core.RateLimitProfile) int {
	recommended := profile.RequestsPerHour * recommendedHorizonHours
	if profile.MaxItemsCeiling > 0 && recommended > profile.MaxItemsCeiling {
		recommended = profile.MaxItemsCeiling
	}
	if recommended <= 0 {
		recommended = profile.MaxItemsCeiling
	}
	return recommended
}

// CompareProfiles projects count against every catalog profile.
func CompareProfiles(count int) map[string]CollectionEstimate {
	estimates := make(map[string]CollectionEstimate, len(core.BuiltInProfiles))
	for _, profile := range core.BuiltInProfiles {
		estimates[profile.Name] = Estimate(count, profile, EstimateOptions{})
	}
	return estimates
}

// OptimalProfile picks the lowest-risk catalog profile whose projection fits
// within maxMinutes. When none fits it returns the fastest profile with
// Feasible=false so the caller can still report the best available option.
func OptimalProfile(count int, maxMinutes int) (core.RateLimitProfile, CollectionEstimate) {
	// Catalog order is lowest risk first.
	var fastest core.RateLimitProfile
	var fastestEstimate CollectionEstimate

	for i, profile := range core.BuiltInProfiles {
		estimate := Estimate(count, profile, EstimateOptions{})
		if estimate.EstimatedMinutes <= maxMinutes {
			return profile, estimate
		}
		if i == 0 || estimate.EstimatedMinutes < fastestEstimate.EstimatedMinutes {
			fastest = profile
			fastestEstimate = estimate
		}
	}

	fastestEstimate.Feasible = false
	return fastest, fastestEstimate
}

// ProgressReport describes a run in flight.
type ProgressReport struct {
	Percentage  float64       `json:"percentage"`
	CurrentRate float64       `json:"current_rate_per_minute"`
	ETA         time.Duration `json:"eta"`
}

// Progress computes completion and ETA from elapsed wall-clock time. The
// observed rate is floor-clamped at half the profile's nominal rate so a
// slow start does not produce runaway ETAs.
func Progress(collected, target int, startTime time.Time, profile core.RateLimitProfile, now time.Time) ProgressReport {
	report := ProgressReport{}
	if target <= 0 {
		return report
	}

	report.Percentage = math.Min(100, float64(collected)/float64(target)*100)

	elapsed := now.Sub(startTime)
	if elapsed <= 0 {
		report.CurrentRate = profile.RequestsPerMinute
	} else {
		report.CurrentRate = float64(collected) / elapsed.Minutes()
	}

	if floor := profile.RequestsPerMinute / 2; report.CurrentRate < floor {
		report.CurrentRate = floor
	}

	remaining := target - collected
	if remaining > 0 && report.CurrentRate > 0 {
		report.ETA = time.Duration(float64(remaining) / report.CurrentRate * float64(time.Minute))
	}

	return report
}

func assessRisk(count, recommended, minutes int, base core.RiskLevel) core.RiskLevel {
	risk := base
	if count > recommended {
		risk = escalate(risk)
	}
	if time.Duration(minutes)*time.Minute > warnAfter {
		risk = escalate(risk)
	}
	return risk
}

func escalate(risk core.RiskLevel) core.RiskLevel {
	switch risk {
	case core.RiskLow:
		return core.RiskMedium
	default:
		return core.RiskHigh
	}
}

package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/feedlens/feedlens/internal/core"
)

func TestEstimateMinutesMatchesRate(t *testing.T) {
	counts := []int{1, 10, 99, 500, 2000}
	for _, profile := range core.BuiltInProfiles {
		for _, count := range counts {
			estimate := Estimate(count, profile, EstimateOptions{})
			expected := (count + int(profile.RequestsPerMinute) - 1) / int(profile.RequestsPerMinute)
			require.Equal(t, expected, estimate.EstimatedMinutes,
				"profile=%s count=%d", profile.Name, count)
		}
	}
}

func TestEstimateFilterEfficiency(t *testing.T) {
	profile, ok := core.FindProfile("moderate")
	require.True(t, ok)

	// Keeping half the items means pulling twice as many.
	plain := Estimate(100, *profile, EstimateOptions{})
	filtered := Estimate(100, *profile, EstimateOptions{FilterEfficiency: 0.5})
	require.Equal(t, plain.EstimatedMinutes*2, filtered.EstimatedMinutes)
}

func TestEstimateProcessingTimeAdds(t *testing.T) {
	profile, ok := core.FindProfile("aggressive")
	require.True(t, ok)

	plain := Estimate(80, *profile, EstimateOptions{})
	withProcessing := Estimate(80, *profile, EstimateOptions{PerItemProcessing: 1500 * time.Millisecond})
	require.Equal(t, plain.EstimatedMinutes+2, withProcessing.EstimatedMinutes)
}

func TestRecommendedMaxItemsCeilings(t *testing.T) {
	expected := map[string]int{
		"conservative": 500,
		"moderate":     1000,
		"aggressive":   2000,
	}
	for name, want := range expected {
		profile, ok := core.FindProfile(name)
		require.True(t, ok)
		require.Equal(t, want, RecommendedMaxItems(*profile), name)
	}
}

func TestEstimateRiskEscalation(t *testing.T) {
	conservative, ok := core.FindProfile("conservative")
	require.True(t, ok)

	within := Estimate(100, *conservative, EstimateOptions{})
	require.Equal(t, core.RiskLow, within.Risk)
	require.Empty(t, within.Warning)

	over := Estimate(600, *conservative, EstimateOptions{})
	require.NotEqual(t, core.RiskLow, over.Risk)
	require.NotEmpty(t, over.Warning)
}

func TestCompareProfilesCoversCatalog(t *testing.T) {
	estimates := CompareProfiles(200)
	require.Len(t, estimates, len(core.BuiltInProfiles))
	for _, name := range core.ProfileNames() {
		require.Contains(t, estimates, name)
	}
}

func TestOptimalProfilePicksLowestRiskThatFits(t *testing.T) {
	// 100 items: conservative needs 50m, moderate 20m. A 30m budget should
	// land on moderate, not aggressive.
	profile, estimate := OptimalProfile(100, 30)
	require.Equal(t, "moderate", profile.Name)
	require.True(t, estimate.Feasible)
}

func TestOptimalProfileInfeasibleBudget(t *testing.T) {
	// 500 items in 30 minutes is beyond every profile (aggressive needs
	// ~63m); the fastest profile comes back flagged infeasible.
	profile, estimate := OptimalProfile(500, 30)
	require.Equal(t, "aggressive", profile.Name)
	require.False(t, estimate.Feasible)
	require.Equal(t, 63, estimate.EstimatedMinutes)
}

func TestProgressClampsObservedRate(t *testing.T) {
	profile, ok := core.FindProfile("moderate")
	require.True(t, ok)

	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// One item in an hour is far below nominal; the rate floors at half of
	// the profile's requests per minute.
	report := Progress(1, 100, start, *profile, start.Add(time.Hour))
	require.Equal(t, profile.RequestsPerMinute/2, report.CurrentRate)
	require.InDelta(t, 1.0, report.Percentage, 0.01)

	// A healthy run reports its true rate.
	report = Progress(50, 100, start, *profile, start.Add(10*time.Minute))
	require.Equal(t, 5.0, report.CurrentRate)
	require.Equal(t, 10*time.Minute, report.ETA)
}

func TestProgressComplete(t *testing.T) {
	profile, ok := core.FindProfile("conservative")
	require.True(t, ok)

	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	report := Progress(100, 100, start, *profile, start.Add(time.Hour))
	require.Equal(t, 100.0, report.Percentage)
	require.Equal(t, time.Duration(0), report.ETA)
}

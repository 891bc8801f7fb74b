package output

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/feedlens/feedlens/internal/core"
	"github.com/feedlens/feedlens/internal/core/store"
)

// FormatRateLimitStatus renders an admission controller snapshot.
func FormatRateLimitStatus(format Format, status core.RateLimitStatus) (string, error) {
	if format == FormatJSON {
		return renderJSON(status)
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendRow(table.Row{"Profile", status.Profile})
	t.AppendRow(table.Row{"Tokens", fmt.Sprintf("%.1f / %.0f", status.Tokens, status.BurstCapacity)})
	t.AppendRow(table.Row{"Consecutive failures", status.ConsecutiveFailures})
	t.AppendRow(table.Row{"Backoff attempts", status.BackoffAttempts})
	t.AppendRow(table.Row{"Breaker open", yesNo(status.CircuitBreakerOpen)})
	if status.BreakerResetAt != nil {
		t.AppendRow(table.Row{"Breaker resets", formatTime(*status.BreakerResetAt)})
	}
	t.AppendRow(table.Row{"Recent requests", status.RecentRequests})
	t.AppendRow(table.Row{"Recent failures", status.RecentFailures})

	return t.Render(), nil
}

// FormatPacingStates renders persisted per-scope pacing rows.
func FormatPacingStates(format Format, entries []store.PacingEntry) (string, error) {
	if format == FormatJSON {
		return renderJSON(entries)
	}

	if len(entries) == 0 {
		return "No pacing state recorded.", nil
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Scope", "Requests", "Window Start", "Backoff Until", "Last 429"})

	for _, entry := range entries {
		t.AppendRow(table.Row{
			entry.Scope,
			entry.State.RequestCount,
			formatTime(entry.State.WindowStart),
			formatOptionalTime(entry.State.BackoffUntil),
			formatOptionalTime(entry.State.Last429At),
		})
	}

	return t.Render(), nil
}

// FormatProfiles renders the pacing catalog.
func FormatProfiles(format Format, profiles []core.RateLimitProfile) (string, error) {
	if format == FormatJSON {
		return renderJSON(profiles)
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Profile", "Req/Min", "Req/Hour", "Delay", "Burst", "Max Items", "Risk"})

	for _, profile := range profiles {
		t.AppendRow(table.Row{
			profile.Name,
			profile.RequestsPerMinute,
			profile.RequestsPerHour,
			fmt.Sprintf("%s-%s", profile.MinDelay, profile.MaxDelay),
			profile.BurstCapacity,
			profile.MaxItemsCeiling,
			string(profile.Risk),
		})
	}

	return t.Render(), nil
}

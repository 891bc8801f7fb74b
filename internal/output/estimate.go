package output

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/feedlens/feedlens/internal/core"
	"github.com/feedlens/feedlens/internal/core/engine"
)

// FormatEstimate renders a single collection projection.
func FormatEstimate(format Format, estimate engine.CollectionEstimate) (string, error) {
	if format == FormatJSON {
		return renderJSON(estimate)
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendRow(table.Row{"Profile", estimate.Profile})
	t.AppendRow(table.Row{"Items", estimate.Count})
	t.AppendRow(table.Row{"Estimated time", formatMinutes(estimate.EstimatedMinutes)})
	t.AppendRow(table.Row{"Items per hour", estimate.ItemsPerHour})
	t.AppendRow(table.Row{"Recommended max", estimate.RecommendedMaxItems})
	t.AppendRow(table.Row{"Risk", string(estimate.Risk)})
	t.AppendRow(table.Row{"Feasible", yesNo(estimate.Feasible)})

	rendered := t.Render()
	if estimate.Warning != "" {
		rendered += "\nWarning: " + estimate.Warning
	}
	return rendered, nil
}

// FormatComparison renders projections for every catalog profile, in catalog
// order (lowest risk first).
func FormatComparison(format Format, count int, estimates map[string]engine.CollectionEstimate) (string, error) {
	if format == FormatJSON {
		return renderJSON(estimates)
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetTitle(fmt.Sprintf("Collecting %d items", count))
	t.AppendHeader(table.Row{"Profile", "Est. Time", "Items/Hour", "Recommended Max", "Risk", "Warning"})

	for _, name := range core.ProfileNames() {
		estimate, ok := estimates[name]
		if !ok {
			continue
		}
		t.AppendRow(table.Row{
			estimate.Profile,
			formatMinutes(estimate.EstimatedMinutes),
			estimate.ItemsPerHour,
			estimate.RecommendedMaxItems,
			string(estimate.Risk),
			estimate.Warning,
		})
	}

	return t.Render(), nil
}

// FormatOptimal renders the profile picked for a time budget.
func FormatOptimal(format Format, profile core.RateLimitProfile, estimate engine.CollectionEstimate, maxMinutes int) (string, error) {
	if format == FormatJSON {
		return renderJSON(map[string]any{
			"max_minutes": maxMinutes,
			"profile":     profile.Name,
			"estimate":    estimate,
		})
	}

	rendered, err := FormatEstimate(format, estimate)
	if err != nil {
		return "", err
	}

	var note strings.Builder
	if estimate.Feasible {
		note.WriteString("Best profile within " + strconv.Itoa(maxMinutes) + " minutes: " + profile.Name)
	} else {
		note.WriteString("No profile fits within " + strconv.Itoa(maxMinutes) + " minutes; fastest available is " + profile.Name)
	}
	return note.String() + "\n" + rendered, nil
}

package output

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/feedlens/feedlens/internal/core"
)

// FormatSessions renders a session list, newest first as provided.
func FormatSessions(format Format, sessions []core.CollectionSession) (string, error) {
	if format == FormatJSON {
		return renderJSON(sessions)
	}

	if len(sessions) == 0 {
		return "No sessions found.", nil
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"ID", "Subject", "Status", "Collected", "Started", "Completed"})

	for _, session := range sessions {
		t.AppendRow(table.Row{
			shortID(session.ID),
			session.Subject,
			string(session.Status),
			fmt.Sprintf("%d/%d", session.Counters.Collected, session.MaxItems),
			formatTime(session.StartedAt),
			formatOptionalTime(session.CompletedAt),
		})
	}

	return t.Render(), nil
}

// FormatSession renders one session with its full counter breakdown.
func FormatSession(format Format, session *core.CollectionSession) (string, error) {
	if session == nil {
		return "", nil
	}
	if format == FormatJSON {
		return renderJSON(session)
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendRow(table.Row{"ID", session.ID})
	t.AppendRow(table.Row{"Subject", session.Subject})
	t.AppendRow(table.Row{"Status", string(session.Status)})
	t.AppendRow(table.Row{"Content filter", string(session.ContentFilter)})
	if len(session.Keywords) > 0 {
		t.AppendRow(table.Row{"Keywords", strings.Join(session.Keywords, ", ")})
	}
	t.AppendRow(table.Row{"Time range", timeRangeLabel(session)})
	t.AppendRow(table.Row{"Max items", session.MaxItems})
	t.AppendRow(table.Row{"Started", formatTime(session.StartedAt)})
	t.AppendRow(table.Row{"Completed", formatOptionalTime(session.CompletedAt)})
	if session.ErrorMessage != "" {
		t.AppendRow(table.Row{"Error", session.ErrorMessage})
	}

	t.AppendSeparator()
	counters := session.Counters
	t.AppendRow(table.Row{"Collected", counters.Collected})
	t.AppendRow(table.Row{"Processed", counters.TotalProcessed})
	t.AppendRow(table.Row{"Content filtered", counters.ContentFiltered})
	t.AppendRow(table.Row{"Date filtered", counters.DateFiltered})
	t.AppendRow(table.Row{"Keyword filtered", counters.KeywordFiltered})
	t.AppendRow(table.Row{"Duplicates", counters.Duplicates})

	return t.Render(), nil
}

// FormatRunSummary renders the one-line outcome of a finished run.
func FormatRunSummary(session *core.CollectionSession) string {
	if session == nil {
		return ""
	}

	counters := session.Counters
	summary := fmt.Sprintf(
		"Session %s %s: collected %d of %d processed (%d content, %d date, %d keyword filtered, %d duplicates)",
		shortID(session.ID),
		session.Status,
		counters.Collected,
		counters.TotalProcessed,
		counters.ContentFiltered,
		counters.DateFiltered,
		counters.KeywordFiltered,
		counters.Duplicates,
	)
	if session.ErrorMessage != "" {
		summary += "\nError: " + session.ErrorMessage
	}
	return summary
}

func timeRangeLabel(session *core.CollectionSession) string {
	if session.TimeRange == core.RangeCustom && session.CustomRange != nil {
		return fmt.Sprintf("%s .. %s",
			session.CustomRange.From.Format("2006-01-02"),
			session.CustomRange.To.Format("2006-01-02"))
	}
	return string(session.TimeRange)
}

// shortID trims a UUID down to its first group for table display.
func shortID(id string) string {
	if idx := strings.IndexByte(id, '-'); idx > 0 {
		return id[:idx]
	}
	return id
}

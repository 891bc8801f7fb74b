package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/feedlens/feedlens/internal/core"
	"github.com/feedlens/feedlens/internal/core/store"
	"github.com/feedlens/feedlens/internal/output"
)

var (
	sessionsSubject string
	sessionsStatus  string
	sessionsLimit   int
	sessionsOutput  string
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect recorded collection sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded sessions, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(sessionsOutput)
		if err != nil {
			return err
		}

		_, db, err := loadConfigAndStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		query := store.SessionQuery{
			Subject: strings.TrimSpace(sessionsSubject),
			Limit:   sessionsLimit,
		}
		if status := strings.TrimSpace(sessionsStatus); status != "" {
			query.Status = core.SessionStatus(status)
		}

		sessions, err := db.ListSessions(cmd.Context(), query)
		if err != nil {
			return err
		}

		sink, err := resolveSink(cmd, format, "sessions.list")
		if err != nil {
			return err
		}
		defer func() { _ = sink.close() }()

		rendered, err := output.FormatSessions(format, sessions)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(sink.writer, rendered)
		return err
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show one session with its counter breakdown",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := strings.TrimSpace(args[0])
		if id == "" {
			return errors.New("session id is required")
		}

		format, err := output.ParseFormat(sessionsOutput)
		if err != nil {
			return err
		}

		_, db, err := loadConfigAndStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		session, err := db.GetSession(cmd.Context(), id)
		if err != nil {
			return err
		}
		if session == nil {
			return fmt.Errorf("session %q not found", id)
		}

		sink, err := resolveSink(cmd, format, "session."+sanitizeFilename(id))
		if err != nil {
			return err
		}
		defer func() { _ = sink.close() }()

		rendered, err := output.FormatSession(format, session)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(sink.writer, rendered)
		return err
	},
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)

	sessionsCmd.PersistentFlags().StringVar(&sessionsOutput, "output-format", string(output.FormatTable), "Output format: table|json")
	sessionsCmd.PersistentFlags().String("out", "", "Write output to a file (default stdout)")
	sessionsCmd.PersistentFlags().String("out-dir", "", "Write output to a directory")

	sessionsListCmd.Flags().StringVar(&sessionsSubject, "subject", "", "Filter by subject handle")
	sessionsListCmd.Flags().StringVar(&sessionsStatus, "status", "", "Filter by status: pending|running|completed|failed")
	sessionsListCmd.Flags().IntVar(&sessionsLimit, "limit", 20, "Maximum sessions to list")
}

package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/feedlens/feedlens/internal/core/store"
	"github.com/feedlens/feedlens/internal/output"
)

var (
	rateLimitAll    bool
	rateLimitScope  string
	rateLimitPrefix string
	rateLimitOutput string

	rateLimitResetYes    bool
	rateLimitResetDryRun bool
)

var rateLimitCmd = &cobra.Command{
	Use:   "rate-limit",
	Short: "Manage persisted pacing state",
	Long: `Manage the per-scope pacing state that survives process restarts.

A 429 observed in one run records a backoff window; the next run waits it
out before touching upstream. Status shows the stored markers, reset
clears them.`,
}

var rateLimitStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show stored pacing state",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(rateLimitOutput)
		if err != nil {
			return err
		}

		_, db, err := loadConfigAndStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		query := pacingQueryFromFlags()
		if !query.All && query.Scope == "" && query.Prefix == "" {
			query.All = true
		}

		entries, err := db.ListPacingStates(cmd.Context(), query)
		if err != nil {
			return err
		}

		sink, err := resolveSink(cmd, format, "rate-limit.status")
		if err != nil {
			return err
		}
		defer func() { _ = sink.close() }()

		rendered, err := output.FormatPacingStates(format, entries)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(sink.writer, rendered)
		return err
	},
}

var rateLimitResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset stored pacing state",
	RunE: func(cmd *cobra.Command, args []string) error {
		query := pacingQueryFromFlags()
		if err := query.Validate(); err != nil {
			return err
		}

		if query.All && !rateLimitResetYes && !rateLimitResetDryRun {
			return errors.New("--all requires --yes (or use --dry-run)")
		}

		_, db, err := loadConfigAndStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		matched, err := db.ListPacingStates(cmd.Context(), query)
		if err != nil {
			return err
		}

		if rateLimitResetDryRun {
			fmt.Printf("Would delete %d pacing entr(ies)\n", len(matched))
			return nil
		}

		deleted, err := db.ResetPacingStates(cmd.Context(), query)
		if err != nil {
			return err
		}

		fmt.Printf("Deleted %d/%d pacing entr(ies)\n", deleted, len(matched))
		return nil
	},
}

func pacingQueryFromFlags() store.PacingQuery {
	return store.PacingQuery{
		All:    rateLimitAll,
		Scope:  strings.TrimSpace(rateLimitScope),
		Prefix: strings.TrimSpace(rateLimitPrefix),
	}
}

func init() {
	rootCmd.AddCommand(rateLimitCmd)
	rateLimitCmd.AddCommand(rateLimitStatusCmd)
	rateLimitCmd.AddCommand(rateLimitResetCmd)

	rateLimitCmd.PersistentFlags().BoolVar(&rateLimitAll, "all", false, "Apply to all scopes")
	rateLimitCmd.PersistentFlags().StringVar(&rateLimitScope, "scope", "", "Apply to one scope (exact match)")
	rateLimitCmd.PersistentFlags().StringVar(&rateLimitPrefix, "prefix", "", "Apply to scopes with matching prefix")

	rateLimitStatusCmd.Flags().StringVar(&rateLimitOutput, "output-format", string(output.FormatTable), "Output format: table|json")
	rateLimitStatusCmd.Flags().String("out", "", "Write output to a file (default stdout)")
	rateLimitStatusCmd.Flags().String("out-dir", "", "Write output to a directory")

	rateLimitResetCmd.Flags().BoolVar(&rateLimitResetYes, "yes", false, "Confirm destructive reset")
	rateLimitResetCmd.Flags().BoolVar(&rateLimitResetDryRun, "dry-run", false, "Show what would be deleted")
}

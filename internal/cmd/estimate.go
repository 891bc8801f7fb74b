package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/feedlens/feedlens/internal/core/engine"
	"github.com/feedlens/feedlens/internal/output"
)

var (
	estimateProfile    string
	estimateCompare    bool
	estimateMaxMinutes int
	estimateEfficiency float64
	estimateOutput     string
)

var estimateCmd = &cobra.Command{
	Use:   "estimate <count>",
	Short: "Project the wall-clock cost of a collection run",
	Long: `Project how long collecting <count> items takes under a pacing profile.

By default the configured (or default) profile is projected. Use --compare
to project every profile, or --max-minutes to pick the lowest-risk profile
that fits a time budget.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		count, err := strconv.Atoi(args[0])
		if err != nil || count <= 0 {
			return fmt.Errorf("count must be a positive integer, got %q", args[0])
		}

		format, err := output.ParseFormat(estimateOutput)
		if err != nil {
			return err
		}

		if estimateCompare && estimateMaxMinutes > 0 {
			return fmt.Errorf("--compare and --max-minutes are mutually exclusive")
		}

		sink, err := resolveSink(cmd, format, fmt.Sprintf("estimate.%d", count))
		if err != nil {
			return err
		}
		defer func() { _ = sink.close() }()

		var rendered string
		switch {
		case estimateCompare:
			rendered, err = output.FormatComparison(format, count, engine.CompareProfiles(count))
		case estimateMaxMinutes > 0:
			profile, projected := engine.OptimalProfile(count, estimateMaxMinutes)
			rendered, err = output.FormatOptimal(format, profile, projected, estimateMaxMinutes)
		default:
			profile, resolveErr := resolveProfile(estimateProfile, "")
			if resolveErr != nil {
				return resolveErr
			}
			projected := engine.Estimate(count, *profile, engine.EstimateOptions{
				FilterEfficiency: estimateEfficiency,
			})
			rendered, err = output.FormatEstimate(format, projected)
		}
		if err != nil {
			return err
		}

		_, err = fmt.Fprintln(sink.writer, rendered)
		return err
	},
}

func init() {
	rootCmd.AddCommand(estimateCmd)

	estimateCmd.Flags().StringVar(&estimateProfile, "profile", "", "pacing profile: conservative|moderate|aggressive")
	estimateCmd.Flags().BoolVar(&estimateCompare, "compare", false, "project every catalog profile")
	estimateCmd.Flags().IntVar(&estimateMaxMinutes, "max-minutes", 0, "pick the lowest-risk profile fitting a time budget")
	estimateCmd.Flags().Float64Var(&estimateEfficiency, "filter-efficiency", 0, "expected keep ratio when filters discard items (0 < e <= 1)")
	estimateCmd.Flags().StringVar(&estimateOutput, "output-format", string(output.FormatTable), "Output format: table|json")
	estimateCmd.Flags().String("out", "", "Write output to a file (default stdout)")
	estimateCmd.Flags().String("out-dir", "", "Write output to a directory")
}

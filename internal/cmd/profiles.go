package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/feedlens/feedlens/internal/core"
	"github.com/feedlens/feedlens/internal/output"
)

var profilesOutput string

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List the built-in pacing profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(profilesOutput)
		if err != nil {
			return err
		}

		rendered, err := output.FormatProfiles(format, core.BuiltInProfiles)
		if err != nil {
			return err
		}
		fmt.Println(rendered)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(profilesCmd)
	profilesCmd.Flags().StringVar(&profilesOutput, "output-format", string(output.FormatTable), "Output format: table|json")
}

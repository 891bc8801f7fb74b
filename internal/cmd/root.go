package cmd

import (
	"context"
	"fmt"

	"github.com/fulmenhq/gofulmen/telemetry"
	"github.com/spf13/cobra"

	"github.com/feedlens/feedlens/internal/appid"
	"github.com/feedlens/feedlens/internal/config"
	"github.com/feedlens/feedlens/internal/observability"
)

var (
	cfgFile string
	verbose bool

	// Version info set by main package
	versionInfo struct {
		Version   string
		Commit    string
		BuildDate string
	}
)

// SetVersionInfo is called by main package to set version information
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Disable global telemetry early to prevent config loading from emitting
	// metrics to stdout. Server mode will initialize proper telemetry later.
	disabledConfig := &telemetry.Config{Enabled: false}
	if sys, err := telemetry.NewSystem(disabledConfig); err == nil {
		telemetry.SetGlobalSystem(sys)
	}

	identity := appid.Get()
	rootCmd.Use = identity.BinaryName
	rootCmd.Short = identity.Description
	rootCmd.Long = fmt.Sprintf("%s - %s\n\nUse the subcommands to perform specific operations.",
		identity.BinaryName, identity.Description)

	cobra.OnInitialize(initLogging)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config",
		"", fmt.Sprintf("config file (default is %s)", config.DefaultConfigPath()))
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (sets log level to debug)")
}

// initLogging sets up the CLI logger before any command body runs.
func initLogging() {
	observability.InitCLILogger(appid.Get().BinaryName, verbose)
}

// loadConfig loads the full application configuration, honoring --config.
func loadConfig(ctx context.Context) (*config.Config, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	return config.Load(ctx, cfgFile)
}

// Package main provides the sdmigrate CLI entry point.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags
var Version = "dev"

var (
	// humanOutput controls whether to use human-readable output
	humanOutput bool
	verbose     bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		outputError(ExitError, "%v", err)
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "sdmigrate",
	Short: "Migrate the Sistedes digital library into DSpace",
	Long: `sdmigrate copies the Sistedes digital library (conferences, editions,
tracks, articles, seminars and bulletins) from its WordPress site into a
DSpace repository.

Runs are idempotent: everything already migrated is found and reused, so an
interrupted run can simply be started again. Authors are matched against the
persons already in the repository before new ones are created.

Settings come from flags, SDMIGRATE_* environment variables (a .env file in
the working directory is loaded first) and the YAML file at
$XDG_CONFIG_HOME/sdmigrate/config.yml, in that order of precedence.

The run report is printed as JSON unless --human is given.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	Args:              cobra.NoArgs,
	PersistentPreRunE: setup,
	RunE:              runMigrate,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug messages")
	rootCmd.Version = Version
}

// setup configures logging before any command runs.
func setup(cmd *cobra.Command, args []string) error {
	loadDotEnv()
	configureLogging(verbose)
	return nil
}

package main

import (
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the sdmigrate version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if humanOutput {
			outputHuman("sdmigrate %s\n", Version)
			return nil
		}
		return outputJSON(map[string]string{"version": Version})
	},
}

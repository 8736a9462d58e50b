package main

import (
	"github.com/spf13/cobra"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:           "bimactl",
	Short:         "BimaBot claim audit tooling",
	Long:          "Runs the claim audit rules against structured bill and policy files and applies session database migrations.",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rzzdr/economic-scenario-generator/pkg/utils/logger"
)

var version = "1.0.0"

func newRootCommand() *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:           "esgctl",
		Short:         "Run economic scenario batches from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.Init(logLevel, "development")
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	root.AddCommand(newSimulateCommand(), newVersionCommand())
	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the esgctl version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "esgctl %s\n", version)
		},
	}
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "esgctl: %v\n", err)
		os.Exit(1)
	}
}

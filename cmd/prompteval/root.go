package main

import (
	"log/slog"

	"github.com/spf13/cobra"
)

var version = "dev"

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prompteval",
		Short: "prompteval - tiered evaluation for prompt artifacts",
		Long: `Prompteval evaluates a corpus of prompt artifacts against candidate models.

Evaluation depth is selected with tiers 0-7: tier 0 runs structural checks
only with no model calls, higher tiers add judged scoring, repeated runs for
reproducibility, and progressively wider and more expensive model matrices.`,
		Version:      version,
		SilenceUsage: true,
	}

	debugLogging := cmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	cmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if *debugLogging {
			slog.SetLogLoggerLevel(slog.LevelDebug)
		}
	}

	cmd.AddCommand(
		newRunCommand(),
		newDiscoverCommand(),
		newProbeCommand(),
		newRubricCommand(),
		newInitCommand(),
		newCompareCommand(),
		newPublishCommand(),
		newCacheCommand(),
	)

	return cmd
}

func execute() error {
	return newRootCommand().Execute()
}

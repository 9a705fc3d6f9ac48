package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/promptqa/prompteval/internal/cache"
	"github.com/promptqa/prompteval/internal/projectconfig"
	"github.com/spf13/cobra"
)

var cacheDir string

func newCacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage evaluation caches",
		Long: `Manage the evaluation caches.

Two caches live under the cache directory: results/ holds per-artifact
evaluation results keyed by artifact content, tier, rubric and threshold;
probe/ holds model capability probe results with a TTL.`,
	}

	cmd.AddCommand(newCacheClearCommand())

	return cmd
}

func newCacheClearCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear cached results and probe state",
		Long: `Clear all cached evaluation results and probe state.

The next run re-evaluates every artifact and re-probes every model.`,
		RunE: cacheClearE,
	}

	cmd.Flags().StringVar(&cacheDir, "cache-dir", projectconfig.DefaultCacheDir, "Cache directory to clear")

	return cmd
}

func cacheClearE(_ *cobra.Command, _ []string) error {
	absDir, err := filepath.Abs(cacheDir)
	if err != nil {
		return fmt.Errorf("resolving cache directory: %w", err)
	}

	resultsDir := filepath.Join(absDir, "results")
	if err := cache.New(resultsDir).Clear(); err != nil {
		return fmt.Errorf("clearing result cache: %w", err)
	}
	fmt.Printf("Result cache cleared: %s\n", resultsDir)

	return clearProbeCache(context.Background(), absDir)
}

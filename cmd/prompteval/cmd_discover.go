package main

import (
	"encoding/json"
	"fmt"

	"github.com/promptqa/prompteval/internal/discovery"
	"github.com/promptqa/prompteval/internal/utils"
	"github.com/spf13/cobra"
)

var (
	discoverConfigPath string
	discoverFormat     string
)

func newDiscoverCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "discover [roots...]",
		Short: "List the artifacts an evaluation would see",
		Long: `Walk the corpus roots and list every recognized prompt artifact.

Both artifact formats are recognized: frontmatter markdown documents and
templated case files, expanded to one artifact per case. Files the walk saw
but could not parse are listed as skipped, with the reason.

Without arguments the roots come from prompteval.yaml.`,
		Args: cobra.ArbitraryArgs,
		RunE: discoverCommandE,
	}

	cmd.Flags().StringVar(&discoverConfigPath, "config", "", "Path to prompteval.yaml (default: auto-detect)")
	cmd.Flags().StringVarP(&discoverFormat, "format", "f", "text", "Output format: text or json")

	return cmd
}

func discoverCommandE(_ *cobra.Command, args []string) error {
	if discoverFormat != "text" && discoverFormat != "json" {
		return fmt.Errorf("unsupported format %q: must be text or json", discoverFormat)
	}

	roots := args
	var opts discovery.Options

	if len(roots) == 0 {
		spec, specDir, err := loadSpecFrom(discoverConfigPath)
		if err != nil {
			return err
		}
		roots = utils.ResolvePaths(spec.Roots, specDir)
		opts = discovery.Options{Include: spec.Include, Exclude: spec.Exclude}
	}

	report, err := discovery.Discover(roots, opts)
	if err != nil {
		return fmt.Errorf("discovery failed: %w", err)
	}

	if discoverFormat == "json" {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal discovery report: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	printDiscoveryReport(report)
	return nil
}

func printDiscoveryReport(report *discovery.Report) {
	if len(report.Artifacts) == 0 {
		fmt.Println("No artifacts found.")
	} else {
		fmt.Printf("  %s %s %s\n",
			padRight("Artifact", artifactColWidth),
			padRight("Format", 10),
			"Path")
		for _, art := range report.Artifacts {
			fmt.Printf("  %s %s %s\n",
				padRight(truncateName(art.ID, artifactColWidth-2), artifactColWidth),
				padRight(string(art.Format), 10),
				art.Path)
		}
		fmt.Printf("\n%d artifact(s)\n", len(report.Artifacts))
	}

	if len(report.Skipped) > 0 {
		fmt.Printf("\nSkipped %d file(s):\n", len(report.Skipped))
		for _, sk := range report.Skipped {
			fmt.Printf("  - %s: %s\n", sk.Path, sk.Reason)
		}
	}
}

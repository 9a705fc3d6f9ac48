package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/promptqa/prompteval/internal/baseline"
	"github.com/promptqa/prompteval/internal/reporting"
	"github.com/spf13/cobra"
)

var (
	compareOutputFormat string
	compareConfidence   float64
)

func newCompareCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare <baseline.json> <candidate.json>",
		Short: "Compare two batch result files",
		Long: `Compare a candidate batch against a baseline batch.

Loads two result JSON files, pairs their artifacts by ID, and reports
per-artifact score deltas, pass transitions (fixed/regressed), and a
bootstrap confidence interval over the deltas. The comparison is flagged
significant only when the interval excludes zero.

Artifacts that errored in either batch are excluded from the statistics.`,
		Args: cobra.ExactArgs(2),
		RunE: compareCommandE,
	}

	cmd.Flags().StringVarP(&compareOutputFormat, "format", "f", "table", "Output format: table or json")
	cmd.Flags().Float64Var(&compareConfidence, "confidence", 0.95, "Confidence level for the delta interval")

	return cmd
}

func compareCommandE(_ *cobra.Command, args []string) error {
	if compareOutputFormat != "table" && compareOutputFormat != "json" {
		return fmt.Errorf("unsupported format %q: must be table or json", compareOutputFormat)
	}

	base, err := reporting.LoadJSON(args[0])
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", args[0], err)
	}
	cand, err := reporting.LoadJSON(args[1])
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", args[1], err)
	}

	cmp, err := baseline.Compare(base, cand, baseline.Options{
		ConfidenceLevel: compareConfidence,
		Seed:            -1,
	})
	if err != nil {
		return fmt.Errorf("comparison failed: %w", err)
	}

	if compareOutputFormat == "json" {
		data, err := json.MarshalIndent(cmp, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal comparison: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	printComparison(cmp)
	return nil
}

func printComparison(cmp *baseline.Comparison) {
	fmt.Println(strings.Repeat("=", 70))
	fmt.Println(" BATCH COMPARISON")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Println()
	fmt.Printf("  Baseline:  %s\n", cmp.BaselineID)
	fmt.Printf("  Candidate: %s\n", cmp.CandidateID)
	fmt.Println()

	fmt.Printf("  %s %s %s %s %s\n",
		padRight("Artifact", artifactColWidth),
		padRight("Base", 7),
		padRight("Cand", 7),
		padRight("Delta", 8),
		"Transition")
	for _, d := range cmp.Deltas {
		icon := " "
		if d.ScoreDelta > 0 {
			icon = "↑"
		} else if d.ScoreDelta < 0 {
			icon = "↓"
		}
		transition := ""
		if d.Transition != baseline.TransitionUnchanged {
			transition = string(d.Transition)
		}
		fmt.Printf("  %s %s %s %s%s %s\n",
			padRight(truncateName(d.ArtifactID, artifactColWidth-2), artifactColWidth),
			padRight(fmt.Sprintf("%.1f", d.BaselineScore), 7),
			padRight(fmt.Sprintf("%.1f", d.CandidateScore), 7),
			icon,
			padRight(fmt.Sprintf("%+.1f", d.ScoreDelta), 7),
			transition)
	}
	fmt.Println()

	s := cmp.Summary
	fmt.Printf("Compared: %d  improved: %d  regressed: %d  unchanged: %d\n",
		s.Compared, s.Improved, s.Regressed, s.Unchanged)
	if s.Fixed > 0 || s.Broken > 0 {
		fmt.Printf("Pass transitions: %d fixed, %d broken\n", s.Fixed, s.Broken)
	}
	fmt.Printf("Mean delta: %+.2f  (%.0f%% CI [%+.2f, %+.2f])\n",
		s.MeanDelta, s.DeltaInterval.ConfidenceLevel*100, s.DeltaInterval.Lower, s.DeltaInterval.Upper)
	if s.Significant {
		fmt.Println("The difference is statistically significant.")
	} else {
		fmt.Println("The difference is not statistically significant.")
	}

	if len(cmp.OnlyInBaseline) > 0 {
		fmt.Printf("\nOnly in baseline: %s\n", strings.Join(cmp.OnlyInBaseline, ", "))
	}
	if len(cmp.OnlyInCandidate) > 0 {
		fmt.Printf("Only in candidate: %s\n", strings.Join(cmp.OnlyInCandidate, ", "))
	}
}

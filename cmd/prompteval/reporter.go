package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/promptqa/prompteval/internal/models"
	"github.com/promptqa/prompteval/internal/orchestration"
)

const artifactColWidth = 34

// formatDuration formats a duration in a consistent, human-readable way.
// This ensures stable output regardless of Go version changes.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return d.Round(time.Millisecond).String()
}

// padRight pads s with spaces to the given display width, using rune widths
// so CJK artifact names keep columns aligned.
func padRight(s string, width int) string {
	sw := runewidth.StringWidth(s)
	if sw >= width {
		return s
	}
	return s + strings.Repeat(" ", width-sw)
}

// truncateName shortens a name to maxLen runes, appending an ellipsis.
func truncateName(name string, maxLen int) string {
	runes := []rune(name)
	if len(runes) <= maxLen {
		return name
	}
	return string(runes[:maxLen-1]) + "…"
}

func verboseProgressListener(event orchestration.ProgressEvent) {
	switch event.EventType {
	case orchestration.EventBatchStart:
		fmt.Printf("Starting batch: %d artifact(s), tier %v, %v candidate model(s), %v run(s) each\n\n",
			event.TotalArtifacts, event.Details["tier"], event.Details["candidates"], event.Details["runs"])
	case orchestration.EventProbeResult:
		if usable, ok := event.Details["usable"].(bool); ok && !usable {
			fmt.Printf("  [PROBE] %s unusable (%v): %v\n", event.ModelID, event.Details["error_kind"], event.Details["detail"])
		} else {
			fmt.Printf("  [PROBE] %s ok\n", event.ModelID)
		}
	case orchestration.EventArtifactStart:
		fmt.Printf("[%d/%d] Evaluating %s\n", event.ArtifactNum, event.TotalArtifacts, event.ArtifactID)
	case orchestration.EventArtifactCached:
		fmt.Printf("[%d/%d] %s [cached]\n\n", event.ArtifactNum, event.TotalArtifacts, event.ArtifactID)
	case orchestration.EventTierSkipped:
		fmt.Printf("  [SKIP] %s: no usable model among %v candidate(s) at tier %v\n",
			event.ArtifactID, event.Details["candidates"], event.Details["tier"])
	case orchestration.EventBudgetStop:
		fmt.Printf("  [BUDGET] %s: stopped after %v/%v run(s): %v\n",
			event.ArtifactID, event.Details["issued"], event.Details["planned"], event.Details["reason"])
	case orchestration.EventRunStart:
		fmt.Printf("  Run %d/%d on %s...", event.RunIndex+1, event.TotalRuns, event.ModelID)
	case orchestration.EventRunComplete:
		status := "ok"
		if failed, ok := event.Details["failed"].(bool); ok && failed {
			status = "failed"
		}
		fmt.Printf(" %s (%s)\n", status, formatDuration(time.Duration(event.DurationMs)*time.Millisecond))
	case orchestration.EventArtifactDone:
		if event.State == models.StateErrored {
			fmt.Printf("  Artifact %s: errored: %v\n\n", event.ArtifactID, event.Details["error"])
			return
		}
		icon := "✗"
		if passed, ok := event.Details["passed"].(bool); ok && passed {
			icon = "✓"
		}
		fmt.Printf("  Artifact %s: %s score=%.1f\n\n", event.ArtifactID, icon, event.Details["score"])
	case orchestration.EventBatchComplete:
		fmt.Printf("Batch completed in %s\n\n", formatDuration(time.Duration(event.DurationMs)*time.Millisecond))
	}
}

func simpleProgressListener(event orchestration.ProgressEvent) {
	switch event.EventType {
	case orchestration.EventArtifactCached:
		fmt.Printf("✓ [%d/%d] %s [cached]\n", event.ArtifactNum, event.TotalArtifacts, event.ArtifactID)
	case orchestration.EventArtifactDone:
		icon := "✗"
		if passed, ok := event.Details["passed"].(bool); ok && passed {
			icon = "✓"
		}
		if event.State == models.StateErrored {
			icon = "!"
		}
		fmt.Printf("%s [%d/%d] %s\n", icon, event.ArtifactNum, event.TotalArtifacts, event.ArtifactID)
	}
}

func printSummary(outcome *models.BatchOutcome) {
	fmt.Println("=" + strings.Repeat("=", 60))
	fmt.Println(" EVALUATION RESULTS")
	fmt.Println("=" + strings.Repeat("=", 60))
	fmt.Println()

	digest := outcome.Digest

	fmt.Printf("Artifacts:      %d\n", digest.TotalArtifacts)
	fmt.Printf("Passed:         %d\n", digest.Passed)
	fmt.Printf("Failed:         %d\n", digest.Failed)
	fmt.Printf("Errored:        %d\n", digest.Errored)
	if digest.TierSkipped > 0 {
		fmt.Printf("Tier skipped:   %d (structural score only)\n", digest.TierSkipped)
	}
	if digest.TierPartial > 0 {
		fmt.Printf("Tier partial:   %d (budget or model loss)\n", digest.TierPartial)
	}
	fmt.Printf("Average Score:  %.2f\n", digest.AvgScore)
	fmt.Printf("Duration:       %s\n", formatDuration(time.Duration(digest.DurationMs)*time.Millisecond))
	fmt.Println()

	// Per-artifact breakdown
	fmt.Println("-" + strings.Repeat("-", 60))
	fmt.Println(" PER-ARTIFACT BREAKDOWN")
	fmt.Println("-" + strings.Repeat("-", 60))
	fmt.Printf("  %s %s %s %s\n",
		padRight("Artifact", artifactColWidth),
		padRight("Score", 7),
		padRight("Stable", 7),
		"Coverage")
	for i := range outcome.Results {
		r := &outcome.Results[i]
		icon := "✓"
		switch {
		case r.State == models.StateErrored:
			icon = "!"
		case !r.Passed:
			icon = "✗"
		}
		name := truncateName(r.ArtifactID, artifactColWidth-2)
		fmt.Printf("%s %s %s %s %s\n",
			icon,
			padRight(name, artifactColWidth),
			padRight(scoreCell(r), 7),
			padRight(stableCell(r), 7),
			coverageCell(r))
	}
	fmt.Println()

	if digest.Failed > 0 || digest.Errored > 0 {
		fmt.Println("Failed Artifacts:")
		for i := range outcome.Results {
			r := &outcome.Results[i]
			if r.Passed && r.State != models.StateErrored {
				continue
			}
			if r.State == models.StateErrored {
				fmt.Printf("  - %s: %s\n", r.ArtifactID, r.ErrorMsg)
				continue
			}
			fmt.Printf("  - %s (%.1f < %.0f)\n", r.ArtifactID, r.CombinedScore, r.ThresholdUsed)
			for _, dim := range r.Dimensions {
				if dim.NormalizedValue < r.ThresholdUsed {
					fmt.Printf("    • %s: %.1f\n", dim.Criterion, dim.NormalizedValue)
				}
			}
		}
		fmt.Println()
	}
}

func scoreCell(r *models.PromptResult) string {
	if r.State == models.StateErrored {
		return "—"
	}
	return fmt.Sprintf("%.1f", r.CombinedScore)
}

func stableCell(r *models.PromptResult) string {
	if r.Methodologies.Reproducibility == nil {
		return "—"
	}
	if r.IsStable {
		return "✓"
	}
	return "✗"
}

func coverageCell(r *models.PromptResult) string {
	if len(r.Coverage) == 0 {
		return "—"
	}
	label := strings.Join(r.Coverage, "+")
	if r.StructuralOnly() {
		label += " (floor)"
	}
	return label
}

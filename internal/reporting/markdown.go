package reporting

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/promptqa/prompteval/internal/models"
)

// FormatMarkdown renders the outcome as a markdown report: a summary table
// followed by per-artifact detail sections for anything that failed,
// errored, or ran with reduced coverage.
func FormatMarkdown(outcome *models.BatchOutcome) string {
	var b strings.Builder

	d := outcome.Digest
	b.WriteString("# Prompt Evaluation Report\n\n")
	fmt.Fprintf(&b, "- **Batch**: `%s`\n", outcome.BatchID)
	fmt.Fprintf(&b, "- **Tier**: %d\n", outcome.Setup.Tier)
	fmt.Fprintf(&b, "- **Rubric**: %s\n", outcome.Setup.RubricVersion)
	fmt.Fprintf(&b, "- **Threshold**: %.1f\n", outcome.Setup.Threshold)
	fmt.Fprintf(&b, "- **Duration**: %v\n\n", time.Duration(d.DurationMs)*time.Millisecond)

	fmt.Fprintf(&b, "**%d artifacts** — %d passed, %d failed, %d errored", d.TotalArtifacts, d.Passed, d.Failed, d.Errored)
	if d.TierSkipped > 0 {
		fmt.Fprintf(&b, ", %d structural-only (tier skipped)", d.TierSkipped)
	}
	if d.TierPartial > 0 {
		fmt.Fprintf(&b, ", %d budget-limited", d.TierPartial)
	}
	fmt.Fprintf(&b, ". Average score %.1f.\n\n", d.AvgScore)

	b.WriteString("| Artifact | Score | Passed | Coverage | Stable |\n")
	b.WriteString("|---|---|---|---|---|\n")
	for i := range outcome.Results {
		r := &outcome.Results[i]
		if r.State == models.StateErrored {
			fmt.Fprintf(&b, "| %s | — | error | — | — |\n", r.ArtifactID)
			continue
		}
		fmt.Fprintf(&b, "| %s | %.1f | %s | %s | %s |\n",
			r.ArtifactID, r.CombinedScore, passMark(r.Passed), coverageLabel(r), stableMark(r))
	}
	b.WriteString("\n")

	wroteHeader := false
	for i := range outcome.Results {
		r := &outcome.Results[i]
		if r.State != models.StateErrored && r.Passed && !r.TierSkipped && !r.TierPartial {
			continue
		}
		if !wroteHeader {
			b.WriteString("## Details\n\n")
			wroteHeader = true
		}
		writeResultSection(&b, r)
	}

	return b.String()
}

// WriteMarkdown writes the markdown report to path.
func WriteMarkdown(outcome *models.BatchOutcome, path string) error {
	if err := os.WriteFile(path, []byte(FormatMarkdown(outcome)), 0644); err != nil {
		return fmt.Errorf("writing markdown report: %w", err)
	}
	return nil
}

func writeResultSection(b *strings.Builder, r *models.PromptResult) {
	fmt.Fprintf(b, "### %s\n\n", r.ArtifactID)
	fmt.Fprintf(b, "`%s`\n\n", r.ArtifactPath)

	if r.State == models.StateErrored {
		fmt.Fprintf(b, "**Errored**: %s\n\n", r.ErrorMsg)
		return
	}

	fmt.Fprintf(b, "- Combined score: **%.1f** (threshold %.1f)\n", r.CombinedScore, r.ThresholdUsed)
	if s := r.Methodologies.Structural; s != nil {
		fmt.Fprintf(b, "- Structural: %.1f\n", *s)
	}
	if j := r.Methodologies.Judged; j != nil {
		fmt.Fprintf(b, "- Judged: %.1f (std dev %.2f, %d outlier(s))\n", *j, r.StdDev, r.OutlierCount)
	}
	if rp := r.Methodologies.Reproducibility; rp != nil {
		fmt.Fprintf(b, "- Reproducibility: %.1f\n", *rp)
	}
	if r.TierSkipped {
		fmt.Fprintf(b, "- No usable model at tier %d; score reflects %s only\n", r.Tier, strings.Join(r.Coverage, "+"))
	}
	if r.TierPartial {
		fmt.Fprintf(b, "- Budget stopped run issuance: %d of %d planned runs completed\n", r.RunsCompleted, r.RunsPlanned)
	}

	var flagged []models.DimensionScore
	for _, dim := range r.Dimensions {
		if dim.Missing || dim.NormalizedValue < r.ThresholdUsed {
			flagged = append(flagged, dim)
		}
	}
	if len(flagged) > 0 {
		b.WriteString("\nCriteria needing attention:\n\n")
		for _, dim := range flagged {
			if dim.Missing {
				fmt.Fprintf(b, "- `%s` — not gradable: %s\n", dim.Criterion, dim.MissingReason)
			} else {
				fmt.Fprintf(b, "- `%s` — %.1f\n", dim.Criterion, dim.NormalizedValue)
			}
		}
	}
	b.WriteString("\n")
}

func passMark(passed bool) string {
	if passed {
		return "✓"
	}
	return "✗"
}

func stableMark(r *models.PromptResult) string {
	if r.Methodologies.Reproducibility == nil {
		return "—"
	}
	if r.IsStable {
		return "✓"
	}
	return "✗"
}

func coverageLabel(r *models.PromptResult) string {
	if len(r.Coverage) == 0 {
		return "—"
	}
	return strings.Join(r.Coverage, "+")
}

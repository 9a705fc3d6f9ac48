package reporting

import (
	"fmt"
	"strings"
	"time"

	"github.com/promptqa/prompteval/internal/models"
)

// InterpretScore returns a plain-language label for a combined score (0-100).
func InterpretScore(score float64) string {
	switch {
	case score > 90:
		return "Excellent (>90)"
	case score >= 70:
		return "Good (70-90)"
	case score >= 50:
		return "Needs Work (50-70)"
	default:
		return "Poor (<50)"
	}
}

// InterpretPassRate returns a human-readable explanation of a pass rate (0–1).
func InterpretPassRate(rate float64) string {
	pct := rate * 100
	switch {
	case pct >= 100:
		return fmt.Sprintf("All artifacts passed (%.0f%%)", pct)
	case pct >= 80:
		return fmt.Sprintf("Most artifacts passed (%.0f%%)", pct)
	case pct >= 50:
		return fmt.Sprintf("About half the artifacts passed (%.0f%%)", pct)
	default:
		return fmt.Sprintf("Few artifacts passed (%.0f%%)", pct)
	}
}

// InterpretCoverage explains what a result's methodology coverage means for
// how much to trust the score.
func InterpretCoverage(r *models.PromptResult) string {
	switch {
	case r.State == models.StateErrored:
		return "No methodology could score this artifact; treat it as broken input, not as a quality signal."
	case r.StructuralOnly():
		return "Score rests on structural analysis alone — no model was available to judge content quality. Treat it as a floor, not a verdict."
	case r.Methodologies.Reproducibility == nil:
		return "Judged without reproducibility measurement; a single run can be noisy."
	case !r.IsStable:
		return "Repeated runs disagreed — the judged score is unstable. Consider a higher tier with more runs before acting on it."
	default:
		return "Full methodology coverage with stable repeated runs."
	}
}

// FormatSummaryReport produces a plain-language report from a BatchOutcome.
func FormatSummaryReport(outcome *models.BatchOutcome) string {
	var b strings.Builder

	d := outcome.Digest
	duration := time.Duration(d.DurationMs) * time.Millisecond

	b.WriteString("=== Interpretation ===\n\n")

	fmt.Fprintf(&b, "Average Score: %.1f — %s\n", d.AvgScore, InterpretScore(d.AvgScore))
	if d.TotalArtifacts > 0 {
		rate := float64(d.Passed) / float64(d.TotalArtifacts)
		fmt.Fprintf(&b, "Pass Rate: %s\n", InterpretPassRate(rate))
	}
	fmt.Fprintf(&b, "Total Duration: %v\n", duration)

	if d.TierSkipped > 0 {
		fmt.Fprintf(&b, "\n%d artifact(s) were scored structurally only because no model at tier %d was usable.\n",
			d.TierSkipped, outcome.Setup.Tier)
		b.WriteString("Their scores are floors, not verdicts; rerun when a backend is reachable.\n")
	}
	if d.TierPartial > 0 {
		fmt.Fprintf(&b, "\n%d artifact(s) hit the tier budget before all planned runs were issued.\n", d.TierPartial)
	}

	var unstable []string
	for i := range outcome.Results {
		r := &outcome.Results[i]
		if r.Methodologies.Reproducibility != nil && !r.IsStable {
			unstable = append(unstable, r.ArtifactID)
		}
	}
	if len(unstable) > 0 {
		fmt.Fprintf(&b, "\nUnstable results (repeated runs disagreed): %s\n", strings.Join(unstable, ", "))
		b.WriteString("Consider more runs per model or tighter prompts before trusting these scores.\n")
	}

	return b.String()
}

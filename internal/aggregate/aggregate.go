// Package aggregate folds one artifact's tier outcome into its final
// PromptResult: per-criterion judged scores with calibration and weight
// renormalization, methodology combination with graceful degradation, and
// the repeated-run statistics.
package aggregate

import (
	"fmt"

	"github.com/promptqa/prompteval/internal/models"
	"github.com/promptqa/prompteval/internal/scoring"
	"github.com/promptqa/prompteval/internal/statistics"
)

// AggregationError reports that not a single methodology produced a score
// for an artifact, so no combined score exists. This is the only scoring
// failure that surfaces per artifact; the batch still continues.
type AggregationError struct {
	ArtifactID string
	Detail     string
}

func (e *AggregationError) Error() string {
	return fmt.Sprintf("aggregating %s: %s", e.ArtifactID, e.Detail)
}

// TierOutcome is everything the orchestrator collected for one artifact at
// one tier.
type TierOutcome struct {
	Spec models.TierSpec
	Runs []models.EvaluationRun
	// Skipped is set when no candidate model in the tier was usable.
	Skipped bool
	// Partial is set when the soft budget stopped run issuance early.
	Partial     bool
	RunsPlanned int
	ModelsUsed  []string
}

// Options tune one aggregation.
type Options struct {
	Threshold float64
	Stability scoring.StabilityThresholds
}

// Aggregate computes the final result for one artifact. The returned error
// is always a *AggregationError, and even then the PromptResult is valid:
// it carries the errored state so reporting still covers the artifact.
//
// Calibration offsets are applied to the raw grade first, then the value is
// clamped to the rubric scale, then normalized to 0-100. Offsets can
// therefore never push a grade outside the scale.
func Aggregate(art models.PromptArtifact, outcome TierOutcome, rubric *models.RubricVersion, opts Options) (models.PromptResult, error) {
	result := models.PromptResult{
		ArtifactID:    art.ID,
		ArtifactPath:  art.Path,
		Tier:          outcome.Spec.Tier,
		State:         models.StateAggregated,
		ThresholdUsed: opts.Threshold,
		RubricVersion: rubric.Version,
		TierSkipped:   outcome.Skipped,
		TierPartial:   outcome.Partial,
		RunsPlanned:   outcome.RunsPlanned,
		RunsCompleted: completedRuns(outcome.Runs),
		ModelsUsed:    outcome.ModelsUsed,
		IsStable:      true,
	}

	structuralScore := scoring.StructuralAnalyzer{}.Analyze(art).Score

	var judged *float64
	if outcome.Spec.Methodologies.Judged {
		judged = judgedScore(outcome.Runs, rubric, &result)
	}
	perRun := perRunTotals(outcome.Runs, rubric)

	if len(perRun) > 0 {
		result.StdDev = statistics.StdDev(perRun)
		result.OutlierCount = statistics.OutlierCount(perRun)
		if len(perRun) >= 2 {
			result.IsStable = result.StdDev <= opts.Stability.MaxStdDev
		}
	}

	var reproScore *float64
	if outcome.Spec.Methodologies.Reproducibility {
		if repro, ok := scoring.ScoreReproducibility(runOutputs(outcome.Runs), perRun, opts.Stability); ok {
			reproScore = &repro.Similarity
			result.IsStable = repro.IsStable
		}
	}

	// combine whatever contributed, redistributing the weights of missing
	// methodologies across the rest
	type contribution struct {
		name   string
		score  float64
		weight float64
	}
	var contribs []contribution
	if outcome.Spec.Methodologies.Structural {
		result.Methodologies.Structural = &structuralScore
		contribs = append(contribs, contribution{models.MethodologyStructural, structuralScore, rubric.MethodologyWeights.Structural})
	}
	if judged != nil {
		result.Methodologies.Judged = judged
		contribs = append(contribs, contribution{models.MethodologyJudged, *judged, rubric.MethodologyWeights.Judged})
	}
	if reproScore != nil {
		result.Methodologies.Reproducibility = reproScore
		contribs = append(contribs, contribution{models.MethodologyReproducibility, *reproScore, rubric.MethodologyWeights.Reproducibility})
	}

	var weightSum float64
	for _, c := range contribs {
		weightSum += c.weight
	}
	if len(contribs) == 0 || weightSum <= 0 {
		err := &AggregationError{ArtifactID: art.ID, Detail: "no methodology produced a score"}
		result.State = models.StateErrored
		result.ErrorMsg = err.Error()
		return result, err
	}

	var combined float64
	for _, c := range contribs {
		combined += c.weight / weightSum * c.score
		result.Coverage = append(result.Coverage, c.name)
	}
	result.CombinedScore = combined
	result.Passed = combined >= opts.Threshold
	return result, nil
}

// judgedScore computes the judged methodology score: per criterion, the
// mean of its calibrated per-run samples; across criteria, the weighted
// mean with weights renormalized over the criteria that produced samples.
// Fills result.Dimensions as a side effect. Returns nil when nothing could
// be judged.
func judgedScore(runs []models.EvaluationRun, rubric *models.RubricVersion, result *models.PromptResult) *float64 {
	if len(runs) == 0 || len(rubric.Criteria) == 0 {
		return nil
	}

	type criterionAgg struct {
		meanNormalized float64
		meanRaw        float64
		samples        int
	}
	aggs := make(map[string]criterionAgg, len(rubric.Criteria))

	for _, c := range rubric.Criteria {
		var sumNorm, sumRaw float64
		samples := 0
		for _, run := range runs {
			grade, ok := gradeFor(run, c.Name)
			if !ok {
				continue
			}
			raw := grade + rubric.CalibrationOffsets[c.Name]
			clamped := models.Clamp(raw, rubric.GradeMin, rubric.GradeMax)
			sumNorm += models.NormalizeGrade(clamped, rubric.GradeMin, rubric.GradeMax)
			sumRaw += clamped
			samples++
		}
		if samples > 0 {
			aggs[c.Name] = criterionAgg{
				meanNormalized: sumNorm / float64(samples),
				meanRaw:        sumRaw / float64(samples),
				samples:        samples,
			}
		}
	}

	// renormalize the weights of the criteria that have samples
	var availableWeight float64
	for _, c := range rubric.Criteria {
		if _, ok := aggs[c.Name]; ok {
			availableWeight += c.Weight
		}
	}

	var judged float64
	contributed := false
	for _, c := range rubric.Criteria {
		agg, ok := aggs[c.Name]
		if !ok {
			result.Dimensions = append(result.Dimensions,
				models.MissingDimensionScore(c.Name, missingReason(runs, c.Name)))
			continue
		}

		weight := 0.0
		if availableWeight > 0 {
			weight = c.Weight / availableWeight
		}
		result.Dimensions = append(result.Dimensions, models.DimensionScore{
			Criterion:       c.Name,
			Weight:          weight,
			RawValue:        agg.meanRaw,
			MinValue:        rubric.GradeMin,
			MaxValue:        rubric.GradeMax,
			NormalizedValue: agg.meanNormalized,
		})

		judged += weight * agg.meanNormalized
		contributed = contributed || weight > 0
	}

	if !contributed {
		return nil
	}
	return &judged
}

// perRunTotals computes each run's own weighted judged score, used for the
// dispersion statistics and the stability check. Runs with no extractable
// grades contribute no total.
func perRunTotals(runs []models.EvaluationRun, rubric *models.RubricVersion) []float64 {
	var totals []float64
	for _, run := range runs {
		var weighted, weightSum float64
		for _, c := range rubric.Criteria {
			grade, ok := gradeFor(run, c.Name)
			if !ok {
				continue
			}
			raw := grade + rubric.CalibrationOffsets[c.Name]
			clamped := models.Clamp(raw, rubric.GradeMin, rubric.GradeMax)
			weighted += c.Weight * models.NormalizeGrade(clamped, rubric.GradeMin, rubric.GradeMax)
			weightSum += c.Weight
		}
		if weightSum > 0 {
			totals = append(totals, weighted/weightSum)
		}
	}
	return totals
}

func gradeFor(run models.EvaluationRun, criterion string) (float64, bool) {
	for _, g := range run.Grades {
		if g.Criterion == criterion && !g.Missing {
			return g.Raw, true
		}
	}
	return 0, false
}

// missingReason picks the first recorded reason a criterion came up empty.
func missingReason(runs []models.EvaluationRun, criterion string) string {
	for _, run := range runs {
		for _, g := range run.Grades {
			if g.Criterion == criterion && g.Missing && g.MissingReason != "" {
				return g.MissingReason
			}
		}
	}
	return "no run produced an extractable grade"
}

// runOutputs returns the outputs reproducibility may compare: runs that
// produced text, excluding ones whose every grade extraction failed. An
// unparsable response is not a reproduction of anything.
func runOutputs(runs []models.EvaluationRun) []string {
	var outputs []string
	for _, run := range runs {
		if run.RawResponse == "" {
			continue
		}
		if len(run.Grades) > 0 && !hasExtractedGrade(run) {
			continue
		}
		outputs = append(outputs, run.RawResponse)
	}
	return outputs
}

func hasExtractedGrade(run models.EvaluationRun) bool {
	for _, g := range run.Grades {
		if !g.Missing {
			return true
		}
	}
	return false
}

func completedRuns(runs []models.EvaluationRun) int {
	n := 0
	for i := range runs {
		if !runs[i].Failed() {
			n++
		}
	}
	return n
}

package models

import "time"

// BatchSetup records how a batch was configured, for reproducibility.
type BatchSetup struct {
	Tier          int      `json:"tier"`
	Roots         []string `json:"roots"`
	ModelOverride []string `json:"model_override,omitempty"`
	Threshold     float64  `json:"threshold"`
	RubricVersion string   `json:"rubric_version"`
	Concurrency   int      `json:"concurrency"`
}

// BatchDigest summarizes a batch for quick reading.
type BatchDigest struct {
	TotalArtifacts int     `json:"total_artifacts"`
	Passed         int     `json:"passed"`
	Failed         int     `json:"failed"`
	Errored        int     `json:"errored"`
	TierSkipped    int     `json:"tier_skipped"`
	TierPartial    int     `json:"tier_partial"`
	AvgScore       float64 `json:"avg_score"`
	DurationMs     int64   `json:"duration_ms"`
}

// BatchOutcome is the full record of one evaluation batch: one PromptResult
// per discovered artifact, always, plus setup and summary.
type BatchOutcome struct {
	BatchID   string         `json:"batch_id"`
	Timestamp time.Time      `json:"timestamp"`
	Setup     BatchSetup     `json:"setup"`
	Digest    BatchDigest    `json:"summary"`
	Results   []PromptResult `json:"results"`
}

// ComputeDigest fills the digest from the result list.
func (b *BatchOutcome) ComputeDigest() {
	d := BatchDigest{TotalArtifacts: len(b.Results)}
	var scoreSum float64
	var scored int
	for i := range b.Results {
		r := &b.Results[i]
		switch {
		case r.State == StateErrored:
			d.Errored++
		case r.Passed:
			d.Passed++
		default:
			d.Failed++
		}
		if r.TierSkipped {
			d.TierSkipped++
		}
		if r.TierPartial {
			d.TierPartial++
		}
		if r.State == StateAggregated {
			scoreSum += r.CombinedScore
			scored++
		}
		d.DurationMs += r.DurationMs
	}
	if scored > 0 {
		d.AvgScore = scoreSum / float64(scored)
	}
	b.Digest = d
}

// AllPassed reports whether every artifact aggregated and passed. Used by
// the CI exit-code mapping.
func (b *BatchOutcome) AllPassed() bool {
	for i := range b.Results {
		if b.Results[i].State == StateErrored || !b.Results[i].Passed {
			return false
		}
	}
	return true
}

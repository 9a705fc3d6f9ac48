package baseline

import (
	"fmt"
	"sort"

	"github.com/promptqa/prompteval/internal/models"
	"github.com/promptqa/prompteval/internal/statistics"
)

// PassTransition describes how an artifact's pass/fail status moved between
// two batches.
type PassTransition string

const (
	TransitionUnchanged PassTransition = "unchanged"
	// TransitionFixed means the artifact failed in the baseline batch and
	// passed in the candidate batch.
	TransitionFixed PassTransition = "fixed"
	// TransitionRegressed means the artifact passed in the baseline batch
	// and failed in the candidate batch.
	TransitionRegressed PassTransition = "regressed"
)

// ArtifactDelta pairs one artifact's result from two batches with computed
// deltas. Positive deltas mean the candidate batch scored higher.
type ArtifactDelta struct {
	ArtifactID     string         `json:"artifact_id"`
	BaselineScore  float64        `json:"baseline_score"`
	CandidateScore float64        `json:"candidate_score"`
	ScoreDelta     float64        `json:"score_delta"`
	NormalizedGain float64        `json:"normalized_gain"`
	Transition     PassTransition `json:"transition"`
	Breakdown      DeltaBreakdown `json:"breakdown"`
}

// DeltaBreakdown carries per-methodology score deltas. A nil entry means the
// methodology contributed in at most one of the two batches, so no delta is
// defined for it.
type DeltaBreakdown struct {
	Structural      *float64 `json:"structural,omitempty"`
	Judged          *float64 `json:"judged,omitempty"`
	Reproducibility *float64 `json:"reproducibility,omitempty"`
}

// Summary aggregates the per-artifact deltas for a whole comparison.
type Summary struct {
	Compared      int                           `json:"compared"`
	Improved      int                           `json:"improved"`
	Regressed     int                           `json:"regressed"`
	Unchanged     int                           `json:"unchanged"`
	Fixed         int                           `json:"fixed"`
	Broken        int                           `json:"broken"`
	MeanDelta     float64                       `json:"mean_delta"`
	DeltaInterval statistics.ConfidenceInterval `json:"delta_interval"`
	Significant   bool                          `json:"significant"`
}

// Comparison is the full result of comparing a candidate batch against a
// baseline batch.
type Comparison struct {
	BaselineID      string          `json:"baseline_id"`
	CandidateID     string          `json:"candidate_id"`
	Deltas          []ArtifactDelta `json:"deltas"`
	OnlyInBaseline  []string        `json:"only_in_baseline,omitempty"`
	OnlyInCandidate []string        `json:"only_in_candidate,omitempty"`
	Summary         Summary         `json:"summary"`
}

// Options controls a comparison.
type Options struct {
	// ConfidenceLevel for the bootstrap interval over score deltas.
	// Defaults to 0.95.
	ConfidenceLevel float64
	// Seed makes the bootstrap deterministic when >= 0. Negative uses a
	// non-deterministic source.
	Seed int64
}

// Compare pairs the results of two batches by artifact ID and computes score
// deltas, pass transitions and a bootstrap confidence interval over the
// deltas. Artifacts that errored in either batch are excluded from the delta
// statistics but still reported in the respective only-in lists when absent
// from the other batch.
func Compare(baseline, candidate *models.BatchOutcome, opts Options) (*Comparison, error) {
	if baseline == nil || candidate == nil {
		return nil, fmt.Errorf("both batches are required")
	}
	if opts.ConfidenceLevel <= 0 || opts.ConfidenceLevel >= 1 {
		opts.ConfidenceLevel = 0.95
	}

	baseByID := indexResults(baseline)
	candByID := indexResults(candidate)

	cmp := &Comparison{
		BaselineID:  baseline.BatchID,
		CandidateID: candidate.BatchID,
	}

	for id := range baseByID {
		if _, ok := candByID[id]; !ok {
			cmp.OnlyInBaseline = append(cmp.OnlyInBaseline, id)
		}
	}
	for id := range candByID {
		if _, ok := baseByID[id]; !ok {
			cmp.OnlyInCandidate = append(cmp.OnlyInCandidate, id)
		}
	}
	sort.Strings(cmp.OnlyInBaseline)
	sort.Strings(cmp.OnlyInCandidate)

	var deltas []float64
	for id, base := range baseByID {
		cand, ok := candByID[id]
		if !ok {
			continue
		}
		if base.State != models.StateAggregated || cand.State != models.StateAggregated {
			continue
		}

		d := ArtifactDelta{
			ArtifactID:     id,
			BaselineScore:  base.CombinedScore,
			CandidateScore: cand.CombinedScore,
			ScoreDelta:     cand.CombinedScore - base.CombinedScore,
			NormalizedGain: statistics.NormalizedGain(base.CombinedScore, cand.CombinedScore),
			Transition:     transition(base, cand),
			Breakdown:      breakdown(base, cand),
		}
		cmp.Deltas = append(cmp.Deltas, d)
		deltas = append(deltas, d.ScoreDelta)
	}

	sort.Slice(cmp.Deltas, func(i, j int) bool {
		return cmp.Deltas[i].ArtifactID < cmp.Deltas[j].ArtifactID
	})

	cmp.Summary = summarize(cmp.Deltas, deltas, opts)
	return cmp, nil
}

func indexResults(b *models.BatchOutcome) map[string]*models.PromptResult {
	out := make(map[string]*models.PromptResult, len(b.Results))
	for i := range b.Results {
		out[b.Results[i].ArtifactID] = &b.Results[i]
	}
	return out
}

func transition(base, cand *models.PromptResult) PassTransition {
	switch {
	case !base.Passed && cand.Passed:
		return TransitionFixed
	case base.Passed && !cand.Passed:
		return TransitionRegressed
	default:
		return TransitionUnchanged
	}
}

func breakdown(base, cand *models.PromptResult) DeltaBreakdown {
	return DeltaBreakdown{
		Structural:      methodologyDelta(base.Methodologies.Structural, cand.Methodologies.Structural),
		Judged:          methodologyDelta(base.Methodologies.Judged, cand.Methodologies.Judged),
		Reproducibility: methodologyDelta(base.Methodologies.Reproducibility, cand.Methodologies.Reproducibility),
	}
}

func methodologyDelta(base, cand *float64) *float64 {
	if base == nil || cand == nil {
		return nil
	}
	d := *cand - *base
	return &d
}

func summarize(artifactDeltas []ArtifactDelta, scoreDeltas []float64, opts Options) Summary {
	s := Summary{Compared: len(artifactDeltas)}
	for i := range artifactDeltas {
		d := &artifactDeltas[i]
		switch {
		case d.ScoreDelta > 0:
			s.Improved++
		case d.ScoreDelta < 0:
			s.Regressed++
		default:
			s.Unchanged++
		}
		switch d.Transition {
		case TransitionFixed:
			s.Fixed++
		case TransitionRegressed:
			s.Broken++
		}
	}
	s.MeanDelta = statistics.Mean(scoreDeltas)
	s.DeltaInterval = statistics.BootstrapCIWithSeed(scoreDeltas, opts.ConfidenceLevel, opts.Seed)
	s.Significant = s.Compared >= 2 && statistics.IsSignificant(s.DeltaInterval)
	return s
}

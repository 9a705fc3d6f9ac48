package models

// ArtifactState tracks one artifact's progress through an evaluation pass.
type ArtifactState string

const (
	StateDiscovered ArtifactState = "discovered"
	StateProbing    ArtifactState = "probing"
	StateExecuting  ArtifactState = "executing"
	StateScoring    ArtifactState = "scoring"
	// StateAggregated is the terminal success state, reached even with
	// partial methodology coverage.
	StateAggregated ArtifactState = "aggregated"
	// StateErrored is terminal and only reached when no methodology at all
	// produced a score, including the network-free structural analysis.
	StateErrored ArtifactState = "errored"
)

// Methodology names, used in PromptResult.Coverage.
const (
	MethodologyStructural      = "structural"
	MethodologyJudged          = "judged"
	MethodologyReproducibility = "reproducibility"
)

// MethodologyScores carries the per-methodology 0-100 scores that fed the
// combined score. A nil pointer means the methodology did not contribute
// (skipped tier, too few runs, disabled) and its weight was redistributed.
type MethodologyScores struct {
	Structural      *float64 `json:"structural,omitempty"`
	Judged          *float64 `json:"judged,omitempty"`
	Reproducibility *float64 `json:"reproducibility,omitempty"`
}

// PromptResult is the durable output for one (artifact, tier) evaluation,
// emitted for every discovered artifact whether it scored fully, partially,
// or errored. Immutable once emitted.
type PromptResult struct {
	ArtifactID   string        `json:"artifact_id"`
	ArtifactPath string        `json:"artifact_path"`
	Tier         int           `json:"tier"`
	State        ArtifactState `json:"state"`

	Methodologies MethodologyScores `json:"methodology_scores"`
	Dimensions    []DimensionScore  `json:"dimensions,omitempty"`

	CombinedScore float64 `json:"combined_score"`
	StdDev        float64 `json:"std_dev"`
	OutlierCount  int     `json:"outlier_count"`
	IsStable      bool    `json:"is_stable"`
	Passed        bool    `json:"passed"`
	ThresholdUsed float64 `json:"threshold_used"`
	RubricVersion string  `json:"rubric_version"`

	// Coverage lists the methodologies that actually contributed, so a
	// structural-only result is observable rather than passing as a full
	// score.
	Coverage    []string `json:"coverage"`
	TierSkipped bool     `json:"tier_skipped,omitempty"`
	TierPartial bool     `json:"tier_partial,omitempty"`

	RunsPlanned   int      `json:"runs_planned"`
	RunsCompleted int      `json:"runs_completed"`
	ModelsUsed    []string `json:"models_used,omitempty"`
	ErrorMsg      string   `json:"error_msg,omitempty"`
	DurationMs    int64    `json:"duration_ms"`
}

// StructuralOnly reports whether the combined score rests on structural
// analysis alone.
func (r *PromptResult) StructuralOnly() bool {
	return len(r.Coverage) == 1 && r.Coverage[0] == MethodologyStructural
}

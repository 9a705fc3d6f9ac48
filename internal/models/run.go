package models

// EvaluationRun is the record of one model invocation cycle for one artifact:
// one entry per (artifact, model, run index) regardless of success. RunIndex
// is assigned in issuance order before dispatch so repeated-run statistics
// index stably even when execution is concurrent.
type EvaluationRun struct {
	ArtifactID  string `json:"artifact_id"`
	ModelID     string `json:"model_id"`
	RunIndex    int    `json:"run_index"`
	RawResponse string `json:"raw_response,omitempty"`
	DurationMs  int64  `json:"duration_ms"`
	ErrorMsg    string `json:"error_msg,omitempty"`

	// Grades holds the per-criterion judge extraction for this run, in rubric
	// criterion order. A missing entry means the criterion response could not
	// be graded; the run itself is still valid.
	Grades []CriterionGrade `json:"grades,omitempty"`
}

// Failed reports whether the run produced no usable output at all.
func (r *EvaluationRun) Failed() bool {
	return r.ErrorMsg != "" && r.RawResponse == ""
}

// CriterionGrade is the judged raw grade for one rubric criterion in one run.
// Extraction failures are data, not errors: Missing is set with a reason and
// the criterion is excluded from aggregation for this run.
type CriterionGrade struct {
	Criterion     string  `json:"criterion"`
	Raw           float64 `json:"raw"`
	Missing       bool    `json:"missing,omitempty"`
	MissingReason string  `json:"missing_reason,omitempty"`
}

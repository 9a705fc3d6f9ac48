package models

import "fmt"

// Criterion is one judged rubric dimension.
type Criterion struct {
	Name        string  `json:"name" yaml:"name"`
	Weight      float64 `json:"weight" yaml:"weight"`
	Description string  `json:"description,omitempty" yaml:"description,omitempty"`
}

// MethodologyWeights splits the combined score across methodologies. Weights
// over methodologies that produced no score are redistributed
// proportionally at aggregation time.
type MethodologyWeights struct {
	Structural      float64 `json:"structural" yaml:"structural"`
	Judged          float64 `json:"judged" yaml:"judged"`
	Reproducibility float64 `json:"reproducibility" yaml:"reproducibility"`
}

// RubricVersion is the externally loaded scoring rubric: criteria with
// weights, additive per-criterion calibration offsets, methodology weights,
// and the judge grade scale. Scoring-formula changes are rubric-data
// changes, not code changes.
type RubricVersion struct {
	Version            string             `json:"version" yaml:"version"`
	Criteria           []Criterion        `json:"criteria" yaml:"criteria"`
	CalibrationOffsets map[string]float64 `json:"calibration_offsets,omitempty" yaml:"calibration_offsets,omitempty"`
	MethodologyWeights MethodologyWeights `json:"methodology_weights" yaml:"methodology_weights"`

	// GradeMin/GradeMax bound the judge scale. Defaults 1 and 5.
	GradeMin float64 `json:"grade_min,omitempty" yaml:"grade_min,omitempty"`
	GradeMax float64 `json:"grade_max,omitempty" yaml:"grade_max,omitempty"`
}

// ApplyDefaults fills the judge scale when the rubric omits it.
func (r *RubricVersion) ApplyDefaults() {
	if r.GradeMin == 0 && r.GradeMax == 0 {
		r.GradeMin, r.GradeMax = 1, 5
	}
}

// Validate checks the rubric is usable. A rubric with fewer criteria than a
// caller expects is fine (weights renormalize); an empty criteria list is
// only an error when judge scoring is requested, which aggregation handles,
// so it is allowed here.
func (r *RubricVersion) Validate() error {
	if r.Version == "" {
		return fmt.Errorf("rubric: version is required")
	}
	if r.GradeMax <= r.GradeMin {
		return fmt.Errorf("rubric: grade_max (%v) must exceed grade_min (%v)", r.GradeMax, r.GradeMin)
	}
	seen := make(map[string]bool, len(r.Criteria))
	for _, c := range r.Criteria {
		if c.Name == "" {
			return fmt.Errorf("rubric: criterion with empty name")
		}
		if seen[c.Name] {
			return fmt.Errorf("rubric: duplicate criterion %q", c.Name)
		}
		seen[c.Name] = true
		if c.Weight < 0 {
			return fmt.Errorf("rubric: criterion %q has negative weight", c.Name)
		}
	}
	for name := range r.CalibrationOffsets {
		if !seen[name] {
			return fmt.Errorf("rubric: calibration offset for unknown criterion %q", name)
		}
	}
	mw := r.MethodologyWeights
	if mw.Structural < 0 || mw.Judged < 0 || mw.Reproducibility < 0 {
		return fmt.Errorf("rubric: methodology weights must be non-negative")
	}
	if mw.Structural+mw.Judged+mw.Reproducibility == 0 {
		return fmt.Errorf("rubric: methodology weights sum to zero")
	}
	return nil
}

// CriterionWeight returns the declared weight for a criterion name, or 0.
func (r *RubricVersion) CriterionWeight(name string) float64 {
	for _, c := range r.Criteria {
		if c.Name == name {
			return c.Weight
		}
	}
	return 0
}

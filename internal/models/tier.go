package models

import (
	"fmt"
	"time"
)

// TierBounds are the valid tier selector values.
const (
	MinTier = 0
	MaxTier = 7
)

// MethodologySet selects which scoring methodologies run for a tier.
type MethodologySet struct {
	Structural      bool `json:"structural" yaml:"structural"`
	Judged          bool `json:"judged" yaml:"judged"`
	Reproducibility bool `json:"reproducibility" yaml:"reproducibility"`
}

// Budget caps how much work a tier may issue for one artifact. Zero values
// mean unlimited. The budget is soft: once exceeded, no new runs are issued
// but in-flight runs drain and are still scored.
type Budget struct {
	MaxDuration  time.Duration `json:"max_duration,omitempty" yaml:"max_duration,omitempty"`
	MaxCostUnits float64       `json:"max_cost_units,omitempty" yaml:"max_cost_units,omitempty"`
}

// Unlimited reports whether the budget imposes no cap.
func (b Budget) Unlimited() bool {
	return b.MaxDuration <= 0 && b.MaxCostUnits <= 0
}

// TierSpec binds a tier number to its candidate models, run count, enabled
// methodologies, and budget. Tier 0 has no models and runs the structural
// analyzer only.
type TierSpec struct {
	Tier          int               `json:"tier"`
	Models        []ModelDescriptor `json:"models"`
	RunsPerModel  int               `json:"runs_per_model"`
	Methodologies MethodologySet    `json:"methodologies"`
	Budget        Budget            `json:"budget"`
}

// Validate checks internal consistency of the spec.
func (t TierSpec) Validate() error {
	if t.Tier < MinTier || t.Tier > MaxTier {
		return fmt.Errorf("tier %d out of range [%d, %d]", t.Tier, MinTier, MaxTier)
	}
	if t.Tier == 0 {
		if len(t.Models) != 0 {
			return fmt.Errorf("tier 0 is structural-only and cannot list models")
		}
		return nil
	}
	if len(t.Models) == 0 && (t.Methodologies.Judged || t.Methodologies.Reproducibility) {
		return fmt.Errorf("tier %d enables model-backed scoring but lists no models", t.Tier)
	}
	if t.RunsPerModel < 1 && len(t.Models) > 0 {
		return fmt.Errorf("tier %d: runs_per_model must be >= 1", t.Tier)
	}
	return nil
}

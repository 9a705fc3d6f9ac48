// Package tier resolves a tier selector (0-7) into a concrete evaluation
// plan: which candidate models to try, how many repeated runs per model,
// which scoring methodologies apply, and the soft budget. Higher tiers
// admit more expensive backends and more repetition in exchange for more
// confident scores.
package tier

import (
	"fmt"
	"slices"
	"time"

	"github.com/promptqa/prompteval/internal/config"
	"github.com/promptqa/prompteval/internal/models"
)

// row holds the built-in defaults for one tier. Candidate models are
// selected from the configured descriptors by backend kind and cost class;
// a config override can replace the candidate list outright.
type row struct {
	runs    int
	kinds   []models.BackendKind
	costs   []models.CostClass
	methods models.MethodologySet
}

var (
	localKinds = []models.BackendKind{models.BackendOnDevice, models.BackendLocal}
	widerKinds = []models.BackendKind{models.BackendOnDevice, models.BackendLocal, models.BackendSelfHosted}
	allKinds   = []models.BackendKind{models.BackendOnDevice, models.BackendLocal, models.BackendSelfHosted, models.BackendHosted}

	freeOnly    = []models.CostClass{models.CostFree}
	upToMetered = []models.CostClass{models.CostFree, models.CostMetered}
	allCosts    = []models.CostClass{models.CostFree, models.CostMetered, models.CostPremium}

	structuralOnly = models.MethodologySet{Structural: true}
	noRepro        = models.MethodologySet{Structural: true, Judged: true}
	allMethods     = models.MethodologySet{Structural: true, Judged: true, Reproducibility: true}
)

// defaults indexes tier rows by tier number. Tier 0 is structural-only and
// never touches a backend.
var defaults = [models.MaxTier + 1]row{
	0: {runs: 0, methods: structuralOnly},
	1: {runs: 1, kinds: localKinds, costs: freeOnly, methods: noRepro},
	2: {runs: 2, kinds: localKinds, costs: freeOnly, methods: allMethods},
	3: {runs: 2, kinds: widerKinds, costs: freeOnly, methods: allMethods},
	4: {runs: 2, kinds: allKinds, costs: upToMetered, methods: allMethods},
	5: {runs: 3, kinds: allKinds, costs: upToMetered, methods: allMethods},
	6: {runs: 3, kinds: allKinds, costs: allCosts, methods: allMethods},
	7: {runs: 5, kinds: allKinds, costs: allCosts, methods: allMethods},
}

// Table maps tier numbers to tier specs for one evaluation configuration.
type Table struct {
	descriptors []models.ModelDescriptor
	overrides   map[int]config.TierOverride
}

// NewTable builds a table over the configured model descriptors.
// Overrides may be nil.
func NewTable(descriptors []models.ModelDescriptor, overrides map[int]config.TierOverride) *Table {
	return &Table{descriptors: descriptors, overrides: overrides}
}

// Spec resolves one tier into its concrete spec. Candidate models keep the
// order they were declared in, so probing tries them in a predictable
// sequence.
func (t *Table) Spec(tier int) (models.TierSpec, error) {
	if tier < models.MinTier || tier > models.MaxTier {
		return models.TierSpec{}, fmt.Errorf("tier %d out of range [%d, %d]", tier, models.MinTier, models.MaxTier)
	}

	def := defaults[tier]
	spec := models.TierSpec{
		Tier:          tier,
		RunsPerModel:  def.runs,
		Methodologies: def.methods,
	}
	if tier > 0 {
		spec.Models = t.selectModels(def)
	}

	if ov, ok := t.overrides[tier]; ok {
		t.apply(&spec, ov)
	}

	if err := spec.Validate(); err != nil {
		return models.TierSpec{}, err
	}
	return spec, nil
}

// selectModels filters the configured descriptors by the row's kind and
// cost admission lists.
func (t *Table) selectModels(def row) []models.ModelDescriptor {
	var out []models.ModelDescriptor
	for _, m := range t.descriptors {
		if slices.Contains(def.kinds, m.BackendKind) && slices.Contains(def.costs, m.CostClass) {
			out = append(out, m)
		}
	}
	return out
}

// apply layers a config override onto the default spec. An explicit model
// list replaces the kind/cost selection entirely; IDs were validated
// against the descriptor set at config load.
func (t *Table) apply(spec *models.TierSpec, ov config.TierOverride) {
	if len(ov.Models) > 0 {
		selected := make([]models.ModelDescriptor, 0, len(ov.Models))
		for _, id := range ov.Models {
			if m, ok := t.descriptor(id); ok {
				selected = append(selected, m)
			}
		}
		spec.Models = selected
	}
	if ov.RunsPerModel > 0 {
		spec.RunsPerModel = ov.RunsPerModel
	}
	if ov.MaxSeconds > 0 {
		spec.Budget.MaxDuration = time.Duration(ov.MaxSeconds) * time.Second
	}
	if ov.MaxCostUnits > 0 {
		spec.Budget.MaxCostUnits = ov.MaxCostUnits
	}
}

func (t *Table) descriptor(id string) (models.ModelDescriptor, bool) {
	for _, m := range t.descriptors {
		if m.ID == id {
			return m, true
		}
	}
	return models.ModelDescriptor{}, false
}

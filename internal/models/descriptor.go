package models

import (
	"fmt"
	"strings"
)

// BackendKind categorizes where a model backend runs.
type BackendKind string

const (
	// BackendOnDevice is a runtime on this machine (llama.cpp server, LM Studio).
	BackendOnDevice BackendKind = "ondevice"
	// BackendLocal is a service on the local network (an Ollama daemon).
	BackendLocal BackendKind = "local"
	// BackendSelfHosted is a server the operator runs elsewhere (vLLM, TGI).
	BackendSelfHosted BackendKind = "selfhosted"
	// BackendHosted is a third-party hosted service. Hosted backends are
	// opt-in: they are never attempted without an explicit allow flag plus
	// credentials.
	BackendHosted BackendKind = "hosted"
)

// CostClass is the coarse price bracket of a model, used by tier defaults
// and the cost budget.
type CostClass string

const (
	CostFree    CostClass = "free"
	CostMetered CostClass = "metered"
	CostPremium CostClass = "premium"
)

// costUnitMultipliers maps a cost class to budget units per estimated token.
var costUnitMultipliers = map[CostClass]float64{
	CostFree:    0,
	CostMetered: 1,
	CostPremium: 4,
}

// ModelDescriptor is the static configuration for one candidate model.
// The ID carries the backend prefix used by the adapter registry, e.g.
// "ollama:llama3.2" or "anthropic:claude-sonnet-4-5".
type ModelDescriptor struct {
	ID            string      `json:"id" yaml:"id"`
	BackendKind   BackendKind `json:"backend_kind" yaml:"kind"`
	CostClass     CostClass   `json:"cost_class" yaml:"cost"`
	RequiresOptIn bool        `json:"requires_opt_in" yaml:"requires_opt_in,omitempty"`
}

// Prefix returns the backend prefix portion of the model ID ("" if none).
func (m ModelDescriptor) Prefix() string {
	if i := strings.Index(m.ID, ":"); i > 0 {
		return m.ID[:i]
	}
	return ""
}

// CostUnitsPer returns budget units consumed by approximately `tokens`
// prompt tokens on this model.
func (m ModelDescriptor) CostUnitsPer(tokens int) float64 {
	return costUnitMultipliers[m.CostClass] * float64(tokens)
}

// Validate checks descriptor fields and enforces that hosted backends are
// always marked opt-in, regardless of what the config file said.
func (m *ModelDescriptor) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("model descriptor: id is required")
	}
	if m.Prefix() == "" {
		return fmt.Errorf("model descriptor %q: id must carry a backend prefix (e.g. \"ollama:%s\")", m.ID, m.ID)
	}
	switch m.BackendKind {
	case BackendOnDevice, BackendLocal, BackendSelfHosted:
	case BackendHosted:
		m.RequiresOptIn = true
	default:
		return fmt.Errorf("model descriptor %q: unknown backend kind %q", m.ID, m.BackendKind)
	}
	switch m.CostClass {
	case CostFree, CostMetered, CostPremium:
	case "":
		m.CostClass = CostFree
	default:
		return fmt.Errorf("model descriptor %q: unknown cost class %q", m.ID, m.CostClass)
	}
	return nil
}

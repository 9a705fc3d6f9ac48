package tier

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/promptqa/prompteval/internal/config"
	"github.com/promptqa/prompteval/internal/models"
)

var testDescriptors = []models.ModelDescriptor{
	{ID: "ollama:phi3", BackendKind: models.BackendOnDevice, CostClass: models.CostFree},
	{ID: "ollama:llama3.2", BackendKind: models.BackendLocal, CostClass: models.CostFree},
	{ID: "vllm:mixtral", BackendKind: models.BackendSelfHosted, CostClass: models.CostFree},
	{ID: "openai:gpt-4o-mini", BackendKind: models.BackendHosted, CostClass: models.CostMetered, RequiresOptIn: true},
	{ID: "anthropic:claude-opus", BackendKind: models.BackendHosted, CostClass: models.CostPremium, RequiresOptIn: true},
}

func modelIDs(spec models.TierSpec) []string {
	var ids []string
	for _, m := range spec.Models {
		ids = append(ids, m.ID)
	}
	return ids
}

func TestTableDefaults(t *testing.T) {
	table := NewTable(testDescriptors, nil)

	tests := []struct {
		tier    int
		ids     []string
		runs    int
		methods models.MethodologySet
	}{
		{0, nil, 0, models.MethodologySet{Structural: true}},
		{1, []string{"ollama:phi3", "ollama:llama3.2"}, 1, models.MethodologySet{Structural: true, Judged: true}},
		{2, []string{"ollama:phi3", "ollama:llama3.2"}, 2, models.MethodologySet{Structural: true, Judged: true, Reproducibility: true}},
		{3, []string{"ollama:phi3", "ollama:llama3.2", "vllm:mixtral"}, 2, models.MethodologySet{Structural: true, Judged: true, Reproducibility: true}},
		{4, []string{"ollama:phi3", "ollama:llama3.2", "vllm:mixtral", "openai:gpt-4o-mini"}, 2, models.MethodologySet{Structural: true, Judged: true, Reproducibility: true}},
		{5, []string{"ollama:phi3", "ollama:llama3.2", "vllm:mixtral", "openai:gpt-4o-mini"}, 3, models.MethodologySet{Structural: true, Judged: true, Reproducibility: true}},
		{6, []string{"ollama:phi3", "ollama:llama3.2", "vllm:mixtral", "openai:gpt-4o-mini", "anthropic:claude-opus"}, 3, models.MethodologySet{Structural: true, Judged: true, Reproducibility: true}},
		{7, []string{"ollama:phi3", "ollama:llama3.2", "vllm:mixtral", "openai:gpt-4o-mini", "anthropic:claude-opus"}, 5, models.MethodologySet{Structural: true, Judged: true, Reproducibility: true}},
	}

	for _, tt := range tests {
		spec, err := table.Spec(tt.tier)
		require.NoError(t, err, "tier %d", tt.tier)
		require.Equal(t, tt.tier, spec.Tier)
		require.Equal(t, tt.ids, modelIDs(spec), "tier %d candidates", tt.tier)
		require.Equal(t, tt.runs, spec.RunsPerModel, "tier %d runs", tt.tier)
		require.Equal(t, tt.methods, spec.Methodologies, "tier %d methodologies", tt.tier)
		require.True(t, spec.Budget.Unlimited(), "tier %d has no default budget", tt.tier)
	}
}

func TestTableTierOutOfRange(t *testing.T) {
	table := NewTable(testDescriptors, nil)

	for _, tier := range []int{-1, 8, 100} {
		_, err := table.Spec(tier)
		require.Error(t, err, "tier %d", tier)
	}
}

func TestTableOverrideModels(t *testing.T) {
	table := NewTable(testDescriptors, map[int]config.TierOverride{
		2: {Models: []string{"vllm:mixtral", "ollama:phi3"}},
	})

	spec, err := table.Spec(2)
	require.NoError(t, err)
	// overrides replace the kind/cost selection and keep their own order
	require.Equal(t, []string{"vllm:mixtral", "ollama:phi3"}, modelIDs(spec))
	require.Equal(t, 2, spec.RunsPerModel, "runs stay at the tier default")
}

func TestTableOverrideRunsAndBudget(t *testing.T) {
	table := NewTable(testDescriptors, map[int]config.TierOverride{
		4: {RunsPerModel: 6, MaxSeconds: 90, MaxCostUnits: 2500},
	})

	spec, err := table.Spec(4)
	require.NoError(t, err)
	require.Equal(t, 6, spec.RunsPerModel)
	require.Equal(t, 90*time.Second, spec.Budget.MaxDuration)
	require.InDelta(t, 2500, spec.Budget.MaxCostUnits, 0.001)
	require.False(t, spec.Budget.Unlimited())

	// other tiers are untouched
	spec, err = table.Spec(5)
	require.NoError(t, err)
	require.Equal(t, 3, spec.RunsPerModel)
	require.True(t, spec.Budget.Unlimited())
}

func TestTableNoConfiguredModels(t *testing.T) {
	table := NewTable(nil, nil)

	// tier 0 never needs models
	spec, err := table.Spec(0)
	require.NoError(t, err)
	require.Empty(t, spec.Models)

	// higher tiers with no candidates fail validation: they enable
	// model-backed methodologies that nothing could execute
	_, err = table.Spec(2)
	require.Error(t, err)
}

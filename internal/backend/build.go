package backend

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// limitOptions are the rate-limit keys any backend's options map may carry;
// decoded separately so adapters stay ignorant of throttling.
type limitOptions struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// NewDefaultRegistry wires every known adapter, handing each its options map
// from the spec's backends section. Missing entries get adapter defaults.
func NewDefaultRegistry(backends map[string]map[string]any, opts ...RegistryOption) (*Registry, error) {
	r := NewRegistry(opts...)

	ollama, err := NewOllamaAdapter(backends[PrefixOllama])
	if err != nil {
		return nil, err
	}
	r.Register(ollama)

	for _, prefix := range []string{PrefixLocal, PrefixVLLM, PrefixOpenAI} {
		compat, err := NewOpenAICompatAdapter(prefix, backends[prefix])
		if err != nil {
			return nil, err
		}
		r.Register(compat)
	}

	anthropic, err := NewAnthropicAdapter(backends[PrefixAnthropic])
	if err != nil {
		return nil, err
	}
	r.Register(anthropic)

	cop, err := NewCopilotAdapter(backends[PrefixCopilot], nil)
	if err != nil {
		return nil, err
	}
	r.Register(cop)

	r.Register(NewMockAdapter())

	for prefix, raw := range backends {
		var lo limitOptions
		if err := mapstructure.Decode(raw, &lo); err != nil {
			return nil, fmt.Errorf("%s rate limit options: %w", prefix, err)
		}
		if lo.RequestsPerSecond > 0 {
			r.setRateLimit(prefix, lo.RequestsPerSecond, lo.Burst)
		}
	}

	return r, nil
}

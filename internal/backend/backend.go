// Package backend hosts the model adapters and the registry that dispatches
// generation calls to them by model-id prefix.
package backend

import "context"

// Known registry prefixes. A model id is "<prefix>:<backend model name>",
// e.g. "ollama:phi3:mini" or "openai:gpt-4o-mini".
const (
	PrefixOllama    = "ollama"
	PrefixLocal     = "local"
	PrefixVLLM      = "vllm"
	PrefixOpenAI    = "openai"
	PrefixAnthropic = "anthropic"
	PrefixCopilot   = "copilot"
	PrefixMock      = "mock"
)

// Request is a single generation request. The zero value of optional fields
// means "backend default".
type Request struct {
	// System is the system prompt, empty for none.
	System string
	// Prompt is the user-turn content.
	Prompt string
	// MaxTokens caps the completion length; 0 uses the backend default.
	MaxTokens int
	// Temperature overrides the sampling temperature when non-nil.
	Temperature *float64
}

// Response is a completed generation.
type Response struct {
	// Text is the full completion text.
	Text string
	// DurationMs is the wall-clock time the backend call took.
	DurationMs int64
}

// Adapter sends generation requests to one backend. Implementations are safe
// for concurrent use; model is the id with the registry prefix stripped.
type Adapter interface {
	// Name returns the registry prefix the adapter serves.
	Name() string

	// Generate runs one completion and returns its text. Transport and
	// backend failures come back as *ExecutionError.
	Generate(ctx context.Context, model string, req Request) (Response, error)
}

// Pinger is an optional Adapter extension for backends with a cheap liveness
// check (e.g. ollama's tags endpoint). When absent, callers fall back to a
// minimal Generate.
type Pinger interface {
	Ping(ctx context.Context, model string) error
}

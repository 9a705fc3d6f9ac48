package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/go-viper/mapstructure/v2"
	openai "github.com/sashabaranov/go-openai"
)

// OpenAICompatOptions configure one OpenAI-compatible endpoint.
type OpenAICompatOptions struct {
	BaseURL string `mapstructure:"base_url"`
	// APIKeyEnv names the environment variable holding the key. Local
	// endpoints typically need none.
	APIKeyEnv string `mapstructure:"api_key_env"`
}

// OpenAICompatAdapter speaks the OpenAI chat-completions protocol. One
// instance serves one registry prefix: "openai" (hosted), "local" (llama.cpp
// or LM Studio on this machine) or "vllm" (self-hosted server) - they differ
// only in base URL and credential requirements.
type OpenAICompatAdapter struct {
	prefix string
	client *openai.Client
	hasKey bool
}

// NewOpenAICompatAdapter builds an adapter for prefix from a raw options map.
func NewOpenAICompatAdapter(prefix string, raw map[string]any) (*OpenAICompatAdapter, error) {
	var opts OpenAICompatOptions
	if err := mapstructure.Decode(raw, &opts); err != nil {
		return nil, fmt.Errorf("%s options: %w", prefix, err)
	}

	keyEnv := opts.APIKeyEnv
	if keyEnv == "" && prefix == PrefixOpenAI {
		keyEnv = "OPENAI_API_KEY"
	}
	var apiKey string
	if keyEnv != "" {
		apiKey = os.Getenv(keyEnv)
	}

	baseURL := opts.BaseURL
	if baseURL == "" {
		switch prefix {
		case PrefixLocal:
			baseURL = "http://localhost:8080/v1"
		case PrefixVLLM:
			baseURL = "http://localhost:8000/v1"
		}
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	slog.Debug("initializing openai-compatible adapter", "prefix", prefix, "base_url", cfg.BaseURL)
	return &OpenAICompatAdapter{
		prefix: prefix,
		client: openai.NewClientWithConfig(cfg),
		hasKey: apiKey != "",
	}, nil
}

func (a *OpenAICompatAdapter) Name() string { return a.prefix }

func (a *OpenAICompatAdapter) Generate(ctx context.Context, model string, req Request) (Response, error) {
	if a.prefix == PrefixOpenAI && !a.hasKey {
		return Response{}, &ExecutionError{
			Kind:    KindMalformedResponse,
			Backend: a.prefix,
			ModelID: model,
			Detail:  "OPENAI_API_KEY not set",
		}
	}

	var messages []openai.ChatCompletionMessage
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	chatReq := openai.ChatCompletionRequest{
		Model:    model,
		Messages: messages,
	}
	if req.Temperature != nil {
		chatReq.Temperature = float32(*req.Temperature)
	}
	if req.MaxTokens > 0 {
		chatReq.MaxCompletionTokens = req.MaxTokens
	}

	start := time.Now()
	resp, err := a.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return Response{}, a.classify(model, err)
	}

	if len(resp.Choices) == 0 {
		return Response{}, &ExecutionError{
			Kind:    KindMalformedResponse,
			Backend: a.prefix,
			ModelID: model,
			Detail:  "no choices in response",
		}
	}

	return Response{
		Text:       resp.Choices[0].Message.Content,
		DurationMs: time.Since(start).Milliseconds(),
	}, nil
}

// classify maps a go-openai error into an ExecutionError kind using the
// API status code when one is present.
func (a *OpenAICompatAdapter) classify(model string, err error) *ExecutionError {
	kind := classifyTransportErr(err)

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		kind = classifyHTTPStatus(apiErr.HTTPStatusCode)
	} else {
		var reqErr *openai.RequestError
		if errors.As(err, &reqErr) {
			kind = classifyHTTPStatus(reqErr.HTTPStatusCode)
		}
	}

	return &ExecutionError{
		Kind:    kind,
		Backend: a.prefix,
		ModelID: model,
		Detail:  "chat completion failed",
		Err:     err,
	}
}

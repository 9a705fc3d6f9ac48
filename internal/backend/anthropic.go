package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
)

const (
	anthropicAPIVersion  = "2023-06-01"
	anthropicMessagesURL = "https://api.anthropic.com/v1/messages"

	// The messages endpoint requires max_tokens; used when the request
	// leaves it unset.
	anthropicDefaultMaxTokens = 1024
)

// AnthropicOptions configure the Anthropic adapter.
type AnthropicOptions struct {
	BaseURL   string `mapstructure:"base_url"`
	APIKeyEnv string `mapstructure:"api_key_env"`
}

// AnthropicAdapter talks to the Anthropic messages API directly over HTTP.
type AnthropicAdapter struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature *float64           `json:"temperature,omitempty"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewAnthropicAdapter builds the adapter from a raw options map. The key is
// read from ANTHROPIC_API_KEY unless api_key_env overrides the variable name.
func NewAnthropicAdapter(raw map[string]any) (*AnthropicAdapter, error) {
	var opts AnthropicOptions
	if err := mapstructure.Decode(raw, &opts); err != nil {
		return nil, fmt.Errorf("anthropic options: %w", err)
	}

	keyEnv := opts.APIKeyEnv
	if keyEnv == "" {
		keyEnv = "ANTHROPIC_API_KEY"
	}

	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = anthropicMessagesURL
	}

	return &AnthropicAdapter{
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		baseURL:    baseURL,
		apiKey:     os.Getenv(keyEnv),
	}, nil
}

func (a *AnthropicAdapter) Name() string { return PrefixAnthropic }

func (a *AnthropicAdapter) Generate(ctx context.Context, model string, req Request) (Response, error) {
	if a.apiKey == "" {
		return Response{}, &ExecutionError{
			Kind:    KindMalformedResponse,
			Backend: PrefixAnthropic,
			ModelID: model,
			Detail:  "ANTHROPIC_API_KEY not set",
		}
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = anthropicDefaultMaxTokens
	}

	payload := anthropicRequest{
		Model:       model,
		Messages:    []anthropicMessage{{Role: "user", Content: req.Prompt}},
		System:      req.System,
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Response{}, a.wrapErr(model, KindMalformedResponse, "marshaling request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL, bytes.NewReader(body))
	if err != nil {
		return Response{}, a.wrapErr(model, KindMalformedResponse, "building request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", a.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicAPIVersion)

	start := time.Now()
	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return Response{}, a.wrapErr(model, classifyTransportErr(err), "calling anthropic", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, a.wrapErr(model, KindServerError, "reading response", err)
	}

	if resp.StatusCode != http.StatusOK {
		detail := strings.TrimSpace(string(respBody))
		var parsed anthropicResponse
		if json.Unmarshal(respBody, &parsed) == nil && parsed.Error != nil {
			detail = fmt.Sprintf("%s: %s", parsed.Error.Type, parsed.Error.Message)
		}
		return Response{}, &ExecutionError{
			Kind:    classifyHTTPStatus(resp.StatusCode),
			Backend: PrefixAnthropic,
			ModelID: model,
			Detail:  detail,
		}
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return Response{}, a.wrapErr(model, KindMalformedResponse, "parsing response", err)
	}

	var text strings.Builder
	for _, block := range parsed.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return Response{}, &ExecutionError{
			Kind:    KindMalformedResponse,
			Backend: PrefixAnthropic,
			ModelID: model,
			Detail:  "no text content in response",
		}
	}

	return Response{
		Text:       text.String(),
		DurationMs: time.Since(start).Milliseconds(),
	}, nil
}

func (a *AnthropicAdapter) wrapErr(model string, kind ErrorKind, detail string, err error) *ExecutionError {
	return &ExecutionError{
		Kind:    kind,
		Backend: PrefixAnthropic,
		ModelID: model,
		Detail:  detail,
		Err:     err,
	}
}

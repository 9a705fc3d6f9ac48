package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
)

// OllamaOptions are the per-adapter settings decoded from the spec's
// backends map.
type OllamaOptions struct {
	BaseURL   string   `mapstructure:"base_url"`
	KeepAlive string   `mapstructure:"keep_alive"`
	TopK      *int     `mapstructure:"top_k"`
	TopP      *float64 `mapstructure:"top_p"`
}

// OllamaAdapter talks to a local ollama server over its native HTTP API.
type OllamaAdapter struct {
	httpClient *http.Client
	baseURL    string
	opts       OllamaOptions
}

type ollamaGenerateRequest struct {
	Model     string         `json:"model"`
	Prompt    string         `json:"prompt"`
	System    string         `json:"system,omitempty"`
	Stream    bool           `json:"stream"`
	KeepAlive string         `json:"keep_alive,omitempty"`
	Options   map[string]any `json:"options,omitempty"`
}

type ollamaGenerateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

type ollamaTagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// NewOllamaAdapter builds the adapter from a raw options map. Base URL
// resolution: options, then OLLAMA_BASE_URL, then localhost:11434.
func NewOllamaAdapter(raw map[string]any) (*OllamaAdapter, error) {
	var opts OllamaOptions
	if err := mapstructure.Decode(raw, &opts); err != nil {
		return nil, fmt.Errorf("ollama options: %w", err)
	}

	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = os.Getenv("OLLAMA_BASE_URL")
	}
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	slog.Debug("initializing ollama adapter", "base_url", baseURL)
	return &OllamaAdapter{
		// ctx carries the per-call deadline; the client timeout is a backstop.
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		baseURL:    baseURL,
		opts:       opts,
	}, nil
}

func (o *OllamaAdapter) Name() string { return PrefixOllama }

// Generate runs a non-streaming completion against /api/generate.
func (o *OllamaAdapter) Generate(ctx context.Context, model string, req Request) (Response, error) {
	options := make(map[string]any)
	if req.Temperature != nil {
		options["temperature"] = *req.Temperature
	}
	if req.MaxTokens > 0 {
		options["num_predict"] = req.MaxTokens
	}
	if o.opts.TopK != nil {
		options["top_k"] = *o.opts.TopK
	}
	if o.opts.TopP != nil {
		options["top_p"] = *o.opts.TopP
	}

	payload := ollamaGenerateRequest{
		Model:     model,
		Prompt:    req.Prompt,
		System:    req.System,
		Stream:    false,
		KeepAlive: o.opts.KeepAlive,
		Options:   options,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Response{}, o.wrapErr(model, KindMalformedResponse, "marshaling request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return Response{}, o.wrapErr(model, KindMalformedResponse, "building request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return Response{}, o.wrapErr(model, classifyTransportErr(err), "calling ollama", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, o.wrapErr(model, KindServerError, "reading response", err)
	}

	if resp.StatusCode != http.StatusOK {
		detail := strings.TrimSpace(string(respBody))
		if resp.StatusCode == http.StatusNotFound && strings.Contains(detail, "not found") {
			detail = fmt.Sprintf("model %q not found, run: ollama pull %s", model, model)
		}
		return Response{}, &ExecutionError{
			Kind:    classifyHTTPStatus(resp.StatusCode),
			Backend: PrefixOllama,
			ModelID: model,
			Detail:  detail,
		}
	}

	var genResp ollamaGenerateResponse
	if err := json.Unmarshal(respBody, &genResp); err != nil {
		return Response{}, o.wrapErr(model, KindMalformedResponse, "parsing response", err)
	}

	return Response{
		Text:       genResp.Response,
		DurationMs: time.Since(start).Milliseconds(),
	}, nil
}

// Ping checks the server's tag list for the model. Cheaper than a generate
// call and catches the not-pulled case explicitly.
func (o *OllamaAdapter) Ping(ctx context.Context, model string) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/api/tags", nil)
	if err != nil {
		return o.wrapErr(model, KindMalformedResponse, "building request", err)
	}

	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return o.wrapErr(model, classifyTransportErr(err), "calling ollama", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return o.wrapErr(model, KindServerError, "reading response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return &ExecutionError{
			Kind:    classifyHTTPStatus(resp.StatusCode),
			Backend: PrefixOllama,
			ModelID: model,
			Detail:  strings.TrimSpace(string(respBody)),
		}
	}

	var tags ollamaTagsResponse
	if err := json.Unmarshal(respBody, &tags); err != nil {
		return o.wrapErr(model, KindMalformedResponse, "parsing tags", err)
	}

	for _, m := range tags.Models {
		if m.Name == model || strings.TrimSuffix(m.Name, ":latest") == model {
			return nil
		}
	}
	return &ExecutionError{
		Kind:    KindMalformedResponse,
		Backend: PrefixOllama,
		ModelID: model,
		Detail:  fmt.Sprintf("model %q not found, run: ollama pull %s", model, model),
	}
}

func (o *OllamaAdapter) wrapErr(model string, kind ErrorKind, detail string, err error) *ExecutionError {
	return &ExecutionError{
		Kind:    kind,
		Backend: PrefixOllama,
		ModelID: model,
		Detail:  detail,
		Err:     err,
	}
}

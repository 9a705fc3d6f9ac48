package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/promptqa/prompteval/internal/utils"
)

func TestOllamaGenerate(t *testing.T) {
	var gotReq ollamaGenerateRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		_ = json.NewEncoder(w).Encode(ollamaGenerateResponse{
			Model:    gotReq.Model,
			Response: "the answer",
			Done:     true,
		})
	}))
	defer server.Close()

	adapter, err := NewOllamaAdapter(map[string]any{"base_url": server.URL})
	require.NoError(t, err)

	resp, err := adapter.Generate(context.Background(), "phi3:mini", Request{
		System:      "you are terse",
		Prompt:      "what is 2+2?",
		MaxTokens:   64,
		Temperature: utils.Ptr(0.1),
	})
	require.NoError(t, err)
	require.Equal(t, "the answer", resp.Text)
	require.GreaterOrEqual(t, resp.DurationMs, int64(0))

	require.Equal(t, "phi3:mini", gotReq.Model)
	require.Equal(t, "what is 2+2?", gotReq.Prompt)
	require.Equal(t, "you are terse", gotReq.System)
	require.False(t, gotReq.Stream)
	require.EqualValues(t, 64, gotReq.Options["num_predict"])
	require.EqualValues(t, 0.1, gotReq.Options["temperature"])
}

func TestOllamaGenerate_ErrorStatuses(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind ErrorKind
	}{
		{
			name:     "model not found",
			status:   http.StatusNotFound,
			body:     `{"error":"model 'nope' not found"}`,
			wantKind: KindMalformedResponse,
		},
		{
			name:     "server error",
			status:   http.StatusInternalServerError,
			body:     `{"error":"out of memory"}`,
			wantKind: KindServerError,
		},
		{
			name:     "rate limited",
			status:   http.StatusTooManyRequests,
			body:     `{"error":"busy"}`,
			wantKind: KindRateLimited,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			adapter, err := NewOllamaAdapter(map[string]any{"base_url": server.URL})
			require.NoError(t, err)

			_, err = adapter.Generate(context.Background(), "nope", Request{Prompt: "hi"})

			var execErr *ExecutionError
			require.ErrorAs(t, err, &execErr)
			require.Equal(t, tt.wantKind, execErr.Kind)
			require.Equal(t, PrefixOllama, execErr.Backend)
		})
	}
}

func TestOllamaGenerate_NotFoundSuggestsPull(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model 'phi9' not found"}`))
	}))
	defer server.Close()

	adapter, err := NewOllamaAdapter(map[string]any{"base_url": server.URL})
	require.NoError(t, err)

	_, err = adapter.Generate(context.Background(), "phi9", Request{Prompt: "hi"})
	require.ErrorContains(t, err, "ollama pull phi9")
}

func TestOllamaPing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/tags", r.URL.Path)
		_, _ = w.Write([]byte(`{"models":[{"name":"phi3:mini"},{"name":"llama3:latest"}]}`))
	}))
	defer server.Close()

	adapter, err := NewOllamaAdapter(map[string]any{"base_url": server.URL})
	require.NoError(t, err)

	require.NoError(t, adapter.Ping(context.Background(), "phi3:mini"))
	// ":latest" suffix is implied for bare names
	require.NoError(t, adapter.Ping(context.Background(), "llama3"))

	err = adapter.Ping(context.Background(), "mistral")
	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	require.Equal(t, KindMalformedResponse, execErr.Kind)
	require.ErrorContains(t, err, "ollama pull mistral")
}

func TestOllamaBaseURLFromEnv(t *testing.T) {
	t.Setenv("OLLAMA_BASE_URL", "http://ollama.internal:11434/")

	adapter, err := NewOllamaAdapter(nil)
	require.NoError(t, err)
	require.Equal(t, "http://ollama.internal:11434", adapter.baseURL)
}

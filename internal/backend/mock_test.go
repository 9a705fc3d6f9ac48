package backend

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testLatency = 200 * time.Millisecond

func TestMockAdapterDefaults(t *testing.T) {
	m := NewMockAdapter()

	resp, err := m.Generate(context.Background(), "judge", Request{Prompt: "evaluate this"})
	require.NoError(t, err)

	// the default payload parses as a judge verdict so scoring paths work
	var verdict struct {
		Reasoning string  `json:"reasoning"`
		Grade     float64 `json:"grade"`
	}
	require.NoError(t, json.Unmarshal([]byte(resp.Text), &verdict))
	require.Equal(t, 4.0, verdict.Grade)
	require.NotEmpty(t, verdict.Reasoning)
}

func TestMockAdapterScriptedResponse(t *testing.T) {
	m := NewMockAdapter()
	m.SetResponse("echo", "pong")

	resp, err := m.Generate(context.Background(), "echo", Request{Prompt: "ping"})
	require.NoError(t, err)
	require.Equal(t, "pong", resp.Text)
}

func TestMockAdapterScriptedFailure(t *testing.T) {
	m := NewMockAdapter()
	m.FailWith("flaky", KindRateLimited)

	_, err := m.Generate(context.Background(), "flaky", Request{Prompt: "hi"})

	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	require.Equal(t, KindRateLimited, execErr.Kind)
	require.Equal(t, PrefixMock, execErr.Backend)

	// other models are unaffected
	_, err = m.Generate(context.Background(), "steady", Request{Prompt: "hi"})
	require.NoError(t, err)
}

func TestMockAdapterRecordsCalls(t *testing.T) {
	m := NewMockAdapter()

	_, _ = m.Generate(context.Background(), "a", Request{Prompt: "first"})
	_, _ = m.Generate(context.Background(), "b", Request{Prompt: "second", MaxTokens: 5})

	calls := m.Calls()
	require.Len(t, calls, 2)
	require.Equal(t, "a", calls[0].Model)
	require.Equal(t, "first", calls[0].Req.Prompt)
	require.Equal(t, "b", calls[1].Model)
	require.Equal(t, 5, calls[1].Req.MaxTokens)
}

func TestMockAdapterLatencyCancellation(t *testing.T) {
	m := NewMockAdapter()
	m.SetLatency(testLatency)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Generate(ctx, "slow", Request{Prompt: "hi"})

	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	require.Equal(t, KindTimeout, execErr.Kind)
}

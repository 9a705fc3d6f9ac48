package backend

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockCall records one Generate invocation against the mock adapter.
type MockCall struct {
	Model string
	Req   Request
}

// MockAdapter is a deterministic offline backend for tests and dry runs.
// The default response is a well-formed judge payload so scoring paths work
// end to end without a live model.
type MockAdapter struct {
	mu        sync.Mutex
	responses map[string]string
	failures  map[string]ErrorKind
	latency   time.Duration
	calls     []MockCall
}

// NewMockAdapter creates a mock adapter with no scripted behavior.
func NewMockAdapter() *MockAdapter {
	return &MockAdapter{
		responses: make(map[string]string),
		failures:  make(map[string]ErrorKind),
	}
}

func (m *MockAdapter) Name() string { return PrefixMock }

// SetResponse scripts the text returned for a model.
func (m *MockAdapter) SetResponse(model, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[model] = text
}

// FailWith scripts every call for a model to fail with kind.
func (m *MockAdapter) FailWith(model string, kind ErrorKind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[model] = kind
}

// SetLatency makes every call take at least d, honoring ctx cancellation.
func (m *MockAdapter) SetLatency(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latency = d
}

// Calls returns a copy of every recorded invocation, in order.
func (m *MockAdapter) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockCall, len(m.calls))
	copy(out, m.calls)
	return out
}

func (m *MockAdapter) Generate(ctx context.Context, model string, req Request) (Response, error) {
	m.mu.Lock()
	m.calls = append(m.calls, MockCall{Model: model, Req: req})
	text, hasText := m.responses[model]
	kind, hasFailure := m.failures[model]
	latency := m.latency
	m.mu.Unlock()

	start := time.Now()
	if latency > 0 {
		select {
		case <-time.After(latency):
		case <-ctx.Done():
			return Response{}, &ExecutionError{
				Kind:    KindTimeout,
				Backend: PrefixMock,
				ModelID: model,
				Detail:  "canceled during simulated latency",
				Err:     ctx.Err(),
			}
		}
	}

	if hasFailure {
		return Response{}, &ExecutionError{
			Kind:    kind,
			Backend: PrefixMock,
			ModelID: model,
			Detail:  "scripted failure",
		}
	}

	if !hasText {
		text = fmt.Sprintf(`{"reasoning": "mock evaluation by %s", "grade": 4}`, model)
	}

	return Response{
		Text:       text,
		DurationMs: time.Since(start).Milliseconds(),
	}, nil
}

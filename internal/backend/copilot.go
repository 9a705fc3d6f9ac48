package backend

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	copilot "github.com/github/copilot-sdk/go"
	"github.com/go-viper/mapstructure/v2"
)

// CopilotOptions configure the Copilot adapter.
type CopilotOptions struct {
	LogLevel string `mapstructure:"log_level"`
}

// CopilotClientFactory builds the SDK client; tests substitute a mock.
type CopilotClientFactory func(*copilot.ClientOptions) copilotClient

// CopilotAdapter runs generations through the GitHub Copilot CLI via its
// SDK. The CLI process is started lazily on the first call and stopped by
// Close.
type CopilotAdapter struct {
	client copilotClient

	// NOTE: this is a workaround, copilot client has an 'autostart' feature,
	// but it runs into issues when it tries to autostart from separate
	// goroutines.
	startOnce sync.Once
	startErr  error
}

// NewCopilotAdapter builds the adapter. A nil factory uses the real SDK
// client.
func NewCopilotAdapter(raw map[string]any, factory CopilotClientFactory) (*CopilotAdapter, error) {
	var opts CopilotOptions
	if err := mapstructure.Decode(raw, &opts); err != nil {
		return nil, fmt.Errorf("copilot options: %w", err)
	}

	logLevel := opts.LogLevel
	if logLevel == "" {
		logLevel = "error"
	}

	clientOptions := &copilot.ClientOptions{
		LogLevel:  logLevel,
		AutoStart: copilot.Bool(false),
	}

	if factory == nil {
		factory = newCopilotClient
	}

	return &CopilotAdapter{client: factory(clientOptions)}, nil
}

func (c *CopilotAdapter) Name() string { return PrefixCopilot }

func (c *CopilotAdapter) Generate(ctx context.Context, model string, req Request) (Response, error) {
	c.startOnce.Do(func() {
		c.startErr = c.client.Start(ctx)
	})
	if c.startErr != nil {
		return Response{}, c.wrapErr(model, KindServerError, "copilot failed to start", c.startErr)
	}

	start := time.Now()

	session, err := c.client.CreateSession(ctx, &copilot.SessionConfig{
		Model: model,
	})
	if err != nil {
		return Response{}, c.wrapErr(model, classifyTransportErr(err), "failed to create session", err)
	}

	collector := newAssistantTextCollector()
	unsubscribe := session.On(collector.On)
	defer unsubscribe()

	unsubscribe = session.On(sessionEventToSlog)
	defer unsubscribe()

	// The SDK has no separate system slot; fold the system prompt into the
	// message.
	prompt := req.Prompt
	if req.System != "" {
		prompt = req.System + "\n\n" + req.Prompt
	}

	_, err = session.SendAndWait(ctx, copilot.MessageOptions{
		Prompt: prompt,
	})
	if err != nil {
		return Response{}, c.wrapErr(model, classifyTransportErr(err), "send failed", err)
	}

	text := collector.Text()
	if text == "" {
		return Response{}, &ExecutionError{
			Kind:    KindMalformedResponse,
			Backend: PrefixCopilot,
			ModelID: model,
			Detail:  "session produced no assistant output",
		}
	}

	return Response{
		Text:       text,
		DurationMs: time.Since(start).Milliseconds(),
	}, nil
}

// Close stops the CLI process if it was started.
func (c *CopilotAdapter) Close() error {
	started := false
	c.startOnce.Do(func() {
		// never started; burn the once so a later Generate doesn't start it
		// after Close.
		c.startErr = fmt.Errorf("adapter closed")
	})
	if c.startErr == nil {
		started = true
	}
	if !started {
		return nil
	}
	return c.client.Stop()
}

func (c *CopilotAdapter) wrapErr(model string, kind ErrorKind, detail string, err error) *ExecutionError {
	return &ExecutionError{
		Kind:    kind,
		Backend: PrefixCopilot,
		ModelID: model,
		Detail:  detail,
		Err:     err,
	}
}

// assistantTextCollector accumulates assistant message content from session
// events. Events for one session are delivered serially, so no locking.
type assistantTextCollector struct {
	parts []string
}

func newAssistantTextCollector() *assistantTextCollector {
	return &assistantTextCollector{}
}

func (a *assistantTextCollector) On(event copilot.SessionEvent) {
	switch event.Type {
	case copilot.AssistantMessage, copilot.AssistantMessageDelta:
		if event.Data.Content != nil {
			a.parts = append(a.parts, *event.Data.Content)
		}
	}
}

func (a *assistantTextCollector) Text() string {
	var builder strings.Builder
	for _, p := range a.parts {
		builder.WriteString(p)
	}
	return builder.String()
}

// sessionEventToSlog mirrors session traffic to the debug log. Cheap no-op
// unless debug logging is on.
func sessionEventToSlog(event copilot.SessionEvent) {
	if !slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		return
	}

	attrs := []any{"type", event.Type}
	attrs = appendAttr(attrs, "content", event.Data.Content)
	attrs = appendAttr(attrs, "deltaContent", event.Data.DeltaContent)
	attrs = appendAttr(attrs, "toolName", event.Data.ToolName)
	attrs = appendAttr(attrs, "toolResult", event.Data.Result)
	attrs = appendAttr(attrs, "toolCallID", event.Data.ToolCallID)

	slog.Debug("copilot session event", attrs...)
}

func appendAttr[T any](attrs []any, name string, v *T) []any {
	if v != nil {
		attrs = append(attrs, name, *v)
	}
	return attrs
}

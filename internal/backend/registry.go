package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

var tracer = otel.Tracer("prompteval/backend")

// Hosted backends get a conservative limiter unless configured otherwise;
// everything else is unthrottled.
var defaultRateLimits = map[string]rate.Limit{
	PrefixOpenAI:    rate.Limit(2),
	PrefixAnthropic: rate.Limit(2),
	PrefixCopilot:   rate.Limit(1),
}

// Registry resolves model ids to adapters and dispatches generation calls
// with rate limiting, per-call timeouts and tracing applied uniformly.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
	limiters map[string]*rate.Limiter
	timeout  time.Duration
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithCallTimeout bounds every dispatched call. Zero disables the bound.
func WithCallTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) { r.timeout = d }
}

// WithRateLimit overrides the limiter for a prefix. rps <= 0 removes any
// limit for that prefix.
func WithRateLimit(prefix string, rps float64, burst int) RegistryOption {
	return func(r *Registry) { r.setRateLimit(prefix, rps, burst) }
}

// NewRegistry builds an empty registry. Adapters are added with Register.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		adapters: make(map[string]Adapter),
		limiters: make(map[string]*rate.Limiter),
	}
	for prefix, limit := range defaultRateLimits {
		r.limiters[prefix] = rate.NewLimiter(limit, 1)
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Register adds an adapter under its Name() prefix, replacing any previous
// registration for that prefix.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Name()] = a
}

// Prefixes returns the registered prefixes, sorted.
func (r *Registry) Prefixes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.adapters))
	for p := range r.adapters {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Resolve finds the adapter serving modelID by the longest registered prefix
// before ":" and returns it with the bare backend model name. An id with no
// matching prefix returns ErrUnknownBackend.
func (r *Registry) Resolve(modelID string) (Adapter, string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var (
		best    Adapter
		bestLen = -1
		rest    string
	)
	for prefix, a := range r.adapters {
		if strings.HasPrefix(modelID, prefix+":") && len(prefix) > bestLen {
			best = a
			bestLen = len(prefix)
			rest = modelID[len(prefix)+1:]
		}
	}
	if best == nil {
		return nil, "", fmt.Errorf("model %q: %w", modelID, ErrUnknownBackend)
	}
	if rest == "" {
		return nil, "", fmt.Errorf("model %q has no model name after prefix: %w", modelID, ErrUnknownBackend)
	}
	return best, rest, nil
}

// Dispatch resolves modelID, waits on the prefix's rate limiter, applies the
// per-call timeout and delegates to the adapter.
func (r *Registry) Dispatch(ctx context.Context, modelID string, req Request) (Response, error) {
	adapter, model, err := r.Resolve(modelID)
	if err != nil {
		return Response{}, err
	}

	ctx, span := tracer.Start(ctx, "backend.Dispatch",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("prompteval.model_id", modelID),
			attribute.String("prompteval.backend", adapter.Name()),
		))
	defer span.End()

	if limiter := r.limiter(adapter.Name()); limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			execErr := &ExecutionError{
				Kind:    KindTimeout,
				Backend: adapter.Name(),
				ModelID: model,
				Detail:  "rate limiter wait aborted",
				Err:     err,
			}
			span.RecordError(execErr)
			span.SetStatus(codes.Error, execErr.Error())
			return Response{}, execErr
		}
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	resp, err := adapter.Generate(ctx, model, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if kind, ok := KindOf(err); ok {
			span.SetAttributes(attribute.String("prompteval.error_kind", string(kind)))
		}
		return Response{}, err
	}

	span.SetAttributes(attribute.Int64("prompteval.duration_ms", resp.DurationMs))
	return resp, nil
}

func (r *Registry) limiter(prefix string) *rate.Limiter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.limiters[prefix]
}

func (r *Registry) setRateLimit(prefix string, rps float64, burst int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rps <= 0 {
		delete(r.limiters, prefix)
		return
	}
	if burst < 1 {
		burst = 1
	}
	r.limiters[prefix] = rate.NewLimiter(rate.Limit(rps), burst)
}

// Close shuts down every adapter that holds external resources.
func (r *Registry) Close() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var errs []error
	for _, a := range r.adapters {
		if closer, ok := a.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, fmt.Errorf("closing %s adapter: %w", a.Name(), err))
			}
		}
	}
	return errors.Join(errs...)
}

// Package probe answers "is this model usable right now" with a cached,
// bounded capability check per model.
package probe

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/promptqa/prompteval/internal/backend"
	"github.com/promptqa/prompteval/internal/models"
)

const (
	defaultTTL         = 15 * time.Minute
	defaultMaxAttempts = 3
	defaultBackoffBase = 500 * time.Millisecond

	// probeCallTimeout bounds a single capability check; probes must stay
	// cheap even when the per-call execution timeout is generous.
	probeCallTimeout = 10 * time.Second
)

// credentialEnvVars names the env var that must be present before a hosted
// backend passes the opt-in gate.
var credentialEnvVars = map[string]string{
	backend.PrefixOpenAI:    "OPENAI_API_KEY",
	backend.PrefixAnthropic: "ANTHROPIC_API_KEY",
}

// Error wraps a probe-internal failure such as cache I/O. Capability
// outcomes are not errors; they live in models.ProbeResult.
type Error struct {
	Op      string
	ModelID string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("probe %s %s: %v", e.Op, e.ModelID, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// AdapterResolver maps a model id to its adapter; satisfied by
// *backend.Registry.
type AdapterResolver interface {
	Resolve(modelID string) (backend.Adapter, string, error)
}

// Prober runs capability checks and caches their results. Construct with
// NewProber; the zero value is not usable.
type Prober struct {
	store       Store
	resolver    AdapterResolver
	allowHosted bool
	ttl         time.Duration
	maxAttempts int
	backoffBase time.Duration
	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error
}

// ProberOption configures a Prober.
type ProberOption func(*Prober)

// WithAllowHosted opens the opt-in gate for hosted models. Credentials are
// still required per backend.
func WithAllowHosted(allow bool) ProberOption {
	return func(p *Prober) { p.allowHosted = allow }
}

// WithTTL sets how long a probe result stays fresh.
func WithTTL(ttl time.Duration) ProberOption {
	return func(p *Prober) { p.ttl = ttl }
}

// WithMaxAttempts bounds capability-check retries per probe.
func WithMaxAttempts(n int) ProberOption {
	return func(p *Prober) { p.maxAttempts = n }
}

// WithBackoff sets the base delay doubled between attempts.
func WithBackoff(base time.Duration) ProberOption {
	return func(p *Prober) { p.backoffBase = base }
}

// WithClock injects the time source, for tests.
func WithClock(now func() time.Time) ProberOption {
	return func(p *Prober) { p.now = now }
}

// NewProber builds a prober over store and resolver. A nil store disables
// caching entirely.
func NewProber(store Store, resolver AdapterResolver, opts ...ProberOption) *Prober {
	p := &Prober{
		store:       store,
		resolver:    resolver,
		ttl:         defaultTTL,
		maxAttempts: defaultMaxAttempts,
		backoffBase: defaultBackoffBase,
		now:         time.Now,
		sleep:       sleepCtx,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Probe reports whether the model is usable. It never returns an error;
// failures are encoded in the result.
//
// The opt-in gate runs first and is never cached: a gated result cannot be
// smuggled in through a poisoned cache, and flipping the allow flag takes
// effect immediately.
func (p *Prober) Probe(ctx context.Context, desc models.ModelDescriptor) models.ProbeResult {
	if detail, gated := p.gate(desc); gated {
		return models.ProbeResult{
			ModelID:   desc.ID,
			Usable:    false,
			ErrorKind: models.ProbeMisconfigured,
			Detail:    detail,
			ProbedAt:  p.now(),
		}
	}

	if p.store != nil {
		cached, found, err := p.store.Get(ctx, desc.ID)
		if err != nil {
			slog.Warn("probe cache read failed", "model", desc.ID, "error", err)
		} else if found && cached.Fresh(p.now()) {
			slog.Debug("probe cache hit", "model", desc.ID, "usable", cached.Usable)
			return cached
		}
	}

	result := p.check(ctx, desc)

	if p.store != nil {
		if err := p.store.Put(ctx, result); err != nil {
			slog.Warn("probe cache write failed", "model", desc.ID, "error", err)
		}
	}
	return result
}

// gate enforces the hosted opt-in before any cache or network access.
func (p *Prober) gate(desc models.ModelDescriptor) (detail string, gated bool) {
	if !desc.RequiresOptIn {
		return "", false
	}
	if !p.allowHosted {
		return "hosted models require the allow_hosted flag", true
	}
	if envVar, ok := credentialEnvVars[desc.Prefix()]; ok && os.Getenv(envVar) == "" {
		return envVar + " is not set", true
	}
	return "", false
}

// check runs the capability check with bounded retries and exponential
// backoff. Only transient failures are retried.
func (p *Prober) check(ctx context.Context, desc models.ModelDescriptor) models.ProbeResult {
	adapter, model, err := p.resolver.Resolve(desc.ID)
	if err != nil {
		return p.unusable(desc.ID, models.ProbeMisconfigured, err.Error())
	}

	var lastErr error
	for attempt := range p.maxAttempts {
		if attempt > 0 {
			delay := p.backoffBase << (attempt - 1)
			slog.Debug("probe retry", "model", desc.ID, "attempt", attempt+1, "delay", delay)
			if err := p.sleep(ctx, delay); err != nil {
				lastErr = err
				break
			}
		}

		if err := p.checkOnce(ctx, adapter, model); err != nil {
			lastErr = err
			if !backend.IsTransient(err) {
				break
			}
			continue
		}

		return models.ProbeResult{
			ModelID:  desc.ID,
			Usable:   true,
			ProbedAt: p.now(),
			TTL:      p.ttl,
		}
	}

	return p.unusable(desc.ID, classify(lastErr), lastErr.Error())
}

// checkOnce prefers a cheap Ping when the adapter has one, otherwise asks
// for a minimal completion.
func (p *Prober) checkOnce(ctx context.Context, adapter backend.Adapter, model string) error {
	ctx, cancel := context.WithTimeout(ctx, probeCallTimeout)
	defer cancel()

	if pinger, ok := adapter.(backend.Pinger); ok {
		return pinger.Ping(ctx, model)
	}

	_, err := adapter.Generate(ctx, model, backend.Request{
		Prompt:    "Reply with the single word: ready",
		MaxTokens: 8,
	})
	return err
}

func (p *Prober) unusable(modelID string, kind models.ProbeErrorKind, detail string) models.ProbeResult {
	return models.ProbeResult{
		ModelID:   modelID,
		Usable:    false,
		ErrorKind: kind,
		Detail:    detail,
		ProbedAt:  p.now(),
		TTL:       p.ttl,
	}
}

// classify maps an execution failure to a probe error kind. Unknown errors
// count as transient so the model gets another chance after the TTL.
func classify(err error) models.ProbeErrorKind {
	if kind, ok := backend.KindOf(err); ok && kind == backend.KindMalformedResponse {
		return models.ProbePermanent
	}
	return models.ProbeTransient
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Package orchestration drives evaluation batches: artifact discovery, tier
// resolution, capability probing, bounded concurrent judge execution and
// aggregation, with progress events emitted at every state transition.
package orchestration

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/promptqa/prompteval/internal/aggregate"
	"github.com/promptqa/prompteval/internal/backend"
	"github.com/promptqa/prompteval/internal/cache"
	"github.com/promptqa/prompteval/internal/config"
	"github.com/promptqa/prompteval/internal/discovery"
	"github.com/promptqa/prompteval/internal/hooks"
	"github.com/promptqa/prompteval/internal/models"
	"github.com/promptqa/prompteval/internal/probe"
	"github.com/promptqa/prompteval/internal/scoring"
	"github.com/promptqa/prompteval/internal/tier"
	"github.com/promptqa/prompteval/internal/tokens"
	"github.com/promptqa/prompteval/internal/transcript"
	"github.com/promptqa/prompteval/internal/utils"
)

// EventType identifies a progress event.
type EventType string

// Progress event types emitted during batch evaluation.
const (
	EventBatchStart     EventType = "batch_start"
	EventBatchComplete  EventType = "batch_complete"
	EventArtifactStart  EventType = "artifact_start"
	EventArtifactState  EventType = "artifact_state"
	EventArtifactDone   EventType = "artifact_complete"
	EventArtifactCached EventType = "artifact_cached"
	EventProbeResult    EventType = "probe_result"
	EventTierSkipped    EventType = "tier_skipped"
	EventBudgetStop     EventType = "budget_stop"
	EventRunStart       EventType = "run_start"
	EventRunComplete    EventType = "run_complete"
)

// ProgressEvent carries progress information to registered listeners.
type ProgressEvent struct {
	EventType      EventType
	ArtifactID     string
	ArtifactNum    int
	TotalArtifacts int
	ModelID        string
	RunIndex       int
	TotalRuns      int
	State          models.ArtifactState
	DurationMs     int64
	Details        map[string]any
}

// ProgressListener receives progress events. Listeners run on evaluation
// goroutines and must return quickly.
type ProgressListener func(event ProgressEvent)

// Runner evaluates a corpus of prompt artifacts at one tier.
type Runner struct {
	cfg      *config.EvalConfig
	registry *backend.Registry
	rubric   *models.RubricVersion
	judge    *scoring.Judge

	prober      *probe.Prober
	resultCache *cache.Cache
	hookRunner  *hooks.Runner
	now         func() time.Time

	artifactFilters []string

	// per-batch probe memo: every model is probed at most once per batch,
	// even across concurrently evaluating artifacts
	probeMu    sync.Mutex
	probed     map[string]models.ProbeResult
	probeGroup singleflight.Group

	progressMu sync.Mutex
	listeners  []ProgressListener
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithProber replaces the default prober, typically to share a persistent
// probe cache across invocations.
func WithProber(p *probe.Prober) RunnerOption {
	return func(r *Runner) { r.prober = p }
}

// WithResultCache enables result caching for unchanged artifacts.
func WithResultCache(c *cache.Cache) RunnerOption {
	return func(r *Runner) { r.resultCache = c }
}

// WithHookRunner enables lifecycle hook execution.
func WithHookRunner(h *hooks.Runner) RunnerOption {
	return func(r *Runner) { r.hookRunner = h }
}

// WithListeners registers progress listeners at construction time.
func WithListeners(listeners ...ProgressListener) RunnerOption {
	return func(r *Runner) { r.listeners = append(r.listeners, listeners...) }
}

// WithArtifactFilter restricts the batch to artifacts matching the glob
// patterns (by ID or filename).
func WithArtifactFilter(patterns ...string) RunnerOption {
	return func(r *Runner) { r.artifactFilters = patterns }
}

// WithClock injects the time source, letting tests drive budget decisions.
func WithClock(now func() time.Time) RunnerOption {
	return func(r *Runner) { r.now = now }
}

// NewRunner builds a runner for cfg. Unless WithProber is given, probes go
// through an in-memory cache that lives for the runner's lifetime.
func NewRunner(cfg *config.EvalConfig, registry *backend.Registry, rubric *models.RubricVersion, opts ...RunnerOption) *Runner {
	r := &Runner{
		cfg:      cfg,
		registry: registry,
		rubric:   rubric,
		judge:    scoring.NewJudge(rubric),
		now:      time.Now,
		probed:   make(map[string]models.ProbeResult),
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.prober == nil {
		spec := cfg.Spec()
		r.prober = probe.NewProber(probe.NewMemoryStore(), registry,
			probe.WithAllowHosted(spec.AllowHosted),
			probe.WithTTL(spec.Probe.TTL()),
			probe.WithMaxAttempts(spec.Probe.Attempts()),
			probe.WithBackoff(spec.Probe.Backoff()),
			probe.WithClock(r.now),
		)
	}
	return r
}

// OnProgress registers a listener for progress events.
func (r *Runner) OnProgress(listener ProgressListener) {
	r.progressMu.Lock()
	defer r.progressMu.Unlock()
	r.listeners = append(r.listeners, listener)
}

// notifyProgress sends an event to all registered listeners.
func (r *Runner) notifyProgress(event ProgressEvent) {
	r.progressMu.Lock()
	listeners := make([]ProgressListener, len(r.listeners))
	copy(listeners, r.listeners)
	r.progressMu.Unlock()

	for _, l := range listeners {
		l(event)
	}
}

// RunBatch discovers the corpus and evaluates every artifact at the
// configured tier. Configuration problems (bad tier, unknown model filter,
// unreadable roots, failing before_batch hook) abort before any evaluation;
// once evaluation starts, the batch always completes and every discovered
// artifact gets a result.
func (r *Runner) RunBatch(ctx context.Context) (*models.BatchOutcome, error) {
	spec := r.cfg.Spec()
	startTime := r.now()

	tierSpec, err := r.resolveTierSpec()
	if err != nil {
		return nil, err
	}

	report, err := discovery.Discover(utils.ResolvePaths(spec.Roots, r.cfg.SpecDir()), discovery.Options{
		Include: spec.Include,
		Exclude: spec.Exclude,
	})
	if err != nil {
		return nil, fmt.Errorf("discovering artifacts: %w", err)
	}
	for _, sk := range report.Skipped {
		slog.Debug("discovery skipped file", "path", sk.Path, "reason", sk.Reason)
	}

	artifacts, err := FilterArtifacts(report.Artifacts, r.artifactFilters)
	if err != nil {
		return nil, err
	}

	if r.hookRunner != nil && len(spec.Hooks.BeforeBatch) > 0 {
		if err := r.hookRunner.Execute(ctx, "before_batch", spec.Hooks.BeforeBatch); err != nil {
			return nil, fmt.Errorf("before_batch hook: %w", err)
		}
	}

	r.notifyProgress(ProgressEvent{
		EventType:      EventBatchStart,
		TotalArtifacts: len(artifacts),
		Details: map[string]any{
			"tier":       tierSpec.Tier,
			"candidates": len(tierSpec.Models),
			"runs":       tierSpec.RunsPerModel,
		},
	})

	results := make([]models.PromptResult, len(artifacts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(spec.Execution.Workers())
	for i, art := range artifacts {
		g.Go(func() error {
			results[i] = r.evaluateArtifact(gctx, art, tierSpec, i+1, len(artifacts))
			return nil
		})
	}
	// workers never return errors; Wait is only a join point
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if r.hookRunner != nil && len(spec.Hooks.AfterBatch) > 0 {
		if err := r.hookRunner.Execute(ctx, "after_batch", spec.Hooks.AfterBatch); err != nil {
			slog.Warn("after_batch hook failed", "error", err)
		}
	}

	outcome := &models.BatchOutcome{
		BatchID:   uuid.NewString(),
		Timestamp: startTime,
		Setup: models.BatchSetup{
			Tier:          tierSpec.Tier,
			Roots:         spec.Roots,
			ModelOverride: r.cfg.ModelFilter(),
			Threshold:     spec.EffectiveThreshold(),
			RubricVersion: r.rubric.Version,
			Concurrency:   spec.Execution.Workers(),
		},
		Results: results,
	}
	outcome.ComputeDigest()

	r.notifyProgress(ProgressEvent{
		EventType:      EventBatchComplete,
		TotalArtifacts: len(artifacts),
		DurationMs:     r.now().Sub(startTime).Milliseconds(),
		Details: map[string]any{
			"passed":  outcome.Digest.Passed,
			"failed":  outcome.Digest.Failed,
			"errored": outcome.Digest.Errored,
		},
	})

	return outcome, nil
}

// resolveTierSpec builds the effective tier spec: table defaults, spec
// overrides, then invocation-level model filter and runs override.
func (r *Runner) resolveTierSpec() (models.TierSpec, error) {
	spec := r.cfg.Spec()

	descriptors := spec.Models
	if filter := r.cfg.ModelFilter(); len(filter) > 0 {
		filtered := make([]models.ModelDescriptor, 0, len(filter))
		for _, id := range filter {
			desc, ok := spec.ModelByID(id)
			if !ok {
				return models.TierSpec{}, fmt.Errorf("model filter references unknown model %q", id)
			}
			filtered = append(filtered, desc)
		}
		descriptors = filtered
	}

	table := tier.NewTable(descriptors, spec.Tiers)
	tierSpec, err := table.Spec(r.cfg.Tier())
	if err != nil {
		return models.TierSpec{}, err
	}

	if runs := r.cfg.RunsOverride(); runs > 0 && len(tierSpec.Models) > 0 {
		tierSpec.RunsPerModel = runs
	}
	return tierSpec, nil
}

// evaluateArtifact runs the per-artifact lifecycle: hooks, cache lookup and
// the evaluation state machine. It never returns an error; whatever happens
// the artifact gets a PromptResult.
func (r *Runner) evaluateArtifact(ctx context.Context, art models.PromptArtifact, tierSpec models.TierSpec, num, total int) models.PromptResult {
	spec := r.cfg.Spec()

	if r.hookRunner != nil && len(spec.Hooks.BeforeArtifact) > 0 {
		if err := r.hookRunner.Execute(ctx, "before_artifact", spec.Hooks.BeforeArtifact, "PROMPTEVAL_ARTIFACT="+art.ID); err != nil {
			result := models.PromptResult{
				ArtifactID:    art.ID,
				ArtifactPath:  art.Path,
				Tier:          tierSpec.Tier,
				State:         models.StateErrored,
				ThresholdUsed: spec.EffectiveThreshold(),
				RubricVersion: r.rubric.Version,
				ErrorMsg:      fmt.Sprintf("before_artifact hook: %v", err),
			}
			r.notifyProgress(ProgressEvent{
				EventType:      EventArtifactDone,
				ArtifactID:     art.ID,
				ArtifactNum:    num,
				TotalArtifacts: total,
				State:          models.StateErrored,
				Details:        map[string]any{"error": result.ErrorMsg},
			})
			return result
		}
	}

	r.notifyProgress(ProgressEvent{
		EventType:      EventArtifactStart,
		ArtifactID:     art.ID,
		ArtifactNum:    num,
		TotalArtifacts: total,
		State:          models.StateDiscovered,
	})

	result, wasCached := r.evaluateWithCache(ctx, art, tierSpec, num, total)

	if r.hookRunner != nil && len(spec.Hooks.AfterArtifact) > 0 {
		if err := r.hookRunner.Execute(ctx, "after_artifact", spec.Hooks.AfterArtifact, "PROMPTEVAL_ARTIFACT="+art.ID); err != nil {
			slog.Warn("after_artifact hook failed", "artifact", art.ID, "error", err)
		}
	}

	eventType := EventArtifactDone
	if wasCached {
		eventType = EventArtifactCached
	}
	details := map[string]any{
		"score":  result.CombinedScore,
		"passed": result.Passed,
	}
	if result.State == models.StateErrored {
		details["error"] = result.ErrorMsg
	}
	r.notifyProgress(ProgressEvent{
		EventType:      eventType,
		ArtifactID:     art.ID,
		ArtifactNum:    num,
		TotalArtifacts: total,
		State:          result.State,
		DurationMs:     result.DurationMs,
		Details:        details,
	})

	return result
}

// evaluateWithCache consults the result cache when one is configured.
func (r *Runner) evaluateWithCache(ctx context.Context, art models.PromptArtifact, tierSpec models.TierSpec, num, total int) (models.PromptResult, bool) {
	if r.resultCache == nil {
		return r.evaluate(ctx, art, tierSpec, num, total), false
	}

	key, err := cache.Key(art, tierSpec, r.rubric.Version, r.cfg.Spec().EffectiveThreshold())
	if err != nil {
		slog.Warn("deriving cache key", "artifact", art.ID, "error", err)
		return r.evaluate(ctx, art, tierSpec, num, total), false
	}

	if cached, found := r.resultCache.Get(key); found {
		return *cached, true
	}

	result := r.evaluate(ctx, art, tierSpec, num, total)
	if err := r.resultCache.Put(key, &result); err != nil {
		slog.Warn("writing result cache", "artifact", art.ID, "error", err)
	}
	return result, false
}

// evaluate runs the state machine for one artifact: probing, bounded run
// execution and aggregation. Tier 0 (no candidate models) goes straight to
// scoring without touching the network.
func (r *Runner) evaluate(ctx context.Context, art models.PromptArtifact, tierSpec models.TierSpec, num, total int) models.PromptResult {
	spec := r.cfg.Spec()
	started := r.now()

	outcome := aggregate.TierOutcome{Spec: tierSpec}

	if len(tierSpec.Models) > 0 {
		r.setState(art, models.StateProbing, num, total)
		usable := r.probeCandidates(ctx, art, tierSpec.Models)

		if len(usable) == 0 {
			outcome.Skipped = true
			r.notifyProgress(ProgressEvent{
				EventType:  EventTierSkipped,
				ArtifactID: art.ID,
				Details: map[string]any{
					"tier":       tierSpec.Tier,
					"candidates": len(tierSpec.Models),
				},
			})
		} else {
			r.setState(art, models.StateExecuting, num, total)
			outcome.Runs, outcome.RunsPlanned, outcome.Partial = r.executeRuns(ctx, art, tierSpec, usable)
			outcome.ModelsUsed = modelsUsed(outcome.Runs)
		}
	}

	r.setState(art, models.StateScoring, num, total)
	result, err := aggregate.Aggregate(art, outcome, r.rubric, aggregate.Options{
		Threshold: spec.EffectiveThreshold(),
		Stability: scoring.StabilityThresholds{
			MaxStdDev:       spec.Stability.MaxStdDev(),
			SimilarityFloor: spec.Stability.Floor(),
		},
	})
	if err != nil {
		slog.Error("no methodology produced a score", "artifact", art.ID, "error", err)
	}
	result.DurationMs = r.now().Sub(started).Milliseconds()

	r.writeArtifactTranscript(art, result, outcome.Runs, started)
	return result
}

func (r *Runner) setState(art models.PromptArtifact, state models.ArtifactState, num, total int) {
	r.notifyProgress(ProgressEvent{
		EventType:      EventArtifactState,
		ArtifactID:     art.ID,
		ArtifactNum:    num,
		TotalArtifacts: total,
		State:          state,
	})
}

// probeCandidates probes the tier's candidates in declaration order and
// returns the usable ones. Every usable candidate participates in the run
// plan; order is preserved so run issuance stays deterministic.
func (r *Runner) probeCandidates(ctx context.Context, art models.PromptArtifact, candidates []models.ModelDescriptor) []models.ModelDescriptor {
	usable := make([]models.ModelDescriptor, 0, len(candidates))
	for _, desc := range candidates {
		res := r.probeModel(ctx, desc)
		r.notifyProgress(ProgressEvent{
			EventType:  EventProbeResult,
			ArtifactID: art.ID,
			ModelID:    desc.ID,
			Details: map[string]any{
				"usable":     res.Usable,
				"error_kind": string(res.ErrorKind),
				"detail":     res.Detail,
			},
		})
		if res.Usable {
			usable = append(usable, desc)
		}
	}
	return usable
}

// probeModel memoizes probe results for the batch. Concurrent artifacts
// asking about the same model share one probe call; later artifacts reuse
// the recorded result, so an unusable model is probed at most once.
func (r *Runner) probeModel(ctx context.Context, desc models.ModelDescriptor) models.ProbeResult {
	r.probeMu.Lock()
	if res, ok := r.probed[desc.ID]; ok {
		r.probeMu.Unlock()
		return res
	}
	r.probeMu.Unlock()

	v, _, _ := r.probeGroup.Do(desc.ID, func() (any, error) {
		res := r.prober.Probe(ctx, desc)
		r.probeMu.Lock()
		r.probed[desc.ID] = res
		r.probeMu.Unlock()
		return res, nil
	})
	return v.(models.ProbeResult)
}

// executeRuns issues RunsPerModel runs for every usable model through the
// run worker pool. RunIndex reflects issuance order and is assigned before
// dispatch, so completion order never renumbers runs. The tier budget is
// checked before each issuance; once spent, no new runs start but in-flight
// runs drain and still count.
func (r *Runner) executeRuns(ctx context.Context, art models.PromptArtifact, tierSpec models.TierSpec, usable []models.ModelDescriptor) (runs []models.EvaluationRun, planned int, partial bool) {
	planned = len(usable) * tierSpec.RunsPerModel

	budget := newBudgetTracker(tierSpec.Budget, r.now)
	sem := make(chan struct{}, r.cfg.Spec().Execution.RunConcurrency())

	type slot struct {
		index int
		run   models.EvaluationRun
	}
	runCh := make(chan slot, planned)

	var wg sync.WaitGroup
	issued := 0

issuance:
	for _, desc := range usable {
		for n := 0; n < tierSpec.RunsPerModel; n++ {
			// acquiring the worker slot before the budget check paces
			// issuance with completions, so spend is visible here
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				partial = true
				break issuance
			}

			if reason, over := budget.Exceeded(); over {
				<-sem
				partial = true
				r.notifyProgress(ProgressEvent{
					EventType:  EventBudgetStop,
					ArtifactID: art.ID,
					ModelID:    desc.ID,
					Details: map[string]any{
						"reason":  reason,
						"issued":  issued,
						"planned": planned,
					},
				})
				break issuance
			}

			idx := issued
			issued++
			wg.Add(1)
			go func(desc models.ModelDescriptor, runIndex int) {
				defer wg.Done()
				defer func() { <-sem }()
				runCh <- slot{index: runIndex, run: r.executeRun(ctx, art, desc, runIndex, planned, budget)}
			}(desc, idx)
		}
	}

	go func() {
		wg.Wait()
		close(runCh)
	}()

	runs = make([]models.EvaluationRun, issued)
	for s := range runCh {
		runs[s.index] = s.run
	}
	return runs, planned, partial
}

// executeRun performs one evaluation run: one judge call per rubric
// criterion, in criterion order. A failed call marks its criterion missing
// for this run; the run itself fails only when every call failed.
func (r *Runner) executeRun(ctx context.Context, art models.PromptArtifact, desc models.ModelDescriptor, runIndex, totalRuns int, budget *budgetTracker) models.EvaluationRun {
	start := r.now()
	r.notifyProgress(ProgressEvent{
		EventType:  EventRunStart,
		ArtifactID: art.ID,
		ModelID:    desc.ID,
		RunIndex:   runIndex,
		TotalRuns:  totalRuns,
	})

	run := models.EvaluationRun{
		ArtifactID: art.ID,
		ModelID:    desc.ID,
		RunIndex:   runIndex,
	}

	var responses []string
	var firstErr error
	failedCalls := 0

	for _, criterion := range r.rubric.Criteria {
		prompt := r.judge.Prompt(art, criterion)
		resp, err := r.registry.Dispatch(ctx, desc.ID, backend.Request{
			System: scoring.SystemPrompt,
			Prompt: prompt,
		})
		if err != nil {
			failedCalls++
			if firstErr == nil {
				firstErr = err
			}
			run.Grades = append(run.Grades, models.CriterionGrade{
				Criterion:     criterion.Name,
				Missing:       true,
				MissingReason: err.Error(),
			})
			continue
		}

		budget.AddCost(desc.CostUnitsPer(tokens.Estimate(prompt) + tokens.Estimate(resp.Text)))
		responses = append(responses, resp.Text)

		ex := r.judge.Extract(resp.Text)
		run.Grades = append(run.Grades, models.CriterionGrade{
			Criterion:     criterion.Name,
			Raw:           ex.Value,
			Missing:       ex.Missing,
			MissingReason: ex.Reason,
		})
	}

	run.RawResponse = strings.Join(responses, "\n\n")
	run.DurationMs = r.now().Sub(start).Milliseconds()
	if len(responses) == 0 && failedCalls > 0 {
		run.ErrorMsg = fmt.Sprintf("all %d judge calls failed: %v", failedCalls, firstErr)
	}

	r.notifyProgress(ProgressEvent{
		EventType:  EventRunComplete,
		ArtifactID: art.ID,
		ModelID:    desc.ID,
		RunIndex:   runIndex,
		TotalRuns:  totalRuns,
		DurationMs: run.DurationMs,
		Details: map[string]any{
			"failed": run.Failed(),
			"grades": len(run.Grades),
		},
	})
	return run
}

func (r *Runner) writeArtifactTranscript(art models.PromptArtifact, result models.PromptResult, runs []models.EvaluationRun, started time.Time) {
	dir := r.cfg.TranscriptDir()
	if dir == "" {
		return
	}
	if _, err := transcript.Write(dir, transcript.Build(art, result, runs, started)); err != nil {
		slog.Warn("writing transcript", "artifact", art.ID, "error", err)
	}
}

// modelsUsed returns the distinct model ids among runs, in issuance order.
func modelsUsed(runs []models.EvaluationRun) []string {
	seen := make(map[string]bool, len(runs))
	var out []string
	for _, run := range runs {
		if !seen[run.ModelID] {
			seen[run.ModelID] = true
			out = append(out, run.ModelID)
		}
	}
	return out
}

// budgetTracker accumulates cost spend and watches the wall clock for one
// artifact's tier execution. Budgets are soft: they stop new issuance, they
// never cancel in-flight calls.
type budgetTracker struct {
	limit models.Budget
	start time.Time
	now   func() time.Time

	mu   sync.Mutex
	cost float64
}

func newBudgetTracker(limit models.Budget, now func() time.Time) *budgetTracker {
	return &budgetTracker{limit: limit, start: now(), now: now}
}

// AddCost records cost units consumed by a completed call.
func (b *budgetTracker) AddCost(units float64) {
	if units <= 0 {
		return
	}
	b.mu.Lock()
	b.cost += units
	b.mu.Unlock()
}

// Exceeded reports whether either budget dimension is spent.
func (b *budgetTracker) Exceeded() (string, bool) {
	if b.limit.Unlimited() {
		return "", false
	}
	if b.limit.MaxDuration > 0 && b.now().Sub(b.start) >= b.limit.MaxDuration {
		return "wall clock budget exhausted", true
	}
	if b.limit.MaxCostUnits > 0 {
		b.mu.Lock()
		spent := b.cost
		b.mu.Unlock()
		if spent >= b.limit.MaxCostUnits {
			return "cost budget exhausted", true
		}
	}
	return "", false
}

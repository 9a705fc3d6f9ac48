// Package config loads and carries the evaluation configuration: the
// prompteval.yaml spec plus per-invocation settings supplied by the CLI.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/promptqa/prompteval/internal/hooks"
	"github.com/promptqa/prompteval/internal/models"
)

// Default values for evaluation configuration. These are the single source
// of truth; no other code should duplicate them.
const (
	DefaultTier      = 0
	DefaultThreshold = 70.0

	DefaultProbeTTLSeconds  = 900
	DefaultProbeAttempts    = 3
	DefaultProbeBackoffMs   = 500
	DefaultProbeCacheDir    = ".prompteval-cache"
	DefaultResultCacheDir   = ".prompteval-cache/results"
	DefaultCallTimeoutSec   = 120
	DefaultArtifactWorkers  = 4
	DefaultRunWorkers       = 2
	DefaultStdDevMax        = 10.0
	DefaultSimilarityFloor  = 40.0
	DefaultRubricPath       = "rubric.yaml"
	DefaultOllamaBaseURL    = "http://localhost:11434"
	DefaultLocalBaseURL     = "http://localhost:8080/v1"
	DefaultAnthropicVersion = "2023-06-01"
)

// ProbeSettings tune the capability probe and its cache.
type ProbeSettings struct {
	TTLSeconds  int    `yaml:"ttl_seconds,omitempty" json:"ttl_seconds,omitempty"`
	MaxAttempts int    `yaml:"max_attempts,omitempty" json:"max_attempts,omitempty"`
	BackoffMs   int    `yaml:"backoff_ms,omitempty" json:"backoff_ms,omitempty"`
	CacheDir    string `yaml:"cache_dir,omitempty" json:"cache_dir,omitempty"`
}

// TTL returns the probe cache time-to-live.
func (p ProbeSettings) TTL() time.Duration {
	secs := p.TTLSeconds
	if secs <= 0 {
		secs = DefaultProbeTTLSeconds
	}
	return time.Duration(secs) * time.Second
}

// Attempts returns the bounded probe retry count.
func (p ProbeSettings) Attempts() int {
	if p.MaxAttempts <= 0 {
		return DefaultProbeAttempts
	}
	return p.MaxAttempts
}

// Backoff returns the base delay for exponential probe backoff.
func (p ProbeSettings) Backoff() time.Duration {
	ms := p.BackoffMs
	if ms <= 0 {
		ms = DefaultProbeBackoffMs
	}
	return time.Duration(ms) * time.Millisecond
}

// ExecSettings tune run scheduling.
type ExecSettings struct {
	// ArtifactWorkers bounds how many artifacts evaluate concurrently.
	ArtifactWorkers int `yaml:"artifact_workers,omitempty" json:"artifact_workers,omitempty"`
	// RunWorkers bounds concurrent model calls within one artifact.
	RunWorkers int `yaml:"run_workers,omitempty" json:"run_workers,omitempty"`
	// CallTimeoutSec bounds any single network request.
	CallTimeoutSec int `yaml:"call_timeout_seconds,omitempty" json:"call_timeout_seconds,omitempty"`
}

func (e ExecSettings) Workers() int {
	if e.ArtifactWorkers <= 0 {
		return DefaultArtifactWorkers
	}
	return e.ArtifactWorkers
}

func (e ExecSettings) RunConcurrency() int {
	if e.RunWorkers <= 0 {
		return DefaultRunWorkers
	}
	return e.RunWorkers
}

func (e ExecSettings) CallTimeout() time.Duration {
	secs := e.CallTimeoutSec
	if secs <= 0 {
		secs = DefaultCallTimeoutSec
	}
	return time.Duration(secs) * time.Second
}

// StabilitySettings hold the reproducibility thresholds.
type StabilitySettings struct {
	// StdDevMax is the highest per-run judged-score standard deviation a
	// stable result may have.
	StdDevMax float64 `yaml:"std_dev_max,omitempty" json:"std_dev_max,omitempty"`
	// SimilarityFloor is the lowest mean pairwise output similarity (0-100)
	// a stable result may have.
	SimilarityFloor float64 `yaml:"similarity_floor,omitempty" json:"similarity_floor,omitempty"`
}

func (s StabilitySettings) MaxStdDev() float64 {
	if s.StdDevMax <= 0 {
		return DefaultStdDevMax
	}
	return s.StdDevMax
}

func (s StabilitySettings) Floor() float64 {
	if s.SimilarityFloor <= 0 {
		return DefaultSimilarityFloor
	}
	return s.SimilarityFloor
}

// TierOverride replaces parts of a default tier definition.
type TierOverride struct {
	// Models lists candidate model IDs, overriding the kind/cost-based
	// default selection for the tier.
	Models []string `yaml:"models,omitempty" json:"models,omitempty"`
	// RunsPerModel overrides the tier's default repeated-run count.
	RunsPerModel int `yaml:"runs_per_model,omitempty" json:"runs_per_model,omitempty"`
	// MaxSeconds soft-caps the tier's wall-clock budget per artifact.
	MaxSeconds int `yaml:"max_seconds,omitempty" json:"max_seconds,omitempty"`
	// MaxCostUnits soft-caps the tier's cost budget per artifact.
	MaxCostUnits float64 `yaml:"max_cost_units,omitempty" json:"max_cost_units,omitempty"`
}

// EvalSpec is the evaluation specification loaded from prompteval.yaml.
type EvalSpec struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`

	// Roots are the corpus directories discovery walks.
	Roots []string `yaml:"roots"`
	// Include/Exclude are discovery glob patterns on root-relative paths.
	Include []string `yaml:"include,omitempty"`
	Exclude []string `yaml:"exclude,omitempty"`

	// Tier selects the default evaluation tier (0-7).
	Tier int `yaml:"tier"`
	// Threshold is the pass/fail combined-score cutoff.
	Threshold float64 `yaml:"threshold,omitempty"`
	// RubricPath points at the rubric YAML, relative to the spec file.
	RubricPath string `yaml:"rubric,omitempty"`

	// Models are the candidate model descriptors tiers draw from.
	Models []models.ModelDescriptor `yaml:"models,omitempty"`
	// AllowHosted is the explicit opt-in flag for third-party hosted
	// backends. Without it, hosted models are excluded from every tier.
	AllowHosted bool `yaml:"allow_hosted,omitempty"`

	// Backends holds per-prefix adapter options (base_url, headers, ...)
	// decoded by each adapter with mapstructure.
	Backends map[string]map[string]any `yaml:"backends,omitempty"`

	Probe     ProbeSettings        `yaml:"probe,omitempty"`
	Execution ExecSettings         `yaml:"execution,omitempty"`
	Stability StabilitySettings    `yaml:"stability,omitempty"`
	Tiers     map[int]TierOverride `yaml:"tiers,omitempty"`

	Hooks hooks.Config `yaml:"hooks,omitempty"`
}

// LoadEvalSpec loads and validates a spec from a YAML file.
func LoadEvalSpec(path string) (*EvalSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading spec: %w", err)
	}

	var spec EvalSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parsing spec: %w", err)
	}

	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &spec, nil
}

// Validate checks the spec and normalizes model descriptors (hosted kinds
// are forced to opt-in regardless of what the file said).
func (s *EvalSpec) Validate() error {
	if s.Tier < models.MinTier || s.Tier > models.MaxTier {
		return fmt.Errorf("tier must be between %d and %d, got %d", models.MinTier, models.MaxTier, s.Tier)
	}
	if s.Threshold < 0 || s.Threshold > 100 {
		return fmt.Errorf("threshold must be between 0 and 100, got %v", s.Threshold)
	}
	seen := make(map[string]bool, len(s.Models))
	for i := range s.Models {
		if err := s.Models[i].Validate(); err != nil {
			return err
		}
		if seen[s.Models[i].ID] {
			return fmt.Errorf("duplicate model id %q", s.Models[i].ID)
		}
		seen[s.Models[i].ID] = true
	}
	for tier, ov := range s.Tiers {
		if tier < models.MinTier || tier > models.MaxTier {
			return fmt.Errorf("tier override %d out of range", tier)
		}
		for _, id := range ov.Models {
			if !seen[id] {
				return fmt.Errorf("tier %d override references unknown model %q", tier, id)
			}
		}
	}
	return nil
}

// EffectiveThreshold returns the pass threshold, defaulted.
func (s *EvalSpec) EffectiveThreshold() float64 {
	if s.Threshold <= 0 {
		return DefaultThreshold
	}
	return s.Threshold
}

// ModelByID returns the descriptor for a model id.
func (s *EvalSpec) ModelByID(id string) (models.ModelDescriptor, bool) {
	for _, m := range s.Models {
		if m.ID == id {
			return m, true
		}
	}
	return models.ModelDescriptor{}, false
}

// EvalConfig wraps an EvalSpec with per-invocation settings. Construct with
// NewEvalConfig and the With* options; read through the getters.
type EvalConfig struct {
	spec *EvalSpec

	specDir       string
	verbose       bool
	outputPath    string
	transcriptDir string
	noCache       bool
	modelFilter   []string
	tierOverride  *int
	runsOverride  int
}

// Option configures an EvalConfig.
type Option func(*EvalConfig)

// WithSpecDir sets the directory the spec was loaded from, used to resolve
// relative paths (roots, rubric, cache dirs).
func WithSpecDir(dir string) Option {
	return func(c *EvalConfig) { c.specDir = dir }
}

// WithVerbose toggles detailed progress output.
func WithVerbose(v bool) Option {
	return func(c *EvalConfig) { c.verbose = v }
}

// WithOutputPath sets the results file destination.
func WithOutputPath(path string) Option {
	return func(c *EvalConfig) { c.outputPath = path }
}

// WithTranscriptDir sets the directory for per-artifact judge transcripts.
func WithTranscriptDir(dir string) Option {
	return func(c *EvalConfig) { c.transcriptDir = dir }
}

// WithNoCache disables the persistent probe cache for this invocation.
func WithNoCache(disable bool) Option {
	return func(c *EvalConfig) { c.noCache = disable }
}

// WithModelFilter restricts tiers to the named model ids.
func WithModelFilter(ids ...string) Option {
	return func(c *EvalConfig) { c.modelFilter = ids }
}

// WithTier overrides the spec's tier for this invocation.
func WithTier(tier int) Option {
	return func(c *EvalConfig) { c.tierOverride = &tier }
}

// WithRunsPerModel overrides every tier's run count for this invocation.
func WithRunsPerModel(runs int) Option {
	return func(c *EvalConfig) { c.runsOverride = runs }
}

// NewEvalConfig builds a config around spec. Options are applied in order;
// a nil option panics (programmer error, matching the fail-fast contract of
// the options pattern used throughout).
func NewEvalConfig(spec *EvalSpec, opts ...Option) *EvalConfig {
	c := &EvalConfig{spec: spec}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *EvalConfig) Spec() *EvalSpec       { return c.spec }
func (c *EvalConfig) SpecDir() string       { return c.specDir }
func (c *EvalConfig) Verbose() bool         { return c.verbose }
func (c *EvalConfig) OutputPath() string    { return c.outputPath }
func (c *EvalConfig) TranscriptDir() string { return c.transcriptDir }
func (c *EvalConfig) NoCache() bool         { return c.noCache }
func (c *EvalConfig) ModelFilter() []string { return c.modelFilter }

// Tier returns the effective tier: the invocation override when set,
// otherwise the spec's.
func (c *EvalConfig) Tier() int {
	if c.tierOverride != nil {
		return *c.tierOverride
	}
	if c.spec == nil {
		return DefaultTier
	}
	return c.spec.Tier
}

// RunsOverride returns the invocation-level run count override (0 = none).
func (c *EvalConfig) RunsOverride() int { return c.runsOverride }

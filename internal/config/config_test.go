package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewEvalConfig_DefaultValues(t *testing.T) {
	spec := &EvalSpec{Name: "test-spec"}

	cfg := NewEvalConfig(spec)

	if cfg.Spec() != spec {
		t.Fatalf("Spec() = %p, want %p", cfg.Spec(), spec)
	}
	if cfg.SpecDir() != "" {
		t.Fatalf("SpecDir() = %q, want empty", cfg.SpecDir())
	}
	if cfg.Verbose() {
		t.Fatalf("Verbose() = true, want false")
	}
	if cfg.OutputPath() != "" {
		t.Fatalf("OutputPath() = %q, want empty", cfg.OutputPath())
	}
	if cfg.TranscriptDir() != "" {
		t.Fatalf("TranscriptDir() = %q, want empty", cfg.TranscriptDir())
	}
	if cfg.NoCache() {
		t.Fatalf("NoCache() = true, want false")
	}
	if cfg.Tier() != 0 {
		t.Fatalf("Tier() = %d, want 0", cfg.Tier())
	}
	if cfg.RunsOverride() != 0 {
		t.Fatalf("RunsOverride() = %d, want 0", cfg.RunsOverride())
	}
}

func TestNewEvalConfig_AppliesFunctionalOptions(t *testing.T) {
	spec := &EvalSpec{}

	cfg := NewEvalConfig(
		spec,
		WithSpecDir("/tmp/specs"),
		WithVerbose(true),
		WithOutputPath("results.json"),
		WithTranscriptDir("transcripts"),
		WithNoCache(true),
		WithModelFilter("phi3:mini", "llama3:8b"),
		WithTier(3),
		WithRunsPerModel(5),
	)

	if cfg.SpecDir() != "/tmp/specs" {
		t.Fatalf("SpecDir() = %q, want %q", cfg.SpecDir(), "/tmp/specs")
	}
	if !cfg.Verbose() {
		t.Fatalf("Verbose() = false, want true")
	}
	if cfg.OutputPath() != "results.json" {
		t.Fatalf("OutputPath() = %q, want %q", cfg.OutputPath(), "results.json")
	}
	if cfg.TranscriptDir() != "transcripts" {
		t.Fatalf("TranscriptDir() = %q, want %q", cfg.TranscriptDir(), "transcripts")
	}
	if !cfg.NoCache() {
		t.Fatalf("NoCache() = false, want true")
	}
	if got := cfg.ModelFilter(); len(got) != 2 || got[0] != "phi3:mini" || got[1] != "llama3:8b" {
		t.Fatalf("ModelFilter() = %v, want [phi3:mini llama3:8b]", got)
	}
	if cfg.Tier() != 3 {
		t.Fatalf("Tier() = %d, want 3", cfg.Tier())
	}
	if cfg.RunsOverride() != 5 {
		t.Fatalf("RunsOverride() = %d, want 5", cfg.RunsOverride())
	}
}

func TestTier_OverrideBeatsSpec(t *testing.T) {
	spec := &EvalSpec{Tier: 2}

	if got := NewEvalConfig(spec).Tier(); got != 2 {
		t.Fatalf("Tier() = %d, want spec tier 2", got)
	}
	if got := NewEvalConfig(spec, WithTier(0)).Tier(); got != 0 {
		t.Fatalf("Tier() = %d, want explicit override 0", got)
	}
}

func TestOptionOrder_LastOptionWins(t *testing.T) {
	cfg := NewEvalConfig(
		&EvalSpec{},
		WithVerbose(true),
		WithVerbose(false),
		WithOutputPath("first.json"),
		WithOutputPath("second.json"),
	)

	if cfg.Verbose() {
		t.Fatalf("Verbose() = true, want false")
	}
	if cfg.OutputPath() != "second.json" {
		t.Fatalf("OutputPath() = %q, want %q", cfg.OutputPath(), "second.json")
	}
}

func TestNewEvalConfig_NilSpecAllowed(t *testing.T) {
	cfg := NewEvalConfig(nil, WithOutputPath(""), WithTranscriptDir(""))

	if cfg.Spec() != nil {
		t.Fatalf("Spec() = %v, want nil", cfg.Spec())
	}
	if cfg.Tier() != DefaultTier {
		t.Fatalf("Tier() = %d, want default %d", cfg.Tier(), DefaultTier)
	}
}

func TestNewEvalConfig_NilOptionPanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic for nil option, got none")
		}
	}()

	_ = NewEvalConfig(&EvalSpec{}, nil)
}

func TestLoadEvalSpec(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prompteval.yaml")
	content := `name: corpus-eval
roots:
  - prompts
tier: 2
threshold: 75
rubric: rubric.yaml
models:
  - id: ollama:phi3:mini
    kind: local
    cost: free
  - id: openai:gpt-4o
    kind: hosted
    cost: premium
allow_hosted: true
probe:
  ttl_seconds: 600
  max_attempts: 2
execution:
  artifact_workers: 8
  call_timeout_seconds: 30
stability:
  std_dev_max: 8
  similarity_floor: 55
tiers:
  2:
    runs_per_model: 4
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	spec, err := LoadEvalSpec(path)
	if err != nil {
		t.Fatalf("LoadEvalSpec() error = %v", err)
	}
	if spec.Name != "corpus-eval" {
		t.Errorf("Name = %q, want corpus-eval", spec.Name)
	}
	if spec.Tier != 2 {
		t.Errorf("Tier = %d, want 2", spec.Tier)
	}
	if spec.Probe.TTL() != 600*time.Second {
		t.Errorf("Probe.TTL() = %v, want 10m", spec.Probe.TTL())
	}
	if spec.Probe.Attempts() != 2 {
		t.Errorf("Probe.Attempts() = %d, want 2", spec.Probe.Attempts())
	}
	if spec.Execution.Workers() != 8 {
		t.Errorf("Execution.Workers() = %d, want 8", spec.Execution.Workers())
	}
	if spec.Execution.CallTimeout() != 30*time.Second {
		t.Errorf("Execution.CallTimeout() = %v, want 30s", spec.Execution.CallTimeout())
	}
	if spec.Stability.MaxStdDev() != 8 {
		t.Errorf("Stability.MaxStdDev() = %v, want 8", spec.Stability.MaxStdDev())
	}
	if ov, ok := spec.Tiers[2]; !ok || ov.RunsPerModel != 4 {
		t.Errorf("Tiers[2] = %+v, want RunsPerModel 4", ov)
	}

	hosted, ok := spec.ModelByID("openai:gpt-4o")
	if !ok {
		t.Fatal("ModelByID(openai:gpt-4o) not found")
	}
	// Hosted descriptors are normalized to require opt-in during Validate.
	if !hosted.RequiresOptIn {
		t.Error("hosted model should be normalized to RequiresOptIn")
	}
}

func TestLoadEvalSpec_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "tier out of range",
			content: "name: x\ntier: 9\n",
		},
		{
			name:    "threshold out of range",
			content: "name: x\ntier: 0\nthreshold: 140\n",
		},
		{
			name: "duplicate model id",
			content: `name: x
tier: 0
models:
  - id: ollama:phi3:mini
    kind: local
    cost: free
  - id: ollama:phi3:mini
    kind: local
    cost: free
`,
		},
		{
			name: "tier override references unknown model",
			content: `name: x
tier: 0
tiers:
  1:
    models: [ollama:missing]
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "prompteval.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadEvalSpec(path); err == nil {
				t.Fatal("expected validation error, got nil")
			}
		})
	}
}

func TestDefaults(t *testing.T) {
	var probe ProbeSettings
	if probe.TTL() != time.Duration(DefaultProbeTTLSeconds)*time.Second {
		t.Errorf("zero ProbeSettings TTL = %v", probe.TTL())
	}
	if probe.Attempts() != DefaultProbeAttempts {
		t.Errorf("zero ProbeSettings Attempts = %d", probe.Attempts())
	}
	if probe.Backoff() != DefaultProbeBackoffMs*time.Millisecond {
		t.Errorf("zero ProbeSettings Backoff = %v", probe.Backoff())
	}

	var exec ExecSettings
	if exec.Workers() != DefaultArtifactWorkers {
		t.Errorf("zero ExecSettings Workers = %d", exec.Workers())
	}
	if exec.RunConcurrency() != DefaultRunWorkers {
		t.Errorf("zero ExecSettings RunConcurrency = %d", exec.RunConcurrency())
	}

	spec := &EvalSpec{}
	if spec.EffectiveThreshold() != DefaultThreshold {
		t.Errorf("EffectiveThreshold = %v, want %v", spec.EffectiveThreshold(), DefaultThreshold)
	}
}

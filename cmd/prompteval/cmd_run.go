package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/promptqa/prompteval/internal/backend"
	"github.com/promptqa/prompteval/internal/cache"
	"github.com/promptqa/prompteval/internal/config"
	"github.com/promptqa/prompteval/internal/hooks"
	"github.com/promptqa/prompteval/internal/models"
	"github.com/promptqa/prompteval/internal/orchestration"
	"github.com/promptqa/prompteval/internal/probe"
	"github.com/promptqa/prompteval/internal/projectconfig"
	"github.com/promptqa/prompteval/internal/reporting"
	"github.com/promptqa/prompteval/internal/rubric"
	"github.com/promptqa/prompteval/internal/tier"
	"github.com/promptqa/prompteval/internal/utils"
	"github.com/promptqa/prompteval/internal/workspace"
	"github.com/spf13/cobra"
)

var (
	configPath      string
	tierFlag        int
	modelOverrides  []string
	runsPerModel    int
	thresholdFlag   float64
	rubricFlag      string
	outputPath      string
	format          string
	ciMode          bool
	allowHosted     bool
	enableCache     bool
	disableCache    bool
	runCacheDir     string
	concurrency     int
	transcriptDir   string
	artifactFilters []string
	interpret       bool
	verbose         bool
)

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [roots...]",
		Short: "Run a tiered evaluation batch",
		Long: `Run an evaluation batch over the configured corpus.

The suite configuration is read from prompteval.yaml, located by walking up
from the current directory (or pass --config). Positional arguments replace
the configured corpus roots for this invocation.

Every completed batch is saved to the results directory (output.dir in
.prompteval.yaml, default results/) unless --out redirects it.

Examples:
  prompteval run                               # evaluate the whole suite
  prompteval run prompts/agents                # only this corpus root
  prompteval run --tier 3 --ci                 # deeper tier, CI exit codes
  prompteval run --model ollama:llama3.2 --runs 3`,
		Args: cobra.ArbitraryArgs,
		RunE: runCommandE,
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to prompteval.yaml (default: auto-detect)")
	cmd.Flags().IntVar(&tierFlag, "tier", -1, "Evaluation tier 0-7 (default: from config)")
	cmd.Flags().StringArrayVar(&modelOverrides, "model", nil, "Restrict candidate models by ID (can be repeated)")
	cmd.Flags().IntVar(&runsPerModel, "runs", 0, "Runs per model (default: tier default)")
	cmd.Flags().Float64Var(&thresholdFlag, "threshold", -1, "Pass threshold 0-100 (default: from config)")
	cmd.Flags().StringVar(&rubricFlag, "rubric", "", "Rubric YAML path (default: from config)")
	cmd.Flags().StringVarP(&outputPath, "out", "o", "", "Write the batch report to this path")
	cmd.Flags().StringVar(&format, "format", "", "Report format: json, junit, markdown (default: json)")
	cmd.Flags().BoolVar(&ciMode, "ci", false, "Exit non-zero when any artifact fails or errors")
	cmd.Flags().BoolVar(&allowHosted, "allow-hosted", false, "Allow hosted backends for this run (opt-in)")
	cmd.Flags().BoolVar(&enableCache, "cache", false, "Force result caching on")
	cmd.Flags().BoolVar(&disableCache, "no-cache", false, "Disable probe and result caching")
	cmd.Flags().StringVar(&runCacheDir, "cache-dir", "", "Cache directory (default: .prompteval-cache)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Concurrent artifact workers (default: 4)")
	cmd.Flags().StringVar(&transcriptDir, "transcript-dir", "", "Directory to save per-artifact transcript JSON files")
	cmd.Flags().StringArrayVar(&artifactFilters, "artifact", nil, "Filter artifacts by ID/filename glob (can be repeated)")
	cmd.Flags().BoolVar(&interpret, "interpret", false, "Print a plain-language interpretation of the results")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output with detailed progress")

	return cmd
}

func runCommandE(cmd *cobra.Command, args []string) error {
	switch format {
	case "", "json", "junit", "markdown":
	default:
		return fmt.Errorf("unknown output format: %s (supported: json, junit, markdown)", format)
	}

	spec, specDir, err := loadSpecFrom(configPath)
	if err != nil {
		return err
	}

	// Operator defaults fill in flags the user left unset
	proj, err := projectconfig.Load(specDir)
	if err != nil {
		return fmt.Errorf("failed to load operator defaults: %w", err)
	}
	applyProjectDefaults(proj)

	// Positional arguments replace the configured corpus roots. Values that
	// look like artifact IDs are redirected to --artifact.
	if len(args) > 0 {
		for _, arg := range args {
			if !workspace.LooksLikePath(arg) {
				return fmt.Errorf("%q does not look like a corpus root; to select a single artifact use --artifact %q", arg, arg)
			}
		}
		spec.Roots = args
	}

	// CLI flags override spec config
	if allowHosted {
		spec.AllowHosted = true
	}
	if thresholdFlag >= 0 {
		spec.Threshold = thresholdFlag
	}
	if concurrency > 0 {
		spec.Execution.ArtifactWorkers = concurrency
	}

	opts := []config.Option{
		config.WithSpecDir(specDir),
		config.WithVerbose(verbose),
		config.WithOutputPath(outputPath),
		config.WithTranscriptDir(transcriptDir),
		config.WithModelFilter(modelOverrides...),
		config.WithNoCache(disableCache),
	}
	if tierFlag >= 0 {
		opts = append(opts, config.WithTier(tierFlag))
	}
	if runsPerModel > 0 {
		opts = append(opts, config.WithRunsPerModel(runsPerModel))
	}
	cfg := config.NewEvalConfig(spec, opts...)

	rub, err := loadRubric(rubricFlag, spec, specDir)
	if err != nil {
		return fmt.Errorf("failed to load rubric: %w", err)
	}

	registry, err := backend.NewDefaultRegistry(spec.Backends,
		backend.WithCallTimeout(spec.Execution.CallTimeout()))
	if err != nil {
		return fmt.Errorf("failed to build backend registry: %w", err)
	}
	defer registry.Close() //nolint:errcheck

	// Setup caching
	useCaching := proj.Cache.Enabled != nil && *proj.Cache.Enabled
	if enableCache {
		useCaching = true
	}
	if disableCache {
		useCaching = false
	}

	// Judged and reproducibility tiers sample live backends, so a cached
	// result replays a single past evaluation. The result cache is skipped
	// for those tiers unless --cache forces it; the probe cache is TTL-bound
	// and stays on.
	resultCaching := useCaching
	if resultCaching && !enableCache {
		tierSpec, tierErr := tier.NewTable(spec.Models, spec.Tiers).Spec(cfg.Tier())
		if tierErr == nil && !cache.Deterministic(tierSpec) {
			if verbose {
				fmt.Printf("Note: result caching disabled for tier %d (non-deterministic scoring); use --cache to force\n", cfg.Tier())
			}
			resultCaching = false
		}
	}

	cacheRoot := runCacheDir
	if cacheRoot == "" {
		cacheRoot = proj.Cache.Dir
	}
	if cacheRoot == "" {
		cacheRoot = projectconfig.DefaultCacheDir
	}
	absCacheRoot, err := filepath.Abs(cacheRoot)
	if err != nil {
		return fmt.Errorf("resolving cache directory: %w", err)
	}

	store := openProbeStore(useCaching, absCacheRoot)
	defer store.Close() //nolint:errcheck

	prober := probe.NewProber(store, registry,
		probe.WithAllowHosted(spec.AllowHosted),
		probe.WithTTL(spec.Probe.TTL()),
		probe.WithMaxAttempts(spec.Probe.Attempts()),
		probe.WithBackoff(spec.Probe.Backoff()),
	)

	runnerOpts := []orchestration.RunnerOption{
		orchestration.WithProber(prober),
		orchestration.WithArtifactFilter(artifactFilters...),
	}
	if resultCaching {
		runnerOpts = append(runnerOpts, orchestration.WithResultCache(cache.New(filepath.Join(absCacheRoot, "results"))))
		if verbose {
			fmt.Printf("Cache enabled: %s\n", absCacheRoot)
		}
	}
	if spec.Hooks.Any() {
		runnerOpts = append(runnerOpts, orchestration.WithHookRunner(&hooks.Runner{Verbose: verbose}))
	}

	runner := orchestration.NewRunner(cfg, registry, rub, runnerOpts...)

	// Add progress listener
	if verbose {
		runner.OnProgress(verboseProgressListener)
	} else {
		runner.OnProgress(simpleProgressListener)
	}

	fmt.Printf("Evaluating suite: %s\n", spec.Name)
	fmt.Printf("Tier: %d\n", cfg.Tier())
	fmt.Printf("Threshold: %.0f\n", spec.EffectiveThreshold())
	fmt.Printf("Rubric: %s\n", rub.Version)
	if len(modelOverrides) > 0 {
		fmt.Printf("Models: %s\n", strings.Join(modelOverrides, ", "))
	}
	fmt.Println()

	ctx := context.Background()

	outcome, err := runner.RunBatch(ctx)
	if err != nil {
		return fmt.Errorf("evaluation failed: %w", err)
	}

	printSummary(outcome)

	if interpret {
		fmt.Println()
		fmt.Print(reporting.FormatSummaryReport(outcome))
	}

	if err := saveOutcome(outcome, specDir, proj); err != nil {
		return err
	}

	if ciMode && (outcome.Digest.Failed > 0 || outcome.Digest.Errored > 0) {
		return &EvalFailureError{
			Message: fmt.Sprintf("batch completed with %d failed and %d errored artifact(s)",
				outcome.Digest.Failed, outcome.Digest.Errored),
		}
	}

	return nil
}

// applyProjectDefaults fills flag values the user left unset from the
// operator defaults file.
func applyProjectDefaults(proj *projectconfig.ProjectConfig) {
	if format == "" && proj.Output.Format != "" {
		format = proj.Output.Format
	}
	if proj.Output.Interpret != nil && *proj.Output.Interpret {
		interpret = true
	}
	if proj.Run.Verbose != nil && *proj.Run.Verbose {
		verbose = true
	}
	if concurrency == 0 {
		concurrency = proj.Run.Concurrency
	}
	if transcriptDir == "" {
		transcriptDir = proj.Run.TranscriptDir
	}
}

// loadRubric resolves the rubric file relative to the spec directory,
// preferring the flag path over the spec's. A missing file is only an error
// when a path was configured explicitly; otherwise the built-in rubric
// applies.
func loadRubric(flagPath string, spec *config.EvalSpec, specDir string) (*models.RubricVersion, error) {
	path := flagPath
	if path == "" {
		path = spec.RubricPath
	}
	explicit := path != ""
	if path == "" {
		path = config.DefaultRubricPath
	}

	r, err := rubric.Load(utils.ResolvePath(path, specDir))
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return rubric.Default(), nil
		}
		return nil, err
	}
	return r, nil
}

// openProbeStore returns the persistent probe cache, falling back to an
// in-memory store when caching is off or the cache directory is unusable.
func openProbeStore(useCaching bool, cacheRoot string) probe.Store {
	if !useCaching {
		return probe.NewMemoryStore()
	}
	dir := filepath.Join(cacheRoot, "probe")
	store, err := probe.NewBadgerStore(probe.DefaultBadgerConfig(dir))
	if err != nil {
		slog.Warn("probe cache unavailable, probing without persistence", "dir", dir, "error", err)
		return probe.NewMemoryStore()
	}
	return store
}

// saveOutcome writes the batch report: to --out when given, otherwise into
// the results directory under the batch ID.
func saveOutcome(outcome *models.BatchOutcome, specDir string, proj *projectconfig.ProjectConfig) error {
	path := outputPath
	if path == "" {
		dir := proj.Output.Dir
		if dir == "" {
			dir = projectconfig.DefaultOutputDir
		}
		dir = utils.ResolvePath(dir, specDir)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating results directory: %w", err)
		}
		path = filepath.Join(dir, outcome.BatchID+reportExt(format))
	}

	if err := writeReport(outcome, path, format); err != nil {
		return fmt.Errorf("failed to save output: %w", err)
	}
	fmt.Printf("\nResults saved to: %s\n", path)
	return nil
}

func writeReport(outcome *models.BatchOutcome, path, format string) error {
	switch format {
	case "", "json":
		return reporting.WriteJSON(outcome, path)
	case "junit":
		return reporting.WriteJUnitXML(outcome, path)
	case "markdown":
		return reporting.WriteMarkdown(outcome, path)
	default:
		return fmt.Errorf("unknown output format: %s (supported: json, junit, markdown)", format)
	}
}

func reportExt(format string) string {
	switch format {
	case "junit":
		return ".xml"
	case "markdown":
		return ".md"
	default:
		return ".json"
	}
}

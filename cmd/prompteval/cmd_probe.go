package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/promptqa/prompteval/internal/backend"
	"github.com/promptqa/prompteval/internal/config"
	"github.com/promptqa/prompteval/internal/models"
	"github.com/promptqa/prompteval/internal/probe"
	"github.com/promptqa/prompteval/internal/projectconfig"
	"github.com/promptqa/prompteval/internal/spinner"
	"github.com/spf13/cobra"
)

var (
	probeConfigPath  string
	probeAllowHosted bool
	probeNoCache     bool
	probeClear       bool
)

func newProbeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "probe [model-id...]",
		Short: "Check which candidate models are usable",
		Long: `Probe candidate models and report which are usable right now.

Without arguments, every model declared in prompteval.yaml is probed.
Explicit model IDs may also name models the suite does not declare, e.g.
to check a backend before adding it.

Probe results are cached; a fresh cached result is reported without a new
network call. Use --clear-cache to drop all cached results instead.`,
		Args: cobra.ArbitraryArgs,
		RunE: probeCommandE,
	}

	cmd.Flags().StringVar(&probeConfigPath, "config", "", "Path to prompteval.yaml (default: auto-detect)")
	cmd.Flags().BoolVar(&probeAllowHosted, "allow-hosted", false, "Allow probing hosted backends (opt-in)")
	cmd.Flags().BoolVar(&probeNoCache, "no-cache", false, "Probe without reading or writing the cache")
	cmd.Flags().BoolVar(&probeClear, "clear-cache", false, "Clear all cached probe results and exit")

	return cmd
}

func probeCommandE(_ *cobra.Command, args []string) error {
	spec, specDir, err := loadSpecFrom(probeConfigPath)
	if err != nil {
		return err
	}

	proj, err := projectconfig.Load(specDir)
	if err != nil {
		return fmt.Errorf("failed to load operator defaults: %w", err)
	}

	cacheRoot := proj.Cache.Dir
	if cacheRoot == "" {
		cacheRoot = projectconfig.DefaultCacheDir
	}
	absCacheRoot, err := filepath.Abs(cacheRoot)
	if err != nil {
		return fmt.Errorf("resolving cache directory: %w", err)
	}

	ctx := context.Background()

	if probeClear {
		return clearProbeCache(ctx, absCacheRoot)
	}

	candidates, err := probeCandidates(spec, args)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		fmt.Println("No models declared; add a models section to prompteval.yaml or pass model IDs.")
		return nil
	}

	registry, err := backend.NewDefaultRegistry(spec.Backends,
		backend.WithCallTimeout(spec.Execution.CallTimeout()))
	if err != nil {
		return fmt.Errorf("failed to build backend registry: %w", err)
	}
	defer registry.Close() //nolint:errcheck

	store := openProbeStore(!probeNoCache, absCacheRoot)
	defer store.Close() //nolint:errcheck

	allow := probeAllowHosted || spec.AllowHosted
	prober := probe.NewProber(store, registry,
		probe.WithAllowHosted(allow),
		probe.WithTTL(spec.Probe.TTL()),
		probe.WithMaxAttempts(spec.Probe.Attempts()),
		probe.WithBackoff(spec.Probe.Backoff()),
	)

	type probeRow struct {
		result models.ProbeResult
		cached bool
	}
	rows := make([]probeRow, 0, len(candidates))

	sp := spinner.New(os.Stderr, "Probing...")
	sp.Start()
	for _, desc := range candidates {
		sp.UpdateMessage(fmt.Sprintf("Probing %s...", desc.ID))
		cached := hasFreshResult(ctx, store, desc.ID)
		rows = append(rows, probeRow{result: prober.Probe(ctx, desc), cached: cached})
	}
	sp.Stop()

	fmt.Printf("  %s %s %s\n",
		padRight("Model", 30),
		padRight("Status", 16),
		"Detail")
	usable := 0
	for _, row := range rows {
		res := row.result
		icon := "✗"
		status := string(res.ErrorKind)
		if res.Usable {
			icon = "✓"
			status = "usable"
			usable++
		}
		if row.cached {
			status += " [cached]"
		}
		fmt.Printf("%s %s %s %s\n",
			icon,
			padRight(truncateName(res.ModelID, 28), 30),
			padRight(status, 16),
			res.Detail)
	}
	fmt.Printf("\n%d/%d model(s) usable\n", usable, len(rows))

	return nil
}

// probeCandidates resolves the descriptor list to probe: the named models,
// or every declared model when no IDs were given. Unknown IDs get a
// descriptor inferred from the backend prefix.
func probeCandidates(spec *config.EvalSpec, ids []string) ([]models.ModelDescriptor, error) {
	if len(ids) == 0 {
		return spec.Models, nil
	}
	candidates := make([]models.ModelDescriptor, 0, len(ids))
	for _, id := range ids {
		desc, ok := spec.ModelByID(id)
		if !ok {
			desc = models.ModelDescriptor{ID: id, BackendKind: kindForID(id)}
			if err := desc.Validate(); err != nil {
				return nil, err
			}
		}
		candidates = append(candidates, desc)
	}
	return candidates, nil
}

// kindForID infers a backend kind from a model ID's prefix, for probing
// models the suite does not declare.
func kindForID(id string) models.BackendKind {
	switch {
	case strings.HasPrefix(id, backend.PrefixOpenAI+":"),
		strings.HasPrefix(id, backend.PrefixAnthropic+":"),
		strings.HasPrefix(id, backend.PrefixCopilot+":"):
		return models.BackendHosted
	case strings.HasPrefix(id, backend.PrefixVLLM+":"):
		return models.BackendSelfHosted
	case strings.HasPrefix(id, backend.PrefixLocal+":"):
		return models.BackendOnDevice
	default:
		return models.BackendLocal
	}
}

// hasFreshResult reports whether the store already held a fresh result
// before this probe ran.
func hasFreshResult(ctx context.Context, store probe.Store, modelID string) bool {
	res, found, err := store.Get(ctx, modelID)
	return err == nil && found && res.Fresh(time.Now())
}

func clearProbeCache(ctx context.Context, cacheRoot string) error {
	dir := filepath.Join(cacheRoot, "probe")
	store, err := probe.NewBadgerStore(probe.DefaultBadgerConfig(dir))
	if err != nil {
		return fmt.Errorf("opening probe cache: %w", err)
	}
	defer store.Close() //nolint:errcheck

	n, err := store.Clear(ctx)
	if err != nil {
		return fmt.Errorf("clearing probe cache: %w", err)
	}
	fmt.Printf("Cleared %d cached probe result(s): %s\n", n, dir)
	return nil
}

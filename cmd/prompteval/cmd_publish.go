package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/promptqa/prompteval/internal/models"
	"github.com/promptqa/prompteval/internal/projectconfig"
	"github.com/promptqa/prompteval/internal/publish"
	"github.com/promptqa/prompteval/internal/reporting"
	"github.com/spf13/cobra"
)

var (
	publishAccount   string
	publishContainer string
	publishPrefix    string
)

func newPublishCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "publish <results.json>",
		Short: "Upload a batch result to blob storage",
		Long: `Upload a batch result file to Azure Blob Storage as a compressed bundle.

The result is compressed with zstd and stored under a date-based prefix,
so batches accumulate into a browsable history:

  <prefix>/2026/08/24/<batch-id>.json.zst

Authentication uses the ambient Azure credential (environment, managed
identity, or az login). Account and container default from the publish
section of .prompteval.yaml.

Accepts plain result JSON files and already-compressed .json.zst bundles.`,
		Args: cobra.ExactArgs(1),
		RunE: publishCommandE,
	}

	cmd.Flags().StringVar(&publishAccount, "account", "", "Storage account name or service URL")
	cmd.Flags().StringVar(&publishContainer, "container", "", "Blob container (default: prompteval-results)")
	cmd.Flags().StringVar(&publishPrefix, "prefix", "", "Blob name prefix (default: batches/)")

	return cmd
}

func publishCommandE(_ *cobra.Command, args []string) error {
	resultPath := args[0]

	outcome, err := loadResultFile(resultPath)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", resultPath, err)
	}

	proj, err := projectconfig.Load(filepath.Dir(resultPath))
	if err != nil {
		return fmt.Errorf("failed to load operator defaults: %w", err)
	}

	opts := publish.Options{
		Account:   publishAccount,
		Container: publishContainer,
		Prefix:    publishPrefix,
	}
	if opts.Account == "" {
		opts.Account = proj.Publish.Account
	}
	if opts.Container == "" {
		opts.Container = proj.Publish.Container
	}
	if opts.Prefix == "" {
		opts.Prefix = proj.Publish.Prefix
	}

	publisher, err := publish.New(opts)
	if err != nil {
		return err
	}

	// Bundle into a temp file; Upload streams it.
	bundlePath := filepath.Join(os.TempDir(), outcome.BatchID+".json.zst")
	if err := reporting.WriteBundle(outcome, bundlePath); err != nil {
		return fmt.Errorf("failed to bundle results: %w", err)
	}
	defer os.Remove(bundlePath) //nolint:errcheck

	f, err := os.Open(bundlePath)
	if err != nil {
		return fmt.Errorf("failed to open bundle: %w", err)
	}
	defer f.Close() //nolint:errcheck

	name, err := publisher.Upload(context.Background(), outcome, f)
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}

	fmt.Printf("Published %s (%d artifact(s), tier %d)\n", outcome.BatchID,
		outcome.Digest.TotalArtifacts, outcome.Setup.Tier)
	fmt.Printf("  %s/%s\n", opts.Container, name)
	return nil
}

// loadResultFile reads a batch outcome from plain JSON or a zstd bundle,
// chosen by extension.
func loadResultFile(path string) (*models.BatchOutcome, error) {
	if strings.HasSuffix(path, ".zst") {
		return reporting.ReadBundle(path)
	}
	return reporting.LoadJSON(path)
}

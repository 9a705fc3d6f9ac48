package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/promptqa/prompteval/internal/scaffold"
	"github.com/promptqa/prompteval/internal/wizard"
	"github.com/spf13/cobra"
)

func newInitCommand() *cobra.Command {
	var interactive bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new evaluation suite",
		Long: `Initialize a new evaluation suite with a compliant layout.

Creates prompteval.yaml, a starter rubric, and a prompts/ directory with
example artifacts in both formats: a frontmatter markdown document and a
templated case file backed by a CSV data source.

Use --interactive to answer a short set of questions (suite name, tier,
threshold, candidate models, hosted opt-in) instead of taking the defaults.

Existing files are never overwritten; re-running init fills in only what is
missing. If no directory is specified, the current directory is used.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return initCommandE(cmd, args, interactive)
		},
	}

	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Run the guided suite setup")

	return cmd
}

func initCommandE(cmd *cobra.Command, args []string, interactive bool) error {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}

	// Create the root directory if it doesn't exist
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	opts := scaffold.SuiteOptions{Name: suiteNameFor(dir)}

	if interactive {
		answers, err := wizard.Run(cmd.InOrStdin(), cmd.OutOrStdout(), opts.Name)
		if err != nil {
			return fmt.Errorf("wizard failed: %w", err)
		}
		opts = answers.SuiteOptions()
	}

	created, err := scaffold.WriteSuite(dir, opts)
	if err != nil {
		return fmt.Errorf("failed to write suite: %w", err)
	}

	if len(created) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "Suite already initialized; nothing to do.") //nolint:errcheck
		return nil
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Initialized eval suite:") //nolint:errcheck
	for _, path := range created {
		fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", path) //nolint:errcheck
	}
	fmt.Fprintln(cmd.OutOrStdout(), "\nNext: prompteval probe, then prompteval run") //nolint:errcheck

	return nil
}

// suiteNameFor derives a default suite name from the target directory,
// falling back to the scaffold default when the name is unusable.
func suiteNameFor(dir string) string {
	name := filepath.Base(dir)
	if dir == "." {
		if wd, err := os.Getwd(); err == nil {
			name = filepath.Base(wd)
		}
	}
	if scaffold.ValidateName(name) != nil {
		return ""
	}
	return name
}

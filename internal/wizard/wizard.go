// Package wizard drives the guided setup flow for a new evaluation suite.
package wizard

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"github.com/promptqa/prompteval/internal/scaffold"
)

// Answers holds the fields collected during the interactive wizard.
type Answers struct {
	Name        string
	Tier        int
	Threshold   float64
	Models      []string
	AllowHosted bool
}

// knownPrefixes are the backend prefixes a model id may carry.
var knownPrefixes = []string{"ollama", "local", "vllm", "openai", "anthropic", "copilot", "mock"}

var tierOptions = []huh.Option[int]{
	huh.NewOption("0 - structural checks only, no model calls", 0),
	huh.NewOption("1 - one local model, single run", 1),
	huh.NewOption("2 - repeated local runs with stability checks", 2),
	huh.NewOption("3 - adds self-hosted backends", 3),
	huh.NewOption("4 - adds hosted backends (needs opt-in)", 4),
	huh.NewOption("5 - three runs per model across backends", 5),
	huh.NewOption("6 - admits premium-cost models", 6),
	huh.NewOption("7 - full matrix, five runs per model", 7),
}

// Run collects suite settings through an interactive huh form. If
// initialName is non-empty it pre-populates the name field.
func Run(in io.Reader, out io.Writer, initialName string) (*Answers, error) {
	var (
		name         = initialName
		tierChoice   int
		thresholdRaw = "70"
		modelsRaw    = "ollama:llama3.2"
		allowHosted  bool
	)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Suite name").
				Description("A kebab-case name for this evaluation suite").
				Placeholder("my-prompts").
				Value(&name).
				Validate(func(s string) error {
					return scaffold.ValidateName(strings.TrimSpace(s))
				}),
			huh.NewSelect[int]().
				Title("Evaluation tier").
				Description("Higher tiers spend more model calls for more confident scores").
				Options(tierOptions...).
				Value(&tierChoice),
			huh.NewInput().
				Title("Pass threshold").
				Description("Combined score (0-100) an artifact must reach to pass").
				Value(&thresholdRaw).
				Validate(validateThreshold),
			huh.NewInput().
				Title("Candidate models").
				Description("Comma-separated ids with backend prefixes").
				Placeholder("ollama:llama3.2, vllm:mistral-7b").
				Value(&modelsRaw).
				Validate(validateModelList),
			huh.NewConfirm().
				Title("Allow hosted backends?").
				Description("Hosted models additionally need credentials in the environment").
				Value(&allowHosted),
		),
	).
		WithInput(in).
		WithOutput(out)

	// Use accessible mode for non-TTY input (e.g., tests, piped input).
	if f, ok := in.(*os.File); !ok || !term.IsTerminal(int(f.Fd())) {
		form = form.WithAccessible(true)
	}

	if err := form.Run(); err != nil {
		return nil, fmt.Errorf("wizard failed: %w", err)
	}

	threshold, err := strconv.ParseFloat(strings.TrimSpace(thresholdRaw), 64)
	if err != nil {
		return nil, fmt.Errorf("threshold %q: %w", thresholdRaw, err)
	}

	return &Answers{
		Name:        strings.TrimSpace(name),
		Tier:        tierChoice,
		Threshold:   threshold,
		Models:      splitList(modelsRaw),
		AllowHosted: allowHosted,
	}, nil
}

// SuiteOptions converts the answers into scaffold options.
func (a *Answers) SuiteOptions() scaffold.SuiteOptions {
	return scaffold.SuiteOptions{
		Name:        a.Name,
		Tier:        a.Tier,
		Threshold:   a.Threshold,
		Models:      a.Models,
		AllowHosted: a.AllowHosted,
	}
}

func validateThreshold(s string) error {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return fmt.Errorf("threshold must be a number")
	}
	if v < 0 || v > 100 {
		return fmt.Errorf("threshold must be between 0 and 100")
	}
	return nil
}

func validateModelList(s string) error {
	ids := splitList(s)
	if len(ids) == 0 {
		return fmt.Errorf("at least one model id is required")
	}
	for _, id := range ids {
		if err := validateModelID(id); err != nil {
			return err
		}
	}
	return nil
}

func validateModelID(id string) error {
	prefix, rest, ok := strings.Cut(id, ":")
	if !ok || rest == "" {
		return fmt.Errorf("model %q must look like prefix:name (e.g. ollama:llama3.2)", id)
	}
	if !slices.Contains(knownPrefixes, prefix) {
		return fmt.Errorf("model %q: unknown backend prefix %q (known: %s)", id, prefix, strings.Join(knownPrefixes, ", "))
	}
	return nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	var result []string
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

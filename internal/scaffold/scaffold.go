// Package scaffold generates the starter files for a new evaluation suite:
// the prompteval.yaml spec, a rubric, and example prompt artifacts in both
// supported formats.
package scaffold

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ValidateName rejects empty project names and names with path-traversal
// characters.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("project name must not be empty")
	}
	cleaned := filepath.Clean(name)
	if cleaned == ".." || strings.Contains(cleaned, "/") || strings.Contains(cleaned, "\\") {
		return fmt.Errorf("project name %q contains invalid path characters", name)
	}
	return nil
}

// TitleCase converts a kebab-case name to Title Case.
func TitleCase(s string) string {
	words := strings.Split(s, "-")
	for i, w := range words {
		if len(w) > 0 {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// SuiteOptions configure the generated starter suite.
type SuiteOptions struct {
	Name        string
	Tier        int
	Threshold   float64
	Models      []string
	AllowHosted bool
}

func (o *SuiteOptions) applyDefaults() {
	if o.Name == "" {
		o.Name = "my-prompts"
	}
	if o.Threshold <= 0 {
		o.Threshold = 70
	}
	if len(o.Models) == 0 {
		o.Models = []string{"ollama:llama3.2"}
	}
}

// SpecYAML renders a starter prompteval.yaml.
func SpecYAML(opts SuiteOptions) string {
	opts.applyDefaults()

	var b strings.Builder
	fmt.Fprintf(&b, "name: %s\n", opts.Name)
	fmt.Fprintf(&b, "description: Evaluation suite for %s.\n", TitleCase(opts.Name))
	b.WriteString("\nroots:\n  - prompts\n")
	b.WriteString("\n# Tier 0 is structural checks only; higher tiers add model runs,\n")
	b.WriteString("# repeated-run stability and cross-model comparison.\n")
	fmt.Fprintf(&b, "tier: %d\n", opts.Tier)
	fmt.Fprintf(&b, "threshold: %g\n", opts.Threshold)
	b.WriteString("rubric: rubric.yaml\n")

	b.WriteString("\nmodels:\n")
	for _, id := range opts.Models {
		fmt.Fprintf(&b, "  - id: %s\n", id)
		fmt.Fprintf(&b, "    kind: %s\n", kindForPrefix(id))
		fmt.Fprintf(&b, "    cost: %s\n", costForPrefix(id))
	}
	if opts.AllowHosted {
		b.WriteString("\n# Hosted backends run only with this flag plus credentials in the\n")
		b.WriteString("# environment (for example OPENAI_API_KEY).\n")
		b.WriteString("allow_hosted: true\n")
	}
	return b.String()
}

// RubricYAML renders a starter rubric mirroring the built-in one, so a new
// suite starts from something editable rather than an invisible default.
func RubricYAML() string {
	return `version: starter-v1

criteria:
  - name: clarity
    weight: 0.25
    description: Instructions are unambiguous and the expected answer shape is stated.
  - name: completeness
    weight: 0.25
    description: All needed context is present, including constraints and edge cases.
  - name: specificity
    weight: 0.25
    description: Concrete requirements and examples rather than vague directives.
  - name: structure
    weight: 0.25
    description: Logical sectioning and formatting that keep the prompt maintainable.

methodology_weights:
  structural: 0.3
  judged: 0.5
  reproducibility: 0.2
`
}

// StarterArtifacts returns example prompt artifacts keyed by slash-separated
// path relative to the suite directory: one markdown document and one
// templated case set with a CSV dataset.
func StarterArtifacts(name string) map[string]string {
	return map[string]string{
		"prompts/code-explainer.md":        starterDocument(name),
		"prompts/support-reply.cases.yaml": starterCaseSet(),
		"prompts/data/support-tickets.csv": starterDataset(),
	}
}

// WriteSuite writes the starter suite into dir, creating it as needed, and
// returns the created file paths in a stable order. Existing files are not
// overwritten; they are skipped silently so init is safe to re-run.
func WriteSuite(dir string, opts SuiteOptions) ([]string, error) {
	opts.applyDefaults()
	if err := ValidateName(opts.Name); err != nil {
		return nil, err
	}

	files := map[string]string{
		"prompteval.yaml": SpecYAML(opts),
		"rubric.yaml":     RubricYAML(),
	}
	for rel, content := range StarterArtifacts(opts.Name) {
		files[rel] = content
	}

	rels := make([]string, 0, len(files))
	for rel := range files {
		rels = append(rels, rel)
	}
	sort.Strings(rels)

	var created []string
	for _, rel := range rels {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return created, fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
		}
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if err := os.WriteFile(path, []byte(files[rel]), 0o644); err != nil {
			return created, fmt.Errorf("writing %s: %w", path, err)
		}
		created = append(created, path)
	}
	return created, nil
}

func kindForPrefix(id string) string {
	switch {
	case strings.HasPrefix(id, "openai:"), strings.HasPrefix(id, "anthropic:"), strings.HasPrefix(id, "copilot:"):
		return "hosted"
	case strings.HasPrefix(id, "vllm:"):
		return "selfhosted"
	case strings.HasPrefix(id, "local:"):
		return "ondevice"
	default:
		return "local"
	}
}

func costForPrefix(id string) string {
	switch {
	case strings.HasPrefix(id, "openai:"), strings.HasPrefix(id, "anthropic:"), strings.HasPrefix(id, "copilot:"):
		return "metered"
	default:
		return "free"
	}
}

func starterDocument(name string) string {
	return fmt.Sprintf(`---
name: code-explainer
description: Explains a code snippet to a newcomer on the %s team.
version: "1.0"
---

# Code Explainer

## Instructions

Explain the provided code snippet to a developer who has never seen this
codebase. Cover what the code does, why it might be written this way, and
any pitfalls a maintainer should know about. Answer in at most three
paragraphs of plain prose.

## Constraints

- Do not restate the code line by line.
- Call out any error handling the code skips.
- If the snippet is incomplete, say what context is missing instead of guessing.

## Examples

Given:

`+"```python"+`
def retry(fn, attempts=3):
    for i in range(attempts):
        try:
            return fn()
        except IOError:
            continue
`+"```"+`

A good answer notes that the helper retries only IOError, silently swallows
the final failure, and returns None when every attempt fails.
`, TitleCase(name))
}

func starterCaseSet() string {
	return `cases:
  - name: refund-outside-window
    description: Customer asks for a refund after the return window closed.
    vars:
      product: ACME Plus
      tone: empathetic
    messages:
      - role: system
        content: >-
          You are a support agent for {{.Vars.product}}. Reply in an
          {{.Vars.tone}} tone, cite the relevant policy, and always offer
          one concrete next step.
      - role: user
        content: I bought this 60 days ago and it stopped working. I want my money back.

  - name: ticket-batch
    description: One reply per recorded support ticket.
    data: data/support-tickets.csv
    messages:
      - role: system
        content: >-
          You are a support agent for {{.Vars.product}}. The customer's
          issue category is {{.Vars.category}}.
      - role: user
        content: "{{.Vars.question}}"
`
}

func starterDataset() string {
	return `product,category,question
ACME Plus,billing,Why was I charged twice this month?
ACME Plus,shipping,My order says delivered but nothing arrived.
ACME Basic,account,How do I change the email on my account?
`
}

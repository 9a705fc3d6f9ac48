// Package scoring implements the three evaluation methodologies: structural
// analysis of the artifact itself, judge grading of rubric criteria through
// a model, and reproducibility measurement across repeated runs.
package scoring

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/promptqa/prompteval/internal/models"
)

const (
	// minDescriptionRunes is the shortest description that earns full
	// metadata credit.
	minDescriptionRunes = 20
	// minContentWords is the shortest body that earns full content credit.
	minContentWords = 10
)

// StructuralCheck is one weighted sub-check of the structural analysis.
type StructuralCheck struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
	Score  float64 `json:"score"`
	Detail string  `json:"detail,omitempty"`
}

// StructuralResult is the combined outcome of all structural sub-checks.
type StructuralResult struct {
	Score  float64           `json:"score"`
	Checks []StructuralCheck `json:"checks"`
}

// StructuralAnalyzer scores an artifact's own shape: metadata completeness,
// sectioning, variable documentation, examples, and non-empty content. It is
// a pure function of the artifact and never touches the network, so it runs
// for every artifact at every tier, including tier 0.
type StructuralAnalyzer struct{}

// placeholderPattern matches template placeholders left in prose, like
// {{topic}} or {{.Vars.language}}.
var placeholderPattern = regexp.MustCompile(`\{\{\s*\.?([A-Za-z_][A-Za-z0-9_.]*)\s*\}\}`)

// Analyze runs every sub-check and combines them by weight. Two calls on
// the same artifact always produce the same result.
func (StructuralAnalyzer) Analyze(art models.PromptArtifact) StructuralResult {
	body := artifactBody(art)
	doc := parseMarkdown(body)

	checks := []StructuralCheck{
		checkMetadata(art),
		checkSections(body, doc.headings),
		checkVariables(art, body),
		checkExamples(doc),
		checkContent(body),
	}

	var weighted, total float64
	for _, c := range checks {
		weighted += c.Weight * c.Score
		total += c.Weight
	}

	result := StructuralResult{Checks: checks}
	if total > 0 {
		result.Score = weighted / total
	}
	return result
}

// markdownShape is what the analyzer needs from the parsed document.
type markdownShape struct {
	headings     []string
	codeBlocks   int
	exampleHints bool
}

// parseMarkdown walks the goldmark AST once and collects headings and code
// blocks.
func parseMarkdown(body string) markdownShape {
	source := []byte(body)
	md := goldmark.New()
	reader := text.NewReader(source)
	doc := md.Parser().Parse(reader)

	var shape markdownShape
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := n.(type) {
		case *ast.Heading:
			title := headingText(v, source)
			shape.headings = append(shape.headings, title)
			if strings.Contains(strings.ToLower(title), "example") {
				shape.exampleHints = true
			}
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			shape.codeBlocks++
		}
		return ast.WalkContinue, nil
	})
	return shape
}

func headingText(h *ast.Heading, source []byte) string {
	var sb strings.Builder
	for c := h.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			sb.Write(t.Segment.Value(source))
		}
	}
	return sb.String()
}

// artifactBody returns the artifact content without YAML frontmatter, which
// would otherwise parse as markdown noise.
func artifactBody(art models.PromptArtifact) string {
	content := art.RawContent
	if !strings.HasPrefix(content, "---") {
		return content
	}
	rest := strings.TrimPrefix(content[3:], "\r\n")
	rest = strings.TrimPrefix(rest, "\n")
	if idx := strings.Index(rest, "\n---"); idx >= 0 {
		return rest[idx+4:]
	}
	return content
}

func checkMetadata(art models.PromptArtifact) StructuralCheck {
	check := StructuralCheck{Name: "metadata", Weight: 0.25}

	name := art.MetaString("name")
	desc := art.MetaString("description")

	var score float64
	var missing []string
	if name != "" {
		score += 40
	} else {
		missing = append(missing, "name")
	}
	switch {
	case len([]rune(strings.TrimSpace(desc))) >= minDescriptionRunes:
		score += 60
	case strings.TrimSpace(desc) != "":
		score += 30
		missing = append(missing, fmt.Sprintf("description shorter than %d characters", minDescriptionRunes))
	default:
		missing = append(missing, "description")
	}

	check.Score = score
	if len(missing) > 0 {
		check.Detail = "missing or weak: " + strings.Join(missing, ", ")
	}
	return check
}

// checkSections looks for declared structure: markdown headings, or the
// [role] markers a rendered conversation carries.
func checkSections(body string, headings []string) StructuralCheck {
	check := StructuralCheck{Name: "sections", Weight: 0.20}

	units := len(headings)
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if len(trimmed) > 2 && strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]") {
			units++
		}
	}

	switch {
	case units >= 2:
		check.Score = 100
	case units == 1:
		check.Score = 60
		check.Detail = "only one declared section"
	default:
		check.Detail = "no headings or message sections"
	}
	return check
}

// checkVariables verifies declared variables are used and used placeholders
// are documented. Artifacts without variables pass outright.
func checkVariables(art models.PromptArtifact, body string) StructuralCheck {
	check := StructuralCheck{Name: "variables", Weight: 0.20, Score: 100}

	var declared map[string]any
	if m, ok := art.Metadata["vars"].(map[string]any); ok {
		declared = m
	}
	placeholders := placeholderNames(body)

	if len(declared) == 0 && len(placeholders) == 0 {
		check.Detail = "no variables declared"
		return check
	}

	var problems []string
	total, passed := 0, 0

	// every declared variable should surface in the content
	for _, name := range sortedKeys(declared) {
		total++
		s, _ := declared[name].(string)
		if s != "" && strings.Contains(body, s) {
			passed++
			continue
		}
		if strings.Contains(body, name) {
			passed++
			continue
		}
		problems = append(problems, fmt.Sprintf("variable %q never referenced", name))
	}

	// every placeholder left in prose should be documented somewhere else
	stripped := placeholderPattern.ReplaceAllString(body, "")
	for _, name := range placeholders {
		total++
		if strings.Contains(stripped, name) || metadataMentions(art, name) {
			passed++
			continue
		}
		problems = append(problems, fmt.Sprintf("placeholder {{%s}} is undocumented", name))
	}

	if total > 0 {
		check.Score = float64(passed) / float64(total) * 100
	}
	if len(problems) > 0 {
		check.Detail = strings.Join(problems, "; ")
	}
	return check
}

// placeholderNames extracts the distinct final name segments of template
// placeholders in body, in order of first appearance.
func placeholderNames(body string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, m := range placeholderPattern.FindAllStringSubmatch(body, -1) {
		name := m[1]
		if idx := strings.LastIndex(name, "."); idx >= 0 {
			name = name[idx+1:]
		}
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func metadataMentions(art models.PromptArtifact, name string) bool {
	for key, value := range art.Metadata {
		if strings.EqualFold(key, name) {
			return true
		}
		if nested, ok := value.(map[string]any); ok {
			for nkey := range nested {
				if strings.EqualFold(nkey, name) {
					return true
				}
			}
		}
	}
	return false
}

func checkExamples(doc markdownShape) StructuralCheck {
	check := StructuralCheck{Name: "examples", Weight: 0.15}
	switch {
	case doc.codeBlocks > 0:
		check.Score = 100
	case doc.exampleHints:
		check.Score = 60
		check.Detail = "example section without example content"
	default:
		check.Detail = "no examples or code blocks"
	}
	return check
}

func checkContent(body string) StructuralCheck {
	check := StructuralCheck{Name: "content", Weight: 0.20}
	words := len(strings.Fields(body))
	switch {
	case words >= minContentWords:
		check.Score = 100
	case words > 0:
		check.Score = 40
		check.Detail = fmt.Sprintf("only %d words of content", words)
	default:
		check.Detail = "empty content"
	}
	return check
}

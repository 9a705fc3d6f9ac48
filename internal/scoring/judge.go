package scoring

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/promptqa/prompteval/internal/models"
)

// Extraction is the outcome of pulling a numeric grade out of a judge
// response. Failures are data, not errors: a response nothing can be read
// from yields Missing with a reason, and the caller excludes that criterion
// from the run.
type Extraction struct {
	Value   float64 `json:"value"`
	Missing bool    `json:"missing"`
	Reason  string  `json:"reason,omitempty"`
}

// Judge builds grading prompts from a rubric and extracts grades from the
// responses. It owns no transport; callers dispatch the prompt through the
// backend registry.
type Judge struct {
	rubric *models.RubricVersion
}

// NewJudge wraps a loaded rubric. The rubric's grade scale defaults are
// expected to be applied already.
func NewJudge(rubric *models.RubricVersion) *Judge {
	return &Judge{rubric: rubric}
}

// bandLabels describe the five grades of the default 1-5 scale, worst to
// best.
var bandLabels = []string{
	"fails this criterion entirely",
	"major gaps remain",
	"adequate with clear room to improve",
	"good with minor gaps",
	"exemplary, nothing to improve",
}

// SystemPrompt is the judge's system message.
const SystemPrompt = "You are a meticulous prompt-quality judge. " +
	"You grade prompt artifacts against one criterion at a time and respond only in the requested JSON format."

// Prompt renders the grading request for one criterion: the criterion
// definition, explicit grade bands, the artifact under evaluation, and a
// JSON-only output contract.
func (j *Judge) Prompt(art models.PromptArtifact, criterion models.Criterion) string {
	min, max := j.rubric.GradeMin, j.rubric.GradeMax

	var sb strings.Builder
	sb.WriteString("Evaluate the prompt artifact below against a single criterion. ")
	sb.WriteString("Think step by step about how well it meets the criterion, then assign one grade.\n\n")

	sb.WriteString("## Criterion: ")
	sb.WriteString(criterion.Name)
	sb.WriteString("\n")
	if criterion.Description != "" {
		sb.WriteString(criterion.Description)
		sb.WriteString("\n")
	}
	sb.WriteString("\n")

	fmt.Fprintf(&sb, "## Grade bands (%s-%s)\n", formatGrade(min), formatGrade(max))
	writeBands(&sb, min, max)
	sb.WriteString("\n")

	sb.WriteString("## Prompt artifact\n")
	if name := art.MetaString("name"); name != "" {
		fmt.Fprintf(&sb, "Name: %s\n", name)
	}
	sb.WriteString("```\n")
	sb.WriteString(strings.TrimRight(art.RawContent, "\n"))
	sb.WriteString("\n```\n\n")

	fmt.Fprintf(&sb,
		"Respond with JSON only, no other text: {\"reasoning\": \"<one short paragraph>\", \"grade\": <number between %s and %s>}\n",
		formatGrade(min), formatGrade(max))
	return sb.String()
}

// writeBands prints one line per integer grade. Scales other than the
// standard five-band one get anchors for the ends and midpoint.
func writeBands(sb *strings.Builder, min, max float64) {
	span := int(max-min) + 1
	if span == len(bandLabels) && min == float64(int(min)) {
		for i, label := range bandLabels {
			fmt.Fprintf(sb, "%s: %s\n", formatGrade(min+float64(i)), label)
		}
		return
	}
	fmt.Fprintf(sb, "%s: worst possible\n", formatGrade(min))
	fmt.Fprintf(sb, "%s: middling\n", formatGrade((min+max)/2))
	fmt.Fprintf(sb, "%s: best possible\n", formatGrade(max))
}

func formatGrade(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// gradeFieldPattern finds a "grade" field in a JSON-ish response without
// requiring the whole response to parse; judges often wrap the object in
// prose or markdown fences despite instructions.
var gradeFieldPattern = regexp.MustCompile(`"grade"\s*:\s*(-?\d+(?:\.\d+)?)`)

// numberPattern matches standalone numeric tokens for the fallback scan.
var numberPattern = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

// Extract pulls a grade from a judge response: structured "grade" field
// first, then the first numeric token that lies within the scale. Values
// from the structured field are accepted even outside the scale; the
// aggregator clamps before normalizing.
func (j *Judge) Extract(response string) Extraction {
	return ExtractGrade(response, j.rubric.GradeMin, j.rubric.GradeMax)
}

// ExtractGrade is the scale-parameterized extraction used by Judge.Extract.
func ExtractGrade(response string, min, max float64) Extraction {
	if strings.TrimSpace(response) == "" {
		return Extraction{Missing: true, Reason: "empty response"}
	}

	if m := gradeFieldPattern.FindStringSubmatch(response); m != nil {
		value, err := strconv.ParseFloat(m[1], 64)
		if err == nil {
			return Extraction{Value: value}
		}
	}

	for _, tok := range numberPattern.FindAllString(response, -1) {
		value, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			continue
		}
		if value >= min && value <= max {
			return Extraction{Value: value}
		}
	}

	return Extraction{Missing: true, Reason: fmt.Sprintf("no numeric grade within [%s, %s] found", formatGrade(min), formatGrade(max))}
}

package scoring

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/promptqa/prompteval/internal/models"
)

func mkDocumentArtifact(name, description, body string) models.PromptArtifact {
	raw := "---\nname: " + name + "\ndescription: " + description + "\n---\n" + body
	meta := map[string]any{}
	if name != "" {
		meta["name"] = name
	}
	if description != "" {
		meta["description"] = description
	}
	return models.PromptArtifact{
		ID:         "prompts/" + name,
		Path:       "prompts/" + name + ".md",
		Format:     models.FormatDocument,
		RawContent: raw,
		Metadata:   meta,
	}
}

const completeBody = `
# Code Review Prompt

Review the submitted change carefully and respond with findings.

## Instructions

Look at correctness, naming, and test coverage.

## Example

` + "```" + `
Input: a diff adding a nil check
Output: "The nil check duplicates the caller's guard."
` + "```" + `
`

func TestStructuralComplete(t *testing.T) {
	art := mkDocumentArtifact("code-review", "Grades a code change for correctness, naming, and coverage gaps.", completeBody)

	result := StructuralAnalyzer{}.Analyze(art)

	require.InDelta(t, 100.0, result.Score, 0.01)
	require.Len(t, result.Checks, 5)
	for _, c := range result.Checks {
		require.InDelta(t, 100.0, c.Score, 0.01, "check %s", c.Name)
	}
}

func TestStructuralDeterministic(t *testing.T) {
	art := mkDocumentArtifact("code-review", "short", "only a few words here")

	first := StructuralAnalyzer{}.Analyze(art)
	second := StructuralAnalyzer{}.Analyze(art)
	require.Equal(t, first, second)
}

func TestStructuralEmptyContent(t *testing.T) {
	art := models.PromptArtifact{ID: "x", RawContent: "", Metadata: map[string]any{}}

	result := StructuralAnalyzer{}.Analyze(art)

	require.Less(t, result.Score, 30.0)
	require.InDelta(t, 0.0, checkByName(t, result, "content").Score, 0.01)
	require.InDelta(t, 0.0, checkByName(t, result, "metadata").Score, 0.01)
}

func TestStructuralMetadata(t *testing.T) {
	tests := []struct {
		name        string
		metaName    string
		description string
		wantScore   float64
	}{
		{"complete", "reviewer", "A long enough description to clear the minimum length bar.", 100},
		{"short description", "reviewer", "too short", 70},
		{"no description", "reviewer", "", 40},
		{"no name", "", "A long enough description to clear the minimum length bar.", 60},
		{"nothing", "", "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			art := mkDocumentArtifact(tt.metaName, tt.description, completeBody)
			result := StructuralAnalyzer{}.Analyze(art)
			require.InDelta(t, tt.wantScore, checkByName(t, result, "metadata").Score, 0.01)
		})
	}
}

func TestStructuralSectionsFromMessages(t *testing.T) {
	// rendered conversations carry [role] markers instead of headings
	art := models.PromptArtifact{
		ID:     "cases/review",
		Format: models.FormatTemplatedCase,
		RawContent: "[system]\nYou review Go code.\n\n[user]\nReview this function for bugs please and thanks.\n",
		Metadata: map[string]any{"name": "review", "description": "Reviews Go code for bugs and style problems."},
	}

	result := StructuralAnalyzer{}.Analyze(art)
	require.InDelta(t, 100.0, checkByName(t, result, "sections").Score, 0.01)
}

func TestStructuralVariables(t *testing.T) {
	t.Run("declared and referenced", func(t *testing.T) {
		art := models.PromptArtifact{
			ID:         "cases/translate",
			RawContent: "[user]\nTranslate the following text into French: bonjour material.\n",
			Metadata: map[string]any{
				"vars": map[string]any{"language": "French"},
			},
		}
		result := StructuralAnalyzer{}.Analyze(art)
		require.InDelta(t, 100.0, checkByName(t, result, "variables").Score, 0.01)
	})

	t.Run("declared but never referenced", func(t *testing.T) {
		art := models.PromptArtifact{
			ID:         "cases/translate",
			RawContent: "[user]\nTranslate the following text please.\n",
			Metadata: map[string]any{
				"vars": map[string]any{"tone": "formal"},
			},
		}
		result := StructuralAnalyzer{}.Analyze(art)
		check := checkByName(t, result, "variables")
		require.InDelta(t, 0.0, check.Score, 0.01)
		require.Contains(t, check.Detail, "tone")
	})

	t.Run("undocumented placeholder", func(t *testing.T) {
		art := mkDocumentArtifact("t", "A description that is comfortably long enough here.",
			"Summarize {{topic}} in two sentences.")
		result := StructuralAnalyzer{}.Analyze(art)
		check := checkByName(t, result, "variables")
		require.InDelta(t, 0.0, check.Score, 0.01)
		require.Contains(t, check.Detail, "topic")
	})

	t.Run("documented placeholder", func(t *testing.T) {
		body := "Summarize {{topic}} in two sentences.\n\n## Variables\n\n- topic: the subject to summarize\n"
		art := mkDocumentArtifact("t", "A description that is comfortably long enough here.", body)
		result := StructuralAnalyzer{}.Analyze(art)
		require.InDelta(t, 100.0, checkByName(t, result, "variables").Score, 0.01)
	})

	t.Run("no variables at all", func(t *testing.T) {
		art := mkDocumentArtifact("t", "A description that is comfortably long enough here.", "plain content with no placeholders")
		result := StructuralAnalyzer{}.Analyze(art)
		require.InDelta(t, 100.0, checkByName(t, result, "variables").Score, 0.01)
	})
}

func TestStructuralExamples(t *testing.T) {
	t.Run("code block", func(t *testing.T) {
		art := mkDocumentArtifact("t", "desc", "# T\n\n```\nsample\n```\n")
		result := StructuralAnalyzer{}.Analyze(art)
		require.InDelta(t, 100.0, checkByName(t, result, "examples").Score, 0.01)
	})

	t.Run("example heading only", func(t *testing.T) {
		art := mkDocumentArtifact("t", "desc", "# T\n\n## Examples\n\nnone provided yet\n")
		result := StructuralAnalyzer{}.Analyze(art)
		require.InDelta(t, 60.0, checkByName(t, result, "examples").Score, 0.01)
	})

	t.Run("absent", func(t *testing.T) {
		art := mkDocumentArtifact("t", "desc", "# T\n\njust prose\n")
		result := StructuralAnalyzer{}.Analyze(art)
		require.InDelta(t, 0.0, checkByName(t, result, "examples").Score, 0.01)
	})
}

func checkByName(t *testing.T, result StructuralResult, name string) StructuralCheck {
	t.Helper()
	for _, c := range result.Checks {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("no check named %q", name)
	return StructuralCheck{}
}

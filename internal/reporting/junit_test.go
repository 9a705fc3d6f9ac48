package reporting

import (
	"encoding/xml"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptqa/prompteval/internal/models"
)

func scorePtr(v float64) *float64 { return &v }

func newTestOutcome() *models.BatchOutcome {
	outcome := &models.BatchOutcome{
		BatchID:   "batch-1",
		Timestamp: time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC),
		Setup: models.BatchSetup{
			Tier:          2,
			Roots:         []string{"prompts"},
			Threshold:     70,
			RubricVersion: "2024.1",
			Concurrency:   4,
		},
		Results: []models.PromptResult{
			{
				ArtifactID:   "prompts/summarize",
				ArtifactPath: "prompts/summarize.md",
				Tier:         2,
				State:        models.StateAggregated,
				Methodologies: models.MethodologyScores{
					Structural:      scorePtr(92),
					Judged:          scorePtr(81),
					Reproducibility: scorePtr(88),
				},
				CombinedScore: 85.1,
				IsStable:      true,
				Passed:        true,
				ThresholdUsed: 70,
				RubricVersion: "2024.1",
				Coverage:      []string{"structural", "judged", "reproducibility"},
				RunsPlanned:   2,
				RunsCompleted: 2,
				DurationMs:    1200,
			},
			{
				ArtifactID:   "prompts/vague",
				ArtifactPath: "prompts/vague.md",
				Tier:         2,
				State:        models.StateAggregated,
				Methodologies: models.MethodologyScores{
					Structural: scorePtr(55),
					Judged:     scorePtr(38),
				},
				Dimensions: []models.DimensionScore{
					{Criterion: "clarity", Weight: 0.5, NormalizedValue: 25, MinValue: 1, MaxValue: 5, RawValue: 2},
					{Criterion: "structure", Missing: true, MissingReason: "no numeric grade found"},
				},
				CombinedScore: 44.5,
				IsStable:      true,
				Passed:        false,
				ThresholdUsed: 70,
				RubricVersion: "2024.1",
				Coverage:      []string{"structural", "judged"},
				RunsPlanned:   2,
				RunsCompleted: 2,
				DurationMs:    1500,
			},
			{
				ArtifactID:   "prompts/offline",
				ArtifactPath: "prompts/offline.md",
				Tier:         2,
				State:        models.StateAggregated,
				Methodologies: models.MethodologyScores{
					Structural: scorePtr(78),
				},
				CombinedScore: 78,
				IsStable:      true,
				Passed:        true,
				ThresholdUsed: 70,
				RubricVersion: "2024.1",
				Coverage:      []string{"structural"},
				TierSkipped:   true,
				DurationMs:    40,
			},
			{
				ArtifactID:   "prompts/broken",
				ArtifactPath: "prompts/broken.md",
				Tier:         2,
				State:        models.StateErrored,
				ThresholdUsed: 70,
				RubricVersion: "2024.1",
				ErrorMsg:      "aggregating prompts/broken: no methodology produced a score",
				DurationMs:    10,
			},
		},
	}
	outcome.ComputeDigest()
	return outcome
}

func TestConvertToJUnit(t *testing.T) {
	suites := ConvertToJUnit(newTestOutcome())

	require.Len(t, suites.TestSuites, 1)
	suite := suites.TestSuites[0]

	assert.Equal(t, 4, suite.Tests)
	assert.Equal(t, 1, suite.Failures)
	assert.Equal(t, 1, suite.Errors)
	assert.Equal(t, 1, suite.Skipped)
	require.Len(t, suite.TestCases, 4)

	byName := make(map[string]JUnitTestCase, len(suite.TestCases))
	for _, tc := range suite.TestCases {
		byName[tc.Name] = tc
	}

	passed := byName["prompts/summarize"]
	assert.Nil(t, passed.Failure)
	assert.Nil(t, passed.Error)
	assert.Nil(t, passed.Skipped)
	assert.Equal(t, "tier-2", passed.Classname)

	failed := byName["prompts/vague"]
	require.NotNil(t, failed.Failure)
	assert.Contains(t, failed.Failure.Message, "score=44.5")
	assert.Contains(t, failed.Failure.Body, "clarity")
	assert.Contains(t, failed.Failure.Body, "structure")

	skipped := byName["prompts/offline"]
	require.NotNil(t, skipped.Skipped)
	assert.Contains(t, skipped.Skipped.Message, "structural")
	assert.Nil(t, skipped.Failure, "structural-only pass is not a failure")

	errored := byName["prompts/broken"]
	require.NotNil(t, errored.Error)
	assert.Equal(t, "AggregationError", errored.Error.Type)
}

func TestConvertToJUnitProperties(t *testing.T) {
	suites := ConvertToJUnit(newTestOutcome())
	props := make(map[string]string)
	for _, p := range suites.TestSuites[0].Properties {
		props[p.Name] = p.Value
	}
	assert.Equal(t, "2", props["tier"])
	assert.Equal(t, "2024.1", props["rubric_version"])
	assert.Equal(t, "70.0", props["threshold"])
}

func TestWriteJUnitXML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.xml")
	require.NoError(t, WriteJUnitXML(newTestOutcome(), path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(string(data), xml.Header))

	var parsed JUnitTestSuites
	require.NoError(t, xml.Unmarshal(data, &parsed))
	assert.Equal(t, 4, parsed.Tests)
	assert.Equal(t, 1, parsed.Failures)
}

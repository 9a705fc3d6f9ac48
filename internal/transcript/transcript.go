// Package transcript writes per-artifact evaluation transcripts: every
// judge run with its raw response and extracted grades, alongside the final
// result. Transcripts are the audit trail for judged scores.
package transcript

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/promptqa/prompteval/internal/models"
)

// sanitize replaces characters that are unsafe in filenames.
var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

func sanitizeName(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.ReplaceAll(s, " ", "-")
	s = unsafeChars.ReplaceAllString(s, "")
	if s == "" {
		s = "unnamed"
	}
	return s
}

// Filename returns the transcript filename for an artifact.
func Filename(artifactID string, ts time.Time) string {
	return fmt.Sprintf("%s-%s.json", sanitizeName(artifactID), ts.Format("20060102-150405"))
}

// RunRecord is one judge run as it appears in a transcript.
type RunRecord struct {
	ModelID    string                  `json:"model_id"`
	RunIndex   int                     `json:"run_index"`
	DurationMs int64                   `json:"duration_ms"`
	Response   string                  `json:"response,omitempty"`
	ErrorMsg   string                  `json:"error_msg,omitempty"`
	Grades     []models.CriterionGrade `json:"grades,omitempty"`
}

// Transcript is the full evaluation record for one artifact.
type Transcript struct {
	ArtifactID    string                   `json:"artifact_id"`
	ArtifactPath  string                   `json:"artifact_path"`
	Tier          int                      `json:"tier"`
	State         models.ArtifactState     `json:"state"`
	StartedAt     time.Time                `json:"started_at"`
	CompletedAt   time.Time                `json:"completed_at"`
	DurationMs    int64                    `json:"duration_ms"`
	CombinedScore float64                  `json:"combined_score"`
	Methodologies models.MethodologyScores `json:"methodology_scores"`
	Passed        bool                     `json:"passed"`
	ErrorMsg      string                   `json:"error_msg,omitempty"`
	Runs          []RunRecord              `json:"runs,omitempty"`
}

// Build constructs a Transcript from an artifact's result and runs.
func Build(art models.PromptArtifact, result models.PromptResult, runs []models.EvaluationRun, startTime time.Time) *Transcript {
	records := make([]RunRecord, 0, len(runs))
	for _, run := range runs {
		records = append(records, RunRecord{
			ModelID:    run.ModelID,
			RunIndex:   run.RunIndex,
			DurationMs: run.DurationMs,
			Response:   run.RawResponse,
			ErrorMsg:   run.ErrorMsg,
			Grades:     run.Grades,
		})
	}

	return &Transcript{
		ArtifactID:    art.ID,
		ArtifactPath:  art.Path,
		Tier:          result.Tier,
		State:         result.State,
		StartedAt:     startTime,
		CompletedAt:   startTime.Add(time.Duration(result.DurationMs) * time.Millisecond),
		DurationMs:    result.DurationMs,
		CombinedScore: result.CombinedScore,
		Methodologies: result.Methodologies,
		Passed:        result.Passed,
		ErrorMsg:      result.ErrorMsg,
		Runs:          records,
	}
}

// Write serializes a Transcript and writes it to dir.
func Write(dir string, t *Transcript) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create transcript dir: %w", err)
	}

	name := Filename(t.ArtifactID, t.StartedAt)
	path := filepath.Join(dir, name)

	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal transcript: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write transcript: %w", err)
	}

	return path, nil
}

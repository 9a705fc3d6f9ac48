package orchestration

import (
	"fmt"
	"path/filepath"

	"github.com/promptqa/prompteval/internal/models"
)

// FilterArtifacts returns the subset of artifacts whose ID or filename
// matches at least one of the given glob patterns. An empty patterns slice
// returns all artifacts unchanged.
func FilterArtifacts(artifacts []models.PromptArtifact, patterns []string) ([]models.PromptArtifact, error) {
	if len(patterns) == 0 {
		return artifacts, nil
	}

	var matched []models.PromptArtifact
	for _, art := range artifacts {
		ok, err := matchesAny(art, patterns)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, art)
		}
	}
	return matched, nil
}

// matchesAny reports whether an artifact's ID or filename matches any pattern.
func matchesAny(art models.PromptArtifact, patterns []string) (bool, error) {
	for _, p := range patterns {
		idMatch, err := filepath.Match(p, art.ID)
		if err != nil {
			return false, fmt.Errorf("invalid artifact filter pattern %q: %w", p, err)
		}
		if idMatch {
			return true, nil
		}
		baseMatch, err := filepath.Match(p, filepath.Base(art.Path))
		if err != nil {
			return false, fmt.Errorf("invalid artifact filter pattern %q: %w", p, err)
		}
		if baseMatch {
			return true, nil
		}
	}
	return false, nil
}

// Package reporting renders a finished BatchOutcome into its output
// formats: JSON for machine consumers, JUnit XML for CI systems, markdown
// for humans, and a zstd-compressed bundle for archival or publishing.
package reporting

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/promptqa/prompteval/internal/models"
)

// WriteJSON writes the full outcome as indented JSON.
func WriteJSON(outcome *models.BatchOutcome, path string) error {
	data, err := json.MarshalIndent(outcome, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling outcome: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing results: %w", err)
	}
	return nil
}

// LoadJSON reads an outcome previously written by WriteJSON. Used by the
// compare and publish commands.
func LoadJSON(path string) (*models.BatchOutcome, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading results: %w", err)
	}
	var outcome models.BatchOutcome
	if err := json.Unmarshal(data, &outcome); err != nil {
		return nil, fmt.Errorf("parsing results %s: %w", path, err)
	}
	return &outcome, nil
}

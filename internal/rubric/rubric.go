// Package rubric loads and validates the externally supplied scoring rubric.
// The engine treats a loaded RubricVersion as opaque configuration; changing
// criteria, weights or calibration is a data change here, never a code
// change elsewhere.
package rubric

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/promptqa/prompteval/internal/models"
)

// Load reads, schema-validates and semantically validates a rubric file.
// An unreadable or invalid rubric is a configuration error detected before
// any evaluation begins.
func Load(path string) (*models.RubricVersion, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rubric: %w", err)
	}
	r, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("rubric %s: %w", path, err)
	}
	return r, nil
}

// Parse validates raw rubric YAML and decodes it. Schema violations are
// collected into one error so the operator sees every problem at once.
func Parse(data []byte) (*models.RubricVersion, error) {
	if errs := ValidateBytes(data); len(errs) > 0 {
		return nil, fmt.Errorf("schema validation failed:\n  %s", strings.Join(errs, "\n  "))
	}

	var r models.RubricVersion
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parsing rubric: %w", err)
	}

	r.ApplyDefaults()
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

// Default returns the built-in rubric used when no rubric file is
// configured: four equally weighted criteria on the 1-5 judge scale, no
// calibration, and a judged-leaning methodology split.
func Default() *models.RubricVersion {
	r := &models.RubricVersion{
		Version: "builtin-v1",
		Criteria: []models.Criterion{
			{
				Name:        "clarity",
				Weight:      0.25,
				Description: "Instructions are unambiguous; a reader knows exactly what is being asked and in what form to answer.",
			},
			{
				Name:        "completeness",
				Weight:      0.25,
				Description: "All context the task needs is present: inputs, constraints, edge cases, and the expected output shape.",
			},
			{
				Name:        "specificity",
				Weight:      0.25,
				Description: "Concrete requirements and examples rather than vague directives; measurable success conditions where applicable.",
			},
			{
				Name:        "structure",
				Weight:      0.25,
				Description: "Logical organization: sections, ordering, and formatting that make the prompt easy to follow and maintain.",
			},
		},
		MethodologyWeights: models.MethodologyWeights{
			Structural:      0.3,
			Judged:          0.5,
			Reproducibility: 0.2,
		},
	}
	r.ApplyDefaults()
	return r
}

package main

import (
	"fmt"
	"path/filepath"

	"github.com/promptqa/prompteval/internal/config"
	"github.com/promptqa/prompteval/internal/workspace"
)

// loadSpecFrom loads the suite spec from the given path, or by workspace
// detection when the path is empty. Returns the spec and its absolute
// directory, which relative spec paths (roots, rubric) resolve against.
func loadSpecFrom(path string) (*config.EvalSpec, string, error) {
	if path == "" {
		ws, err := workspace.Detect(".")
		if err != nil {
			return nil, "", fmt.Errorf("no suite configuration found (run `prompteval init` or pass --config): %w", err)
		}
		path = ws.SpecPath
	}
	spec, err := config.LoadEvalSpec(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load config: %w", err)
	}
	return spec, specDirOf(path), nil
}

// specDirOf returns the absolute directory containing the spec file.
func specDirOf(specPath string) string {
	dir := filepath.Dir(specPath)
	if abs, err := filepath.Abs(dir); err == nil {
		return abs
	}
	return dir
}

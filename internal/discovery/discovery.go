// Package discovery walks configured corpus roots and produces the uniform
// artifact list the evaluation engine consumes.
package discovery

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/promptqa/prompteval/internal/artifact"
	"github.com/promptqa/prompteval/internal/models"
)

// SkippedFile records a file the walk saw but did not evaluate, with the
// reason. Parse failures land here instead of aborting the walk.
type SkippedFile struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// Report is the full outcome of a discovery pass.
type Report struct {
	Artifacts []models.PromptArtifact `json:"artifacts"`
	Skipped   []SkippedFile           `json:"skipped,omitempty"`
}

// Options tune a discovery pass. Include/Exclude are filepath.Match globs
// applied to the path relative to the walked root.
type Options struct {
	Include []string
	Exclude []string
}

// names excluded regardless of pattern config (checked case-insensitively,
// without extension).
var excludedNames = map[string]bool{
	"readme":  true,
	"index":   true,
	"license": true,
}

// Discover walks roots and recognizes both artifact formats: frontmatter
// markdown documents and templated case files. Both normalize to the same
// PromptArtifact shape; downstream consumers cannot tell which format a
// given artifact came from. The returned list is ordered by artifact ID.
func Discover(roots []string, opts Options) (*Report, error) {
	if len(roots) == 0 {
		return nil, fmt.Errorf("discovery: at least one root is required")
	}

	report := &Report{}

	for _, root := range roots {
		absRoot, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("discovery: resolving root %s: %w", root, err)
		}
		if _, err := os.Stat(absRoot); err != nil {
			return nil, fmt.Errorf("discovery: root path: %w", err)
		}

		err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil // skip inaccessible entries
			}

			if d.IsDir() {
				if strings.HasPrefix(d.Name(), ".") && path != absRoot {
					return fs.SkipDir
				}
				switch strings.ToLower(d.Name()) {
				case "node_modules", "vendor", "archive", "archived":
					return fs.SkipDir
				}
				return nil
			}

			rel, relErr := filepath.Rel(absRoot, path)
			if relErr != nil {
				rel = path
			}
			rel = filepath.ToSlash(rel)

			if !matchesPatterns(rel, opts) {
				return nil
			}

			switch {
			case isCaseFile(path):
				collectCaseFile(report, path, rel)
			case strings.EqualFold(filepath.Ext(path), ".md"):
				if excludedName(path) {
					return nil
				}
				collectDocument(report, path, rel)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("discovery: walking %s: %w", absRoot, err)
		}
	}

	sort.Slice(report.Artifacts, func(i, j int) bool {
		return report.Artifacts[i].ID < report.Artifacts[j].ID
	})
	return report, nil
}

func collectDocument(report *Report, path, rel string) {
	data, err := os.ReadFile(path)
	if err != nil {
		report.Skipped = append(report.Skipped, SkippedFile{Path: path, Reason: fmt.Sprintf("read: %v", err)})
		return
	}

	doc, err := artifact.ParseDocument(path, string(data))
	if err != nil {
		report.Skipped = append(report.Skipped, SkippedFile{Path: path, Reason: err.Error()})
		return
	}

	id := strings.TrimSuffix(rel, filepath.Ext(rel))
	report.Artifacts = append(report.Artifacts, doc.ToArtifact(id))
}

func collectCaseFile(report *Report, path, rel string) {
	data, err := os.ReadFile(path)
	if err != nil {
		report.Skipped = append(report.Skipped, SkippedFile{Path: path, Reason: fmt.Sprintf("read: %v", err)})
		return
	}

	cf, err := artifact.ParseCaseFile(path, data)
	if err != nil {
		report.Skipped = append(report.Skipped, SkippedFile{Path: path, Reason: err.Error()})
		return
	}

	baseID := strings.TrimSuffix(strings.TrimSuffix(rel, ".yaml"), ".cases")
	baseID = strings.TrimSuffix(baseID, ".case")
	artifacts, err := cf.Expand(baseID)
	if err != nil {
		// Unresolved placeholders and bad data files surface here, at
		// discovery time, never during scoring.
		report.Skipped = append(report.Skipped, SkippedFile{Path: path, Reason: err.Error()})
		return
	}
	report.Artifacts = append(report.Artifacts, artifacts...)
}

func isCaseFile(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".cases.yaml") || strings.HasSuffix(lower, ".case.yaml") ||
		strings.HasSuffix(lower, ".cases.yml") || strings.HasSuffix(lower, ".case.yml")
}

// excludedName reports whether a file is index/readme-like material rather
// than a prompt definition.
func excludedName(path string) bool {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return excludedNames[strings.ToLower(stem)]
}

func matchesPatterns(rel string, opts Options) bool {
	for _, pattern := range opts.Exclude {
		if ok, _ := filepath.Match(pattern, rel); ok {
			return false
		}
	}
	if len(opts.Include) == 0 {
		return true
	}
	for _, pattern := range opts.Include {
		if ok, _ := filepath.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

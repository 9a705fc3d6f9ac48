package discovery

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/promptqa/prompteval/internal/models"
)

const docContent = `---
name: sample
description: A sample prompt document for tests.
---

# Sample

Body text.
`

const caseContent = `cases:
  - name: greet
    vars:
      who: world
    messages:
      - content: "Say hello to {{.Vars.who}}."
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDiscoverBothFormats(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "prompts/sample.md", docContent)
	writeFile(t, root, "prompts/greetings.cases.yaml", caseContent)

	report, err := Discover([]string{root}, Options{})
	require.NoError(t, err)
	require.Len(t, report.Artifacts, 2)

	// Ordered by ID.
	require.Equal(t, "prompts/greetings/greet", report.Artifacts[0].ID)
	require.Equal(t, models.FormatTemplatedCase, report.Artifacts[0].Format)
	require.Contains(t, report.Artifacts[0].RawContent, "Say hello to world.")

	require.Equal(t, "prompts/sample", report.Artifacts[1].ID)
	require.Equal(t, models.FormatDocument, report.Artifacts[1].Format)
}

func TestDiscoverExcludesIndexReadmeArchive(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "README.md", docContent)
	writeFile(t, root, "index.md", docContent)
	writeFile(t, root, "archive/old.md", docContent)
	writeFile(t, root, "archived/older.md", docContent)
	writeFile(t, root, "keep.md", docContent)

	report, err := Discover([]string{root}, Options{})
	require.NoError(t, err)
	require.Len(t, report.Artifacts, 1)
	require.Equal(t, "keep", report.Artifacts[0].ID)
}

func TestDiscoverSkipsHiddenAndVendor(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".hidden/secret.md", docContent)
	writeFile(t, root, "node_modules/pkg/readme2.md", docContent)
	writeFile(t, root, "vendor/dep/doc.md", docContent)
	writeFile(t, root, "visible.md", docContent)

	report, err := Discover([]string{root}, Options{})
	require.NoError(t, err)
	require.Len(t, report.Artifacts, 1)
	require.Equal(t, "visible", report.Artifacts[0].ID)
}

func TestDiscoverCollectsParseFailuresAsSkipped(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "no-frontmatter.md", "# heading only\n")
	writeFile(t, root, "broken.cases.yaml", "cases:\n  - name: bad\n    messages:\n      - content: \"{{.Vars.missing}}\"\n")
	writeFile(t, root, "good.md", docContent)

	report, err := Discover([]string{root}, Options{})
	require.NoError(t, err)
	require.Len(t, report.Artifacts, 1)
	require.Len(t, report.Skipped, 2)
}

func TestDiscoverIncludeExcludeGlobs(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.md", docContent)
	writeFile(t, root, "b.md", docContent)

	report, err := Discover([]string{root}, Options{Exclude: []string{"b.md"}})
	require.NoError(t, err)
	require.Len(t, report.Artifacts, 1)
	require.Equal(t, "a", report.Artifacts[0].ID)

	report, err = Discover([]string{root}, Options{Include: []string{"b.md"}})
	require.NoError(t, err)
	require.Len(t, report.Artifacts, 1)
	require.Equal(t, "b", report.Artifacts[0].ID)
}

func TestDiscoverMissingRoot(t *testing.T) {
	_, err := Discover([]string{filepath.Join(t.TempDir(), "nope")}, Options{})
	require.Error(t, err)
}

func TestDiscoverNoRoots(t *testing.T) {
	_, err := Discover(nil, Options{})
	require.Error(t, err)
}

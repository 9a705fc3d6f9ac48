package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetRunGlobals zeroes the package-level flag vars so prior tests don't leak.
func resetRunGlobals() {
	configPath = ""
	tierFlag = -1
	modelOverrides = nil
	runsPerModel = 0
	thresholdFlag = -1
	rubricFlag = ""
	outputPath = ""
	format = ""
	ciMode = false
	allowHosted = false
	enableCache = false
	disableCache = false
	runCacheDir = ""
	concurrency = 0
	transcriptDir = ""
	artifactFilters = nil
	interpret = false
	verbose = false
}

// goodArtifact earns full structural credit: complete metadata, headings,
// an example block and enough body content.
const goodArtifact = `---
name: welcome-message
description: Greets a new user and points them at the getting started guide.
version: "1.0"
---

# Welcome Message

## Instructions

Write a short welcome for a brand new user. Mention the getting started
guide and keep the tone friendly but concise.

## Example

    Welcome aboard! Start with the guide at docs/getting-started.
`

// failingArtifact scores well below the default threshold: no name or
// description, no sections, barely any content.
const failingArtifact = `---
version: "0.1"
---
needs work
`

func writeSpec(t *testing.T, dir string, tier int) {
	t.Helper()
	spec := fmt.Sprintf("name: test-suite\nroots:\n  - prompts\ntier: %d\nthreshold: 70\n", tier)
	if tier > 0 {
		spec += "models:\n  - id: mock:judge\n    kind: local\n    cost: free\n"
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "prompteval.yaml"), []byte(spec), 0o644))
}

func writeArtifact(t *testing.T, dir, rel, content string) {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// writeTestSuite creates a minimal suite in a temp dir: a spec at the given
// tier plus one well-formed artifact. Returns the suite directory.
func writeTestSuite(t *testing.T, tier int) string {
	t.Helper()
	dir := t.TempDir()
	writeSpec(t, dir, tier)
	writeArtifact(t, dir, "prompts/welcome.md", goodArtifact)
	return dir
}

func runBatchOutcome(t *testing.T, outFile string) map[string]any {
	t.Helper()
	data, err := os.ReadFile(outFile)
	require.NoError(t, err)
	var outcome map[string]any
	require.NoError(t, json.Unmarshal(data, &outcome))
	return outcome
}

// ---------------------------------------------------------------------------
// Flag parsing
// ---------------------------------------------------------------------------

func TestRunCommand_FlagsParsed(t *testing.T) {
	cmd := newRunCommand()
	require.NoError(t, cmd.ParseFlags([]string{
		"--tier", "3",
		"--runs", "5",
		"--threshold", "85",
		"--ci",
		"--allow-hosted",
		"--no-cache",
	}))

	tierVal, err := cmd.Flags().GetInt("tier")
	require.NoError(t, err)
	assert.Equal(t, 3, tierVal)

	runsVal, err := cmd.Flags().GetInt("runs")
	require.NoError(t, err)
	assert.Equal(t, 5, runsVal)

	thresholdVal, err := cmd.Flags().GetFloat64("threshold")
	require.NoError(t, err)
	assert.Equal(t, 85.0, thresholdVal)

	for _, name := range []string{"ci", "allow-hosted", "no-cache"} {
		boolVal, err := cmd.Flags().GetBool(name)
		require.NoError(t, err)
		assert.True(t, boolVal, "flag %s should be set", name)
	}
}

func TestRunCommand_ShortFlags(t *testing.T) {
	tmpOut := filepath.Join(t.TempDir(), "out.json")

	cmd := newRunCommand()
	require.NoError(t, cmd.ParseFlags([]string{"-o", tmpOut, "-v"}))

	val, err := cmd.Flags().GetString("out")
	require.NoError(t, err)
	assert.Equal(t, tmpOut, val)

	boolVal, err := cmd.Flags().GetBool("verbose")
	require.NoError(t, err)
	assert.True(t, boolVal)
}

func TestRunCommand_ModelFlagRepeatable(t *testing.T) {
	cmd := newRunCommand()
	require.NoError(t, cmd.ParseFlags([]string{
		"--model", "ollama:llama3.2",
		"--model", "mock:judge",
	}))

	vals, err := cmd.Flags().GetStringArray("model")
	require.NoError(t, err)
	assert.Equal(t, []string{"ollama:llama3.2", "mock:judge"}, vals)
}

// ---------------------------------------------------------------------------
// Error handling
// ---------------------------------------------------------------------------

func TestRunCommand_UnknownFormat(t *testing.T) {
	resetRunGlobals()

	cmd := newRunCommand()
	cmd.SetArgs([]string{"--format", "yaml"})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output format")
}

func TestRunCommand_MissingConfigFile(t *testing.T) {
	resetRunGlobals()

	cmd := newRunCommand()
	cmd.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "nonexistent.yaml")})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config")
}

func TestRunCommand_NoWorkspace(t *testing.T) {
	resetRunGlobals()
	t.Chdir(t.TempDir())

	cmd := newRunCommand()
	cmd.SetArgs([]string{})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no suite configuration found")
}

func TestRunCommand_ArtifactIDArgRedirected(t *testing.T) {
	resetRunGlobals()
	dir := writeTestSuite(t, 0)
	t.Chdir(dir)

	cmd := newRunCommand()
	cmd.SetArgs([]string{"welcome"})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--artifact")
}

func TestRunCommand_UnknownModelFilter(t *testing.T) {
	resetRunGlobals()
	dir := writeTestSuite(t, 1)
	t.Chdir(dir)

	cmd := newRunCommand()
	cmd.SetArgs([]string{"--model", "mock:missing", "--no-cache"})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown model")
}

func TestRunCommand_InvalidSpecTier(t *testing.T) {
	resetRunGlobals()

	dir := t.TempDir()
	spec := "name: bad-suite\nroots:\n  - prompts\ntier: 12\n"
	specPath := filepath.Join(dir, "prompteval.yaml")
	require.NoError(t, os.WriteFile(specPath, []byte(spec), 0o644))

	cmd := newRunCommand()
	cmd.SetArgs([]string{"--config", specPath})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tier must be between")
}

// ---------------------------------------------------------------------------
// Structural tier — full offline run
// ---------------------------------------------------------------------------

func TestRunCommand_StructuralTierRun(t *testing.T) {
	resetRunGlobals()
	dir := writeTestSuite(t, 0)
	t.Chdir(dir)

	cmd := newRunCommand()
	cmd.SetArgs([]string{})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	require.NoError(t, cmd.Execute())

	// Without --out the batch report lands in the results directory.
	entries, err := os.ReadDir(filepath.Join(dir, "results"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ".json", filepath.Ext(entries[0].Name()))
}

func TestRunCommand_OutputJSON(t *testing.T) {
	resetRunGlobals()
	dir := writeTestSuite(t, 0)
	t.Chdir(dir)
	outFile := filepath.Join(t.TempDir(), "results.json")

	cmd := newRunCommand()
	cmd.SetArgs([]string{"--out", outFile})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	require.NoError(t, cmd.Execute())

	outcome := runBatchOutcome(t, outFile)
	assert.NotEmpty(t, outcome["batch_id"])

	summary := outcome["summary"].(map[string]any)
	assert.Equal(t, float64(1), summary["total_artifacts"])
	assert.Equal(t, float64(1), summary["passed"])
	assert.Equal(t, float64(0), summary["failed"])

	setup := outcome["setup"].(map[string]any)
	assert.Equal(t, float64(0), setup["tier"])
	assert.Equal(t, float64(70), setup["threshold"])

	results := outcome["results"].([]any)
	require.Len(t, results, 1)
	first := results[0].(map[string]any)
	assert.Equal(t, "welcome", first["artifact_id"])
	assert.Equal(t, true, first["passed"])
	assert.Equal(t, []any{"structural"}, first["coverage"])
}

func TestRunCommand_PositionalRootReplacesConfig(t *testing.T) {
	resetRunGlobals()
	dir := writeTestSuite(t, 0)
	writeArtifact(t, dir, "extra/rough.md", failingArtifact)
	t.Chdir(dir)
	outFile := filepath.Join(t.TempDir(), "results.json")

	cmd := newRunCommand()
	cmd.SetArgs([]string{filepath.Join(dir, "extra"), "--out", outFile})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	require.NoError(t, cmd.Execute())

	outcome := runBatchOutcome(t, outFile)
	results := outcome["results"].([]any)
	require.Len(t, results, 1)
	assert.Equal(t, "rough", results[0].(map[string]any)["artifact_id"])
}

func TestRunCommand_ArtifactFilterNoMatch(t *testing.T) {
	resetRunGlobals()
	dir := writeTestSuite(t, 0)
	t.Chdir(dir)
	outFile := filepath.Join(t.TempDir(), "results.json")

	cmd := newRunCommand()
	cmd.SetArgs([]string{"--artifact", "nonexistent-*", "--out", outFile})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	require.NoError(t, cmd.Execute())

	outcome := runBatchOutcome(t, outFile)
	summary := outcome["summary"].(map[string]any)
	assert.Equal(t, float64(0), summary["total_artifacts"])
}

func TestRunCommand_ThresholdOverride(t *testing.T) {
	resetRunGlobals()
	dir := t.TempDir()
	writeSpec(t, dir, 0)
	writeArtifact(t, dir, "prompts/rough.md", failingArtifact)
	t.Chdir(dir)

	// The artifact fails at the configured threshold of 70 but passes at 20.
	cmd := newRunCommand()
	cmd.SetArgs([]string{"--threshold", "20", "--ci"})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	assert.NoError(t, cmd.Execute())
}

// ---------------------------------------------------------------------------
// Report formats
// ---------------------------------------------------------------------------

func TestRunCommand_JUnitFormat(t *testing.T) {
	resetRunGlobals()
	dir := writeTestSuite(t, 0)
	t.Chdir(dir)
	outFile := filepath.Join(t.TempDir(), "results.xml")

	cmd := newRunCommand()
	cmd.SetArgs([]string{"--format", "junit", "--out", outFile})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	require.NoError(t, cmd.Execute())

	data, err := os.ReadFile(outFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<testsuite")
}

func TestRunCommand_MarkdownFormat(t *testing.T) {
	resetRunGlobals()
	dir := writeTestSuite(t, 0)
	t.Chdir(dir)
	outFile := filepath.Join(t.TempDir(), "results.md")

	cmd := newRunCommand()
	cmd.SetArgs([]string{"--format", "markdown", "--out", outFile})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	require.NoError(t, cmd.Execute())

	data, err := os.ReadFile(outFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# Prompt Evaluation Report")
}

// ---------------------------------------------------------------------------
// CI exit-code mapping
// ---------------------------------------------------------------------------

func TestRunCommand_FailuresWithoutCIExitClean(t *testing.T) {
	resetRunGlobals()
	dir := t.TempDir()
	writeSpec(t, dir, 0)
	writeArtifact(t, dir, "prompts/rough.md", failingArtifact)
	t.Chdir(dir)

	cmd := newRunCommand()
	cmd.SetArgs([]string{})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	// Without --ci a completed batch is success regardless of artifact
	// failures; the report carries the verdicts.
	assert.NoError(t, cmd.Execute())
}

func TestRunCommand_CIModeReturnsEvalFailure(t *testing.T) {
	resetRunGlobals()
	dir := t.TempDir()
	writeSpec(t, dir, 0)
	writeArtifact(t, dir, "prompts/rough.md", failingArtifact)
	t.Chdir(dir)

	cmd := newRunCommand()
	cmd.SetArgs([]string{"--ci"})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	err := cmd.Execute()
	require.Error(t, err)

	var evalErr *EvalFailureError
	assert.True(t, errors.As(err, &evalErr), "expected EvalFailureError type")
	assert.Contains(t, err.Error(), "batch completed with")
}

func TestRunCommand_CIModeAllPassing(t *testing.T) {
	resetRunGlobals()
	dir := writeTestSuite(t, 0)
	t.Chdir(dir)

	cmd := newRunCommand()
	cmd.SetArgs([]string{"--ci"})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	assert.NoError(t, cmd.Execute())
}

// ---------------------------------------------------------------------------
// Judged tier — mock backend
// ---------------------------------------------------------------------------

func TestRunCommand_JudgedTierMockRun(t *testing.T) {
	resetRunGlobals()
	dir := writeTestSuite(t, 1)
	t.Chdir(dir)
	outFile := filepath.Join(t.TempDir(), "results.json")

	cmd := newRunCommand()
	cmd.SetArgs([]string{"--out", outFile, "--no-cache"})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	require.NoError(t, cmd.Execute())

	outcome := runBatchOutcome(t, outFile)
	results := outcome["results"].([]any)
	require.Len(t, results, 1)

	first := results[0].(map[string]any)
	assert.Equal(t, true, first["passed"])
	assert.ElementsMatch(t, []any{"structural", "judged"}, first["coverage"])
	assert.Equal(t, []any{"mock:judge"}, first["models_used"])
	assert.Equal(t, float64(1), first["runs_completed"])
}

func TestRunCommand_JudgedTierVerbose(t *testing.T) {
	resetRunGlobals()
	dir := writeTestSuite(t, 1)
	t.Chdir(dir)

	cmd := newRunCommand()
	cmd.SetArgs([]string{"--verbose", "--no-cache"})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	assert.NoError(t, cmd.Execute())
}

func TestRunCommand_RunsOverride(t *testing.T) {
	resetRunGlobals()
	dir := writeTestSuite(t, 1)
	t.Chdir(dir)
	outFile := filepath.Join(t.TempDir(), "results.json")

	cmd := newRunCommand()
	cmd.SetArgs([]string{"--runs", "3", "--out", outFile, "--no-cache"})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	require.NoError(t, cmd.Execute())

	outcome := runBatchOutcome(t, outFile)
	first := outcome["results"].([]any)[0].(map[string]any)
	assert.Equal(t, float64(3), first["runs_planned"])
	assert.Equal(t, float64(3), first["runs_completed"])
}

// ---------------------------------------------------------------------------
// Root command wiring
// ---------------------------------------------------------------------------

func TestRootCommand_HasRunSubcommand(t *testing.T) {
	root := newRootCommand()
	found := false
	for _, c := range root.Commands() {
		if c.Name() == "run" {
			found = true
			break
		}
	}
	assert.True(t, found, "root command should have 'run' subcommand")
}

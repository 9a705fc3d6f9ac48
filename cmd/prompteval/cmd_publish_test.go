package main

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptqa/prompteval/internal/reporting"
)

func resetPublishGlobals() {
	publishAccount = ""
	publishContainer = ""
	publishPrefix = ""
}

func TestPublishCommand_FlagsParsed(t *testing.T) {
	cmd := newPublishCommand()
	require.NoError(t, cmd.ParseFlags([]string{
		"--account", "evalstore",
		"--container", "history",
		"--prefix", "nightly/",
	}))

	for flag, want := range map[string]string{
		"account":   "evalstore",
		"container": "history",
		"prefix":    "nightly/",
	} {
		val, err := cmd.Flags().GetString(flag)
		require.NoError(t, err)
		assert.Equal(t, want, val)
	}
}

func TestPublishCommand_MissingResultFile(t *testing.T) {
	resetPublishGlobals()

	cmd := newPublishCommand()
	cmd.SetArgs([]string{filepath.Join(t.TempDir(), "absent.json")})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load")
}

func TestPublishCommand_AccountRequired(t *testing.T) {
	resetPublishGlobals()
	path := writeResultFile(t, "local-batch", []compareResult{{"welcome", 90, true}})

	cmd := newPublishCommand()
	cmd.SetArgs([]string{path})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage account is required")
}

func TestLoadResultFile_PlainJSON(t *testing.T) {
	path := writeResultFile(t, "plain-batch", []compareResult{{"welcome", 90, true}})

	outcome, err := loadResultFile(path)
	require.NoError(t, err)
	assert.Equal(t, "plain-batch", outcome.BatchID)
	require.Len(t, outcome.Results, 1)
}

func TestLoadResultFile_ZstdBundle(t *testing.T) {
	jsonPath := writeResultFile(t, "bundle-batch", []compareResult{{"welcome", 90, true}})
	outcome, err := reporting.LoadJSON(jsonPath)
	require.NoError(t, err)

	bundlePath := filepath.Join(t.TempDir(), "bundle-batch.json.zst")
	require.NoError(t, reporting.WriteBundle(outcome, bundlePath))

	loaded, err := loadResultFile(bundlePath)
	require.NoError(t, err)
	assert.Equal(t, "bundle-batch", loaded.BatchID)
	assert.Equal(t, outcome.Results[0].CombinedScore, loaded.Results[0].CombinedScore)
}

func TestRootCommand_HasPublishSubcommand(t *testing.T) {
	root := newRootCommand()
	found := false
	for _, c := range root.Commands() {
		if c.Name() == "publish" {
			found = true
			break
		}
	}
	assert.True(t, found)
}

// Package projectconfig loads operator-level defaults from .prompteval.yaml
// files. These settings control where outputs go and how runs display, never
// evaluation semantics, so a checked-in suite scores identically on every
// machine regardless of the operator's local defaults.
package projectconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/promptqa/prompteval/internal/workspace"
)

// Default values for operator configuration. These are the single source of
// truth — New() references them and no other code should duplicate them.
const (
	DefaultOutputDir    = "results/"
	DefaultOutputFormat = "json"

	DefaultCacheDir = ".prompteval-cache"

	DefaultPublishContainer = "prompteval-results"
	DefaultPublishPrefix    = "batches/"
)

// OutputConfig holds result output defaults.
type OutputConfig struct {
	Dir       string `yaml:"dir,omitempty"`
	Format    string `yaml:"format,omitempty"`
	Interpret *bool  `yaml:"interpret,omitempty"`
}

// RunConfig holds run display and scheduling defaults. Zero concurrency
// defers to the suite spec's execution settings.
type RunConfig struct {
	Verbose       *bool  `yaml:"verbose,omitempty"`
	Concurrency   int    `yaml:"concurrency,omitempty"`
	TranscriptDir string `yaml:"transcript_dir,omitempty"`
}

// CacheConfig holds probe and result cache settings.
type CacheConfig struct {
	Enabled *bool  `yaml:"enabled,omitempty"`
	Dir     string `yaml:"dir,omitempty"`
}

// PublishConfig holds blob-storage upload settings for the publish command.
// Account is the storage account name or a full service URL.
type PublishConfig struct {
	Account   string `yaml:"account,omitempty"`
	Container string `yaml:"container,omitempty"`
	Prefix    string `yaml:"prefix,omitempty"`
}

// ProjectConfig is the top-level configuration loaded from .prompteval.yaml.
type ProjectConfig struct {
	Output  OutputConfig  `yaml:"output,omitempty"`
	Run     RunConfig     `yaml:"run,omitempty"`
	Cache   CacheConfig   `yaml:"cache,omitempty"`
	Publish PublishConfig `yaml:"publish,omitempty"`
}

// New returns a ProjectConfig with all hard-coded defaults populated.
func New() *ProjectConfig {
	return &ProjectConfig{
		Output: OutputConfig{
			Dir:       DefaultOutputDir,
			Format:    DefaultOutputFormat,
			Interpret: boolPtr(false),
		},
		Run: RunConfig{
			Verbose: boolPtr(false),
		},
		Cache: CacheConfig{
			Enabled: boolPtr(true),
			Dir:     DefaultCacheDir,
		},
		Publish: PublishConfig{
			Container: DefaultPublishContainer,
			Prefix:    DefaultPublishPrefix,
		},
	}
}

// Load finds .prompteval.yaml by walking up from startDir (max 10 levels),
// unmarshals it, and fills in missing fields with defaults. If no file is
// found, returns defaults with a nil error. Real I/O errors (e.g.
// permission denied) are returned to the caller.
func Load(startDir string) (*ProjectConfig, error) {
	cfg := New()

	data, err := findConfigFile(startDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil // no file found, use defaults
		}
		return nil, fmt.Errorf("loading %s: %w", workspace.DefaultsFileName, err)
	}

	var fileCfg ProjectConfig
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", workspace.DefaultsFileName, err)
	}

	mergeConfig(cfg, &fileCfg)
	return cfg, nil
}

// findConfigFile walks up from dir looking for the defaults file (max 10
// levels). Returns os.ErrNotExist if none is found; propagates real I/O
// errors instead of silently swallowing them.
func findConfigFile(dir string) ([]byte, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving path %q: %w", dir, err)
	}
	dir = absDir

	for i := 0; i < 10; i++ {
		p := filepath.Join(dir, workspace.DefaultsFileName)
		data, err := os.ReadFile(p)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("reading %q: %w", p, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break // reached filesystem root
		}
		dir = parent
	}
	return nil, os.ErrNotExist
}

// mergeConfig overlays non-zero values from src onto dst.
func mergeConfig(dst, src *ProjectConfig) {
	if src.Output.Dir != "" {
		dst.Output.Dir = src.Output.Dir
	}
	if src.Output.Format != "" {
		dst.Output.Format = src.Output.Format
	}
	if src.Output.Interpret != nil {
		dst.Output.Interpret = src.Output.Interpret
	}

	if src.Run.Verbose != nil {
		dst.Run.Verbose = src.Run.Verbose
	}
	if src.Run.Concurrency != 0 {
		dst.Run.Concurrency = src.Run.Concurrency
	}
	if src.Run.TranscriptDir != "" {
		dst.Run.TranscriptDir = src.Run.TranscriptDir
	}

	if src.Cache.Enabled != nil {
		dst.Cache.Enabled = src.Cache.Enabled
	}
	if src.Cache.Dir != "" {
		dst.Cache.Dir = src.Cache.Dir
	}

	if src.Publish.Account != "" {
		dst.Publish.Account = src.Publish.Account
	}
	if src.Publish.Container != "" {
		dst.Publish.Container = src.Publish.Container
	}
	if src.Publish.Prefix != "" {
		dst.Publish.Prefix = src.Publish.Prefix
	}
}

func boolPtr(b bool) *bool {
	return &b
}

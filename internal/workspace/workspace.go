// Package workspace locates the evaluation suite that applies to a working
// directory: the prompteval.yaml spec, found by walking up from the current
// directory the way version-control tools find their repository root.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// specFileNames are the spec filenames Detect recognizes, in priority order.
var specFileNames = []string{"prompteval.yaml", "prompteval.yml"}

// DefaultsFileName is the per-project operator defaults file, kept separate
// from the spec so checked-in suites stay machine-independent.
const DefaultsFileName = ".prompteval.yaml"

// maxParentWalk bounds how many parent directories Detect climbs.
const maxParentWalk = 10

// ErrNoSuite is returned when no spec file exists in the directory or any
// searched parent.
var ErrNoSuite = errors.New("no prompteval.yaml found")

// Context is a located evaluation suite.
type Context struct {
	// Root is the directory holding the spec file.
	Root string
	// SpecPath is the absolute path of the spec file.
	SpecPath string
}

// Detect finds the suite serving dir by checking dir itself and then up to
// maxParentWalk parents for a spec file. Returns ErrNoSuite when nothing is
// found.
func Detect(dir string) (*Context, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving absolute path: %w", err)
	}

	current := absDir
	for i := 0; i <= maxParentWalk; i++ {
		if path, ok := specFileIn(current); ok {
			return &Context{Root: current, SpecPath: path}, nil
		}
		parent := filepath.Dir(current)
		if parent == current {
			break // reached filesystem root
		}
		current = parent
	}
	return nil, fmt.Errorf("%w in %s or its parents", ErrNoSuite, absDir)
}

// DefaultsPath returns where the suite's operator defaults file would live,
// whether or not it exists.
func (c *Context) DefaultsPath() string {
	return filepath.Join(c.Root, DefaultsFileName)
}

func specFileIn(dir string) (string, bool) {
	for _, name := range specFileNames {
		path := filepath.Join(dir, name)
		if isFile(path) {
			return path, true
		}
	}
	return "", false
}

// isFile reports whether path exists and is a regular file.
func isFile(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && !fi.IsDir()
}

// LooksLikePath reports whether the string appears to be a file path rather
// than an artifact id. Shared by CLI commands interpreting positional
// arguments.
func LooksLikePath(s string) bool {
	return strings.ContainsAny(s, `/\`) ||
		filepath.Ext(s) != "" ||
		s == "." || s == ".."
}

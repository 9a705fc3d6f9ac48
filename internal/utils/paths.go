package utils

import (
	"os"
	"path/filepath"
	"strings"
)

// ResolvePaths resolves each path against baseDir. Absolute paths pass
// through untouched, a leading "~/" expands to the user's home directory,
// and everything else is joined onto baseDir. All results are cleaned.
func ResolvePaths(paths []string, baseDir string) []string {
	if len(paths) == 0 {
		return nil
	}

	resolved := make([]string, 0, len(paths))
	for _, path := range paths {
		resolved = append(resolved, ResolvePath(path, baseDir))
	}
	return resolved
}

// ResolvePath resolves a single path against baseDir. See ResolvePaths.
func ResolvePath(path, baseDir string) string {
	if path == "~" || strings.HasPrefix(path, "~"+string(filepath.Separator)) {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Clean(filepath.Join(home, path[1:]))
		}
	}
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(baseDir, path)
}

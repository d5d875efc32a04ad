// Package locate finds the source file of a Python module by name, the way
// the import system's path-based finder does: packages before modules, first
// matching directory wins.
package locate

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	sourceSuffix = ".py"
	packageInit  = "__init__.py"
)

// Locator searches caller-supplied directories followed by a fixed search path.
type Locator struct {
	SearchPath []string
}

// New returns a Locator that falls back to searchPath.
func New(searchPath ...string) *Locator {
	return &Locator{SearchPath: searchPath}
}

// Locate returns the file defining module, a plain or dotted name. dirs are
// searched first, in order, then the Locator's search path.
func (l *Locator) Locate(module string, dirs ...string) (string, bool) {
	candidates := make([]string, 0, len(dirs)+len(l.SearchPath))
	candidates = append(candidates, dirs...)
	candidates = append(candidates, l.SearchPath...)
	return find(module, candidates)
}

// LocateIn is like Locate but ignores the search path. Relative imports use
// it, since they never leave their package.
func (l *Locator) LocateIn(module string, dirs ...string) (string, bool) {
	return find(module, dirs)
}

// find checks <dir>/<module>/__init__.py then <dir>/<module>.py for each dir.
// Empty dirs are skipped. Namespace packages (directories without
// __init__.py) and compiled extensions are not considered.
func find(module string, dirs []string) (string, bool) {
	rel, ok := modulePath(module)
	if !ok {
		return "", false
	}
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if path := filepath.Join(dir, rel, packageInit); isFile(path) {
			return path, true
		}
		if path := filepath.Join(dir, rel+sourceSuffix); isFile(path) {
			return path, true
		}
	}
	return "", false
}

func modulePath(module string) (string, bool) {
	if module == "" {
		return "", false
	}
	parts := strings.Split(module, ".")
	for _, p := range parts {
		if p == "" || strings.ContainsAny(p, `/\`) {
			return "", false
		}
	}
	return filepath.Join(parts...), true
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

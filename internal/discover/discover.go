// Package discover finds the Python source files to scan.
package discover

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/phobologic/testscan/internal/lang"
)

// FileEntry represents a discovered source file.
type FileEntry struct {
	Path string // Relative to the walked root
	Abs  string
}

// Options controls which files are returned.
type Options struct {
	// TestsOnly keeps only files that look like test modules (see IsTestFile).
	TestsOnly bool
	// SkipDirs names additional directories to prune.
	SkipDirs []string
}

var skipDirs = map[string]struct{}{
	"__pycache__":   {},
	"node_modules":  {},
	".git":          {},
	".hg":           {},
	".svn":          {},
	"venv":          {},
	".venv":         {},
	"env":           {},
	".env":          {},
	"build":         {},
	"dist":          {},
	".tox":          {},
	".nox":          {},
	".mypy_cache":   {},
	".ruff_cache":   {},
	".pytest_cache": {},
	"egg-info":      {},
}

var testDirs = map[string]struct{}{
	"test":  {},
	"tests": {},
}

// Files discovers Python source files under root, sorted by path. Hidden
// files and directories, well-known tool directories and symlinks are
// skipped. Inside a git work tree only tracked and unignored files are
// returned; otherwise root's .gitignore is honored.
func Files(root string, opts Options) ([]FileEntry, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", root, err)
	}
	extra := make(map[string]struct{}, len(opts.SkipDirs))
	for _, d := range opts.SkipDirs {
		extra[d] = struct{}{}
	}
	gitFiles := gitLsFiles(abs)
	var gi *ignore.GitIgnore
	if gitFiles == nil {
		gi = loadGitignore(abs)
	}

	var results []FileEntry

	err = filepath.WalkDir(abs, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // skip errors
		}

		name := d.Name()

		if d.IsDir() {
			if path == abs {
				return nil
			}
			_, skip := skipDirs[name]
			_, skipExtra := extra[name]
			if skip || skipExtra || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".egg-info") {
				return filepath.SkipDir
			}
			return nil
		}

		if strings.HasPrefix(name, ".") {
			return nil
		}

		// Skip symlinks
		if d.Type()&os.ModeSymlink != 0 {
			return nil
		}

		rel, err := filepath.Rel(abs, path)
		if err != nil {
			return nil
		}

		if gitFiles != nil {
			if _, ok := gitFiles[filepath.ToSlash(rel)]; !ok {
				return nil
			}
		} else if gi != nil && gi.MatchesPath(rel) {
			return nil
		}

		if lang.ForExtension(filepath.Ext(name)) != "python" {
			return nil
		}
		if opts.TestsOnly && !IsTestFile(rel) {
			return nil
		}

		results = append(results, FileEntry{Path: rel, Abs: path})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Path < results[j].Path
	})

	return results, nil
}

// Paths expands command-line arguments into the files to scan. Files are
// taken as given (whatever their name); directories are walked with Files.
// The result keeps argument order and drops duplicates.
func Paths(args []string, opts Options) ([]string, error) {
	seen := make(map[string]struct{})
	var out []string
	add := func(p string) {
		if _, ok := seen[p]; !ok {
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", arg, err)
		}
		if !info.IsDir() {
			abs, err := filepath.Abs(arg)
			if err != nil {
				return nil, fmt.Errorf("resolving %s: %w", arg, err)
			}
			add(abs)
			continue
		}
		entries, err := Files(arg, opts)
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", arg, err)
		}
		for _, e := range entries {
			add(e.Abs)
		}
	}
	return out, nil
}

// IsTestFile reports whether a relative path looks like a Python test module:
// test_*.py or *_test.py anywhere, or any module below a test/ or tests/
// directory (conftest.py included there).
func IsTestFile(rel string) bool {
	rel = filepath.ToSlash(rel)
	if !strings.HasSuffix(rel, ".py") {
		return false
	}
	parts := strings.Split(rel, "/")
	for _, dir := range parts[:len(parts)-1] {
		if _, ok := testDirs[dir]; ok {
			return true
		}
	}
	stem := strings.TrimSuffix(parts[len(parts)-1], ".py")
	return strings.HasPrefix(stem, "test_") || strings.HasSuffix(stem, "_test")
}

func gitLsFiles(root string) map[string]struct{} {
	gitDir := filepath.Join(root, ".git")
	info, err := os.Stat(gitDir)
	if err != nil || !info.IsDir() {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	out, err := cmd.Output()
	if err != nil {
		return nil
	}

	files := make(map[string]struct{})
	for _, line := range strings.Split(strings.TrimRight(string(out), "\n"), "\n") {
		if line != "" {
			files[line] = struct{}{}
		}
	}
	return files
}

func loadGitignore(root string) *ignore.GitIgnore {
	path := filepath.Join(root, ".gitignore")
	gi, err := ignore.CompileIgnoreFile(path)
	if err != nil {
		return nil
	}
	return gi
}

package parse

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/testscan/internal/lang"
	"github.com/phobologic/testscan/internal/model"
)

// DefaultMaxFileSize is the size above which files are not parsed.
const DefaultMaxFileSize = 1_000_000 // 1 MB

type cached struct {
	mod *model.SourceModule
	err error
}

// Loader loads and caches SourceModules by absolute path. A Loader owns a
// tree-sitter parser and must not be shared across goroutines; create one per
// discovery pass.
type Loader struct {
	lang        *lang.Language
	parser      *sitter.Parser
	query       *sitter.Query
	maxFileSize int64
	logger      *log.Logger
	cache       map[string]cached
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithMaxFileSize sets the size limit in bytes. Values <= 0 disable the limit.
func WithMaxFileSize(bytes int64) LoaderOption {
	return func(ld *Loader) {
		ld.maxFileSize = bytes
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(logger *log.Logger) LoaderOption {
	return func(ld *Loader) {
		if logger != nil {
			ld.logger = logger
		}
	}
}

// NewLoader creates a Loader for Python sources.
func NewLoader(opts ...LoaderOption) (*Loader, error) {
	l := lang.Languages["python"]
	q, err := l.GetStatementQuery()
	if err != nil {
		return nil, fmt.Errorf("python statement query: %w", err)
	}
	ld := &Loader{
		lang:        l,
		parser:      l.NewParser(),
		query:       q,
		maxFileSize: DefaultMaxFileSize,
		logger:      log.New(io.Discard),
		cache:       make(map[string]cached),
	}
	for _, opt := range opts {
		opt(ld)
	}
	return ld, nil
}

// Load returns the module at path, parsing it on first use. Failures are
// cached too, so a broken ancestor is only read once per pass.
func (ld *Loader) Load(ctx context.Context, path string) (*model.SourceModule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", path, err)
	}
	if c, ok := ld.cache[abs]; ok {
		return c.mod, c.err
	}

	mod, err := ld.load(ctx, abs)
	if ctx.Err() == nil {
		ld.cache[abs] = cached{mod: mod, err: err}
	}
	return mod, err
}

func (ld *Loader) load(ctx context.Context, abs string) (*model.SourceModule, error) {
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", abs, ErrNotFound)
		}
		return nil, fmt.Errorf("stat %s: %w", abs, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s: is a directory: %w", abs, ErrNotFound)
	}
	if ld.maxFileSize > 0 && info.Size() > ld.maxFileSize {
		return nil, fmt.Errorf("%s: %d bytes exceeds %d: %w", abs, info.Size(), ld.maxFileSize, ErrTooLarge)
	}

	source, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", abs, err)
	}

	mod, err := Module(ctx, ld.lang, ld.parser, ld.query, source, abs)
	if err != nil {
		return nil, err
	}
	ld.logger.Debug("parsed module", "path", abs, "classes", len(mod.Classes), "imports", len(mod.Imports))
	return mod, nil
}

// Loaded returns the number of distinct paths this Loader has seen.
func (ld *Loader) Loaded() int {
	return len(ld.cache)
}

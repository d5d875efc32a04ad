// Package finder discovers test classes in Python source files. It applies
// docstring directives to each top-level class and hands undecided classes to
// the hierarchy resolver.
package finder

import (
	"context"
	"fmt"
	"io"
	"runtime"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/phobologic/testscan/internal/directive"
	"github.com/phobologic/testscan/internal/locate"
	"github.com/phobologic/testscan/internal/model"
	"github.com/phobologic/testscan/internal/parse"
	"github.com/phobologic/testscan/internal/resolve"
)

// DefaultNamespace is the directive namespace used unless overridden.
const DefaultNamespace = "avocado"

var (
	// AvocadoTarget identifies avocado instrumented tests.
	AvocadoTarget = model.Target{Module: "avocado", Class: "Test"}
	// UnittestTarget identifies Python unittest test cases.
	UnittestTarget = model.Target{Module: "unittest", Class: "TestCase"}
)

// Finder discovers tests for one target identity. A Finder holds only
// configuration; each Find call owns its own parser and module cache, so a
// Finder is safe for concurrent use.
type Finder struct {
	target      model.Target
	namespace   string
	predicate   resolve.Predicate
	structural  bool
	searchPath  []string
	maxDepth    int
	maxFileSize int64
	logger      *log.Logger
}

// Option configures a Finder.
type Option func(*Finder)

// WithTarget sets the base class identity that marks test classes.
func WithTarget(t model.Target) Option {
	return func(f *Finder) {
		f.target = t
	}
}

// WithNamespace sets the docstring directive namespace.
func WithNamespace(ns string) Option {
	return func(f *Finder) {
		if ns != "" {
			f.namespace = ns
		}
	}
}

// WithPredicate replaces the match predicate.
func WithPredicate(p resolve.Predicate) Option {
	return func(f *Finder) {
		if p != nil {
			f.predicate = p
		}
	}
}

// WithStructuralMatching ignores directives when deciding whether an ancestor
// qualifies; only base classes count. Directive shortcuts on the scanned
// classes themselves still apply.
func WithStructuralMatching() Option {
	return func(f *Finder) {
		f.structural = true
	}
}

// WithSearchPath sets the directories searched for imported modules after
// the importing file's own directory.
func WithSearchPath(dirs ...string) Option {
	return func(f *Finder) {
		f.searchPath = append([]string(nil), dirs...)
	}
}

// WithMaxDepth bounds inheritance descent.
func WithMaxDepth(depth int) Option {
	return func(f *Finder) {
		f.maxDepth = depth
	}
}

// WithMaxFileSize skips source files larger than bytes.
func WithMaxFileSize(bytes int64) Option {
	return func(f *Finder) {
		f.maxFileSize = bytes
	}
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(f *Finder) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// New returns a Finder. Without options it looks for avocado tests using
// directive-aware matching.
func New(opts ...Option) *Finder {
	f := &Finder{
		target:      AvocadoTarget,
		namespace:   DefaultNamespace,
		maxDepth:    resolve.DefaultMaxDepth,
		maxFileSize: parse.DefaultMaxFileSize,
		logger:      log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.predicate == nil {
		if f.structural {
			f.predicate = resolve.Structural{Target: f.target}
		} else {
			f.predicate = resolve.DirectiveAware{Target: f.target}
		}
	}
	return f
}

// Target returns the identity the Finder matches against.
func (f *Finder) Target() model.Target {
	return f.target
}

// Find discovers the test classes of the file at path. Classes are examined
// in declaration order:
//   - a disable directive records the class as disabled;
//   - an enable directive accepts the class with its own methods only;
//   - otherwise the class starts matched when it carries a recursive
//     directive or names the target directly, its ancestors are resolved, and
//     it is accepted once the settled state is Matched.
//
// Only the first of several classes sharing a name is examined. Errors
// loading path itself are returned; failures below it only prune branches.
func (f *Finder) Find(ctx context.Context, path string) (*model.Discovery, error) {
	loader, err := parse.NewLoader(
		parse.WithMaxFileSize(f.maxFileSize),
		parse.WithLogger(f.logger),
	)
	if err != nil {
		return nil, err
	}
	mod, err := loader.Load(ctx, path)
	if err != nil {
		return nil, err
	}

	reader := directive.NewReader(f.namespace)
	resolver := resolve.New(f.target, f.predicate, loader, reader,
		resolve.WithLocator(locate.New(f.searchPath...)),
		resolve.WithMaxDepth(f.maxDepth),
		resolve.WithLogger(f.logger),
	)

	disc := &model.Discovery{Path: mod.Path}
	disabled := make(map[string]struct{})
	seen := make(map[string]struct{}, len(mod.Classes))

	for i := range mod.Classes {
		klass := &mod.Classes[i]
		if _, dup := seen[klass.Name]; dup {
			f.logger.Debug("duplicate class skipped", "path", mod.Path, "class", klass.Name, "line", klass.Line)
			continue
		}
		seen[klass.Name] = struct{}{}

		d := reader.Parse(klass.Docstring)
		if d.Disable {
			disabled[klass.Name] = struct{}{}
			continue
		}
		local := resolve.LocalMethods(reader, klass, d)
		if d.Enable {
			disc.Classes = append(disc.Classes, model.ClassTests{Name: klass.Name, Methods: local})
			continue
		}

		state := model.Unknown
		if d.Recursive || mod.IsStructuralMatch(klass, f.target) {
			state = model.Matched
		}
		res := model.Resolution{Methods: local, State: state}
		res.Merge(resolver.ResolveBases(ctx, mod, klass, state))

		for name := range res.Disabled {
			disabled[name] = struct{}{}
		}
		disc.Ancestors = mergeAncestors(disc.Ancestors, res.Ancestors)

		if res.State.Settle() == model.Matched {
			disc.Classes = append(disc.Classes, model.ClassTests{Name: klass.Name, Methods: res.Methods})
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("discovering %s: %w", path, err)
	}
	disc.SetDisabled(disabled)
	f.logger.Debug("discovered", "path", mod.Path, "classes", len(disc.Classes), "disabled", len(disc.Disabled), "modules", loader.Loaded())
	return disc, nil
}

func mergeAncestors(dst, add []model.Ancestor) []model.Ancestor {
	for _, a := range add {
		found := false
		for _, x := range dst {
			if x == a {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, a)
		}
	}
	return dst
}

// DiscoverStructural finds Python unittest test classes. Disabled classes are
// dropped.
func DiscoverStructural(ctx context.Context, path string, opts ...Option) ([]model.ClassTests, error) {
	base := []Option{
		WithTarget(UnittestTarget),
		WithStructuralMatching(),
	}
	disc, err := New(append(base, opts...)...).Find(ctx, path)
	if err != nil {
		return nil, err
	}
	return disc.Classes, nil
}

// DiscoverDirectiveAware finds avocado test classes and the classes disabled
// by directive.
func DiscoverDirectiveAware(ctx context.Context, path string, opts ...Option) (*model.Discovery, error) {
	base := []Option{
		WithTarget(AvocadoTarget),
		WithNamespace(DefaultNamespace),
	}
	return New(append(base, opts...)...).Find(ctx, path)
}

// FileResult is the outcome of discovering one file in a batch.
type FileResult struct {
	Path      string
	Discovery *model.Discovery
	Err       error
}

// FindAll runs Find over paths with at most workers files in flight
// (workers <= 0 means one per CPU). Results are in input order; a failing
// file never stops the others.
func (f *Finder) FindAll(ctx context.Context, paths []string, workers int) []FileResult {
	results := make([]FileResult, len(paths))
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(paths) {
		workers = len(paths)
	}

	g := new(errgroup.Group)
	g.SetLimit(max(workers, 1))
	for i, path := range paths {
		g.Go(func() error {
			disc, err := f.Find(ctx, path)
			results[i] = FileResult{Path: path, Discovery: disc, Err: err}
			if err != nil {
				f.logger.Warn("scan failed", "path", path, "err", err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

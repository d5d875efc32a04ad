// Package resolve walks class hierarchies across Python source files and
// decides which classes are test classes.
package resolve

import (
	"context"
	"io"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/phobologic/testscan/internal/directive"
	"github.com/phobologic/testscan/internal/locate"
	"github.com/phobologic/testscan/internal/model"
	"github.com/phobologic/testscan/internal/parse"
)

// DefaultMaxDepth bounds how many inheritance levels a single resolution
// descends.
const DefaultMaxDepth = 64

// Loader provides parsed modules. *parse.Loader satisfies it.
type Loader interface {
	Load(ctx context.Context, path string) (*model.SourceModule, error)
}

var _ Loader = (*parse.Loader)(nil)

// Resolver resolves classes against one target identity.
type Resolver struct {
	target    model.Target
	predicate Predicate
	loader    Loader
	reader    *directive.Reader
	locator   *locate.Locator
	maxDepth  int
	logger    *log.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLocator sets the module locator. The default searches only the
// directories implied by each import.
func WithLocator(l *locate.Locator) Option {
	return func(r *Resolver) {
		if l != nil {
			r.locator = l
		}
	}
}

// WithMaxDepth sets the inheritance depth bound. Values <= 0 select
// DefaultMaxDepth.
func WithMaxDepth(depth int) Option {
	return func(r *Resolver) {
		if depth > 0 {
			r.maxDepth = depth
		}
	}
}

// WithLogger sets the logger used for skipped bases and depth warnings.
func WithLogger(logger *log.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New returns a Resolver. The loader is used for every module the resolver
// reads, so a caching loader avoids re-parsing shared ancestors.
func New(target model.Target, predicate Predicate, loader Loader, reader *directive.Reader, opts ...Option) *Resolver {
	r := &Resolver{
		target:    target,
		predicate: predicate,
		loader:    loader,
		reader:    reader,
		locator:   locate.New(),
		maxDepth:  DefaultMaxDepth,
		logger:    log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Target returns the identity classes are matched against.
func (r *Resolver) Target() model.Target {
	return r.target
}

// Reader returns the directive reader.
func (r *Resolver) Reader() *directive.Reader {
	return r.reader
}

// Resolve examines class className in the file at path, then its ancestors.
// A missing file or class yields an empty Resolution with state unchanged.
func (r *Resolver) Resolve(ctx context.Context, path, className string, state model.MatchState) model.Resolution {
	abs, err := filepath.Abs(path)
	if err != nil {
		return model.Resolution{State: state}
	}
	w := r.newWalk(abs)
	return w.class(ctx, abs, className, state, 0)
}

// ResolveBases examines only the ancestors of klass, which must be declared
// in mod. The returned Resolution holds what the ancestors contribute; the
// caller merges it with the class's own methods.
func (r *Resolver) ResolveBases(ctx context.Context, mod *model.SourceModule, klass *model.ClassDef, state model.MatchState) model.Resolution {
	w := r.newWalk(mod.Path)
	w.visited[visitKey{path: mod.Path, class: klass.Name}] = struct{}{}
	res := model.Resolution{State: state}
	w.bases(ctx, mod, klass, &res, 0)
	return res
}

type visitKey struct {
	path  string
	class string
}

// walk is the state of a single traversal. Every (file, class) pair is
// examined at most once, which guarantees termination on cyclic hierarchies.
type walk struct {
	*Resolver
	root    string
	visited map[visitKey]struct{}
}

func (r *Resolver) newWalk(root string) *walk {
	return &walk{
		Resolver: r,
		root:     root,
		visited:  make(map[visitKey]struct{}),
	}
}

func (w *walk) class(ctx context.Context, path, name string, state model.MatchState, depth int) model.Resolution {
	res := model.Resolution{State: state}

	key := visitKey{path: path, class: name}
	if _, seen := w.visited[key]; seen {
		return res
	}
	if depth > w.maxDepth {
		w.logger.Warn("inheritance too deep, not descending", "path", path, "class", name, "max_depth", w.maxDepth)
		return res
	}
	w.visited[key] = struct{}{}

	mod, err := w.loader.Load(ctx, path)
	if err != nil {
		w.logger.Debug("ancestor module unavailable", "path", path, "class", name, "err", err)
		return res
	}
	klass := mod.Class(name)
	if klass == nil {
		w.logger.Debug("ancestor class not found", "path", path, "class", name)
		return res
	}

	d := w.reader.Parse(klass.Docstring)
	res.Methods = LocalMethods(w.reader, klass, d)
	if path != w.root {
		res.Ancestors = append(res.Ancestors, model.Ancestor{Path: path, Class: name})
	}
	if d.Disable && path == w.root {
		res.AddDisabled(name)
	}
	if res.State == model.Unknown {
		res.State = res.State.Decide(w.predicate.Decide(mod, klass, d))
	}

	w.bases(ctx, mod, klass, &res, depth)
	return res
}

// bases merges the ancestors of klass into acc: bases declared in the same
// file first, in order, then bases reached through imports.
func (w *walk) bases(ctx context.Context, mod *model.SourceModule, klass *model.ClassDef, acc *model.Resolution, depth int) {
	var foreign []model.BaseRef
	for _, base := range klass.Bases {
		switch base.Kind {
		case model.BaseSimple:
			if base.Name != klass.Name && mod.Class(base.Name) != nil {
				acc.Merge(w.class(ctx, mod.Path, base.Name, acc.State, depth+1))
				continue
			}
			foreign = append(foreign, base)
		case model.BaseQualified:
			foreign = append(foreign, base)
		default:
			w.logger.Debug("unsupported base reference", "path", mod.Path, "class", klass.Name, "base", base.Text)
		}
	}

	for _, base := range foreign {
		path, className, ok := w.locateBase(mod, base)
		if !ok {
			w.logger.Debug("base not resolvable", "path", mod.Path, "class", klass.Name, "base", base.Text)
			continue
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			continue
		}
		acc.Merge(w.class(ctx, abs, className, acc.State, depth+1))
	}
}

// locateBase finds the file and class name a foreign base refers to.
//
//	from pkg.mod import Base     class A(Base)     -> pkg.mod, Base
//	import pkg.mod as m          class A(m.Base)   -> pkg.mod, Base
//	from pkg import mod          class A(mod.Base) -> pkg.mod, Base
//	from .base import Base       class A(Base)     -> <dir>/base, Base
//
// Absolute modules are searched next to the importing file, then on the
// search path. Relative modules are only searched inside their package.
func (w *walk) locateBase(mod *model.SourceModule, base model.BaseRef) (string, string, bool) {
	ref, ok := mod.Imports[base.Name]
	if !ok {
		return "", "", false
	}
	dir := filepath.Dir(mod.Path)

	var module, className, location string
	switch base.Kind {
	case model.BaseSimple:
		if !ref.From {
			// "import x" binds a module, never a class
			return "", "", false
		}
		module, className = ref.Module, ref.Name
		location = filepath.Dir(ref.Origin)
	case model.BaseQualified:
		className = base.Attr
		location = ref.Origin
		switch {
		case !ref.From:
			module = ref.Module
		case ref.Module == "":
			module = ref.Name
		default:
			module = ref.Module + "." + ref.Name
		}
	default:
		return "", "", false
	}

	if ref.Level > 0 {
		path, ok := w.locator.LocateIn(filepath.Base(location), filepath.Dir(location))
		return path, className, ok
	}
	path, ok := w.locator.Locate(module, dir)
	return path, className, ok
}

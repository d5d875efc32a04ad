package resolve

import "github.com/phobologic/testscan/internal/model"

// Predicate decides whether a class qualifies as a test class. It is only
// consulted while the match state is still Unknown; returning false leaves
// the state Unknown so that ancestors may still decide.
type Predicate interface {
	Decide(mod *model.SourceModule, klass *model.ClassDef, d model.Directives) bool
}

// PredicateFunc adapts a function to the Predicate interface.
type PredicateFunc func(mod *model.SourceModule, klass *model.ClassDef, d model.Directives) bool

func (f PredicateFunc) Decide(mod *model.SourceModule, klass *model.ClassDef, d model.Directives) bool {
	return f(mod, klass, d)
}

// Structural matches classes whose bases literally name the target.
type Structural struct {
	Target model.Target
}

func (p Structural) Decide(mod *model.SourceModule, klass *model.ClassDef, _ model.Directives) bool {
	return mod.IsStructuralMatch(klass, p.Target)
}

// DirectiveAware additionally treats any enable, disable or recursive
// directive as a decision. A disabled class is still reported separately.
type DirectiveAware struct {
	Target model.Target
}

func (p DirectiveAware) Decide(mod *model.SourceModule, klass *model.ClassDef, d model.Directives) bool {
	if d.Any() {
		return true
	}
	return mod.IsStructuralMatch(klass, p.Target)
}

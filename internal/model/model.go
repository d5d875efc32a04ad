// Package model defines core data structures for testscan.
package model

import (
	"sort"
	"strings"
)

// Target identifies the base class that marks a class as a test class,
// e.g. {"avocado", "Test"} or {"unittest", "TestCase"}.
type Target struct {
	Module string
	Class  string
}

func (t Target) String() string {
	return t.Module + "." + t.Class
}

// BaseKind classifies a base-class reference in a class statement.
type BaseKind int

const (
	// BaseSimple is a bare name: class Foo(Base).
	BaseSimple BaseKind = iota
	// BaseQualified is a single-level attribute: class Foo(mod.Base).
	BaseQualified
	// BaseUnsupported covers everything else (a.b.Base, calls, subscripts).
	BaseUnsupported
)

// BaseRef is one entry of a class's base list.
type BaseRef struct {
	Kind BaseKind
	Name string // simple name, or the alias of a qualified reference
	Attr string // attribute of a qualified reference
	Text string // source text
}

// MethodDef is a function defined directly in a class body.
type MethodDef struct {
	Name      string
	Line      int
	Docstring string
}

// ClassDef is a top-level class statement.
type ClassDef struct {
	Name      string
	Line      int
	Bases     []BaseRef
	Docstring string
	Methods   []MethodDef
}

// ImportRef records what a locally visible import name is bound to.
type ImportRef struct {
	Module string // dotted module as written; "" for "from . import x"
	Name   string // imported object of a from-import
	Level  int    // leading dots of a relative import
	From   bool
	Origin string // filesystem location the name denotes: <dir>/<module path>/<name>
}

// SourceModule is a parsed source file reduced to what test discovery needs.
type SourceModule struct {
	Path    string
	Imports map[string]ImportRef
	Classes []ClassDef
}

// Class returns the first class declared with the given name, or nil.
func (m *SourceModule) Class(name string) *ClassDef {
	for i := range m.Classes {
		if m.Classes[i].Name == name {
			return &m.Classes[i]
		}
	}
	return nil
}

// IsStructuralMatch reports whether one of klass's bases literally names the
// target, either as "from <module> import <Class>" or "import <module>".
func (m *SourceModule) IsStructuralMatch(klass *ClassDef, target Target) bool {
	for _, base := range klass.Bases {
		switch base.Kind {
		case BaseSimple:
			ref, ok := m.Imports[base.Name]
			if ok && ref.From && ref.Level == 0 && ref.Module == target.Module && ref.Name == target.Class {
				return true
			}
		case BaseQualified:
			ref, ok := m.Imports[base.Name]
			if ok && !ref.From && ref.Module == target.Module && base.Attr == target.Class {
				return true
			}
		}
	}
	return false
}

// Directives holds the directives parsed from one docstring.
type Directives struct {
	Enable       bool
	Disable      bool
	Recursive    bool
	Tags         Tags
	Requirements []string
}

// Any reports whether an enable, disable or recursive directive is present.
func (d Directives) Any() bool {
	return d.Enable || d.Disable || d.Recursive
}

// MethodInfo is a discovered test method with its merged tags and requirements.
type MethodInfo struct {
	Name         string
	Tags         Tags
	Requirements []string
}

// Ancestor is a class visited in another file while resolving a hierarchy.
type Ancestor struct {
	Path  string
	Class string
}

// Resolution is the outcome of resolving one class and its ancestors.
// Values are owned by the caller and merged explicitly.
type Resolution struct {
	Methods   []MethodInfo
	Disabled  map[string]struct{}
	State     MatchState
	Ancestors []Ancestor
}

// Merge folds other into r: methods are appended unless a method of the same
// name is already present, disabled names are unioned, and the state advances.
func (r *Resolution) Merge(other Resolution) {
	r.Methods = AppendMethods(r.Methods, other.Methods)
	for name := range other.Disabled {
		r.AddDisabled(name)
	}
	for _, a := range other.Ancestors {
		if !containsAncestor(r.Ancestors, a) {
			r.Ancestors = append(r.Ancestors, a)
		}
	}
	r.State = r.State.Advance(other.State)
}

// AddDisabled records a disabled class name.
func (r *Resolution) AddDisabled(name string) {
	if r.Disabled == nil {
		r.Disabled = make(map[string]struct{})
	}
	r.Disabled[name] = struct{}{}
}

// AppendMethods appends the methods of add whose names are not yet in dst.
func AppendMethods(dst, add []MethodInfo) []MethodInfo {
	for _, m := range add {
		if !hasMethod(dst, m.Name) {
			dst = append(dst, m)
		}
	}
	return dst
}

func hasMethod(methods []MethodInfo, name string) bool {
	for i := range methods {
		if methods[i].Name == name {
			return true
		}
	}
	return false
}

func containsAncestor(list []Ancestor, a Ancestor) bool {
	for _, x := range list {
		if x == a {
			return true
		}
	}
	return false
}

// ClassTests is an accepted test class and its test methods.
type ClassTests struct {
	Name    string
	Methods []MethodInfo
}

// MethodNames returns the method names in discovery order.
func (c ClassTests) MethodNames() []string {
	names := make([]string, len(c.Methods))
	for i, m := range c.Methods {
		names[i] = m.Name
	}
	return names
}

// Discovery is the result of scanning one file.
type Discovery struct {
	Path      string
	Classes   []ClassTests
	Disabled  []string
	Ancestors []Ancestor
}

// Class returns the accepted class with the given name.
func (d *Discovery) Class(name string) (ClassTests, bool) {
	for _, c := range d.Classes {
		if c.Name == name {
			return c, true
		}
	}
	return ClassTests{}, false
}

// IsDisabled reports whether name was force-disabled.
func (d *Discovery) IsDisabled(name string) bool {
	i := sort.SearchStrings(d.Disabled, name)
	return i < len(d.Disabled) && d.Disabled[i] == name
}

// SetDisabled stores the disabled set as a sorted slice.
func (d *Discovery) SetDisabled(set map[string]struct{}) {
	d.Disabled = d.Disabled[:0]
	for name := range set {
		d.Disabled = append(d.Disabled, name)
	}
	sort.Strings(d.Disabled)
}

// TestIDs returns "Class.method" identifiers in discovery order.
func (d *Discovery) TestIDs() []string {
	var ids []string
	for _, c := range d.Classes {
		for _, m := range c.Methods {
			ids = append(ids, c.Name+"."+m.Name)
		}
	}
	return ids
}

// FileReport is the per-file entry of a Report.
type FileReport struct {
	Path      string
	Discovery *Discovery
	Err       string
}

// Dependency is a cross-file inheritance edge: classes in Source inherit from
// the listed classes defined in Target.
type Dependency struct {
	Source  string
	Target  string
	Classes []string
}

// BaseRank scores a file that other scanned files inherit from.
type BaseRank struct {
	Path       string
	Rank       float64
	Dependents int
}

// Report is the complete result of a scan, ready for serialization.
type Report struct {
	Root         string
	Target       string
	Files        []FileReport
	Dependencies []Dependency
	Bases        []BaseRank
}

// TestCount returns the number of discovered test methods.
func (r *Report) TestCount() int {
	n := 0
	for _, f := range r.Files {
		if f.Discovery == nil {
			continue
		}
		for _, c := range f.Discovery.Classes {
			n += len(c.Methods)
		}
	}
	return n
}

// Failed returns the files that could not be scanned.
func (r *Report) Failed() []FileReport {
	var failed []FileReport
	for _, f := range r.Files {
		if f.Err != "" {
			failed = append(failed, f)
		}
	}
	return failed
}

// JoinRequirements renders requirements for single-cell outputs.
func JoinRequirements(reqs []string) string {
	return strings.Join(reqs, " ")
}

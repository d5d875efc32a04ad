// Package report renders scan reports as TOON, text tables, JSON or YAML,
// and reads the JSON form back for caching.
package report

import (
	"github.com/phobologic/testscan/internal/model"
)

// Version identifies the JSON/YAML document layout.
const Version = "1.0.0"

// Document is the serialized form of a model.Report.
type Document struct {
	Version      string       `json:"version" yaml:"version"`
	Root         string       `json:"root" yaml:"root"`
	Target       string       `json:"target" yaml:"target"`
	Summary      Summary      `json:"summary" yaml:"summary"`
	Files        []File       `json:"files" yaml:"files"`
	Dependencies []Dependency `json:"dependencies" yaml:"dependencies"`
	Bases        []Base       `json:"bases" yaml:"bases"`
}

// Summary holds report-wide totals.
type Summary struct {
	Files    int `json:"files" yaml:"files"`
	Classes  int `json:"classes" yaml:"classes"`
	Tests    int `json:"tests" yaml:"tests"`
	Disabled int `json:"disabled" yaml:"disabled"`
	Errors   int `json:"errors" yaml:"errors"`
}

// File is one scanned file. Error is set instead of the discovery fields
// when the file could not be scanned.
type File struct {
	Path      string     `json:"path" yaml:"path"`
	Classes   []Class    `json:"classes" yaml:"classes"`
	Disabled  []string   `json:"disabled" yaml:"disabled"`
	Ancestors []Ancestor `json:"ancestors,omitempty" yaml:"ancestors,omitempty"`
	Error     string     `json:"error,omitempty" yaml:"error,omitempty"`
}

// Class is an accepted test class.
type Class struct {
	Name    string   `json:"name" yaml:"name"`
	Methods []Method `json:"methods" yaml:"methods"`
}

// Method is a test method with its merged tags and requirements.
type Method struct {
	Name         string   `json:"name" yaml:"name"`
	Tags         []string `json:"tags" yaml:"tags"`
	Requirements []string `json:"requirements" yaml:"requirements"`
}

// Ancestor is a class in another file that contributed to the hierarchy.
type Ancestor struct {
	Path  string `json:"path" yaml:"path"`
	Class string `json:"class" yaml:"class"`
}

// Dependency is a cross-file inheritance edge.
type Dependency struct {
	Source  string   `json:"source" yaml:"source"`
	Target  string   `json:"target" yaml:"target"`
	Classes []string `json:"classes" yaml:"classes"`
}

// Base is a ranked base-class file.
type Base struct {
	Path       string  `json:"path" yaml:"path"`
	Dependents int     `json:"dependents" yaml:"dependents"`
	Rank       float64 `json:"rank" yaml:"rank"`
}

// Summarize counts the files, classes, tests, disabled classes and failed
// files of r.
func Summarize(r *model.Report) Summary {
	s := Summary{Files: len(r.Files)}
	for _, f := range r.Files {
		if f.Err != "" {
			s.Errors++
		}
		if f.Discovery == nil {
			continue
		}
		s.Classes += len(f.Discovery.Classes)
		s.Disabled += len(f.Discovery.Disabled)
		for _, c := range f.Discovery.Classes {
			s.Tests += len(c.Methods)
		}
	}
	return s
}

// NewDocument converts r to its serialized form. Slices are never nil so
// empty collections encode as [] rather than null.
func NewDocument(r *model.Report) Document {
	doc := Document{
		Version:      Version,
		Root:         r.Root,
		Target:       r.Target,
		Summary:      Summarize(r),
		Files:        make([]File, 0, len(r.Files)),
		Dependencies: make([]Dependency, 0, len(r.Dependencies)),
		Bases:        make([]Base, 0, len(r.Bases)),
	}

	for _, f := range r.Files {
		file := File{
			Path:     f.Path,
			Classes:  []Class{},
			Disabled: []string{},
			Error:    f.Err,
		}
		if d := f.Discovery; d != nil {
			for _, c := range d.Classes {
				class := Class{Name: c.Name, Methods: make([]Method, 0, len(c.Methods))}
				for _, m := range c.Methods {
					class.Methods = append(class.Methods, Method{
						Name:         m.Name,
						Tags:         m.Tags.Strings(),
						Requirements: append([]string{}, m.Requirements...),
					})
				}
				file.Classes = append(file.Classes, class)
			}
			file.Disabled = append(file.Disabled, d.Disabled...)
			for _, a := range d.Ancestors {
				file.Ancestors = append(file.Ancestors, Ancestor{Path: a.Path, Class: a.Class})
			}
		}
		doc.Files = append(doc.Files, file)
	}

	for _, d := range r.Dependencies {
		doc.Dependencies = append(doc.Dependencies, Dependency{
			Source:  d.Source,
			Target:  d.Target,
			Classes: append([]string{}, d.Classes...),
		})
	}
	for _, b := range r.Bases {
		doc.Bases = append(doc.Bases, Base{Path: b.Path, Dependents: b.Dependents, Rank: b.Rank})
	}
	return doc
}

// Report converts the document back to a model.Report.
func (doc Document) Report() *model.Report {
	r := &model.Report{
		Root:   doc.Root,
		Target: doc.Target,
	}
	for _, f := range doc.Files {
		fr := model.FileReport{Path: f.Path, Err: f.Error}
		if f.Error == "" {
			d := &model.Discovery{Path: f.Path}
			for _, c := range f.Classes {
				ct := model.ClassTests{Name: c.Name}
				for _, m := range c.Methods {
					ct.Methods = append(ct.Methods, model.MethodInfo{
						Name:         m.Name,
						Tags:         model.ParseTags(m.Tags...),
						Requirements: m.Requirements,
					})
				}
				d.Classes = append(d.Classes, ct)
			}
			d.Disabled = append(d.Disabled, f.Disabled...)
			for _, a := range f.Ancestors {
				d.Ancestors = append(d.Ancestors, model.Ancestor{Path: a.Path, Class: a.Class})
			}
			fr.Discovery = d
		}
		r.Files = append(r.Files, fr)
	}
	for _, d := range doc.Dependencies {
		r.Dependencies = append(r.Dependencies, model.Dependency{
			Source:  d.Source,
			Target:  d.Target,
			Classes: d.Classes,
		})
	}
	for _, b := range doc.Bases {
		r.Bases = append(r.Bases, model.BaseRank{Path: b.Path, Dependents: b.Dependents, Rank: b.Rank})
	}
	return r
}

// Package filter narrows a scan Report down to the tests a caller asked for.
package filter

import (
	"strings"

	"github.com/phobologic/testscan/internal/model"
)

// ByFile returns a new Report containing only files whose path contains
// substr (case-insensitive), with the dependency edges touching them.
func ByFile(r *model.Report, substr string) *model.Report {
	lower := strings.ToLower(substr)

	var files []model.FileReport
	for i := range r.Files {
		if strings.Contains(strings.ToLower(r.Files[i].Path), lower) {
			files = append(files, r.Files[i])
		}
	}
	return rebuild(r, files)
}

// ByClass returns a new Report keeping only test classes whose name contains
// substr (case-insensitive). Files left without classes are dropped; failed
// files are kept so errors stay visible.
func ByClass(r *model.Report, substr string) *model.Report {
	lower := strings.ToLower(substr)
	return mapClasses(r, func(c model.ClassTests) (model.ClassTests, bool) {
		return c, strings.Contains(strings.ToLower(c.Name), lower)
	})
}

// ByTags keeps the test methods selected by tag filters. Each filter is a
// comma-separated list of tags that must all be present; a "-" prefix means
// the tag must be absent. A method is kept when any filter accepts it.
// Methods without tags are kept only when includeUntagged is set. An empty
// filter list keeps everything.
func ByTags(r *model.Report, filters []string, includeUntagged bool) *model.Report {
	if len(filters) == 0 {
		return r
	}
	parsed := make([]tagFilter, 0, len(filters))
	for _, f := range filters {
		parsed = append(parsed, parseTagFilter(f))
	}

	return mapClasses(r, func(c model.ClassTests) (model.ClassTests, bool) {
		var methods []model.MethodInfo
		for _, m := range c.Methods {
			if len(m.Tags) == 0 {
				if includeUntagged {
					methods = append(methods, m)
				}
				continue
			}
			for _, f := range parsed {
				if f.accepts(m.Tags) {
					methods = append(methods, m)
					break
				}
			}
		}
		return model.ClassTests{Name: c.Name, Methods: methods}, len(methods) > 0
	})
}

type tagFilter struct {
	must    []string
	mustNot []string
}

func parseTagFilter(s string) tagFilter {
	var f tagFilter
	for _, tag := range strings.Split(s, ",") {
		tag = strings.TrimSpace(tag)
		switch {
		case tag == "" || tag == "-":
		case strings.HasPrefix(tag, "-"):
			f.mustNot = append(f.mustNot, tag[1:])
		default:
			f.must = append(f.must, tag)
		}
	}
	return f
}

func (f tagFilter) accepts(tags model.Tags) bool {
	for _, t := range f.must {
		if !tags.Has(t) {
			return false
		}
	}
	for _, t := range f.mustNot {
		if tags.Has(t) {
			return false
		}
	}
	return true
}

// SelectFiles returns a new Report with only the first maxFiles files. If
// maxFiles is <= 0 or >= len(files), r is returned unchanged.
func SelectFiles(r *model.Report, maxFiles int) *model.Report {
	if maxFiles <= 0 || maxFiles >= len(r.Files) {
		return r
	}
	return rebuild(r, r.Files[:maxFiles])
}

// mapClasses rewrites every discovered class with fn, dropping classes fn
// rejects and files left empty.
func mapClasses(r *model.Report, fn func(model.ClassTests) (model.ClassTests, bool)) *model.Report {
	var files []model.FileReport
	for i := range r.Files {
		f := r.Files[i]
		if f.Discovery == nil {
			files = append(files, f)
			continue
		}
		var classes []model.ClassTests
		for _, c := range f.Discovery.Classes {
			if kept, ok := fn(c); ok {
				classes = append(classes, kept)
			}
		}
		if len(classes) == 0 {
			continue
		}
		disc := *f.Discovery
		disc.Classes = classes
		f.Discovery = &disc
		files = append(files, f)
	}
	return rebuild(r, files)
}

// rebuild returns a copy of r holding files and the dependency edges whose
// source is one of them. Base ranks are dropped unless still inherited from.
func rebuild(r *model.Report, files []model.FileReport) *model.Report {
	kept := make(map[string]struct{}, len(files))
	for i := range files {
		kept[files[i].Path] = struct{}{}
	}

	var deps []model.Dependency
	targets := make(map[string]struct{})
	for i := range r.Dependencies {
		d := &r.Dependencies[i]
		if _, ok := kept[d.Source]; ok {
			deps = append(deps, *d)
			targets[d.Target] = struct{}{}
		}
	}

	var bases []model.BaseRank
	for _, b := range r.Bases {
		if _, ok := targets[b.Path]; ok {
			bases = append(bases, b)
		}
	}

	return &model.Report{
		Root:         r.Root,
		Target:       r.Target,
		Files:        files,
		Dependencies: deps,
		Bases:        bases,
	}
}

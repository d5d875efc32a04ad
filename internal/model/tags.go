package model

import (
	"sort"
	"strings"
)

// Tags is a set of tags. A tag is either a plain name ("fast") or a
// name:value pair ("arch:x86_64"); values of the same name accumulate.
type Tags map[string]map[string]struct{}

// ParseTags builds a Tags set from tag strings, skipping empty ones.
func ParseTags(tags ...string) Tags {
	t := Tags{}
	for _, tag := range tags {
		t.Add(tag)
	}
	return t
}

// Add inserts a single tag.
func (t Tags) Add(tag string) {
	if tag == "" {
		return
	}
	name, value, hasValue := strings.Cut(tag, ":")
	values, ok := t[name]
	if !ok {
		values = make(map[string]struct{})
		t[name] = values
	}
	if hasValue {
		values[value] = struct{}{}
	}
}

// Merge adds every tag of other to t.
func (t Tags) Merge(other Tags) {
	for name, values := range other {
		if _, ok := t[name]; !ok {
			t[name] = make(map[string]struct{}, len(values))
		}
		for v := range values {
			t[name][v] = struct{}{}
		}
	}
}

// Clone returns an independent copy of t. The result is never nil.
func (t Tags) Clone() Tags {
	out := make(Tags, len(t))
	out.Merge(t)
	return out
}

// Has reports whether the tag (plain or name:value) is present.
func (t Tags) Has(tag string) bool {
	name, value, hasValue := strings.Cut(tag, ":")
	values, ok := t[name]
	if !ok {
		return false
	}
	if !hasValue {
		return true
	}
	_, ok = values[value]
	return ok
}

// Contains reports whether every tag of other is also in t.
func (t Tags) Contains(other Tags) bool {
	for name, values := range other {
		mine, ok := t[name]
		if !ok {
			return false
		}
		for v := range values {
			if _, ok := mine[v]; !ok {
				return false
			}
		}
	}
	return true
}

// Strings returns the tags in sorted, canonical form: names without values
// as "name", and one "name:value" entry per value.
func (t Tags) Strings() []string {
	out := make([]string, 0, len(t))
	for name, values := range t {
		if len(values) == 0 {
			out = append(out, name)
			continue
		}
		for v := range values {
			out = append(out, name+":"+v)
		}
	}
	sort.Strings(out)
	return out
}

func (t Tags) String() string {
	return strings.Join(t.Strings(), ",")
}

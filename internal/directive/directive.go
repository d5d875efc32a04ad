// Package directive reads namespaced directives such as ":avocado: enable"
// from docstrings.
package directive

import (
	"regexp"
	"strings"

	"github.com/phobologic/testscan/internal/model"
)

// Keywords with a special meaning. Unknown keywords are ignored.
const (
	Enable            = "enable"
	Disable           = "disable"
	Recursive         = "recursive"
	TagsPrefix        = "tags="
	RequirementPrefix = "requirement="
)

// Reader parses directives of a single namespace.
type Reader struct {
	namespace string
	re        *regexp.Regexp
}

// NewReader returns a Reader for lines of the form ":<namespace>: <keyword>".
func NewReader(namespace string) *Reader {
	pattern := `^\s*:` + regexp.QuoteMeta(namespace) +
		`:[ \t]+(([a-zA-Z0-9]+?[a-zA-Z0-9_:,=\-.]*)|(requirement=\{.*\}))\s*$`
	return &Reader{
		namespace: namespace,
		re:        regexp.MustCompile(pattern),
	}
}

// Namespace returns the directive namespace.
func (r *Reader) Namespace() string {
	return r.namespace
}

// Keywords returns the raw directive keywords of docstring in order.
func (r *Reader) Keywords(docstring string) []string {
	if docstring == "" {
		return nil
	}
	var out []string
	for _, line := range strings.Split(docstring, "\n") {
		m := r.re.FindStringSubmatch(line)
		if m != nil {
			out = append(out, m[1])
		}
	}
	return out
}

// Has reports whether docstring carries the given keyword.
func (r *Reader) Has(docstring, keyword string) bool {
	for _, k := range r.Keywords(docstring) {
		if k == keyword {
			return true
		}
	}
	return false
}

// Parse collects every directive of docstring. An empty docstring yields
// empty Directives with a non-nil Tags set.
func (r *Reader) Parse(docstring string) model.Directives {
	d := model.Directives{Tags: model.Tags{}}
	for _, k := range r.Keywords(docstring) {
		switch {
		case k == Enable:
			d.Enable = true
		case k == Disable:
			d.Disable = true
		case k == Recursive:
			d.Recursive = true
		case strings.HasPrefix(k, TagsPrefix):
			for _, tag := range strings.Split(strings.TrimPrefix(k, TagsPrefix), ",") {
				d.Tags.Add(tag)
			}
		case strings.HasPrefix(k, RequirementPrefix):
			d.Requirements = append(d.Requirements, strings.TrimPrefix(k, RequirementPrefix))
		}
	}
	return d
}

package resolve

import (
	"strings"

	"github.com/phobologic/testscan/internal/directive"
	"github.com/phobologic/testscan/internal/model"
)

// TestPrefix is the literal prefix of test method names.
const TestPrefix = "test"

// LocalMethods returns the test methods klass declares itself, in declaration
// order. Each method carries its own tags plus the class tags, and its own
// requirements followed by the class requirements. A repeated method name
// keeps its first definition.
func LocalMethods(r *directive.Reader, klass *model.ClassDef, class model.Directives) []model.MethodInfo {
	var methods []model.MethodInfo
	for _, def := range klass.Methods {
		if !strings.HasPrefix(def.Name, TestPrefix) {
			continue
		}
		own := r.Parse(def.Docstring)

		tags := own.Tags.Clone()
		tags.Merge(class.Tags)

		var reqs []string
		reqs = append(reqs, own.Requirements...)
		reqs = append(reqs, class.Requirements...)

		methods = model.AppendMethods(methods, []model.MethodInfo{{
			Name:         def.Name,
			Tags:         tags,
			Requirements: reqs,
		}})
	}
	return methods
}

package lang

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

func init() {
	Languages["python"] = &Language{
		Name:       "python",
		Extensions: []string{".py"},
		lang:       python.GetLanguage(),
		Docstring:  pythonDocstring,
	}
}

// pythonDocstring mirrors Python's own docstring rule: the first statement of
// the body must be a str literal expression. Bytes and f-strings do not count.
func pythonDocstring(body *sitter.Node, source []byte) (string, bool) {
	if body == nil {
		return "", false
	}
	var first *sitter.Node
	for i := 0; i < int(body.NamedChildCount()); i++ {
		child := body.NamedChild(i)
		if child.Type() == "comment" {
			continue
		}
		first = child
		break
	}
	if first == nil || first.Type() != "expression_statement" || first.NamedChildCount() != 1 {
		return "", false
	}

	expr := first.NamedChild(0)
	var raw string
	switch expr.Type() {
	case "string":
		s, ok := pythonStringValue(NodeText(expr, source))
		if !ok {
			return "", false
		}
		raw = s
	case "concatenated_string":
		var b strings.Builder
		for i := 0; i < int(expr.NamedChildCount()); i++ {
			part := expr.NamedChild(i)
			if part.Type() != "string" {
				continue
			}
			s, ok := pythonStringValue(NodeText(part, source))
			if !ok {
				return "", false
			}
			b.WriteString(s)
		}
		raw = b.String()
	default:
		return "", false
	}
	return CleanDoc(raw), true
}

// pythonStringValue strips the prefix and quotes of a string literal. Escape
// sequences are left as written except for backslash line continuations.
func pythonStringValue(lit string) (string, bool) {
	quote := strings.IndexAny(lit, `"'`)
	if quote < 0 {
		return "", false
	}
	prefix := strings.ToLower(lit[:quote])
	if strings.ContainsAny(prefix, "bf") {
		return "", false
	}
	body := lit[quote:]
	switch {
	case len(body) >= 6 && (strings.HasPrefix(body, `"""`) || strings.HasPrefix(body, `'''`)):
		body = body[3 : len(body)-3]
	case len(body) >= 2:
		body = body[1 : len(body)-1]
	default:
		return "", false
	}
	if !strings.Contains(prefix, "r") {
		body = strings.ReplaceAll(body, "\\\n", "")
	}
	return body, true
}

// CleanDoc normalizes docstring indentation the way Python's inspect.cleandoc
// does: tabs are expanded, the first line loses its leading whitespace, the
// common indentation of the remaining lines is removed, and leading and
// trailing blank lines are dropped.
func CleanDoc(doc string) string {
	lines := strings.Split(strings.ReplaceAll(doc, "\t", "        "), "\n")

	margin := -1
	for _, line := range lines[1:] {
		content := strings.TrimLeft(line, " ")
		if content == "" {
			continue
		}
		indent := len(line) - len(content)
		if margin < 0 || indent < margin {
			margin = indent
		}
	}

	lines[0] = strings.TrimLeft(lines[0], " ")
	if margin > 0 {
		for i := 1; i < len(lines); i++ {
			if len(lines[i]) >= margin {
				lines[i] = lines[i][margin:]
			} else {
				lines[i] = strings.TrimLeft(lines[i], " ")
			}
		}
	}

	for len(lines) > 0 && strings.TrimSpace(lines[0]) == "" {
		lines = lines[1:]
	}
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}

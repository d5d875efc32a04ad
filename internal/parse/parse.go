// Package parse reduces Python source files to model.SourceModule values
// using tree-sitter.
package parse

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/testscan/internal/lang"
	"github.com/phobologic/testscan/internal/model"
)

var (
	// ErrNotFound is returned when a source file does not exist.
	ErrNotFound = errors.New("source file not found")
	// ErrSyntax is matched by every *ParseError.
	ErrSyntax = errors.New("invalid syntax")
	// ErrTooLarge is returned for files above the configured size limit.
	ErrTooLarge = errors.New("source file too large")
)

// ParseError reports the first syntax error found in a file.
type ParseError struct {
	Path   string
	Line   int
	Column int
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d:%d: invalid syntax", e.Path, e.Line, e.Column)
}

func (e *ParseError) Unwrap() error {
	return ErrSyntax
}

type statement struct {
	capture string
	node    *sitter.Node
}

// Module parses source into a SourceModule. The parser must be created for
// l, and query must be l's statement query. path should be absolute; it is
// recorded on the module and anchors relative import origins.
func Module(ctx context.Context, l *lang.Language, parser *sitter.Parser, query *sitter.Query, source []byte, path string) (*model.SourceModule, error) {
	mod := &model.SourceModule{
		Path:    path,
		Imports: make(map[string]model.ImportRef),
	}
	if len(source) == 0 {
		return mod, nil
	}

	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		perr := &ParseError{Path: path, Line: 1, Column: 1}
		if bad := firstError(root); bad != nil {
			perr.Line = int(bad.StartPoint().Row) + 1
			perr.Column = int(bad.StartPoint().Column) + 1
		}
		return nil, perr
	}

	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(query, root)

	var stmts []statement
	for {
		match, ok := qc.NextMatch()
		if !ok {
			break
		}
		for _, c := range match.Captures {
			stmts = append(stmts, statement{
				capture: query.CaptureNameForId(c.Index),
				node:    c.Node,
			})
		}
	}
	sort.SliceStable(stmts, func(i, j int) bool {
		return stmts[i].node.StartByte() < stmts[j].node.StartByte()
	})

	dir := filepath.Dir(path)
	for _, st := range stmts {
		switch st.capture {
		case lang.CaptureImport:
			addImports(mod, st.node, source, dir)
		case lang.CaptureImportFrom:
			addFromImports(mod, st.node, source, dir)
		case lang.CaptureClass:
			if klass, ok := classDef(l, st.node, source); ok {
				mod.Classes = append(mod.Classes, klass)
			}
		}
	}

	return mod, nil
}

func firstError(node *sitter.Node) *sitter.Node {
	if node.Type() == "ERROR" || node.IsMissing() {
		return node
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child == nil || !(child.HasError() || child.IsMissing()) {
			continue
		}
		if bad := firstError(child); bad != nil {
			return bad
		}
	}
	return nil
}

// addImports handles "import a.b" and "import a.b as c".
func addImports(mod *model.SourceModule, node *sitter.Node, source []byte, dir string) {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		switch child.Type() {
		case "dotted_name":
			dotted := lang.NodeText(child, source)
			// "import a.b" binds "a".
			head, _, _ := strings.Cut(dotted, ".")
			mod.Imports[head] = model.ImportRef{
				Module: head,
				Origin: filepath.Join(dir, head),
			}
		case "aliased_import":
			name := child.ChildByFieldName("name")
			alias := child.ChildByFieldName("alias")
			if name == nil || alias == nil {
				continue
			}
			dotted := lang.NodeText(name, source)
			mod.Imports[lang.NodeText(alias, source)] = model.ImportRef{
				Module: dotted,
				Origin: filepath.Join(dir, modulePath(dotted)),
			}
		}
	}
}

// addFromImports handles "from [.]*mod import x [as y], ...".
func addFromImports(mod *model.SourceModule, node *sitter.Node, source []byte, dir string) {
	var (
		module   string
		level    int
		seenFrom bool
	)
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child.Type() == "comment" {
			continue
		}
		if !seenFrom {
			seenFrom = true
			module, level = fromModule(child, source)
			continue
		}

		var name, local string
		switch child.Type() {
		case "dotted_name", "identifier":
			name = lang.NodeText(child, source)
			local = name
		case "aliased_import":
			n := child.ChildByFieldName("name")
			a := child.ChildByFieldName("alias")
			if n == nil || a == nil {
				continue
			}
			name = lang.NodeText(n, source)
			local = lang.NodeText(a, source)
		default:
			// wildcard imports bind nothing we can follow
			continue
		}

		mod.Imports[local] = model.ImportRef{
			Module: module,
			Name:   name,
			Level:  level,
			From:   true,
			Origin: filepath.Join(fromDir(dir, module, level), modulePath(name)),
		}
	}
}

func fromModule(node *sitter.Node, source []byte) (string, int) {
	if node.Type() != "relative_import" {
		return lang.NodeText(node, source), 0
	}
	var module string
	level := 0
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		switch child.Type() {
		case "import_prefix":
			level = strings.Count(lang.NodeText(child, source), ".")
		case "dotted_name":
			module = lang.NodeText(child, source)
		}
	}
	return module, level
}

// fromDir returns the directory a from-import's module lives in: the file's
// directory, moved up one level per extra leading dot, joined with the
// module's path.
func fromDir(dir, module string, level int) string {
	for i := 1; i < level; i++ {
		dir = filepath.Dir(dir)
	}
	if module != "" {
		dir = filepath.Join(dir, modulePath(module))
	}
	return dir
}

func modulePath(dotted string) string {
	return strings.ReplaceAll(dotted, ".", string(filepath.Separator))
}

func classDef(l *lang.Language, node *sitter.Node, source []byte) (model.ClassDef, bool) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return model.ClassDef{}, false
	}
	klass := model.ClassDef{
		Name: lang.NodeText(nameNode, source),
		Line: int(node.StartPoint().Row) + 1,
	}

	if args := node.ChildByFieldName("superclasses"); args != nil {
		for i := 0; i < int(args.NamedChildCount()); i++ {
			if base, ok := baseRef(args.NamedChild(i), source); ok {
				klass.Bases = append(klass.Bases, base)
			}
		}
	}

	body := node.ChildByFieldName("body")
	if doc, ok := l.Docstring(body, source); ok {
		klass.Docstring = doc
	}
	if body != nil {
		klass.Methods = methodDefs(l, body, source)
	}
	return klass, true
}

func baseRef(node *sitter.Node, source []byte) (model.BaseRef, bool) {
	text := lang.CollapseWhitespace(lang.NodeText(node, source))
	switch node.Type() {
	case "identifier":
		return model.BaseRef{Kind: model.BaseSimple, Name: text, Text: text}, true
	case "attribute":
		obj := node.ChildByFieldName("object")
		attr := node.ChildByFieldName("attribute")
		if obj != nil && attr != nil && obj.Type() == "identifier" {
			return model.BaseRef{
				Kind: model.BaseQualified,
				Name: lang.NodeText(obj, source),
				Attr: lang.NodeText(attr, source),
				Text: text,
			}, true
		}
		return model.BaseRef{Kind: model.BaseUnsupported, Text: text}, true
	case "keyword_argument", "comment":
		// metaclass=... and friends are not bases
		return model.BaseRef{}, false
	default:
		return model.BaseRef{Kind: model.BaseUnsupported, Text: text}, true
	}
}

// methodDefs returns the plain (non-async) functions defined directly in a
// class body, decorated or not, in declaration order.
func methodDefs(l *lang.Language, body *sitter.Node, source []byte) []model.MethodDef {
	var methods []model.MethodDef
	for i := 0; i < int(body.NamedChildCount()); i++ {
		def := body.NamedChild(i)
		if def.Type() == "decorated_definition" {
			def = def.ChildByFieldName("definition")
		}
		if def == nil || def.Type() != "function_definition" || isAsync(def) {
			continue
		}
		nameNode := def.ChildByFieldName("name")
		if nameNode == nil {
			continue
		}
		m := model.MethodDef{
			Name: lang.NodeText(nameNode, source),
			Line: int(def.StartPoint().Row) + 1,
		}
		if doc, ok := l.Docstring(def.ChildByFieldName("body"), source); ok {
			m.Docstring = doc
		}
		methods = append(methods, m)
	}
	return methods
}

func isAsync(def *sitter.Node) bool {
	return def.ChildCount() > 0 && def.Child(0).Type() == "async"
}

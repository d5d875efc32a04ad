package parse

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/phobologic/testscan/internal/lang"
	"github.com/phobologic/testscan/internal/model"
)

func setup(t *testing.T) func(source, path string) (*model.SourceModule, error) {
	t.Helper()
	l := lang.Languages["python"]
	if l == nil {
		t.Fatal("python language not registered")
	}
	q, err := l.GetStatementQuery()
	if err != nil {
		t.Fatalf("GetStatementQuery: %v", err)
	}
	return func(source, path string) (*model.SourceModule, error) {
		p := l.NewParser()
		return Module(context.Background(), l, p, q, []byte(source), path)
	}
}

func mustParse(t *testing.T, source string) *model.SourceModule {
	t.Helper()
	parse := setup(t)
	mod, err := parse(source, "/src/pkg/test_mod.py")
	if err != nil {
		t.Fatalf("Module: %v", err)
	}
	return mod
}

func TestModuleClasses(t *testing.T) {
	t.Parallel()

	mod := mustParse(t, `import avocado

class First(avocado.Test):
    """Doc.

    :avocado: tags=fast
    """

    def test_a(self):
        """:avocado: tags=net"""

    @decorator
    def test_b(self):
        pass

    async def test_async(self):
        pass

    def helper(self):
        pass

    class Nested:
        pass


def function():
    class Inner:
        pass


@register
class Second(First, metaclass=Meta):
    pass
`)

	if len(mod.Classes) != 2 {
		t.Fatalf("expected 2 top-level classes, got %d: %+v", len(mod.Classes), mod.Classes)
	}

	first := mod.Classes[0]
	if first.Name != "First" {
		t.Errorf("class 0 name = %q, want First", first.Name)
	}
	if first.Line != 3 {
		t.Errorf("class 0 line = %d, want 3", first.Line)
	}
	if first.Docstring != "Doc.\n\n:avocado: tags=fast" {
		t.Errorf("class 0 docstring = %q", first.Docstring)
	}
	if len(first.Bases) != 1 || first.Bases[0].Kind != model.BaseQualified ||
		first.Bases[0].Name != "avocado" || first.Bases[0].Attr != "Test" {
		t.Errorf("class 0 bases = %+v", first.Bases)
	}

	var names []string
	for _, m := range first.Methods {
		names = append(names, m.Name)
	}
	want := []string{"test_a", "test_b", "helper"}
	if len(names) != len(want) {
		t.Fatalf("methods = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("method %d = %q, want %q", i, names[i], want[i])
		}
	}
	if first.Methods[0].Docstring != ":avocado: tags=net" {
		t.Errorf("test_a docstring = %q", first.Methods[0].Docstring)
	}

	second := mod.Classes[1]
	if second.Name != "Second" {
		t.Errorf("class 1 name = %q, want Second", second.Name)
	}
	if len(second.Bases) != 1 || second.Bases[0].Kind != model.BaseSimple || second.Bases[0].Name != "First" {
		t.Errorf("class 1 bases = %+v (metaclass keyword must be dropped)", second.Bases)
	}
}

func TestModuleBaseKinds(t *testing.T) {
	t.Parallel()

	mod := mustParse(t, "class A(Simple, mod.Qualified, a.b.Deep, factory(), Generic[T]):\n    pass\n")
	if len(mod.Classes) != 1 {
		t.Fatalf("expected 1 class, got %d", len(mod.Classes))
	}
	bases := mod.Classes[0].Bases
	wantKinds := []model.BaseKind{
		model.BaseSimple,
		model.BaseQualified,
		model.BaseUnsupported,
		model.BaseUnsupported,
		model.BaseUnsupported,
	}
	if len(bases) != len(wantKinds) {
		t.Fatalf("bases = %+v", bases)
	}
	for i, k := range wantKinds {
		if bases[i].Kind != k {
			t.Errorf("base %d (%s) kind = %v, want %v", i, bases[i].Text, bases[i].Kind, k)
		}
	}
	if bases[2].Text != "a.b.Deep" {
		t.Errorf("unsupported base text = %q", bases[2].Text)
	}
}

func TestModuleImports(t *testing.T) {
	t.Parallel()

	mod := mustParse(t, `import os
import os.path
import avocado as av
import pkg.sub as ps
from avocado import Test
from avocado import Test as AvTest
from .base import Base
from . import sibling
from ..common import helpers as h
from pkg.mod import (
    One,  # first
    Two as Deux,
)
from star import *
`)

	tests := []struct {
		local string
		want  model.ImportRef
	}{
		{"os", model.ImportRef{Module: "os", Origin: "/src/pkg/os"}},
		{"av", model.ImportRef{Module: "avocado", Origin: "/src/pkg/avocado"}},
		{"ps", model.ImportRef{Module: "pkg.sub", Origin: "/src/pkg/pkg/sub"}},
		{"Test", model.ImportRef{Module: "avocado", Name: "Test", From: true, Origin: "/src/pkg/avocado/Test"}},
		{"AvTest", model.ImportRef{Module: "avocado", Name: "Test", From: true, Origin: "/src/pkg/avocado/Test"}},
		{"Base", model.ImportRef{Module: "base", Name: "Base", Level: 1, From: true, Origin: "/src/pkg/base/Base"}},
		{"sibling", model.ImportRef{Name: "sibling", Level: 1, From: true, Origin: "/src/pkg/sibling"}},
		{"h", model.ImportRef{Module: "common", Name: "helpers", Level: 2, From: true, Origin: "/src/common/helpers"}},
		{"One", model.ImportRef{Module: "pkg.mod", Name: "One", From: true, Origin: "/src/pkg/pkg/mod/One"}},
		{"Deux", model.ImportRef{Module: "pkg.mod", Name: "Two", From: true, Origin: "/src/pkg/pkg/mod/Two"}},
	}
	for _, tt := range tests {
		got, ok := mod.Imports[tt.local]
		if !ok {
			t.Errorf("import %q missing", tt.local)
			continue
		}
		tt.want.Origin = filepath.FromSlash(tt.want.Origin)
		if got != tt.want {
			t.Errorf("import %q = %+v, want %+v", tt.local, got, tt.want)
		}
	}
	if _, ok := mod.Imports["*"]; ok {
		t.Error("wildcard import should not bind a name")
	}
}

func TestModuleImportsAfterClass(t *testing.T) {
	t.Parallel()

	mod := mustParse(t, "class A(Test):\n    pass\n\nfrom avocado import Test\n")
	if _, ok := mod.Imports["Test"]; !ok {
		t.Error("imports anywhere at top level should be recorded")
	}
}

func TestModuleSyntaxError(t *testing.T) {
	t.Parallel()
	parse := setup(t)

	_, err := parse("class Broken(:\n    pass\n", "/src/broken.py")
	if err == nil {
		t.Fatal("expected syntax error")
	}
	if !errors.Is(err, ErrSyntax) {
		t.Errorf("error %v does not match ErrSyntax", err)
	}
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("error %T is not *ParseError", err)
	}
	if perr.Path != "/src/broken.py" || perr.Line != 1 {
		t.Errorf("ParseError = %+v", perr)
	}
}

func TestModuleEmpty(t *testing.T) {
	t.Parallel()

	mod := mustParse(t, "")
	if len(mod.Classes) != 0 || len(mod.Imports) != 0 {
		t.Errorf("expected empty module, got %+v", mod)
	}
}

func TestLoaderCachesAndReportsErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	good := filepath.Join(dir, "good.py")
	if err := os.WriteFile(good, []byte("class A:\n    pass\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	big := filepath.Join(dir, "big.py")
	if err := os.WriteFile(big, []byte("class B:\n    pass\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	ld, err := NewLoader(WithMaxFileSize(18))
	if err != nil {
		t.Fatalf("NewLoader: %v", err)
	}
	ctx := context.Background()

	first, err := ld.Load(ctx, good)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	second, err := ld.Load(ctx, good)
	if err != nil {
		t.Fatalf("Load (cached): %v", err)
	}
	if first != second {
		t.Error("expected the cached module to be returned")
	}

	if _, err := ld.Load(ctx, filepath.Join(dir, "missing.py")); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing file error = %v, want ErrNotFound", err)
	}

	if err := os.WriteFile(big, []byte("class Bigger:\n    pass\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ld.Load(ctx, big); !errors.Is(err, ErrTooLarge) {
		t.Errorf("large file error = %v, want ErrTooLarge", err)
	}

	if got := ld.Loaded(); got != 3 {
		t.Errorf("Loaded() = %d, want 3", got)
	}
}

func TestLoaderCanceled(t *testing.T) {
	t.Parallel()

	ld, err := NewLoader()
	if err != nil {
		t.Fatalf("NewLoader: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := ld.Load(ctx, "whatever.py"); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

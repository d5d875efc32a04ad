package finder

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/testscan/internal/model"
	"github.com/phobologic/testscan/internal/parse"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func classNames(classes []model.ClassTests) []string {
	out := make([]string, len(classes))
	for i, c := range classes {
		out[i] = c.Name
	}
	return out
}

func TestScenarioEnable(t *testing.T) {
	t.Parallel()

	path := writeFile(t, t.TempDir(), "test_a.py", `class Foo:
    """:avocado: enable"""

    def test_one(self):
        pass
`)
	disc, err := DiscoverDirectiveAware(context.Background(), path)
	require.NoError(t, err)

	require.Len(t, disc.Classes, 1)
	assert.Equal(t, "Foo", disc.Classes[0].Name)
	assert.Equal(t, []model.MethodInfo{{Name: "test_one", Tags: model.Tags{}}}, disc.Classes[0].Methods)
	assert.Empty(t, disc.Disabled)
}

func TestScenarioDisable(t *testing.T) {
	t.Parallel()

	path := writeFile(t, t.TempDir(), "test_b.py", `import avocado


class Foo(avocado.Test):
    """:avocado: disable"""

    def test_one(self):
        pass
`)
	disc, err := DiscoverDirectiveAware(context.Background(), path)
	require.NoError(t, err)

	assert.Empty(t, disc.Classes)
	assert.Equal(t, []string{"Foo"}, disc.Disabled)
	assert.True(t, disc.IsDisabled("Foo"))
}

func TestScenarioSameFileInheritance(t *testing.T) {
	t.Parallel()

	path := writeFile(t, t.TempDir(), "test_c.py", `from unittest import TestCase as GenericTestBase


class Base(GenericTestBase):
    def test_a(self):
        pass


class Child(Base):
    def test_b(self):
        pass
`)
	classes, err := DiscoverStructural(context.Background(), path)
	require.NoError(t, err)

	require.Equal(t, []string{"Base", "Child"}, classNames(classes))
	assert.Equal(t, []string{"test_a"}, classes[0].MethodNames())
	assert.Equal(t, []string{"test_b", "test_a"}, classes[1].MethodNames())
}

func TestScenarioUnresolvedForeignBase(t *testing.T) {
	t.Parallel()

	path := writeFile(t, t.TempDir(), "test_d.py", `class Child(unresolved.Foreign):
    """:avocado: recursive"""

    def test_own(self):
        pass
`)
	disc, err := DiscoverDirectiveAware(context.Background(), path)
	require.NoError(t, err)

	require.Len(t, disc.Classes, 1)
	assert.Equal(t, "Child", disc.Classes[0].Name)
	assert.Equal(t, []string{"test_own"}, disc.Classes[0].MethodNames())
}

func TestEnableSkipsAncestors(t *testing.T) {
	t.Parallel()

	path := writeFile(t, t.TempDir(), "test_e.py", `import avocado


class Base(avocado.Test):
    """:avocado: tags=base"""

    def test_base(self):
        pass


class Child(Base):
    """:avocado: enable
    :avocado: tags=child
    """

    def test_child(self):
        pass
`)
	disc, err := DiscoverDirectiveAware(context.Background(), path)
	require.NoError(t, err)

	child, ok := disc.Class("Child")
	require.True(t, ok)
	require.Equal(t, []string{"test_child"}, child.MethodNames())
	assert.Equal(t, []string{"child"}, child.Methods[0].Tags.Strings())
}

func TestDirectivesAndDiscovery(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "shared.py", `import avocado


class SharedBase(avocado.Test):
    """:avocado: tags=shared"""

    def test_shared(self):
        pass

    def test_override(self):
        """:avocado: tags=parent"""
`)
	path := writeFile(t, dir, "test_mix.py", `import avocado
from shared import SharedBase


class NotATest:
    def test_nothing(self):
        pass


class Recursive(NotATest):
    """:avocado: recursive"""


class Inherits(SharedBase):
    """:avocado: tags=fast"""

    def test_override(self):
        """:avocado: tags=child"""

    def test_local(self):
        pass


class Disabled(SharedBase):
    """:avocado: disable"""


class Inherits(avocado.Test):
    def test_duplicate(self):
        pass
`)

	disc, err := DiscoverDirectiveAware(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, []string{"Recursive", "Inherits"}, classNames(disc.Classes))
	assert.Equal(t, []string{"Disabled"}, disc.Disabled)

	rec, _ := disc.Class("Recursive")
	assert.Equal(t, []string{"test_nothing"}, rec.MethodNames())

	inh, _ := disc.Class("Inherits")
	require.Equal(t, []string{"test_override", "test_local", "test_shared"}, inh.MethodNames())
	assert.Equal(t, []string{"child", "fast"}, inh.Methods[0].Tags.Strings())
	assert.Equal(t, []string{"fast"}, inh.Methods[1].Tags.Strings())
	assert.Equal(t, []string{"shared"}, inh.Methods[2].Tags.Strings())

	for _, c := range disc.Classes {
		for _, m := range c.Methods {
			assert.NotNil(t, m.Tags)
		}
	}
	assert.Equal(t, []model.Ancestor{{Path: filepath.Join(dir, "shared.py"), Class: "SharedBase"}}, disc.Ancestors)
}

func TestStructuralModeIgnoresAvocado(t *testing.T) {
	t.Parallel()

	path := writeFile(t, t.TempDir(), "test_f.py", `import unittest
import avocado


class Unit(unittest.TestCase):
    def test_unit(self):
        pass


class Avo(avocado.Test):
    def test_avo(self):
        pass


class Off(unittest.TestCase):
    """:avocado: disable"""

    def test_off(self):
        pass
`)
	classes, err := DiscoverStructural(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Unit"}, classNames(classes))
}

func TestSearchPath(t *testing.T) {
	t.Parallel()

	lib := t.TempDir()
	writeFile(t, lib, "frameworks/base.py", `import avocado


class FrameworkTest(avocado.Test):
    def test_framework(self):
        pass
`)
	writeFile(t, lib, "frameworks/__init__.py", "")
	path := writeFile(t, t.TempDir(), "test_g.py", `from frameworks.base import FrameworkTest


class Mine(FrameworkTest):
    def test_mine(self):
        pass
`)
	ctx := context.Background()

	disc, err := DiscoverDirectiveAware(ctx, path)
	require.NoError(t, err)
	assert.Empty(t, disc.Classes, "base is not reachable without the search path")

	disc, err = DiscoverDirectiveAware(ctx, path, WithSearchPath(lib))
	require.NoError(t, err)
	require.Len(t, disc.Classes, 1)
	assert.Equal(t, []string{"test_mine", "test_framework"}, disc.Classes[0].MethodNames())
}

func TestCustomTarget(t *testing.T) {
	t.Parallel()

	path := writeFile(t, t.TempDir(), "test_h.py", `from framework import Case


class Mine(Case):
    """:custom: tags=x"""

    def test_mine(self):
        pass
`)
	disc, err := New(
		WithTarget(model.Target{Module: "framework", Class: "Case"}),
		WithNamespace("custom"),
	).Find(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, disc.Classes, 1)
	assert.Equal(t, []string{"x"}, disc.Classes[0].Methods[0].Tags.Strings())
}

func TestFindErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ctx := context.Background()

	_, err := DiscoverDirectiveAware(ctx, filepath.Join(dir, "missing.py"))
	assert.ErrorIs(t, err, parse.ErrNotFound)

	broken := writeFile(t, dir, "test_broken.py", "class Broken(:\n    pass\n")
	_, err = DiscoverStructural(ctx, broken)
	assert.ErrorIs(t, err, parse.ErrSyntax)

	big := writeFile(t, dir, "test_big.py", "class Big:\n    pass\n")
	_, err = New(WithMaxFileSize(4)).Find(ctx, big)
	assert.ErrorIs(t, err, parse.ErrTooLarge)

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = New().Find(canceled, big)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestFindIdempotent(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "base.py", "import avocado\n\nclass B(avocado.Test):\n    \"\"\":avocado: tags=a,b:c\"\"\"\n    def test_b(self):\n        pass\n")
	path := writeFile(t, dir, "test_i.py", "from base import B\n\nclass T(B):\n    def test_t(self):\n        pass\n\nclass U(T):\n    pass\n")

	f := New()
	first, err := f.Find(context.Background(), path)
	require.NoError(t, err)
	second, err := f.Find(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestFindAll(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	var paths []string
	for _, name := range []string{"test_1.py", "test_2.py", "test_3.py", "test_4.py"} {
		paths = append(paths, writeFile(t, dir, name, "import avocado\n\nclass T(avocado.Test):\n    def test_"+name[5:6]+"(self):\n        pass\n"))
	}
	broken := writeFile(t, dir, "test_bad.py", "def broken(:\n")
	paths = append(paths[:2], append([]string{broken, filepath.Join(dir, "gone.py")}, paths[2:]...)...)

	results := New().FindAll(context.Background(), paths, 2)
	require.Len(t, results, len(paths))
	for i, r := range results {
		assert.Equal(t, paths[i], r.Path, "result %d out of order", i)
	}

	assert.ErrorIs(t, results[2].Err, parse.ErrSyntax)
	assert.ErrorIs(t, results[3].Err, parse.ErrNotFound)
	assert.Nil(t, results[2].Discovery)

	for _, i := range []int{0, 1, 4, 5} {
		require.NoError(t, results[i].Err)
		require.Len(t, results[i].Discovery.Classes, 1)
	}
	assert.Equal(t, "test_3", results[4].Discovery.Classes[0].Methods[0].Name)
}

func TestFindAllEmpty(t *testing.T) {
	t.Parallel()

	assert.Empty(t, New().FindAll(context.Background(), nil, 0))
}

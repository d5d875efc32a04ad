package graph

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/phobologic/testscan/internal/model"
)

func root() string {
	return filepath.FromSlash("/repo")
}

func abs(rel string) string {
	return filepath.Join(root(), filepath.FromSlash(rel))
}

func TestBuildGraphCrossFileAncestors(t *testing.T) {
	t.Parallel()

	files := []model.FileReport{
		{
			Path: "tests/test_a.py",
			Discovery: &model.Discovery{
				Ancestors: []model.Ancestor{
					{Path: abs("lib/base.py"), Class: "Zeta"},
					{Path: abs("lib/base.py"), Class: "Alpha"},
					{Path: abs("lib/base.py"), Class: "Alpha"},
					{Path: abs("lib/mixins.py"), Class: "Mixin"},
				},
			},
		},
	}

	deps := BuildGraph(root(), files)
	if len(deps) != 2 {
		t.Fatalf("expected 2 deps, got %d: %+v", len(deps), deps)
	}
	if deps[0].Source != "tests/test_a.py" || deps[0].Target != "lib/base.py" {
		t.Errorf("dep 0: %+v", deps[0])
	}
	if len(deps[0].Classes) != 2 || deps[0].Classes[0] != "Alpha" || deps[0].Classes[1] != "Zeta" {
		t.Errorf("classes: %v", deps[0].Classes)
	}
	if deps[1].Target != "lib/mixins.py" {
		t.Errorf("dep 1: %+v", deps[1])
	}
}

func TestBuildGraphNoSelfEdge(t *testing.T) {
	t.Parallel()

	files := []model.FileReport{
		{
			Path: "test_a.py",
			Discovery: &model.Discovery{
				Ancestors: []model.Ancestor{{Path: abs("test_a.py"), Class: "Base"}},
			},
		},
	}

	deps := BuildGraph(root(), files)
	if len(deps) != 0 {
		t.Errorf("expected 0 deps (no self-edges), got %d", len(deps))
	}
}

func TestBuildGraphSkipsFailedFiles(t *testing.T) {
	t.Parallel()

	files := []model.FileReport{{Path: "broken.py", Err: "invalid syntax"}}

	if deps := BuildGraph(root(), files); len(deps) != 0 {
		t.Errorf("expected 0 deps, got %d", len(deps))
	}
}

func TestRelPath(t *testing.T) {
	t.Parallel()

	outside := filepath.FromSlash("/elsewhere/lib.py")
	cases := []struct {
		root string
		path string
		want string
	}{
		{root(), abs("a/b.py"), "a/b.py"},
		{root(), outside, "/elsewhere/lib.py"},
		{"", abs("a.py"), "/repo/a.py"},
		{root(), filepath.FromSlash("/repo../x.py"), "/repo../x.py"},
	}
	for _, tc := range cases {
		if got := RelPath(tc.root, tc.path); got != tc.want {
			t.Errorf("RelPath(%q, %q) = %q, want %q", tc.root, tc.path, got, tc.want)
		}
	}
}

func TestRankWithEdges(t *testing.T) {
	t.Parallel()

	files := []model.FileReport{
		{Path: "a.py"},
		{Path: "c.py"},
	}

	deps := []model.Dependency{
		{Source: "a.py", Target: "b.py", Classes: []string{"X"}},
		{Source: "c.py", Target: "b.py", Classes: []string{"Y"}},
		{Source: "c.py", Target: "d.py", Classes: []string{"Z"}},
	}

	bases := Rank(files, deps)
	if len(bases) != 2 {
		t.Fatalf("expected 2 ranked bases, got %+v", bases)
	}

	// b.py should have highest rank (inherited from by both a and c)
	if bases[0].Path != "b.py" || bases[0].Dependents != 2 {
		t.Errorf("expected b.py first with 2 dependents, got %+v", bases[0])
	}
	if bases[1].Path != "d.py" || bases[1].Dependents != 1 {
		t.Errorf("expected d.py second, got %+v", bases[1])
	}
	if bases[0].Rank <= bases[1].Rank {
		t.Errorf("b.py rank (%f) should be > d.py rank (%f)", bases[0].Rank, bases[1].Rank)
	}
	if bases[0].Rank <= 0 || bases[0].Rank >= 1 {
		t.Errorf("rank out of range: %f", bases[0].Rank)
	}
}

func TestPageRankSumsToOne(t *testing.T) {
	t.Parallel()

	nodes := map[string]struct{}{"a": {}, "b": {}, "c": {}}
	out := map[string][]string{"a": {"b"}, "c": {"b", "b"}}
	deg := map[string]int{"a": 1, "c": 2}

	ranks := pageRank(nodes, out, deg, 0.85, 100, 1e-6)

	var sum float64
	for _, r := range ranks {
		sum += r
	}
	if math.Abs(sum-1.0) > 0.01 {
		t.Errorf("ranks sum to %f, expected ~1.0", sum)
	}
	if ranks["b"] <= ranks["a"] {
		t.Errorf("b (%f) should outrank a (%f)", ranks["b"], ranks["a"])
	}
}

func TestRankEmpty(t *testing.T) {
	t.Parallel()
	if bases := Rank(nil, nil); bases != nil {
		t.Errorf("expected nil, got %v", bases)
	}
}

// Package graph builds the cross-file inheritance graph of a scan and ranks
// the base modules test classes depend on.
package graph

import (
	"math"
	"path/filepath"
	"sort"
	"strings"

	"github.com/phobologic/testscan/internal/model"
)

// BuildGraph creates one dependency per (scanned file, ancestor file) pair
// from the ancestors recorded during discovery. Paths are made relative to
// root when they live below it. Self-edges are dropped.
func BuildGraph(root string, files []model.FileReport) []model.Dependency {
	type edgeKey struct{ src, tgt string }
	edgeClasses := make(map[edgeKey][]string)

	for i := range files {
		f := &files[i]
		if f.Discovery == nil {
			continue
		}
		for _, a := range f.Discovery.Ancestors {
			tgt := RelPath(root, a.Path)
			if tgt == f.Path {
				continue // no self-edges
			}
			key := edgeKey{f.Path, tgt}
			// Only add class if not already present
			if !contains(edgeClasses[key], a.Class) {
				edgeClasses[key] = append(edgeClasses[key], a.Class)
			}
		}
	}

	var deps []model.Dependency
	for key, classes := range edgeClasses {
		sort.Strings(classes)
		deps = append(deps, model.Dependency{
			Source:  key.src,
			Target:  key.tgt,
			Classes: classes,
		})
	}

	// Sort for deterministic output
	sort.Slice(deps, func(i, j int) bool {
		if deps[i].Source != deps[j].Source {
			return deps[i].Source < deps[j].Source
		}
		return deps[i].Target < deps[j].Target
	})

	return deps
}

// RelPath returns path relative to root in slash form, or path itself (also
// in slash form) when it is outside root.
func RelPath(root, path string) string {
	if root != "" {
		if rel, err := filepath.Rel(root, path); err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return filepath.ToSlash(rel)
		}
	}
	return filepath.ToSlash(path)
}

// Rank applies PageRank to the inheritance graph and returns the files that
// are inherited from, highest rank first. Every inherited class counts as
// one edge, so a base module shared by many test classes ranks high.
func Rank(files []model.FileReport, deps []model.Dependency) []model.BaseRank {
	if len(deps) == 0 {
		return nil
	}

	// Edge from source to target means source inherits from target.
	outEdges := make(map[string][]string) // node → list of targets (with repeats for multi-edges)
	outDegree := make(map[string]int)     // total out-edges per node
	nodes := make(map[string]struct{})
	dependents := make(map[string]int)

	for i := range files {
		nodes[files[i].Path] = struct{}{}
	}

	for _, d := range deps {
		nodes[d.Source] = struct{}{}
		nodes[d.Target] = struct{}{}
		dependents[d.Target]++
		// Each class is an edge
		for range d.Classes {
			outEdges[d.Source] = append(outEdges[d.Source], d.Target)
			outDegree[d.Source]++
		}
	}

	ranks := pageRank(nodes, outEdges, outDegree, 0.85, 100, 1e-6)

	bases := make([]model.BaseRank, 0, len(dependents))
	for path, n := range dependents {
		bases = append(bases, model.BaseRank{Path: path, Rank: ranks[path], Dependents: n})
	}
	sort.Slice(bases, func(i, j int) bool {
		if bases[i].Rank != bases[j].Rank {
			return bases[i].Rank > bases[j].Rank
		}
		return bases[i].Path < bases[j].Path
	})
	return bases
}

func pageRank(
	nodes map[string]struct{},
	outEdges map[string][]string,
	outDegree map[string]int,
	alpha float64,
	maxIter int,
	tol float64,
) map[string]float64 {
	n := len(nodes)
	if n == 0 {
		return nil
	}

	rank := make(map[string]float64, n)
	initial := 1.0 / float64(n)
	for node := range nodes {
		rank[node] = initial
	}

	teleport := (1.0 - alpha) / float64(n)

	for iter := 0; iter < maxIter; iter++ {
		newRank := make(map[string]float64, n)

		// Dangling node contribution (nodes with no outgoing edges)
		var danglingSum float64
		for node := range nodes {
			if outDegree[node] == 0 {
				danglingSum += rank[node]
			}
		}
		danglingContrib := alpha * danglingSum / float64(n)

		for node := range nodes {
			newRank[node] = teleport + danglingContrib
		}

		// Distribute rank through edges
		for src, targets := range outEdges {
			deg := float64(outDegree[src])
			contrib := alpha * rank[src] / deg
			for _, tgt := range targets {
				newRank[tgt] += contrib
			}
		}

		// Check convergence
		var diff float64
		for node := range nodes {
			diff += math.Abs(newRank[node] - rank[node])
		}

		rank = newRank

		if diff < tol {
			break
		}
	}

	return rank
}

func contains(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}

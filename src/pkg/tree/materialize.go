// Package tree turns flat, parent-referencing node lists into ordered forests.
package tree

import (
	"cmp"
	"slices"
)

// Structural is the part of a node the materializer depends on.
// An empty NodeParentID marks a root.
type Structural interface {
	NodeID() string
	NodeParentID() string
	NodeOrder() int
	NodeVisible() bool
}

// TreeNode wraps a node together with its ordered children.
type TreeNode[T Structural] struct {
	Node     T              `json:"node"`
	Children []*TreeNode[T] `json:"children"`
}

// Materialize links nodes to their parents and returns the roots of the
// resulting forest. Roots and every children list are sorted by ascending
// order; equal orders keep their input sequence.
//
// When includeHidden is false, invisible nodes are dropped before linking. A
// node whose parent is not among the retained nodes, or that names itself as
// parent, becomes a root. Each node is placed by a single parent lookup, so the
// call terminates for any input. Duplicate ids make the last one win the lookup.
func Materialize[T Structural](nodes []T, includeHidden bool) []*TreeNode[T] {
	retained := make([]*TreeNode[T], 0, len(nodes))
	for _, n := range nodes {
		if !includeHidden && !n.NodeVisible() {
			continue
		}
		retained = append(retained, &TreeNode[T]{Node: n, Children: []*TreeNode[T]{}})
	}

	lookup := make(map[string]*TreeNode[T], len(retained))
	for _, w := range retained {
		lookup[w.Node.NodeID()] = w
	}

	roots := make([]*TreeNode[T], 0)
	for _, w := range retained {
		parentID := w.Node.NodeParentID()
		if parentID != "" && parentID != w.Node.NodeID() {
			if parent, ok := lookup[parentID]; ok {
				parent.Children = append(parent.Children, w)
				continue
			}
		}
		roots = append(roots, w)
	}

	sortSiblings(roots)
	for _, w := range retained {
		sortSiblings(w.Children)
	}
	return roots
}

func sortSiblings[T Structural](siblings []*TreeNode[T]) {
	slices.SortStableFunc(siblings, func(a, b *TreeNode[T]) int {
		return cmp.Compare(a.Node.NodeOrder(), b.Node.NodeOrder())
	})
}

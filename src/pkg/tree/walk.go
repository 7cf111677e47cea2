package tree

// Walk visits the forest depth-first in display order. Returning false from fn
// skips the children of that node. A wrapper reached a second time is not
// entered again, so forests assembled by hand with cycles still terminate.
func Walk[T Structural](forest []*TreeNode[T], fn func(n *TreeNode[T], depth int) bool) {
	seen := make(map[*TreeNode[T]]bool)
	var visit func(nodes []*TreeNode[T], depth int)
	visit = func(nodes []*TreeNode[T], depth int) {
		for _, n := range nodes {
			if seen[n] {
				continue
			}
			seen[n] = true
			if fn(n, depth) {
				visit(n.Children, depth+1)
			}
		}
	}
	visit(forest, 0)
}

// Flatten returns the nodes of the forest in pre-order.
func Flatten[T Structural](forest []*TreeNode[T]) []T {
	var out []T
	Walk(forest, func(n *TreeNode[T], _ int) bool {
		out = append(out, n.Node)
		return true
	})
	return out
}

// Count returns the number of nodes in the forest.
func Count[T Structural](forest []*TreeNode[T]) int {
	count := 0
	Walk(forest, func(*TreeNode[T], int) bool {
		count++
		return true
	})
	return count
}

// Find returns the wrapper with the given id, or nil.
func Find[T Structural](forest []*TreeNode[T], id string) *TreeNode[T] {
	var found *TreeNode[T]
	Walk(forest, func(n *TreeNode[T], _ int) bool {
		if found != nil {
			return false
		}
		if n.Node.NodeID() == id {
			found = n
			return false
		}
		return true
	})
	return found
}

// Line is one row of an indented outline.
type Line[T Structural] struct {
	Node   T
	Depth  int
	Prefix string
}

// Outline renders the forest as rows with box-drawing connectors, ready to be
// printed after the prefix.
func Outline[T Structural](forest []*TreeNode[T]) []Line[T] {
	var lines []Line[T]
	seen := make(map[*TreeNode[T]]bool)
	var visit func(nodes []*TreeNode[T], indent string, depth int)
	visit = func(nodes []*TreeNode[T], indent string, depth int) {
		lastUnseen := func() int {
			i := len(nodes) - 1
			for i >= 0 && seen[nodes[i]] {
				i--
			}
			return i
		}
		end := lastUnseen()
		for i, n := range nodes {
			if seen[n] {
				continue
			}
			seen[n] = true
			last := i == end
			connector, childIndent := "├── ", "│   "
			if last {
				connector, childIndent = "└── ", "    "
			}
			lines = append(lines, Line[T]{Node: n.Node, Depth: depth, Prefix: indent + connector})
			visit(n.Children, indent+childIndent, depth+1)
			// a descendant may have been a later sibling already
			end = lastUnseen()
		}
	}
	visit(forest, "", 0)
	return lines
}

// Group is a keyed bucket of items.
type Group[K comparable, T any] struct {
	Key   K
	Items []T
}

// GroupBy buckets items by key. Groups appear in first-seen order and items
// keep their input order inside a group.
func GroupBy[K comparable, T any](items []T, key func(T) K) []Group[K, T] {
	index := make(map[K]int)
	var groups []Group[K, T]
	for _, item := range items {
		k := key(item)
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, Group[K, T]{Key: k})
		}
		groups[i].Items = append(groups[i].Items, item)
	}
	return groups
}

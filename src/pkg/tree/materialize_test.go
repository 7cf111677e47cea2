package tree

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testNode struct {
	id      string
	parent  string
	order   int
	visible bool
}

func (n testNode) NodeID() string       { return n.id }
func (n testNode) NodeParentID() string { return n.parent }
func (n testNode) NodeOrder() int       { return n.order }
func (n testNode) NodeVisible() bool    { return n.visible }

func ids(forest []*TreeNode[testNode]) []string {
	out := make([]string, 0, len(forest))
	for _, n := range forest {
		out = append(out, n.Node.id)
	}
	return out
}

func TestMaterialize_ParentWithOrderedChildren(t *testing.T) {
	nodes := []testNode{
		{id: "a", order: 1, visible: true},
		{id: "b", parent: "a", order: 1, visible: true},
		{id: "c", parent: "a", order: 2, visible: true},
	}

	forest := Materialize(nodes, false)

	require.Len(t, forest, 1)
	assert.Equal(t, "a", forest[0].Node.id)
	assert.Equal(t, []string{"b", "c"}, ids(forest[0].Children))
}

func TestMaterialize_HiddenChildDropped(t *testing.T) {
	nodes := []testNode{
		{id: "a", order: 1, visible: true},
		{id: "b", parent: "a", order: 1, visible: false},
		{id: "c", parent: "a", order: 2, visible: true},
	}

	forest := Materialize(nodes, false)

	require.Len(t, forest, 1)
	assert.Equal(t, []string{"c"}, ids(forest[0].Children))
}

func TestMaterialize_HiddenKeptForOwner(t *testing.T) {
	nodes := []testNode{
		{id: "a", order: 1, visible: true},
		{id: "b", parent: "a", order: 1, visible: false},
		{id: "c", parent: "a", order: 2, visible: true},
	}

	forest := Materialize(nodes, true)

	require.Len(t, forest, 1)
	assert.Equal(t, []string{"b", "c"}, ids(forest[0].Children))
}

func TestMaterialize_DanglingParentBecomesRoot(t *testing.T) {
	forest := Materialize([]testNode{{id: "x", parent: "missing", order: 1, visible: true}}, false)

	assert.Equal(t, []string{"x"}, ids(forest))
}

func TestMaterialize_RootsSortedByOrder(t *testing.T) {
	nodes := []testNode{
		{id: "p", order: 2, visible: true},
		{id: "q", order: 1, visible: true},
	}

	assert.Equal(t, []string{"q", "p"}, ids(Materialize(nodes, false)))
}

func TestMaterialize_Empty(t *testing.T) {
	forest := Materialize[testNode](nil, false)

	assert.NotNil(t, forest)
	assert.Empty(t, forest)
}

func TestMaterialize_VisibleChildOfHiddenParentBecomesRoot(t *testing.T) {
	nodes := []testNode{
		{id: "a", order: 1, visible: false},
		{id: "b", parent: "a", order: 5, visible: true},
		{id: "r", order: 2, visible: true},
	}

	forest := Materialize(nodes, false)

	assert.Equal(t, []string{"r", "b"}, ids(forest))
}

func TestMaterialize_SelfParentIsRoot(t *testing.T) {
	nodes := []testNode{
		{id: "s", parent: "s", order: 1, visible: true},
	}

	forest := Materialize(nodes, true)

	require.Len(t, forest, 1)
	assert.Equal(t, "s", forest[0].Node.id)
	assert.Empty(t, forest[0].Children)
}

func TestMaterialize_StableForEqualOrder(t *testing.T) {
	nodes := []testNode{
		{id: "root", order: 0, visible: true},
		{id: "z", parent: "root", order: 3, visible: true},
		{id: "m", parent: "root", order: 3, visible: true},
		{id: "a", parent: "root", order: 3, visible: true},
		{id: "first", parent: "root", order: 1, visible: true},
	}

	forest := Materialize(nodes, true)

	require.Len(t, forest, 1)
	assert.Equal(t, []string{"first", "z", "m", "a"}, ids(forest[0].Children))
}

func TestMaterialize_CycleTerminates(t *testing.T) {
	nodes := []testNode{
		{id: "a", parent: "b", order: 1, visible: true},
		{id: "b", parent: "a", order: 1, visible: true},
		{id: "c", order: 1, visible: true},
	}

	forest := Materialize(nodes, true)

	// Members of a parent cycle link to each other and never reach a root.
	assert.Equal(t, []string{"c"}, ids(forest))
}

func TestMaterialize_DuplicateIDsDoNotPanic(t *testing.T) {
	nodes := []testNode{
		{id: "d", order: 1, visible: true},
		{id: "d", order: 2, visible: true},
		{id: "child", parent: "d", order: 1, visible: true},
	}

	var forest []*TreeNode[testNode]
	require.NotPanics(t, func() { forest = Materialize(nodes, true) })
	assert.Equal(t, 3, Count(forest))
}

func TestMaterialize_DoesNotMutateInput(t *testing.T) {
	nodes := []testNode{
		{id: "b", order: 2, visible: true},
		{id: "a", order: 1, visible: true},
	}
	before := append([]testNode(nil), nodes...)

	Materialize(nodes, false)

	assert.Equal(t, before, nodes)
}

// randomForest builds an acyclic input where every parent precedes its
// children in generation, then shuffles it.
func randomForest(r *rand.Rand, n int) []testNode {
	nodes := make([]testNode, 0, n)
	for i := 0; i < n; i++ {
		node := testNode{id: fmt.Sprintf("n%d", i), order: r.Intn(4), visible: r.Intn(3) != 0}
		switch roll := r.Intn(10); {
		case i > 0 && roll < 7:
			node.parent = nodes[r.Intn(i)].id
		case roll == 7:
			node.parent = "ghost"
		}
		nodes = append(nodes, node)
	}
	r.Shuffle(len(nodes), func(i, j int) { nodes[i], nodes[j] = nodes[j], nodes[i] })
	return nodes
}

func TestMaterialize_Properties(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for round := 0; round < 200; round++ {
		nodes := randomForest(r, r.Intn(40))

		// Completeness with hidden nodes included.
		all := Materialize(nodes, true)
		seen := make(map[string]int)
		Walk(all, func(n *TreeNode[testNode], _ int) bool {
			seen[n.Node.id]++
			return true
		})
		require.Len(t, seen, len(nodes), "round %d", round)
		for id, c := range seen {
			require.Equal(t, 1, c, "node %s placed %d times", id, c)
		}

		// Visibility filtering.
		public := Materialize(nodes, false)
		visible := 0
		for _, n := range nodes {
			if n.visible {
				visible++
			}
		}
		require.Equal(t, visible, Count(public))
		Walk(public, func(n *TreeNode[testNode], _ int) bool {
			require.True(t, n.Node.visible)
			return true
		})

		// Sibling order is non-decreasing at every level.
		for _, forest := range [][]*TreeNode[testNode]{all, public} {
			assertSorted(t, forest)
			Walk(forest, func(n *TreeNode[testNode], _ int) bool {
				assertSorted(t, n.Children)
				return true
			})
		}

		// Repeated calls agree.
		again := Materialize(nodes, true)
		require.Equal(t, Flatten(all), Flatten(again))
	}
}

func assertSorted(t *testing.T, siblings []*TreeNode[testNode]) {
	t.Helper()
	for i := 1; i < len(siblings); i++ {
		require.LessOrEqual(t, siblings[i-1].Node.order, siblings[i].Node.order)
	}
}

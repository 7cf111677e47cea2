package tree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleForest() []*TreeNode[testNode] {
	return Materialize([]testNode{
		{id: "work", order: 1, visible: true},
		{id: "school", order: 2, visible: true},
		{id: "acme", parent: "work", order: 1, visible: true},
		{id: "initech", parent: "work", order: 2, visible: true},
		{id: "api", parent: "acme", order: 1, visible: true},
	}, true)
}

func TestFlatten_PreOrder(t *testing.T) {
	nodes := Flatten(sampleForest())

	got := make([]string, 0, len(nodes))
	for _, n := range nodes {
		got = append(got, n.id)
	}
	assert.Equal(t, []string{"work", "acme", "api", "initech", "school"}, got)
}

func TestWalk_SkipChildren(t *testing.T) {
	var visited []string
	Walk(sampleForest(), func(n *TreeNode[testNode], depth int) bool {
		visited = append(visited, n.Node.id)
		return n.Node.id != "work"
	})

	assert.Equal(t, []string{"work", "school"}, visited)
}

func TestWalk_HandBuiltCycleTerminates(t *testing.T) {
	a := &TreeNode[testNode]{Node: testNode{id: "a"}}
	b := &TreeNode[testNode]{Node: testNode{id: "b"}}
	a.Children = []*TreeNode[testNode]{b}
	b.Children = []*TreeNode[testNode]{a}

	assert.Equal(t, 2, Count([]*TreeNode[testNode]{a}))
}

func TestFind(t *testing.T) {
	forest := sampleForest()

	found := Find(forest, "api")
	require.NotNil(t, found)
	assert.Equal(t, "api", found.Node.id)
	assert.Nil(t, Find(forest, "nope"))
}

func TestOutline_Prefixes(t *testing.T) {
	lines := Outline(sampleForest())

	require.Len(t, lines, 5)
	assert.Equal(t, "├── ", lines[0].Prefix)
	assert.Equal(t, "│   ├── ", lines[1].Prefix)
	assert.Equal(t, "│   │   └── ", lines[2].Prefix)
	assert.Equal(t, "│   └── ", lines[3].Prefix)
	assert.Equal(t, "└── ", lines[4].Prefix)
	assert.Equal(t, 2, lines[2].Depth)
}

func TestOutline_LastConnectorSkipsSeenSiblings(t *testing.T) {
	a := &TreeNode[testNode]{Node: testNode{id: "a"}}
	b := &TreeNode[testNode]{Node: testNode{id: "b"}}
	c := &TreeNode[testNode]{Node: testNode{id: "c"}}
	a.Children = []*TreeNode[testNode]{c}

	// c is both a child of a and a trailing root
	lines := Outline([]*TreeNode[testNode]{a, b, c})

	require.Len(t, lines, 3)
	assert.Equal(t, "a", lines[0].Node.id)
	assert.Equal(t, "├── ", lines[0].Prefix)
	assert.Equal(t, "│   └── ", lines[1].Prefix)
	assert.Equal(t, "b", lines[2].Node.id)
	assert.Equal(t, "└── ", lines[2].Prefix)
}

func TestGroupBy_FirstSeenOrder(t *testing.T) {
	words := []string{"apple", "bean", "avocado", "carrot", "beet"}

	groups := GroupBy(words, func(w string) byte { return w[0] })

	require.Len(t, groups, 3)
	assert.Equal(t, byte('a'), groups[0].Key)
	assert.Equal(t, []string{"apple", "avocado"}, groups[0].Items)
	assert.Equal(t, []string{"bean", "beet"}, groups[1].Items)
	assert.Equal(t, []string{"carrot"}, groups[2].Items)
}

package data

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strconv"

	"portfoliotree/app/src/pkg/model"
	"portfoliotree/app/src/pkg/tree"
)

// OutlineRow is one printable row of the outline view.
type OutlineRow struct {
	Prefix string      `json:"prefix"`
	Depth  int         `json:"depth"`
	Node   *model.Node `json:"node"`
}

// ViewGroup is a column of the board view or a year of the timeline view.
type ViewGroup struct {
	Key   string        `json:"key"`
	Items []*model.Node `json:"items"`
}

// View is a materialized portfolio rendered for one presentation. Only the field
// matching Kind is set.
type View struct {
	Kind       string                        `json:"view"`
	Portfolio  *model.Portfolio              `json:"portfolio"`
	Permission model.Permission              `json:"permission"`
	Tree       []*tree.TreeNode[*model.Node] `json:"tree,omitempty"`
	Outline    []OutlineRow                  `json:"outline,omitempty"`
	Items      []*model.Node                 `json:"items,omitempty"`
	Groups     []ViewGroup                   `json:"groups,omitempty"`
}

// NodeView materializes the portfolio once and post-processes the forest for the requested view.
// An empty view name selects the tree view.
func (nm *NodeManager) NodeView(ctx context.Context, user *model.User, portfolioID int, view string) (*View, error) {
	if view == "" {
		view = model.ViewTree
	}
	if !slices.Contains([]string{model.ViewTree, model.ViewOutline, model.ViewGrid, model.ViewBoard, model.ViewTimeline}, view) {
		return nil, fmt.Errorf("%w: unknown view %q", model.ErrInvalidInput, view)
	}

	t, err := nm.NodeTree(ctx, user, portfolioID)
	if err != nil {
		return nil, err
	}
	return BuildView(t, view), nil
}

// BuildView renders an already materialized tree. Unknown kinds fall back to the tree view.
func BuildView(t *Tree, kind string) *View {
	v := &View{Kind: kind, Portfolio: t.Portfolio, Permission: t.Permission}

	switch kind {
	case model.ViewOutline:
		for _, line := range tree.Outline(t.Roots) {
			v.Outline = append(v.Outline, OutlineRow{Prefix: line.Prefix, Depth: line.Depth, Node: line.Node})
		}
	case model.ViewGrid:
		v.Items = tree.Flatten(t.Roots)
	case model.ViewBoard:
		groups := tree.GroupBy(tree.Flatten(t.Roots), func(n *model.Node) string { return n.Type })
		for _, g := range groups {
			v.Groups = append(v.Groups, ViewGroup{Key: g.Key, Items: g.Items})
		}
	case model.ViewTimeline:
		items := tree.Flatten(t.Roots)
		slices.SortStableFunc(items, func(a, b *model.Node) int {
			return b.Created.Compare(a.Created)
		})
		groups := tree.GroupBy(items, func(n *model.Node) int { return n.Created.Year() })
		slices.SortStableFunc(groups, func(a, b tree.Group[int, *model.Node]) int {
			return cmp.Compare(b.Key, a.Key)
		})
		for _, g := range groups {
			v.Groups = append(v.Groups, ViewGroup{Key: strconv.Itoa(g.Key), Items: g.Items})
		}
	default:
		v.Kind = model.ViewTree
		v.Tree = t.Roots
	}
	return v
}

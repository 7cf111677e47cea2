package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"portfoliotree/app/src/pkg/data"
	"portfoliotree/app/src/pkg/model"
	"portfoliotree/app/src/pkg/tree"
)

const timeFormat = "2006-01-02"

// Render prints a command result in a human readable form
func Render(w io.Writer, result interface{}) {
	switch r := result.(type) {
	case nil:
	case string:
		fmt.Fprintln(w, r)
	case *data.View:
		renderView(w, r)
	case *model.Portfolio:
		renderPortfolios(w, []*model.Portfolio{r})
	case []*model.Portfolio:
		if len(r) == 0 {
			fmt.Fprintln(w, "No portfolios found")
			return
		}
		renderPortfolios(w, r)
	case *model.Node:
		fmt.Fprintf(w, "%s %s\n", r.ID, nodeLabel(r))
	case []*model.Node:
		if len(r) == 0 {
			fmt.Fprintln(w, "No nodes found")
			return
		}
		for _, n := range r {
			fmt.Fprintf(w, "%s %s\n", n.ID, nodeLabel(n))
		}
	case *model.Asset:
		renderAssets(w, []*model.Asset{r})
	case []*model.Asset:
		if len(r) == 0 {
			fmt.Fprintln(w, "No assets found")
			return
		}
		renderAssets(w, r)
	default:
		fmt.Fprintf(w, "%v\n", r)
	}
}

// nodeLabel is the one-line form of a node: title, type, tags and a hidden marker
func nodeLabel(n *model.Node) string {
	var b strings.Builder
	b.WriteString(n.Title)
	if n.Type != "" {
		fmt.Fprintf(&b, " [%s]", n.Type)
	}
	if len(n.Tags) > 0 {
		fmt.Fprintf(&b, " #%s", strings.Join(n.Tags, " #"))
	}
	if !n.IsVisible {
		b.WriteString(" (hidden)")
	}
	return b.String()
}

func renderView(w io.Writer, v *data.View) {
	fmt.Fprintf(w, "%s (%s)\n", v.Portfolio.Name, v.Kind)

	switch v.Kind {
	case model.ViewOutline:
		if len(v.Outline) == 0 {
			fmt.Fprintln(w, "(empty)")
		}
		for _, row := range v.Outline {
			fmt.Fprintf(w, "%s%s\n", row.Prefix, nodeLabel(row.Node))
		}
	case model.ViewGrid:
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "TITLE\tTYPE\tTAGS\tURL")
		for _, n := range v.Items {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", n.Title, n.Type, strings.Join(n.Tags, ","), n.URL)
		}
		tw.Flush()
	case model.ViewBoard, model.ViewTimeline:
		for _, g := range v.Groups {
			fmt.Fprintf(w, "== %s ==\n", g.Key)
			for _, n := range g.Items {
				if v.Kind == model.ViewTimeline {
					fmt.Fprintf(w, "  %s %s\n", n.Created.Format(timeFormat), nodeLabel(n))
				} else {
					fmt.Fprintf(w, "  %s\n", nodeLabel(n))
				}
			}
		}
	default:
		renderIndexed(w, v.Tree, "", 0)
	}
}

// renderIndexed prints the forest with the outline indices node commands accept
func renderIndexed(w io.Writer, forest []*tree.TreeNode[*model.Node], prefix string, depth int) {
	for i, tn := range forest {
		index := strconv.Itoa(i + 1)
		if prefix != "" {
			index = prefix + "." + index
		}
		fmt.Fprintf(w, "%s%s %s\n", strings.Repeat("  ", depth), index, nodeLabel(tn.Node))
		renderIndexed(w, tn.Children, index, depth+1)
	}
}

func renderPortfolios(w io.Writer, portfolios []*model.Portfolio) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tOWNER\tVISIBILITY\tUPDATED")
	for _, p := range portfolios {
		visibility := "private"
		if p.IsPublic {
			visibility = "public"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", p.ID, p.Name, p.Owner, visibility, p.Updated.Format(timeFormat))
	}
	tw.Flush()
}

func renderAssets(w io.Writer, assets []*model.Asset) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tFILE\tTYPE\tSIZE\tNODE")
	for _, a := range assets {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", a.ID, a.FileName, a.ContentType, a.Size, a.NodeID)
	}
	tw.Flush()
}

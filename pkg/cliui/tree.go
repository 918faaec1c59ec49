package cliui

import (
	"fmt"

	"charm.land/lipgloss/v2/tree"

	"github.com/cienislaw/thirtybees/pkg/ntree"
)

// RenderTree draws a tenant tree with box-drawing branches. Each entry shows
// the node name followed by its id. Inactive entries are dimmed and marked.
func RenderTree(root *ntree.TreeNode) string {
	if root == nil || root.Node == nil {
		return ""
	}
	return buildTree(root).String()
}

func buildTree(n *ntree.TreeNode) *tree.Tree {
	t := tree.Root(label(n))
	for _, c := range n.Children {
		if len(c.Children) == 0 {
			t.Child(label(c))
			continue
		}
		t.Child(buildTree(c))
	}
	return t
}

func label(n *ntree.TreeNode) string {
	id := DimStyle.Render(fmt.Sprintf("#%d", n.Node.ID))
	if !n.Active {
		return DimStyle.Render(n.Node.Name) + " " + id + " " + FailMark + DimStyle.Render(" inactive")
	}
	return n.Node.Name + " " + id
}

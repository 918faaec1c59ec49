package ntree

import (
	"fmt"
	"sort"
)

// Verify checks the stored intervals of nodes against their parent links.
// It returns a StructuralError describing the first violation found:
//
//   - every node has left < right and the root spans [1, 2N]
//   - intervals nest or are disjoint, and every child lies inside its parent
//   - the innermost interval containing a node is its parent's
//   - depth equals the parent's depth plus one
func Verify(nodes []*Node) error {
	if len(nodes) == 0 {
		return nil
	}

	byID := make(map[NodeID]*Node, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}

	var root *Node
	for _, n := range nodes {
		if n.Left >= n.Right {
			return &StructuralError{NodeID: n.ID, Reason: fmt.Sprintf("left %d is not below right %d", n.Left, n.Right)}
		}

		if n.ParentID == 0 {
			if root != nil {
				return &StructuralError{NodeID: n.ID, Reason: "second structural root"}
			}
			root = n
			continue
		}

		parent, ok := byID[n.ParentID]
		if !ok {
			return &StructuralError{NodeID: n.ID, Reason: fmt.Sprintf("parent %d does not exist", n.ParentID)}
		}
		if !parent.Interval().Contains(n.Interval()) {
			return &StructuralError{NodeID: n.ID, Reason: fmt.Sprintf("interval is outside parent %d", parent.ID)}
		}
		if n.Depth != parent.Depth+1 {
			return &StructuralError{NodeID: n.ID, Reason: fmt.Sprintf("depth %d does not follow parent depth %d", n.Depth, parent.Depth)}
		}
	}

	if root == nil {
		return &StructuralError{Reason: "no structural root"}
	}
	if root.Left != 1 || root.Right != 2*len(nodes) || root.Depth != 0 {
		return &StructuralError{NodeID: root.ID, Reason: fmt.Sprintf("root spans [%d, %d] at depth %d", root.Left, root.Right, root.Depth)}
	}

	// Sorted by left, any interval that starts inside an open one must also
	// end inside it, and the innermost open interval is the parent.
	sorted := make([]*Node, len(nodes))
	copy(sorted, nodes)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Left < sorted[j].Left })

	var open []*Node
	for i, n := range sorted {
		if i > 0 && sorted[i-1].Left == n.Left {
			return &StructuralError{NodeID: n.ID, Reason: fmt.Sprintf("left %d shared with node %d", n.Left, sorted[i-1].ID)}
		}
		for len(open) > 0 && open[len(open)-1].Right < n.Left {
			open = open[:len(open)-1]
		}
		if len(open) > 0 && open[len(open)-1].Right < n.Right {
			return &StructuralError{NodeID: n.ID, Reason: fmt.Sprintf("interval overlaps node %d", open[len(open)-1].ID)}
		}
		if len(open) > 0 && open[len(open)-1].ID != n.ParentID {
			return &StructuralError{NodeID: n.ID, Reason: fmt.Sprintf("innermost enclosing node is %d, not parent %d", open[len(open)-1].ID, n.ParentID)}
		}
		open = append(open, n)
	}

	return nil
}

// VerifyPositions checks that the siblings of every parent in one tenant hold
// the positions 0..k-1 exactly once.
func VerifyPositions(nodes []*Node, positions []TenantPosition) error {
	parents := make(map[NodeID]NodeID, len(nodes))
	for _, n := range nodes {
		parents[n.ID] = n.ParentID
	}

	type key struct {
		parent NodeID
		tenant TenantID
	}
	groups := make(map[key][]int)
	for _, p := range positions {
		parent, ok := parents[p.NodeID]
		if !ok {
			return NotFoundError{ID: p.NodeID, TenantID: p.TenantID}
		}
		k := key{parent: parent, tenant: p.TenantID}
		groups[k] = append(groups[k], p.Position)
	}

	for k, list := range groups {
		sort.Ints(list)
		for i, pos := range list {
			if i > 0 && list[i-1] == pos {
				return &DuplicatePositionError{ParentID: k.parent, TenantID: k.tenant, Position: pos}
			}
			if pos != i {
				return &StructuralError{
					NodeID: k.parent,
					Reason: fmt.Sprintf("positions in tenant %d are not contiguous at %d", k.tenant, i),
				}
			}
		}
	}

	return nil
}

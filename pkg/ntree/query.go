package ntree

import (
	"context"
	"sort"
)

// Node returns a node from the published snapshot.
func (t *Tree) Node(id NodeID) (*Node, error) {
	n, ok := t.Snapshot().Node(id)
	if !ok {
		return nil, NotFoundError{ID: id}
	}
	return n, nil
}

// IsDescendantOf reports whether x lies strictly below y.
func (t *Tree) IsDescendantOf(x, y NodeID) bool {
	return t.Snapshot().IsDescendantOf(x, y)
}

// IsAncestorOf reports whether x lies strictly above y.
func (t *Tree) IsAncestorOf(x, y NodeID) bool {
	return t.Snapshot().IsAncestorOf(x, y)
}

// IsWithin reports whether x is owner or lies below it.
func (t *Tree) IsWithin(x, owner NodeID) bool {
	return t.Snapshot().IsWithin(x, owner)
}

// AncestorsOf returns the nodes strictly above id, root first.
func (t *Tree) AncestorsOf(id NodeID) ([]*Node, error) {
	snap := t.Snapshot()
	if _, ok := snap.Node(id); !ok {
		return nil, NotFoundError{ID: id}
	}
	return snap.AncestorsOf(id), nil
}

// DescendantsOf returns the nodes strictly below id in pre-order.
func (t *Tree) DescendantsOf(id NodeID) ([]*Node, error) {
	snap := t.Snapshot()
	if _, ok := snap.Node(id); !ok {
		return nil, NotFoundError{ID: id}
	}
	return snap.DescendantsOf(id), nil
}

// Path returns the nodes from the top-level category down to id.
func (t *Tree) Path(id NodeID) ([]*Node, error) {
	snap := t.Snapshot()
	if _, ok := snap.Node(id); !ok {
		return nil, NotFoundError{ID: id}
	}
	return snap.Path(id), nil
}

// InTenant reports whether id lies within the root of tenant.
func (t *Tree) InTenant(id NodeID, tenant TenantID) (bool, error) {
	tn, err := t.Tenant(tenant)
	if err != nil {
		return false, err
	}
	return t.Snapshot().IsWithin(id, tn.RootID), nil
}

// FindByName returns the children of parent named name, ignoring case.
func (t *Tree) FindByName(parent NodeID, name string) []*Node {
	return t.Snapshot().FindByName(parent, name)
}

// Positions returns the tenant rows of tenant keyed by node.
func (t *Tree) Positions(ctx context.Context, tenant TenantID) (map[NodeID]TenantPosition, error) {
	if _, err := t.Tenant(tenant); err != nil {
		return nil, err
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	rows, err := t.store.LoadPositions(ctx, tenant)
	if err != nil {
		return nil, storeErr("load positions", err)
	}

	out := make(map[NodeID]TenantPosition, len(rows))
	for _, r := range rows {
		out[r.NodeID] = r
	}
	return out, nil
}

// Children returns the children of parent that belong to tenant, ordered by
// their position there. With activeOnly, hidden children are left out.
func (t *Tree) Children(ctx context.Context, parent NodeID, tenant TenantID, activeOnly bool) ([]*TreeNode, error) {
	snap := t.Snapshot()
	if _, ok := snap.Node(parent); !ok {
		return nil, NotFoundError{ID: parent}
	}

	pos, err := t.Positions(ctx, tenant)
	if err != nil {
		return nil, err
	}

	var out []*TreeNode
	for _, c := range snap.ChildrenOf(parent) {
		p, ok := pos[c.ID]
		if !ok || (activeOnly && !p.Active) {
			continue
		}
		out = append(out, &TreeNode{Node: c, Position: p.Position, Active: p.Active})
	}
	sortTreeNodes(out)
	return out, nil
}

// TenantTree renders the subtree under the root of tenant using the
// tenant's membership and order. A node that is not in the tenant hides its
// whole subtree, as does an inactive one when activeOnly is set.
func (t *Tree) TenantTree(ctx context.Context, tenant TenantID, activeOnly bool) (*TreeNode, error) {
	tn, err := t.Tenant(tenant)
	if err != nil {
		return nil, err
	}

	pos, err := t.Positions(ctx, tenant)
	if err != nil {
		return nil, err
	}

	snap := t.Snapshot()
	rootNode, ok := snap.Node(tn.RootID)
	if !ok {
		return nil, NotFoundError{ID: tn.RootID}
	}

	children := make(map[NodeID][]*Node)
	for _, n := range snap.DescendantsOf(tn.RootID) {
		children[n.ParentID] = append(children[n.ParentID], n)
	}

	rp := pos[tn.RootID]
	root := &TreeNode{Node: rootNode, Position: rp.Position, Active: rp.Active}

	stack := []*TreeNode{root}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for _, c := range children[cur.Node.ID] {
			p, ok := pos[c.ID]
			if !ok || (activeOnly && !p.Active) {
				continue
			}
			tnode := &TreeNode{Node: c, Position: p.Position, Active: p.Active}
			cur.Children = append(cur.Children, tnode)
			stack = append(stack, tnode)
		}
		sortTreeNodes(cur.Children)
	}

	return root, nil
}

func sortTreeNodes(nodes []*TreeNode) {
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].Position != nodes[j].Position {
			return nodes[i].Position < nodes[j].Position
		}
		return nodes[i].Node.ID < nodes[j].Node.ID
	})
}

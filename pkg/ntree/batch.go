package ntree

import (
	"context"
	"fmt"
)

// Batch applies mutations inside one store transaction. Interval rebuilds
// are deferred until the batch returns, so any number of structural changes
// cost a single rebuild.
//
// A Batch is only valid inside the callback it was passed to.
type Batch struct {
	t      *Tree
	tx     Store
	g      *graph
	change Change

	rebuild bool
	// relabel is set for Tree.Batch, whose change takes the op of its steps
	// and stays OpBatch only when they differ.
	relabel bool
	stepped bool
}

func (b *Batch) node(id NodeID) (*Node, error) {
	n, ok := b.g.nodes[id]
	if !ok {
		return nil, NotFoundError{ID: id}
	}
	return n, nil
}

func (b *Batch) tenant(id TenantID) (Tenant, error) {
	tn, ok := b.g.tenants[id]
	if !ok {
		return Tenant{}, fmt.Errorf("%w: %d", ErrUnknownTenant, id)
	}
	return tn, nil
}

func (b *Batch) note(op Op) {
	if !b.relabel {
		return
	}
	switch {
	case !b.stepped:
		b.change.Op = op
		b.stepped = true
	case b.change.Op != op:
		b.change.Op = OpBatch
	}
}

func (b *Batch) record(op Op, id, parent NodeID, tenant TenantID) {
	b.note(op)
	b.change.NodeIDs = append(b.change.NodeIDs, id)
	b.change.ParentID = parent
	b.change.TenantID = tenant
}

func (b *Batch) protect(id NodeID) error {
	if id == b.g.root {
		return &ProtectedNodeError{NodeID: id, Reason: "structural root"}
	}
	if tn, ok := b.g.tenantRootOf(id); ok {
		return &ProtectedNodeError{NodeID: id, Reason: fmt.Sprintf("root of tenant %q", tn.Name)}
	}
	return nil
}

// Create adds a node under req.ParentID, or under the structural root for a
// root category. A zero ParentID means the default tenant's root. The node
// is appended after its siblings in every requested tenant.
func (b *Batch) Create(ctx context.Context, req CreateRequest) (*Node, error) {
	if req.Name == "" {
		return nil, ErrEmptyName
	}

	parent := req.ParentID
	switch {
	case req.IsRootCategory:
		parent = b.g.root
	case parent == 0:
		parent = b.home()
	}
	if parent == 0 {
		return nil, ErrNotBootstrapped
	}

	p, err := b.node(parent)
	if err != nil {
		return nil, err
	}

	tenants := req.Tenants
	if len(tenants) == 0 {
		tenants = b.g.tenantIDs()
	}
	for _, id := range tenants {
		if _, err := b.tenant(id); err != nil {
			return nil, err
		}
	}

	n := &Node{
		ParentID:       parent,
		Name:           req.Name,
		Depth:          p.Depth + 1,
		IsRootCategory: req.IsRootCategory,
	}
	if err := b.tx.SaveNode(ctx, n); err != nil {
		return nil, storeErr("save node", err)
	}
	b.g.add(n)

	for _, id := range tenants {
		if _, err := b.t.pm.appendAtEnd(ctx, b.tx, b.g, n.ID, id, !req.Inactive); err != nil {
			return nil, err
		}
	}

	b.record(OpCreate, n.ID, parent, 0)
	b.rebuild = true
	return n.Clone(), nil
}

// Reparent moves id under parent. In every tenant the node belongs to it is
// appended after its new siblings and the gap under the old parent is
// closed. Moving a root category away from the structural root clears its
// root category flag.
func (b *Batch) Reparent(ctx context.Context, id, parent NodeID) error {
	n, err := b.node(id)
	if err != nil {
		return err
	}
	if _, err := b.node(parent); err != nil {
		return err
	}
	if err := b.protect(id); err != nil {
		return err
	}

	guard := CycleGuard{Home: b.home()}
	if err := guard.Validate(id, parent, b.g.parentOf); err != nil {
		return err
	}

	old := n.ParentID
	if old == parent {
		return nil
	}

	b.g.move(id, parent)
	if n.IsRootCategory && parent != b.g.root {
		n.IsRootCategory = false
	}
	if err := b.tx.SaveNode(ctx, n); err != nil {
		return storeErr("save node", err)
	}

	rows, err := b.tx.LoadNodePositions(ctx, id)
	if err != nil {
		return storeErr("load positions", err)
	}
	for _, r := range rows {
		if _, err := b.t.pm.appendAtEnd(ctx, b.tx, b.g, id, r.TenantID, r.Active); err != nil {
			return err
		}
		if _, err := b.t.pm.resolveDuplicate(ctx, b.tx, b.g, parent, r.TenantID); err != nil {
			return err
		}
		if err := b.t.pm.renumber(ctx, b.tx, b.g, old, r.TenantID); err != nil {
			return err
		}
	}

	b.record(OpReparent, id, parent, 0)
	b.rebuild = true
	return nil
}

// Delete removes id together with its subtree and every tenant row of the
// removed nodes, then closes the gap under the old parent. The subtree comes
// from the published intervals while they are current and from parent links
// otherwise.
func (b *Batch) Delete(ctx context.Context, id NodeID) ([]NodeID, error) {
	n, err := b.node(id)
	if err != nil {
		return nil, err
	}
	if err := b.protect(id); err != nil {
		return nil, err
	}

	victims := b.subtree(id)
	for _, v := range victims {
		if tn, ok := b.g.tenantRootOf(v); ok {
			return nil, &ProtectedNodeError{
				NodeID: v,
				Reason: fmt.Sprintf("root of tenant %q lies below node %d", tn.Name, id),
			}
		}
	}

	rows, err := b.tx.LoadNodePositions(ctx, id)
	if err != nil {
		return nil, storeErr("load positions", err)
	}

	removed := append([]NodeID{id}, victims...)
	for _, v := range removed {
		vrows, err := b.tx.LoadNodePositions(ctx, v)
		if err != nil {
			return nil, storeErr("load positions", err)
		}
		for _, r := range vrows {
			if err := b.tx.DeletePosition(ctx, v, r.TenantID); err != nil {
				return nil, storeErr("delete position", err)
			}
		}
		if err := b.tx.DeleteNode(ctx, v); err != nil {
			return nil, storeErr("delete node", err)
		}
	}
	for i := len(removed) - 1; i >= 0; i-- {
		b.g.remove(removed[i])
	}

	for _, r := range rows {
		if err := b.t.pm.renumber(ctx, b.tx, b.g, n.ParentID, r.TenantID); err != nil {
			return nil, err
		}
	}

	b.note(OpDelete)
	b.change.NodeIDs = append(b.change.NodeIDs, removed...)
	b.change.ParentID = n.ParentID
	b.rebuild = true
	return removed, nil
}

func (b *Batch) subtree(id NodeID) []NodeID {
	snap := b.t.Snapshot()
	if b.g.dirty || !b.t.IsConsistent() || snap.Len() != len(b.g.nodes) {
		return b.g.subtree(id)
	}

	desc := snap.DescendantsOf(id)
	out := make([]NodeID, len(desc))
	for i, d := range desc {
		out[i] = d.ID
	}
	return out
}

// Reorder moves id to target among its siblings in tenant.
func (b *Batch) Reorder(ctx context.Context, id NodeID, tenant TenantID, dir Direction, target int) error {
	if _, err := b.node(id); err != nil {
		return err
	}
	if _, err := b.tenant(tenant); err != nil {
		return err
	}

	changed, err := b.t.pm.setPosition(ctx, b.tx, b.g, id, tenant, dir, target)
	if err != nil {
		return err
	}
	if changed {
		b.record(OpReorder, id, b.g.nodes[id].ParentID, tenant)
	}
	return nil
}

func (b *Batch) step(ctx context.Context, id NodeID, tenant TenantID, delta int) error {
	if _, err := b.node(id); err != nil {
		return err
	}
	if _, err := b.tenant(tenant); err != nil {
		return err
	}

	rows, err := b.tx.LoadNodePositions(ctx, id)
	if err != nil {
		return storeErr("load positions", err)
	}
	for _, r := range rows {
		if r.TenantID != tenant {
			continue
		}
		dir := DirectionDown
		if delta < 0 {
			dir = DirectionUp
		}
		return b.Reorder(ctx, id, tenant, dir, r.Position+delta)
	}
	return NotFoundError{ID: id, TenantID: tenant}
}

// MoveUp swaps id with its preceding sibling in tenant.
func (b *Batch) MoveUp(ctx context.Context, id NodeID, tenant TenantID) error {
	return b.step(ctx, id, tenant, -1)
}

// MoveDown swaps id with its following sibling in tenant.
func (b *Batch) MoveDown(ctx context.Context, id NodeID, tenant TenantID) error {
	return b.step(ctx, id, tenant, 1)
}

// AddToTenant appends id after its siblings in tenant. A node that already
// belongs to the tenant is left alone.
func (b *Batch) AddToTenant(ctx context.Context, id NodeID, tenant TenantID) error {
	if _, err := b.node(id); err != nil {
		return err
	}
	if _, err := b.tenant(tenant); err != nil {
		return err
	}

	rows, err := b.tx.LoadNodePositions(ctx, id)
	if err != nil {
		return storeErr("load positions", err)
	}
	for _, r := range rows {
		if r.TenantID == tenant {
			return nil
		}
	}

	if _, err := b.t.pm.appendAtEnd(ctx, b.tx, b.g, id, tenant, true); err != nil {
		return err
	}
	b.record(OpAddToTenant, id, b.g.nodes[id].ParentID, tenant)
	return nil
}

// RemoveFromTenant drops the tenant row of id and renumbers its former
// siblings. A tenant's own root cannot leave it.
func (b *Batch) RemoveFromTenant(ctx context.Context, id NodeID, tenant TenantID) error {
	n, err := b.node(id)
	if err != nil {
		return err
	}
	tn, err := b.tenant(tenant)
	if err != nil {
		return err
	}
	if tn.RootID == id {
		return &ProtectedNodeError{NodeID: id, Reason: fmt.Sprintf("root of tenant %q", tn.Name)}
	}

	if err := b.tx.DeletePosition(ctx, id, tenant); err != nil {
		return storeErr("delete position", err)
	}
	// The node keeps its parent, so its own row must be gone before the
	// remaining siblings are renumbered.
	if err := b.t.pm.renumber(ctx, b.tx, b.g, n.ParentID, tenant); err != nil {
		return err
	}

	b.record(OpRemoveTenant, id, n.ParentID, tenant)
	return nil
}

// SetActive toggles the visibility of id in tenant.
func (b *Batch) SetActive(ctx context.Context, id NodeID, tenant TenantID, active bool) error {
	n, err := b.node(id)
	if err != nil {
		return err
	}
	if _, err := b.tenant(tenant); err != nil {
		return err
	}

	rows, err := b.tx.LoadNodePositions(ctx, id)
	if err != nil {
		return storeErr("load positions", err)
	}
	for _, r := range rows {
		if r.TenantID != tenant {
			continue
		}
		if r.Active == active {
			return nil
		}
		r.Active = active
		if err := b.tx.SavePosition(ctx, r); err != nil {
			return storeErr("save position", err)
		}
		b.record(OpSetActive, id, n.ParentID, tenant)
		return nil
	}
	return NotFoundError{ID: id, TenantID: tenant}
}

// CreateTenant adds a tenant rooted at root, which must be a root category,
// and places root in the new tenant.
func (b *Batch) CreateTenant(ctx context.Context, name string, root NodeID) (*Tenant, error) {
	if name == "" {
		return nil, ErrEmptyName
	}
	n, err := b.node(root)
	if err != nil {
		return nil, err
	}
	if !n.IsRootCategory || n.ParentID != b.g.root {
		return nil, fmt.Errorf("%w: node %d", ErrInvalidTenantRoot, root)
	}

	tn := &Tenant{Name: name, RootID: root}
	if err := b.tx.SaveTenant(ctx, tn); err != nil {
		return nil, storeErr("save tenant", err)
	}
	b.g.tenants[tn.ID] = *tn

	if _, err := b.t.pm.appendAtEnd(ctx, b.tx, b.g, root, tn.ID, true); err != nil {
		return nil, err
	}

	b.record(OpCreateTenant, root, n.ParentID, tn.ID)
	return tn, nil
}

// home returns the root of the default tenant as seen inside the batch.
func (b *Batch) home() NodeID {
	ts, err := b.t.resolveTenants(b.g.tenants)
	if err != nil || ts.def.ID == 0 {
		return b.t.home()
	}
	return ts.def.RootID
}

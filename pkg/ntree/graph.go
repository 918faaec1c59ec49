package ntree

import (
	"context"
	"sort"
)

// graph is the parent-linked working copy a mutation operates on. It is
// loaded inside the store transaction and kept in step with every write the
// mutation makes, so later steps of a batch see earlier ones.
type graph struct {
	nodes    map[NodeID]*Node
	children map[NodeID]map[NodeID]struct{}
	tenants  map[TenantID]Tenant
	root     NodeID

	// dirty is set once the parent links diverge from the stored intervals.
	dirty bool
}

func loadGraph(ctx context.Context, st Store) (*graph, error) {
	nodes, err := st.LoadAll(ctx)
	if err != nil {
		return nil, storeErr("load nodes", err)
	}

	tenants, err := st.LoadTenants(ctx)
	if err != nil {
		return nil, storeErr("load tenants", err)
	}

	g := &graph{
		nodes:    make(map[NodeID]*Node, len(nodes)),
		children: make(map[NodeID]map[NodeID]struct{}),
		tenants:  make(map[TenantID]Tenant, len(tenants)),
	}
	for _, n := range nodes {
		g.add(n)
	}
	for _, t := range tenants {
		g.tenants[t.ID] = t
	}
	g.dirty = false

	return g, nil
}

func (g *graph) add(n *Node) {
	g.nodes[n.ID] = n
	if n.ParentID == 0 {
		g.root = n.ID
	} else {
		g.link(n.ParentID, n.ID)
	}
	g.dirty = true
}

func (g *graph) link(parent, child NodeID) {
	set, ok := g.children[parent]
	if !ok {
		set = make(map[NodeID]struct{})
		g.children[parent] = set
	}
	set[child] = struct{}{}
}

func (g *graph) remove(id NodeID) {
	n, ok := g.nodes[id]
	if !ok {
		return
	}
	delete(g.children[n.ParentID], id)
	delete(g.children, id)
	delete(g.nodes, id)
	g.dirty = true
}

func (g *graph) move(id, parent NodeID) {
	n := g.nodes[id]
	delete(g.children[n.ParentID], id)
	n.ParentID = parent
	g.link(parent, id)
	g.dirty = true
}

func (g *graph) parentOf(id NodeID) (NodeID, bool) {
	n, ok := g.nodes[id]
	if !ok {
		return 0, false
	}
	return n.ParentID, true
}

// childrenOf returns the direct children of parent in ascending id order.
func (g *graph) childrenOf(parent NodeID) []NodeID {
	out := make([]NodeID, 0, len(g.children[parent]))
	for id := range g.children[parent] {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// subtree returns every node strictly below id by walking parent links.
func (g *graph) subtree(id NodeID) []NodeID {
	var out []NodeID
	stack := g.childrenOf(id)
	seen := map[NodeID]bool{id: true}

	for len(stack) > 0 {
		next := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[next] {
			continue
		}
		seen[next] = true
		out = append(out, next)
		stack = append(stack, g.childrenOf(next)...)
	}
	return out
}

// tenantRootOf returns the tenant whose root is id.
func (g *graph) tenantRootOf(id NodeID) (Tenant, bool) {
	for _, t := range g.tenants {
		if t.RootID == id {
			return t, true
		}
	}
	return Tenant{}, false
}

func (g *graph) tenantIDs() []TenantID {
	out := make([]TenantID, 0, len(g.tenants))
	for id := range g.tenants {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (g *graph) list() []*Node {
	out := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

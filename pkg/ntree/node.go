// Package ntree maintains a hierarchy of categories as a parent-linked tree
// with a derived nested-set index. Every node carries a (left, right, depth)
// interval so ancestor and descendant queries become range comparisons,
// and every node may belong to several tenants where it holds an ordered
// position among its siblings.
//
// The parent links and tenant positions are the source of truth. Intervals
// are recomputed from them after each structural change and published as an
// immutable Snapshot that readers use without taking locks.
package ntree

// NodeID identifies a node. The zero value means "no node" and is used as
// the parent of the structural root.
type NodeID int64

// TenantID identifies a tenant.
type TenantID int64

// Node is a single category in the tree.
type Node struct {
	ID       NodeID `json:"id"`
	ParentID NodeID `json:"parent_id"`
	Name     string `json:"name"`

	// Depth, Left and Right are derived by the interval builder and only
	// meaningful while the tree is consistent.
	Depth int `json:"depth"`
	Left  int `json:"left"`
	Right int `json:"right"`

	// IsRootCategory marks a node that sits directly under the structural
	// root and may serve as the root of a tenant.
	IsRootCategory bool `json:"is_root_category"`
}

// Clone returns a copy of the node.
func (n *Node) Clone() *Node {
	c := *n
	return &c
}

// Interval returns the derived nested-set interval of the node.
func (n *Node) Interval() Interval {
	return Interval{ID: n.ID, Left: n.Left, Right: n.Right, Depth: n.Depth}
}

// IsStructuralRoot reports whether the node has no parent.
func (n *Node) IsStructuralRoot() bool {
	return n.ParentID == 0
}

// Interval is the derived nested-set triple for one node.
type Interval struct {
	ID    NodeID `json:"id"`
	Left  int    `json:"left"`
	Right int    `json:"right"`
	Depth int    `json:"depth"`
}

// Contains reports whether o lies strictly inside i.
func (i Interval) Contains(o Interval) bool {
	return i.Left < o.Left && o.Right < i.Right
}

// Encloses reports whether o lies inside i or is i.
func (i Interval) Encloses(o Interval) bool {
	return i.Left <= o.Left && o.Right <= i.Right
}

// Tenant is an independent view over the shared tree rooted at RootID.
type Tenant struct {
	ID     TenantID `json:"id"`
	Name   string   `json:"name"`
	RootID NodeID   `json:"root_id"`
}

// TenantPosition records a node's membership in a tenant, its ordinal among
// siblings within that tenant, and whether it is visible there.
type TenantPosition struct {
	NodeID   NodeID   `json:"node_id"`
	TenantID TenantID `json:"tenant_id"`
	Position int      `json:"position"`
	Active   bool     `json:"active"`
}

// TreeNode is one entry of a tenant-scoped rendering of the tree.
type TreeNode struct {
	Node     *Node       `json:"node"`
	Position int         `json:"position"`
	Active   bool        `json:"active"`
	Children []*TreeNode `json:"children,omitempty"`
}

package ntree

import (
	"sort"
	"strings"
	"time"
)

// Snapshot is an immutable view of the tree as of one interval rebuild.
// All relationship queries are answered from the intervals alone.
type Snapshot struct {
	nodes   map[NodeID]*Node
	ordered []*Node
	root    *Node
	builtAt time.Time
}

// NewSnapshot indexes nodes that already carry valid intervals. The nodes
// are copied.
func NewSnapshot(nodes []*Node) *Snapshot {
	s := &Snapshot{
		nodes:   make(map[NodeID]*Node, len(nodes)),
		ordered: make([]*Node, 0, len(nodes)),
		builtAt: time.Now().UTC(),
	}

	for _, n := range nodes {
		c := n.Clone()
		s.nodes[c.ID] = c
		s.ordered = append(s.ordered, c)
		if c.ParentID == 0 {
			s.root = c
		}
	}

	sort.Slice(s.ordered, func(i, j int) bool { return s.ordered[i].Left < s.ordered[j].Left })
	return s
}

// Len returns the number of nodes.
func (s *Snapshot) Len() int {
	return len(s.ordered)
}

// BuiltAt returns when the snapshot was created.
func (s *Snapshot) BuiltAt() time.Time {
	return s.builtAt
}

// Root returns the structural root or nil for an empty tree.
func (s *Snapshot) Root() *Node {
	if s.root == nil {
		return nil
	}
	return s.root.Clone()
}

// Node returns a copy of the node with the given id.
func (s *Snapshot) Node(id NodeID) (*Node, bool) {
	n, ok := s.nodes[id]
	if !ok {
		return nil, false
	}
	return n.Clone(), true
}

// Nodes returns every node in pre-order.
func (s *Snapshot) Nodes() []*Node {
	return cloneAll(s.ordered)
}

// IsDescendantOf reports whether x lies strictly below y.
func (s *Snapshot) IsDescendantOf(x, y NodeID) bool {
	nx, okx := s.nodes[x]
	ny, oky := s.nodes[y]
	if !okx || !oky {
		return false
	}
	return ny.Interval().Contains(nx.Interval())
}

// IsAncestorOf reports whether x lies strictly above y.
func (s *Snapshot) IsAncestorOf(x, y NodeID) bool {
	return s.IsDescendantOf(y, x)
}

// IsWithin reports whether x is owner or lies below it.
func (s *Snapshot) IsWithin(x, owner NodeID) bool {
	nx, okx := s.nodes[x]
	no, oko := s.nodes[owner]
	if !okx || !oko {
		return false
	}
	return no.Interval().Encloses(nx.Interval())
}

// DescendantsOf returns every node strictly below id in pre-order.
func (s *Snapshot) DescendantsOf(id NodeID) []*Node {
	n, ok := s.nodes[id]
	if !ok {
		return nil
	}

	start := sort.Search(len(s.ordered), func(i int) bool { return s.ordered[i].Left > n.Left })
	end := sort.Search(len(s.ordered), func(i int) bool { return s.ordered[i].Left > n.Right })
	return cloneAll(s.ordered[start:end])
}

// AncestorsOf returns every node strictly above id, root first.
func (s *Snapshot) AncestorsOf(id NodeID) []*Node {
	n, ok := s.nodes[id]
	if !ok {
		return nil
	}

	end := sort.Search(len(s.ordered), func(i int) bool { return s.ordered[i].Left >= n.Left })

	var out []*Node
	for _, c := range s.ordered[:end] {
		if c.Right > n.Right {
			out = append(out, c.Clone())
		}
	}
	return out
}

// ChildrenOf returns the direct children of id in interval order.
func (s *Snapshot) ChildrenOf(id NodeID) []*Node {
	var out []*Node
	for _, c := range s.DescendantsOf(id) {
		if c.ParentID == id {
			out = append(out, c)
		}
	}
	return out
}

// Path returns the chain from the top-level ancestor below the structural
// root down to id. The structural root itself is never part of a path.
func (s *Snapshot) Path(id NodeID) []*Node {
	n, ok := s.nodes[id]
	if !ok {
		return nil
	}

	var out []*Node
	for _, a := range s.AncestorsOf(id) {
		if a.ParentID != 0 {
			out = append(out, a)
		}
	}
	if n.ParentID != 0 {
		out = append(out, n.Clone())
	}
	return out
}

// FindByName returns the children of parent whose name matches
// case-insensitively.
func (s *Snapshot) FindByName(parent NodeID, name string) []*Node {
	var out []*Node
	for _, c := range s.ChildrenOf(parent) {
		if strings.EqualFold(c.Name, name) {
			out = append(out, c)
		}
	}
	return out
}

func cloneAll(nodes []*Node) []*Node {
	out := make([]*Node, len(nodes))
	for i, n := range nodes {
		out[i] = n.Clone()
	}
	return out
}

package ntree

import "fmt"

// ParentFunc resolves the stored parent of a node.
type ParentFunc func(id NodeID) (NodeID, bool)

// CycleGuard rejects reparent requests that would make a node its own
// ancestor. It walks stored parent links rather than intervals so it stays
// correct while intervals are stale.
type CycleGuard struct {
	// Home is the root of the default tenant. Moving directly under it is
	// always accepted since it sits one level under the structural root and
	// is itself protected.
	Home NodeID
}

// Validate returns a CycleError if candidate is node or one of its
// descendants, and a StructuralError if the parent chain of candidate loops
// or breaks before reaching the structural root.
func (g CycleGuard) Validate(node, candidate NodeID, parentOf ParentFunc) error {
	if node == candidate {
		return &CycleError{NodeID: node, Candidate: candidate}
	}
	if candidate == g.Home && g.Home != 0 {
		return nil
	}

	visited := map[NodeID]bool{}
	cur := candidate
	for {
		if visited[cur] {
			return &StructuralError{NodeID: cur, Reason: "parent chain loops"}
		}
		visited[cur] = true

		parent, ok := parentOf(cur)
		if !ok {
			return &StructuralError{NodeID: cur, Reason: fmt.Sprintf("node %d is missing from the parent chain", cur)}
		}

		switch {
		case parent == 0:
			return nil
		case parent == node:
			return &CycleError{NodeID: node, Candidate: candidate}
		case parent == g.Home && g.Home != 0:
			return nil
		}
		cur = parent
	}
}

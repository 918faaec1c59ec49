package ntree

import (
	"fmt"
	"sort"
)

// Build derives the nested-set interval of every node from its parent link.
//
// Siblings are visited in the order given by positions: nodes with a
// position sort by it, nodes without one follow in ascending id order. The
// traversal uses an explicit stack so arbitrarily deep trees cannot exhaust
// the goroutine stack. The counter starts at 1 on entering the structural
// root, so the root spans [1, 2N] for N nodes.
//
// Build fails with a StructuralError when the nodes do not form a single tree
// reachable from exactly one structural root.
func Build(nodes []*Node, positions []TenantPosition) ([]Interval, error) {
	if len(nodes) == 0 {
		return nil, nil
	}

	byID := make(map[NodeID]*Node, len(nodes))
	var root NodeID
	for _, n := range nodes {
		if n.ID == 0 {
			return nil, &StructuralError{Reason: "node with zero id"}
		}
		if _, dup := byID[n.ID]; dup {
			return nil, &StructuralError{NodeID: n.ID, Reason: "duplicate node id"}
		}
		byID[n.ID] = n

		if n.ParentID == 0 {
			if root != 0 {
				return nil, &StructuralError{
					NodeID: n.ID,
					Reason: fmt.Sprintf("second structural root besides %d", root),
				}
			}
			root = n.ID
		}
	}

	if root == 0 {
		return nil, &StructuralError{Reason: "no structural root"}
	}

	order := make(map[NodeID]int, len(positions))
	for _, p := range positions {
		order[p.NodeID] = p.Position
	}

	children := make(map[NodeID][]NodeID, len(nodes))
	for _, n := range nodes {
		if n.ParentID == 0 {
			continue
		}
		if _, ok := byID[n.ParentID]; !ok {
			return nil, &StructuralError{
				NodeID: n.ID,
				Reason: fmt.Sprintf("parent %d does not exist", n.ParentID),
			}
		}
		children[n.ParentID] = append(children[n.ParentID], n.ID)
	}

	for parent := range children {
		sortSiblings(children[parent], order)
	}

	type frame struct {
		id   NodeID
		next int
	}

	out := make([]Interval, 0, len(nodes))
	index := make(map[NodeID]int, len(nodes))
	counter := 1

	out = append(out, Interval{ID: root, Left: counter})
	index[root] = 0
	stack := []frame{{id: root}}

	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		kids := children[top.id]

		if top.next < len(kids) {
			child := kids[top.next]
			top.next++

			counter++
			index[child] = len(out)
			out = append(out, Interval{ID: child, Left: counter, Depth: len(stack)})
			stack = append(stack, frame{id: child})
			continue
		}

		counter++
		out[index[top.id]].Right = counter
		stack = stack[:len(stack)-1]
	}

	if len(out) != len(nodes) {
		// Whatever was not reached hangs off a parent loop.
		var missing NodeID
		for id := range byID {
			if _, seen := index[id]; !seen && (missing == 0 || id < missing) {
				missing = id
			}
		}
		return nil, &StructuralError{NodeID: missing, Reason: "unreachable from the structural root"}
	}

	return out, nil
}

// sortSiblings orders ids by position, placing ids without a position last
// in ascending id order.
func sortSiblings(ids []NodeID, order map[NodeID]int) {
	sort.Slice(ids, func(i, j int) bool {
		pi, iok := order[ids[i]]
		pj, jok := order[ids[j]]

		switch {
		case iok && jok:
			if pi != pj {
				return pi < pj
			}
			return ids[i] < ids[j]
		case iok != jok:
			return iok
		default:
			return ids[i] < ids[j]
		}
	})
}

// applyIntervals writes intervals onto the matching nodes.
func applyIntervals(nodes []*Node, intervals []Interval) {
	byID := make(map[NodeID]Interval, len(intervals))
	for _, iv := range intervals {
		byID[iv.ID] = iv
	}

	for _, n := range nodes {
		iv := byID[n.ID]
		n.Left, n.Right, n.Depth = iv.Left, iv.Right, iv.Depth
	}
}

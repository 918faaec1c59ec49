package ntree

import (
	"context"
	"fmt"
	"sort"
)

// positions maintains per-tenant sibling ordinals. Every method runs inside
// the caller's transaction and relies on g for sibling membership.
type positions struct{}

// siblings returns the position rows of the children of parent in tenant,
// ordered by position then node id.
func (positions) siblings(ctx context.Context, st Store, g *graph, parent NodeID, tenant TenantID) ([]TenantPosition, error) {
	rows, err := st.LoadPositions(ctx, tenant)
	if err != nil {
		return nil, storeErr("load positions", err)
	}

	var out []TenantPosition
	for _, r := range rows {
		if p, ok := g.parentOf(r.NodeID); ok && p == parent {
			out = append(out, r)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].NodeID < out[j].NodeID
	})
	return out, nil
}

// appendAtEnd gives node the next free position among its siblings in
// tenant, replacing any row it already had.
func (pm positions) appendAtEnd(ctx context.Context, st Store, g *graph, node NodeID, tenant TenantID, active bool) (int, error) {
	parent, ok := g.parentOf(node)
	if !ok {
		return 0, NotFoundError{ID: node}
	}

	sibs, err := pm.siblings(ctx, st, g, parent, tenant)
	if err != nil {
		return 0, err
	}

	next := 0
	for _, s := range sibs {
		if s.NodeID != node {
			next++
		}
	}

	pos := TenantPosition{NodeID: node, TenantID: tenant, Position: next, Active: active}
	if err := st.SavePosition(ctx, pos); err != nil {
		return 0, storeErr("save position", err)
	}
	return next, nil
}

// renumber rewrites the sibling positions of parent in tenant to 0..k-1,
// keeping their current relative order. Only changed rows are written.
func (pm positions) renumber(ctx context.Context, st Store, g *graph, parent NodeID, tenant TenantID) error {
	sibs, err := pm.siblings(ctx, st, g, parent, tenant)
	if err != nil {
		return err
	}

	for i, s := range sibs {
		if s.Position == i {
			continue
		}
		s.Position = i
		if err := st.SavePosition(ctx, s); err != nil {
			return storeErr("save position", err)
		}
	}
	return nil
}

// duplicate returns the first position shared by two siblings, if any.
func (pm positions) duplicate(ctx context.Context, st Store, g *graph, parent NodeID, tenant TenantID) (*DuplicatePositionError, error) {
	sibs, err := pm.siblings(ctx, st, g, parent, tenant)
	if err != nil {
		return nil, err
	}

	for i := 1; i < len(sibs); i++ {
		if sibs[i].Position == sibs[i-1].Position {
			return &DuplicatePositionError{ParentID: parent, TenantID: tenant, Position: sibs[i].Position}, nil
		}
	}
	return nil, nil
}

// resolveDuplicate renumbers the siblings of parent in tenant when two of
// them share a position. It reports whether a repair was made.
func (pm positions) resolveDuplicate(ctx context.Context, st Store, g *graph, parent NodeID, tenant TenantID) (bool, error) {
	dup, err := pm.duplicate(ctx, st, g, parent, tenant)
	if err != nil || dup == nil {
		return false, err
	}
	return true, pm.renumber(ctx, st, g, parent, tenant)
}

// Direction constrains a reorder to one way.
type Direction int

const (
	// DirectionAuto infers the direction from the current and target positions.
	DirectionAuto Direction = iota
	// DirectionUp moves the node to a lower position.
	DirectionUp
	// DirectionDown moves the node to a higher position.
	DirectionDown
)

// ParseDirection maps "auto", "up" and "down" to a Direction.
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "", "auto":
		return DirectionAuto, nil
	case "up":
		return DirectionUp, nil
	case "down":
		return DirectionDown, nil
	}
	return DirectionAuto, fmt.Errorf("%w: unknown direction %q", ErrInvalidReorder, s)
}

func (d Direction) String() string {
	switch d {
	case DirectionUp:
		return "up"
	case DirectionDown:
		return "down"
	default:
		return "auto"
	}
}

// setPosition moves node to target among its siblings in tenant. Siblings
// between the old and new position shift one step the opposite way so the
// positions stay contiguous. It returns whether anything changed.
func (pm positions) setPosition(ctx context.Context, st Store, g *graph, node NodeID, tenant TenantID, dir Direction, target int) (bool, error) {
	parent, ok := g.parentOf(node)
	if !ok {
		return false, NotFoundError{ID: node}
	}

	sibs, err := pm.siblings(ctx, st, g, parent, tenant)
	if err != nil {
		return false, err
	}

	for i := 1; i < len(sibs); i++ {
		if sibs[i].Position == sibs[i-1].Position {
			return false, &DuplicatePositionError{ParentID: parent, TenantID: tenant, Position: sibs[i].Position}
		}
	}

	current := -1
	for _, s := range sibs {
		if s.NodeID == node {
			current = s.Position
			break
		}
	}
	if current < 0 {
		return false, NotFoundError{ID: node, TenantID: tenant}
	}

	if target < 0 || target >= len(sibs) {
		return false, fmt.Errorf("%w: position %d outside 0..%d", ErrInvalidReorder, target, len(sibs)-1)
	}
	if target == current {
		return false, nil
	}

	up := target < current
	switch {
	case dir == DirectionUp && !up:
		return false, fmt.Errorf("%w: moving up from %d cannot reach %d", ErrInvalidReorder, current, target)
	case dir == DirectionDown && up:
		return false, fmt.Errorf("%w: moving down from %d cannot reach %d", ErrInvalidReorder, current, target)
	}

	for _, s := range sibs {
		switch {
		case s.NodeID == node:
			s.Position = target
		case up && s.Position >= target && s.Position < current:
			s.Position++
		case !up && s.Position > current && s.Position <= target:
			s.Position--
		default:
			continue
		}
		if err := st.SavePosition(ctx, s); err != nil {
			return false, storeErr("save position", err)
		}
	}
	return true, nil
}

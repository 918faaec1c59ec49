package ntree

import (
	"errors"
	"fmt"
)

var (
	// ErrNotBootstrapped is returned when an operation needs the structural
	// root but the store holds no nodes yet.
	ErrNotBootstrapped = errors.New("tree is not bootstrapped")

	// ErrAlreadyBootstrapped is returned by Bootstrap on a non-empty store.
	ErrAlreadyBootstrapped = errors.New("tree is already bootstrapped")

	// ErrInvalidReorder is returned when a reorder target is out of range or
	// contradicts the requested direction.
	ErrInvalidReorder = errors.New("invalid reorder")

	// ErrUnknownTenant is returned when a tenant id does not exist.
	ErrUnknownTenant = errors.New("unknown tenant")

	// ErrInvalidTenantRoot is returned when a tenant is rooted at a node that
	// is not a root category.
	ErrInvalidTenantRoot = errors.New("tenant root must be a root category")

	// ErrEmptyName is returned when a node or tenant is created without a name.
	ErrEmptyName = errors.New("name must not be empty")

	// ErrEmptyPath is returned when a category path has no segments.
	ErrEmptyPath = errors.New("path must name at least one category")
)

// NotFoundError is returned when a node, or a node's membership in a tenant,
// does not exist.
type NotFoundError struct {
	ID       NodeID
	TenantID TenantID
}

func (e NotFoundError) Error() string {
	if e.TenantID != 0 {
		return fmt.Sprintf("node %d not found in tenant %d", e.ID, e.TenantID)
	}

	return fmt.Sprintf("node %d not found", e.ID)
}

// CycleError is returned when a reparent would place a node under itself or
// under one of its own descendants.
type CycleError struct {
	NodeID    NodeID
	Candidate NodeID
}

func (e *CycleError) Error() string {
	if e.NodeID == e.Candidate {
		return fmt.Sprintf("node %d cannot be its own parent", e.NodeID)
	}

	return fmt.Sprintf("node %d cannot move under its descendant %d", e.NodeID, e.Candidate)
}

// ProtectedNodeError is returned when deleting or moving a node the tree
// depends on: the structural root or a tenant root.
type ProtectedNodeError struct {
	NodeID NodeID
	Reason string
}

func (e *ProtectedNodeError) Error() string {
	return fmt.Sprintf("node %d is protected: %s", e.NodeID, e.Reason)
}

// StructuralError reports stored parent links that cannot form a single
// rooted tree.
type StructuralError struct {
	NodeID NodeID
	Reason string
}

func (e *StructuralError) Error() string {
	if e.NodeID == 0 {
		return "structural error: " + e.Reason
	}

	return fmt.Sprintf("structural error at node %d: %s", e.NodeID, e.Reason)
}

// DuplicatePositionError reports two siblings sharing a position in a tenant.
type DuplicatePositionError struct {
	ParentID NodeID
	TenantID TenantID
	Position int
}

func (e *DuplicatePositionError) Error() string {
	return fmt.Sprintf("duplicate position %d under node %d in tenant %d", e.Position, e.ParentID, e.TenantID)
}

// StoreError wraps a failure returned by the backing Store.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}

	var se *StoreError
	if errors.As(err, &se) {
		return err
	}

	return &StoreError{Op: op, Err: err}
}

// IsPrecondition reports whether err rejects an operation before anything
// was written.
func IsPrecondition(err error) bool {
	var (
		cycle     *CycleError
		protected *ProtectedNodeError
		notFound  NotFoundError
		dup       *DuplicatePositionError
		path      *PathNotFoundError
	)

	switch {
	case errors.As(err, &cycle),
		errors.As(err, &path),
		errors.Is(err, ErrEmptyPath),
		errors.As(err, &protected),
		errors.As(err, &notFound),
		errors.As(err, &dup),
		errors.Is(err, ErrInvalidReorder),
		errors.Is(err, ErrUnknownTenant),
		errors.Is(err, ErrEmptyName),
		errors.Is(err, ErrInvalidTenantRoot),
		errors.Is(err, ErrNotBootstrapped),
		errors.Is(err, ErrAlreadyBootstrapped):
		return true
	}

	return false
}

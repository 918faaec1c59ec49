package ntree

import "context"

// Store persists nodes, tenant positions and tenants. Implementations live
// under pkg/storage.
//
// Lookups of a missing node return NotFoundError. Writes made through the
// Store passed to an Atomic callback become visible together when the
// callback returns nil and are discarded otherwise.
type Store interface {
	// LoadAll returns every node ordered by id.
	LoadAll(ctx context.Context) ([]*Node, error)

	// LoadNode returns a single node.
	LoadNode(ctx context.Context, id NodeID) (*Node, error)

	// LoadPositions returns every position row of a tenant ordered by node id.
	LoadPositions(ctx context.Context, tenant TenantID) ([]TenantPosition, error)

	// LoadNodePositions returns the position rows of one node across tenants
	// ordered by tenant id.
	LoadNodePositions(ctx context.Context, id NodeID) ([]TenantPosition, error)

	// LoadTenants returns every tenant ordered by id.
	LoadTenants(ctx context.Context) ([]Tenant, error)

	// SaveNode inserts or updates a node. A zero ID is replaced by a newly
	// assigned one.
	SaveNode(ctx context.Context, node *Node) error

	// SavePosition inserts or replaces the position row for
	// (pos.NodeID, pos.TenantID).
	SavePosition(ctx context.Context, pos TenantPosition) error

	// SaveTenant inserts or updates a tenant. A zero ID is replaced by a
	// newly assigned one.
	SaveTenant(ctx context.Context, tenant *Tenant) error

	// DeleteNode removes a node row. Position rows are removed separately.
	DeleteNode(ctx context.Context, id NodeID) error

	// DeletePosition removes one position row. Missing rows are not an error.
	DeletePosition(ctx context.Context, node NodeID, tenant TenantID) error

	// CommitIntervals writes the derived interval of every listed node.
	CommitIntervals(ctx context.Context, intervals []Interval) error

	// Atomic runs fn against a transactional view of the store.
	Atomic(ctx context.Context, fn func(ctx context.Context, tx Store) error) error

	// Close releases any resources held by the store.
	Close() error
}

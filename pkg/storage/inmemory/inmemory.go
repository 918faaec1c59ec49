// Package inmemory provides a map-backed storage driver. Transactions work on
// a copy of the state that replaces the original only on success.
package inmemory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/cienislaw/thirtybees/pkg/ntree"
)

type posKey struct {
	node   ntree.NodeID
	tenant ntree.TenantID
}

type state struct {
	nodes      map[ntree.NodeID]*ntree.Node
	positions  map[posKey]ntree.TenantPosition
	tenants    map[ntree.TenantID]ntree.Tenant
	nextNode   ntree.NodeID
	nextTenant ntree.TenantID
}

func newState() *state {
	return &state{
		nodes:     make(map[ntree.NodeID]*ntree.Node),
		positions: make(map[posKey]ntree.TenantPosition),
		tenants:   make(map[ntree.TenantID]ntree.Tenant),
	}
}

func (s *state) clone() *state {
	c := &state{
		nodes:      make(map[ntree.NodeID]*ntree.Node, len(s.nodes)),
		positions:  make(map[posKey]ntree.TenantPosition, len(s.positions)),
		tenants:    make(map[ntree.TenantID]ntree.Tenant, len(s.tenants)),
		nextNode:   s.nextNode,
		nextTenant: s.nextTenant,
	}
	for id, n := range s.nodes {
		c.nodes[id] = n.Clone()
	}
	for k, p := range s.positions {
		c.positions[k] = p
	}
	for id, t := range s.tenants {
		c.tenants[id] = t
	}
	return c
}

// Driver implements ntree.Store in memory.
type Driver struct {
	// mu guards st. Atomic holds it exclusively for the whole transaction so
	// transactions never interleave.
	mu sync.RWMutex
	st *state

	// tx is set on the view handed to an Atomic callback.
	tx bool
}

// NewDriver creates an empty in-memory driver.
func NewDriver() *Driver {
	return &Driver{st: newState()}
}

// LoadAll returns every node ordered by id.
func (d *Driver) LoadAll(_ context.Context) ([]*ntree.Node, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]*ntree.Node, 0, len(d.st.nodes))
	for _, n := range d.st.nodes {
		out = append(out, n.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// LoadNode returns a single node.
func (d *Driver) LoadNode(_ context.Context, id ntree.NodeID) (*ntree.Node, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	n, ok := d.st.nodes[id]
	if !ok {
		return nil, ntree.NotFoundError{ID: id}
	}
	return n.Clone(), nil
}

// LoadPositions returns the rows of tenant ordered by node id.
func (d *Driver) LoadPositions(_ context.Context, tenant ntree.TenantID) ([]ntree.TenantPosition, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []ntree.TenantPosition
	for k, p := range d.st.positions {
		if k.tenant == tenant {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NodeID < out[j].NodeID })
	return out, nil
}

// LoadNodePositions returns the rows of one node ordered by tenant id.
func (d *Driver) LoadNodePositions(_ context.Context, id ntree.NodeID) ([]ntree.TenantPosition, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []ntree.TenantPosition
	for k, p := range d.st.positions {
		if k.node == id {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TenantID < out[j].TenantID })
	return out, nil
}

// LoadTenants returns every tenant ordered by id.
func (d *Driver) LoadTenants(_ context.Context) ([]ntree.Tenant, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]ntree.Tenant, 0, len(d.st.tenants))
	for _, t := range d.st.tenants {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SaveNode inserts or updates a node, assigning an id when it has none.
func (d *Driver) SaveNode(_ context.Context, node *ntree.Node) error {
	if node == nil {
		return errors.New("cannot store nil node")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if node.ID == 0 {
		d.st.nextNode++
		node.ID = d.st.nextNode
	} else if node.ID > d.st.nextNode {
		d.st.nextNode = node.ID
	}
	d.st.nodes[node.ID] = node.Clone()
	return nil
}

// SavePosition inserts or replaces a tenant row.
func (d *Driver) SavePosition(_ context.Context, pos ntree.TenantPosition) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.st.positions[posKey{node: pos.NodeID, tenant: pos.TenantID}] = pos
	return nil
}

// SaveTenant inserts or updates a tenant, assigning an id when it has none.
func (d *Driver) SaveTenant(_ context.Context, tenant *ntree.Tenant) error {
	if tenant == nil {
		return errors.New("cannot store nil tenant")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if tenant.ID == 0 {
		d.st.nextTenant++
		tenant.ID = d.st.nextTenant
	} else if tenant.ID > d.st.nextTenant {
		d.st.nextTenant = tenant.ID
	}
	d.st.tenants[tenant.ID] = *tenant
	return nil
}

// DeleteNode removes a node.
func (d *Driver) DeleteNode(_ context.Context, id ntree.NodeID) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.st.nodes[id]; !ok {
		return ntree.NotFoundError{ID: id}
	}
	delete(d.st.nodes, id)
	return nil
}

// DeletePosition removes one tenant row.
func (d *Driver) DeletePosition(_ context.Context, node ntree.NodeID, tenant ntree.TenantID) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.st.positions, posKey{node: node, tenant: tenant})
	return nil
}

// CommitIntervals writes the interval of every listed node.
func (d *Driver) CommitIntervals(_ context.Context, intervals []ntree.Interval) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, iv := range intervals {
		if _, ok := d.st.nodes[iv.ID]; !ok {
			return ntree.NotFoundError{ID: iv.ID}
		}
	}
	for _, iv := range intervals {
		n := d.st.nodes[iv.ID]
		n.Left, n.Right, n.Depth = iv.Left, iv.Right, iv.Depth
	}
	return nil
}

// Atomic runs fn against a private copy of the state and swaps it in when fn
// succeeds. Calls nested inside a transaction join it.
func (d *Driver) Atomic(ctx context.Context, fn func(ctx context.Context, tx ntree.Store) error) error {
	if d.tx {
		return fn(ctx, d)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	tx := &Driver{st: d.st.clone(), tx: true}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	d.st = tx.st
	return nil
}

// Count returns the number of stored nodes.
func (d *Driver) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return len(d.st.nodes)
}

// Close is a no-op for the in-memory driver.
func (d *Driver) Close() error {
	return nil
}

package ntree

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Op names a kind of tree mutation.
type Op string

const (
	OpBootstrap    Op = "bootstrap"
	OpCreate       Op = "create"
	OpReparent     Op = "reparent"
	OpDelete       Op = "delete"
	OpReorder      Op = "reorder"
	OpAddToTenant  Op = "tenant_add"
	OpRemoveTenant Op = "tenant_remove"
	OpSetActive    Op = "set_active"
	OpCreateTenant Op = "tenant_create"
	OpRebuild      Op = "rebuild"
	OpBatch        Op = "batch"
)

// Change describes a committed mutation.
type Change struct {
	Op        Op
	NodeIDs   []NodeID
	ParentID  NodeID
	TenantID  TenantID
	Rebuilt   bool
	NodeCount int
}

type tenantState struct {
	byID map[TenantID]Tenant
	def  Tenant
	ref  TenantID
}

// Tree is the engine over one Store. Mutations are serialised by a single
// writer lock and committed atomically together with the interval rebuild
// they trigger. Reads are served from the last published Snapshot.
type Tree struct {
	store Store
	cfg   *config
	pm    positions

	mu         sync.RWMutex
	snap       atomic.Pointer[Snapshot]
	tenants    atomic.Pointer[tenantState]
	consistent atomic.Bool
}

// New loads the tree held by store. Stored intervals that fail Verify are
// rebuilt before the first snapshot is published; if that rebuild fails the
// tree starts out inconsistent and serves the stored intervals as they are.
func New(ctx context.Context, store Store, opts ...Option) (*Tree, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	t := &Tree{store: store, cfg: cfg}
	t.snap.Store(NewSnapshot(nil))
	t.tenants.Store(&tenantState{byID: map[TenantID]Tenant{}})
	t.consistent.Store(true)

	tenants, err := store.LoadTenants(ctx)
	if err != nil {
		return nil, storeErr("load tenants", err)
	}
	if err := t.setTenants(tenants); err != nil {
		return nil, err
	}

	nodes, err := store.LoadAll(ctx)
	if err != nil {
		return nil, storeErr("load nodes", err)
	}
	if len(nodes) == 0 {
		return t, nil
	}

	if verr := Verify(nodes); verr != nil {
		cfg.logger.Warn("stored intervals are inconsistent, rebuilding", "error", verr)
		if err := t.ForceRebuild(ctx); err != nil {
			t.snap.Store(NewSnapshot(nodes))
			cfg.logger.Error("startup rebuild failed", "error", err)
			var se *StoreError
			if errors.As(err, &se) {
				return nil, err
			}
		}
		return t, nil
	}

	t.publish(NewSnapshot(nodes))
	cfg.logger.Debug("tree loaded", "nodes", len(nodes), "tenants", len(tenants))
	return t, nil
}

// Snapshot returns the last published snapshot.
func (t *Tree) Snapshot() *Snapshot {
	return t.snap.Load()
}

// IsConsistent reports whether the published intervals reflect the stored
// structure. It is false after a failed rebuild until ForceRebuild succeeds.
func (t *Tree) IsConsistent() bool {
	return t.consistent.Load()
}

// Bootstrapped reports whether the structural root exists.
func (t *Tree) Bootstrapped() bool {
	return t.Snapshot().Root() != nil
}

// Bootstrap creates the structural root, a root category named "Home" under
// it and the first tenant rooted at Home. It fails on a non-empty store.
func (t *Tree) Bootstrap(ctx context.Context, tenantName string) (*Tenant, error) {
	if tenantName == "" {
		return nil, ErrEmptyName
	}

	var tenant *Tenant
	_, err := t.mutate(ctx, OpBootstrap, func(ctx context.Context, b *Batch) error {
		if b.g.root != 0 {
			return ErrAlreadyBootstrapped
		}

		root := &Node{Name: "Root"}
		if err := b.tx.SaveNode(ctx, root); err != nil {
			return storeErr("save node", err)
		}
		b.g.add(root)

		home := &Node{ParentID: root.ID, Name: "Home", Depth: 1, IsRootCategory: true}
		if err := b.tx.SaveNode(ctx, home); err != nil {
			return storeErr("save node", err)
		}
		b.g.add(home)

		var err error
		tenant, err = b.CreateTenant(ctx, tenantName, home.ID)
		if err != nil {
			return err
		}
		if _, err := b.t.pm.appendAtEnd(ctx, b.tx, b.g, root.ID, tenant.ID, true); err != nil {
			return err
		}

		b.change.NodeIDs = append(b.change.NodeIDs, root.ID)
		b.rebuild = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tenant, nil
}

// CreateRequest describes a node to create.
type CreateRequest struct {
	ParentID NodeID
	Name     string

	// IsRootCategory places the node directly under the structural root
	// regardless of ParentID.
	IsRootCategory bool

	// Tenants lists the tenants the node joins. Empty means every tenant.
	Tenants []TenantID
	// Inactive creates the tenant rows hidden.
	Inactive bool
}

// Create adds a node and rebuilds the intervals.
func (t *Tree) Create(ctx context.Context, req CreateRequest) (*Node, error) {
	var node *Node
	_, err := t.mutate(ctx, OpCreate, func(ctx context.Context, b *Batch) error {
		var err error
		node, err = b.Create(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}

	if n, ok := t.Snapshot().Node(node.ID); ok {
		return n, nil
	}
	return node, nil
}

// Reparent moves id under parent and rebuilds the intervals.
func (t *Tree) Reparent(ctx context.Context, id, parent NodeID) error {
	_, err := t.mutate(ctx, OpReparent, func(ctx context.Context, b *Batch) error {
		return b.Reparent(ctx, id, parent)
	})
	return err
}

// Delete removes id and its whole subtree, returning the removed ids.
func (t *Tree) Delete(ctx context.Context, id NodeID) ([]NodeID, error) {
	var removed []NodeID
	_, err := t.mutate(ctx, OpDelete, func(ctx context.Context, b *Batch) error {
		var err error
		removed, err = b.Delete(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

// Reorder moves id to target among its siblings in tenant. Intervals are
// left as they are.
func (t *Tree) Reorder(ctx context.Context, id NodeID, tenant TenantID, dir Direction, target int) error {
	_, err := t.mutate(ctx, OpReorder, func(ctx context.Context, b *Batch) error {
		return b.Reorder(ctx, id, tenant, dir, target)
	})
	return err
}

// MoveUp swaps id with its preceding sibling in tenant.
func (t *Tree) MoveUp(ctx context.Context, id NodeID, tenant TenantID) error {
	_, err := t.mutate(ctx, OpReorder, func(ctx context.Context, b *Batch) error {
		return b.step(ctx, id, tenant, -1)
	})
	return err
}

// MoveDown swaps id with its following sibling in tenant.
func (t *Tree) MoveDown(ctx context.Context, id NodeID, tenant TenantID) error {
	_, err := t.mutate(ctx, OpReorder, func(ctx context.Context, b *Batch) error {
		return b.step(ctx, id, tenant, 1)
	})
	return err
}

// AddToTenant appends id to its siblings in tenant.
func (t *Tree) AddToTenant(ctx context.Context, id NodeID, tenant TenantID) error {
	_, err := t.mutate(ctx, OpAddToTenant, func(ctx context.Context, b *Batch) error {
		return b.AddToTenant(ctx, id, tenant)
	})
	return err
}

// RemoveFromTenant drops id from tenant and closes the gap it leaves.
func (t *Tree) RemoveFromTenant(ctx context.Context, id NodeID, tenant TenantID) error {
	_, err := t.mutate(ctx, OpRemoveTenant, func(ctx context.Context, b *Batch) error {
		return b.RemoveFromTenant(ctx, id, tenant)
	})
	return err
}

// SetActive toggles the visibility of id in tenant.
func (t *Tree) SetActive(ctx context.Context, id NodeID, tenant TenantID, active bool) error {
	_, err := t.mutate(ctx, OpSetActive, func(ctx context.Context, b *Batch) error {
		return b.SetActive(ctx, id, tenant, active)
	})
	return err
}

// CreateTenant adds a tenant rooted at an existing root category.
func (t *Tree) CreateTenant(ctx context.Context, name string, root NodeID) (*Tenant, error) {
	var tenant *Tenant
	_, err := t.mutate(ctx, OpCreateTenant, func(ctx context.Context, b *Batch) error {
		var err error
		tenant, err = b.CreateTenant(ctx, name, root)
		return err
	})
	return tenant, err
}

// Batch runs fn inside one transaction and rebuilds the intervals once at
// the end if any step changed the structure. An error from fn discards
// every step.
//
// The returned Change carries the op of its steps when they are all of one
// kind, and OpBatch when they are mixed or when nothing changed.
func (t *Tree) Batch(ctx context.Context, fn func(ctx context.Context, b *Batch) error) (Change, error) {
	return t.mutate(ctx, OpBatch, fn)
}

// ForceRebuild recomputes and commits every interval from the stored parent
// links. It is safe to call at any time and clears the inconsistent flag on
// success.
func (t *Tree) ForceRebuild(ctx context.Context) error {
	ctx, span := t.cfg.tracer.Start(ctx, "ntree."+string(OpRebuild))
	defer span.End()

	var snap *Snapshot
	err := func() error {
		t.mu.Lock()
		defer t.mu.Unlock()

		return t.store.Atomic(ctx, func(ctx context.Context, tx Store) error {
			g, err := loadGraph(ctx, tx)
			if err != nil {
				return err
			}
			if g.root == 0 && len(g.nodes) == 0 {
				snap = NewSnapshot(nil)
				return nil
			}
			ts, err := t.resolveTenants(g.tenants)
			if err != nil {
				return err
			}
			snap, err = t.rebuildTx(ctx, tx, ts.ref)
			return err
		})
	}()

	t.cfg.metrics.observeMutation(string(OpRebuild), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		t.markStale(err)
		return err
	}

	t.publish(snap)
	t.cfg.logger.Info("tree rebuilt", "nodes", snap.Len())
	t.notify(ctx, Change{Op: OpRebuild, Rebuilt: true, NodeCount: snap.Len()})
	return nil
}

// Check verifies the stored intervals and every tenant's sibling positions.
// A failure also marks the tree inconsistent.
func (t *Tree) Check(ctx context.Context) error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	err := t.check(ctx)
	if err != nil {
		var se *StoreError
		if !errors.As(err, &se) {
			t.markStale(err)
		}
	}
	return err
}

func (t *Tree) check(ctx context.Context) error {
	nodes, err := t.store.LoadAll(ctx)
	if err != nil {
		return storeErr("load nodes", err)
	}
	if err := Verify(nodes); err != nil {
		return err
	}

	for _, tenant := range t.Tenants() {
		rows, err := t.store.LoadPositions(ctx, tenant.ID)
		if err != nil {
			return storeErr("load positions", err)
		}
		if err := VerifyPositions(nodes, rows); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tree) mutate(ctx context.Context, op Op, fn func(ctx context.Context, b *Batch) error) (Change, error) {
	ctx, span := t.cfg.tracer.Start(ctx, "ntree."+string(op))
	defer span.End()

	change, err := t.mutateLocked(ctx, op, fn)
	if err == nil && change.Op != op {
		op = change.Op
		span.SetName("ntree." + string(op))
	}
	t.cfg.metrics.observeMutation(string(op), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if IsPrecondition(err) {
			t.cfg.logger.Debug("mutation rejected", "op", op, "error", err)
		} else {
			t.cfg.logger.Error("mutation failed", "op", op, "error", err)
		}
		return Change{}, err
	}

	span.SetAttributes(
		attribute.Bool("ntree.rebuilt", change.Rebuilt),
		attribute.Int("ntree.nodes", change.NodeCount),
	)
	t.cfg.logger.Debug("mutation committed", "op", op, "nodes", change.NodeIDs, "rebuilt", change.Rebuilt)
	t.notify(ctx, change)
	return change, nil
}

func (t *Tree) mutateLocked(ctx context.Context, op Op, fn func(ctx context.Context, b *Batch) error) (Change, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var (
		snap   *Snapshot
		change Change
		g      *graph
	)
	err := t.store.Atomic(ctx, func(ctx context.Context, tx Store) error {
		var err error
		g, err = loadGraph(ctx, tx)
		if err != nil {
			return err
		}
		if g.root == 0 && op != OpBootstrap {
			return ErrNotBootstrapped
		}

		b := &Batch{t: t, tx: tx, g: g, change: Change{Op: op}, relabel: op == OpBatch}
		if err := fn(ctx, b); err != nil {
			return err
		}
		change = b.change

		if b.rebuild {
			ts, err := t.resolveTenants(g.tenants)
			if err != nil {
				return err
			}
			if snap, err = t.rebuildTx(ctx, tx, ts.ref); err != nil {
				return err
			}
			change.Rebuilt = true
		}
		return nil
	})
	if err != nil {
		if !IsPrecondition(err) {
			t.markStale(err)
		}
		return Change{}, err
	}

	if err := t.setTenantMap(g.tenants); err != nil {
		return Change{}, err
	}
	if snap != nil {
		t.publish(snap)
	}
	change.NodeCount = t.Snapshot().Len()
	return change, nil
}

// rebuildTx derives every interval from the nodes visible in tx, commits
// them and returns the resulting snapshot.
func (t *Tree) rebuildTx(ctx context.Context, tx Store, ref TenantID) (*Snapshot, error) {
	ctx, span := t.cfg.tracer.Start(ctx, "ntree.build_intervals")
	defer span.End()

	start := time.Now()
	snap, err := func() (*Snapshot, error) {
		nodes, err := tx.LoadAll(ctx)
		if err != nil {
			return nil, storeErr("load nodes", err)
		}

		var order []TenantPosition
		if ref != 0 {
			if order, err = tx.LoadPositions(ctx, ref); err != nil {
				return nil, storeErr("load positions", err)
			}
		}

		intervals, err := Build(nodes, order)
		if err != nil {
			return nil, err
		}
		if err := tx.CommitIntervals(ctx, intervals); err != nil {
			return nil, storeErr("commit intervals", err)
		}

		applyIntervals(nodes, intervals)
		return NewSnapshot(nodes), nil
	}()

	t.cfg.metrics.observeRebuild(time.Since(start), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("ntree.nodes", snap.Len()))
	return snap, nil
}

func (t *Tree) publish(snap *Snapshot) {
	t.snap.Store(snap)
	t.consistent.Store(true)
	t.cfg.metrics.setState(snap.Len(), true)
}

func (t *Tree) markStale(err error) {
	if t.consistent.Swap(false) {
		t.cfg.logger.Warn("tree marked inconsistent, rebuild pending", "error", err)
	}
	t.cfg.metrics.setState(t.Snapshot().Len(), false)
}

func (t *Tree) notify(ctx context.Context, change Change) {
	for _, h := range t.cfg.hooks {
		h(ctx, change)
	}
}

func (t *Tree) setTenants(list []Tenant) error {
	m := make(map[TenantID]Tenant, len(list))
	for _, tn := range list {
		m[tn.ID] = tn
	}
	return t.setTenantMap(m)
}

func (t *Tree) setTenantMap(m map[TenantID]Tenant) error {
	ts, err := t.resolveTenants(m)
	if err != nil {
		return err
	}
	t.tenants.Store(ts)
	return nil
}

// resolveTenants picks the default and reference tenants out of m.
func (t *Tree) resolveTenants(m map[TenantID]Tenant) (*tenantState, error) {
	byID := make(map[TenantID]Tenant, len(m))
	for id, tn := range m {
		byID[id] = tn
	}
	ts := &tenantState{byID: byID}
	if len(byID) == 0 {
		return ts, nil
	}

	if id := t.cfg.defaultTenant; id != 0 {
		def, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: default tenant %d", ErrUnknownTenant, id)
		}
		ts.def = def
	} else {
		for _, tn := range byID {
			if ts.def.ID == 0 || tn.ID < ts.def.ID {
				ts.def = tn
			}
		}
	}

	ts.ref = ts.def.ID
	if id := t.cfg.referenceTenant; id != 0 {
		if _, ok := byID[id]; !ok {
			return nil, fmt.Errorf("%w: reference tenant %d", ErrUnknownTenant, id)
		}
		ts.ref = id
	}
	return ts, nil
}

func (t *Tree) home() NodeID {
	return t.tenants.Load().def.RootID
}

// Tenants returns every tenant ordered by id.
func (t *Tree) Tenants() []Tenant {
	ts := t.tenants.Load()
	out := make([]Tenant, 0, len(ts.byID))
	for _, tn := range ts.byID {
		out = append(out, tn)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Tenant returns the tenant with the given id.
func (t *Tree) Tenant(id TenantID) (Tenant, error) {
	tn, ok := t.tenants.Load().byID[id]
	if !ok {
		return Tenant{}, fmt.Errorf("%w: %d", ErrUnknownTenant, id)
	}
	return tn, nil
}

// DefaultTenant returns the tenant whose root acts as home.
func (t *Tree) DefaultTenant() (Tenant, bool) {
	ts := t.tenants.Load()
	return ts.def, ts.def.ID != 0
}

// ReferenceTenant returns the id of the tenant whose order drives the
// interval traversal.
func (t *Tree) ReferenceTenant() TenantID {
	return t.tenants.Load().ref
}

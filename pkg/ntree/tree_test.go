package ntree_test

import (
	"context"
	"errors"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/cienislaw/thirtybees/pkg/ntree"
	"github.com/cienislaw/thirtybees/pkg/storage/inmemory"
	testutils "github.com/cienislaw/thirtybees/pkg/utils/test"
)

// positionsOf returns the tenant positions of ids keyed by node.
func positionsOf(ctx context.Context, tree *ntree.Tree, tenant ntree.TenantID) map[ntree.NodeID]int {
	rows, err := tree.Positions(ctx, tenant)
	Expect(err).NotTo(HaveOccurred())

	out := make(map[ntree.NodeID]int, len(rows))
	for id, r := range rows {
		out[id] = r.Position
	}
	return out
}

var _ = Describe("Tree", func() {
	var (
		ctx context.Context
		c   *testutils.Catalog
		t   *ntree.Tree
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		c, err = testutils.NewCatalog(ctx)
		Expect(err).NotTo(HaveOccurred())
		t = c.Tree
	})

	Describe("Bootstrap", func() {
		It("creates the structural root, home and the default tenant", func() {
			root := t.Snapshot().Root()
			Expect(root.Name).To(Equal("Root"))
			Expect(root.ParentID).To(BeZero())

			home, err := t.Node(c.Home)
			Expect(err).NotTo(HaveOccurred())
			Expect(home.ParentID).To(Equal(c.Root))
			Expect(home.IsRootCategory).To(BeTrue())

			def, ok := t.DefaultTenant()
			Expect(ok).To(BeTrue())
			Expect(def).To(Equal(c.Tenant))
			Expect(t.ReferenceTenant()).To(Equal(c.Tenant.ID))
		})

		It("refuses to run twice", func() {
			_, err := t.Bootstrap(ctx, "again")
			Expect(err).To(MatchError(ntree.ErrAlreadyBootstrapped))
		})

		It("requires a tenant name", func() {
			_, err := t.Bootstrap(ctx, "")
			Expect(err).To(MatchError(ntree.ErrEmptyName))
		})

		It("is required before other mutations", func() {
			empty, err := ntree.New(ctx, inmemory.NewDriver())
			Expect(err).NotTo(HaveOccurred())
			Expect(empty.Bootstrapped()).To(BeFalse())

			_, err = empty.Create(ctx, ntree.CreateRequest{Name: "x"})
			Expect(err).To(MatchError(ntree.ErrNotBootstrapped))
			Expect(empty.IsConsistent()).To(BeTrue())
		})

		It("leaves a root-only tree spanning [1, 2N]", func() {
			fresh, err := ntree.New(ctx, inmemory.NewDriver())
			Expect(err).NotTo(HaveOccurred())
			_, err = fresh.Bootstrap(ctx, "default")
			Expect(err).NotTo(HaveOccurred())

			root := fresh.Snapshot().Root()
			Expect(root.Left).To(Equal(1))
			Expect(root.Right).To(Equal(4))
		})
	})

	Describe("Create", func() {
		It("keeps every interval consistent", func() {
			Expect(t.IsConsistent()).To(BeTrue())
			Expect(t.Check(ctx)).To(Succeed())

			root := t.Snapshot().Root()
			Expect(root.Left).To(Equal(1))
			Expect(root.Right).To(Equal(10))

			shoes, _ := t.Node(c.Shoes)
			boots, _ := t.Node(c.Boots)
			Expect(shoes.Interval()).To(Equal(ntree.Interval{ID: c.Shoes, Left: 3, Right: 6, Depth: 2}))
			Expect(boots.Interval()).To(Equal(ntree.Interval{ID: c.Boots, Left: 4, Right: 5, Depth: 3}))
		})

		It("appends the node after its siblings in every tenant", func() {
			socks, err := t.Create(ctx, ntree.CreateRequest{ParentID: c.Home, Name: "Socks"})
			Expect(err).NotTo(HaveOccurred())
			Expect(socks.Depth).To(Equal(2))

			p := positionsOf(ctx, t, c.Tenant.ID)
			Expect(p[c.Shoes]).To(Equal(0))
			Expect(p[c.Hats]).To(Equal(1))
			Expect(p[socks.ID]).To(Equal(2))
		})

		It("defaults to the home category", func() {
			n, err := t.Create(ctx, ntree.CreateRequest{Name: "Gloves"})
			Expect(err).NotTo(HaveOccurred())
			Expect(n.ParentID).To(Equal(c.Home))
		})

		It("places root categories under the structural root", func() {
			n, err := t.Create(ctx, ntree.CreateRequest{ParentID: c.Shoes, Name: "Outlet", IsRootCategory: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(n.ParentID).To(Equal(c.Root))
			Expect(n.Depth).To(Equal(1))
		})

		It("rejects a missing parent", func() {
			_, err := t.Create(ctx, ntree.CreateRequest{ParentID: 999, Name: "x"})
			Expect(err).To(Equal(ntree.NotFoundError{ID: 999}))
		})

		It("rejects unknown tenants without writing", func() {
			before := t.Snapshot().Len()
			_, err := t.Create(ctx, ntree.CreateRequest{ParentID: c.Home, Name: "x", Tenants: []ntree.TenantID{42}})
			Expect(errors.Is(err, ntree.ErrUnknownTenant)).To(BeTrue())
			Expect(t.Snapshot().Len()).To(Equal(before))
			Expect(t.IsConsistent()).To(BeTrue())
		})

		It("rejects an empty name", func() {
			_, err := t.Create(ctx, ntree.CreateRequest{ParentID: c.Home})
			Expect(err).To(MatchError(ntree.ErrEmptyName))
		})
	})

	Describe("Reparent", func() {
		It("moves a node under its former sibling", func() {
			Expect(t.Reparent(ctx, c.Hats, c.Shoes)).To(Succeed())

			Expect(t.IsDescendantOf(c.Hats, c.Shoes)).To(BeTrue())
			Expect(t.IsDescendantOf(c.Hats, c.Home)).To(BeTrue())
			Expect(t.Check(ctx)).To(Succeed())

			hats, _ := t.Node(c.Hats)
			Expect(hats.Depth).To(Equal(3))

			p := positionsOf(ctx, t, c.Tenant.ID)
			Expect(p[c.Boots]).To(Equal(0))
			Expect(p[c.Hats]).To(Equal(1))
			Expect(p[c.Shoes]).To(Equal(0))
		})

		It("renumbers the siblings left behind", func() {
			socks, err := t.Create(ctx, ntree.CreateRequest{ParentID: c.Home, Name: "Socks"})
			Expect(err).NotTo(HaveOccurred())

			Expect(t.Reparent(ctx, c.Shoes, c.Hats)).To(Succeed())

			p := positionsOf(ctx, t, c.Tenant.ID)
			Expect(p[c.Hats]).To(Equal(0))
			Expect(p[socks.ID]).To(Equal(1))
			Expect(p[c.Shoes]).To(Equal(0))
			Expect(t.IsDescendantOf(c.Boots, c.Hats)).To(BeTrue())
		})

		It("clears the root category flag when leaving the structural root", func() {
			outlet, err := t.Create(ctx, ntree.CreateRequest{Name: "Outlet", IsRootCategory: true})
			Expect(err).NotTo(HaveOccurred())

			Expect(t.Reparent(ctx, outlet.ID, c.Home)).To(Succeed())
			moved, _ := t.Node(outlet.ID)
			Expect(moved.IsRootCategory).To(BeFalse())
		})

		It("rejects cycles and leaves the tree untouched", func() {
			before := t.Snapshot()

			err := t.Reparent(ctx, c.Shoes, c.Boots)
			var cycle *ntree.CycleError
			Expect(errors.As(err, &cycle)).To(BeTrue())

			err = t.Reparent(ctx, c.Shoes, c.Shoes)
			Expect(errors.As(err, &cycle)).To(BeTrue())

			Expect(t.Snapshot()).To(BeIdenticalTo(before))
			Expect(t.IsConsistent()).To(BeTrue())
			Expect(t.IsDescendantOf(c.Boots, c.Shoes)).To(BeTrue())
		})

		It("protects the structural root and tenant roots", func() {
			var protected *ntree.ProtectedNodeError
			Expect(errors.As(t.Reparent(ctx, c.Home, c.Shoes), &protected)).To(BeTrue())
			Expect(errors.As(t.Reparent(ctx, c.Root, c.Shoes), &protected)).To(BeTrue())
		})

		It("is a no-op under the same parent", func() {
			before := t.Snapshot()
			Expect(t.Reparent(ctx, c.Hats, c.Home)).To(Succeed())
			Expect(t.Snapshot()).To(BeIdenticalTo(before))
		})
	})

	Describe("Delete", func() {
		It("removes the whole subtree and closes the gap", func() {
			removed, err := t.Delete(ctx, c.Shoes)
			Expect(err).NotTo(HaveOccurred())
			Expect(removed).To(ConsistOf(c.Shoes, c.Boots))

			_, err = t.Node(c.Boots)
			Expect(err).To(Equal(ntree.NotFoundError{ID: c.Boots}))

			p := positionsOf(ctx, t, c.Tenant.ID)
			Expect(p).NotTo(HaveKey(c.Shoes))
			Expect(p).NotTo(HaveKey(c.Boots))
			Expect(p[c.Hats]).To(Equal(0))

			Expect(t.Snapshot().Root().Right).To(Equal(6))
			Expect(t.Check(ctx)).To(Succeed())
		})

		It("protects the structural root and tenant roots", func() {
			var protected *ntree.ProtectedNodeError
			_, err := t.Delete(ctx, c.Root)
			Expect(errors.As(err, &protected)).To(BeTrue())
			_, err = t.Delete(ctx, c.Home)
			Expect(errors.As(err, &protected)).To(BeTrue())
			Expect(protected.NodeID).To(Equal(c.Home))
		})

		It("refuses to delete a subtree holding another tenant's root", func() {
			outlet, err := t.Create(ctx, ntree.CreateRequest{Name: "Outlet", IsRootCategory: true})
			Expect(err).NotTo(HaveOccurred())
			_, err = t.CreateTenant(ctx, "outlet", outlet.ID)
			Expect(err).NotTo(HaveOccurred())

			wrapper, err := t.Create(ctx, ntree.CreateRequest{Name: "Wrapper", IsRootCategory: true})
			Expect(err).NotTo(HaveOccurred())
			// Tenant roots cannot be moved, so build the situation by hand.
			Expect(c.Store.Atomic(ctx, func(ctx context.Context, tx ntree.Store) error {
				n, err := tx.LoadNode(ctx, outlet.ID)
				if err != nil {
					return err
				}
				n.ParentID = wrapper.ID
				return tx.SaveNode(ctx, n)
			})).To(Succeed())
			Expect(t.ForceRebuild(ctx)).To(Succeed())

			_, err = t.Delete(ctx, wrapper.ID)
			var protected *ntree.ProtectedNodeError
			Expect(errors.As(err, &protected)).To(BeTrue())
			Expect(protected.NodeID).To(Equal(outlet.ID))
		})

		It("reports a missing node", func() {
			_, err := t.Delete(ctx, 404)
			Expect(err).To(Equal(ntree.NotFoundError{ID: 404}))
		})
	})

	Describe("Reorder", func() {
		It("moves a node before its sibling without touching intervals", func() {
			before := t.Snapshot()

			Expect(t.Reorder(ctx, c.Hats, c.Tenant.ID, ntree.DirectionAuto, 0)).To(Succeed())

			p := positionsOf(ctx, t, c.Tenant.ID)
			Expect(p[c.Hats]).To(Equal(0))
			Expect(p[c.Shoes]).To(Equal(1))
			Expect(t.Snapshot()).To(BeIdenticalTo(before))

			// Deleting afterwards keeps Hats first and inside Home.
			_, err := t.Delete(ctx, c.Shoes)
			Expect(err).NotTo(HaveOccurred())
			p = positionsOf(ctx, t, c.Tenant.ID)
			Expect(p[c.Hats]).To(Equal(0))

			home, _ := t.Node(c.Home)
			hats, _ := t.Node(c.Hats)
			Expect(home.Left).To(BeNumerically("<", hats.Left))
			Expect(hats.Right).To(BeNumerically("<", home.Right))
		})

		It("shifts the siblings in between the opposite way", func() {
			a, err := t.Create(ctx, ntree.CreateRequest{ParentID: c.Home, Name: "A"})
			Expect(err).NotTo(HaveOccurred())
			b, err := t.Create(ctx, ntree.CreateRequest{ParentID: c.Home, Name: "B"})
			Expect(err).NotTo(HaveOccurred())
			// Shoes 0, Hats 1, A 2, B 3

			Expect(t.Reorder(ctx, b.ID, c.Tenant.ID, ntree.DirectionUp, 1)).To(Succeed())
			p := positionsOf(ctx, t, c.Tenant.ID)
			Expect([]int{p[c.Shoes], p[b.ID], p[c.Hats], p[a.ID]}).To(Equal([]int{0, 1, 2, 3}))

			Expect(t.Reorder(ctx, c.Shoes, c.Tenant.ID, ntree.DirectionDown, 2)).To(Succeed())
			p = positionsOf(ctx, t, c.Tenant.ID)
			Expect([]int{p[b.ID], p[c.Hats], p[c.Shoes], p[a.ID]}).To(Equal([]int{0, 1, 2, 3}))
		})

		It("rejects a target that contradicts the direction", func() {
			err := t.Reorder(ctx, c.Hats, c.Tenant.ID, ntree.DirectionDown, 0)
			Expect(errors.Is(err, ntree.ErrInvalidReorder)).To(BeTrue())

			err = t.Reorder(ctx, c.Shoes, c.Tenant.ID, ntree.DirectionUp, 1)
			Expect(errors.Is(err, ntree.ErrInvalidReorder)).To(BeTrue())
		})

		It("rejects a target out of range", func() {
			err := t.Reorder(ctx, c.Hats, c.Tenant.ID, ntree.DirectionAuto, 5)
			Expect(errors.Is(err, ntree.ErrInvalidReorder)).To(BeTrue())
			Expect(t.IsConsistent()).To(BeTrue())
		})

		It("swaps neighbours with MoveUp and MoveDown", func() {
			Expect(t.MoveDown(ctx, c.Shoes, c.Tenant.ID)).To(Succeed())
			p := positionsOf(ctx, t, c.Tenant.ID)
			Expect(p[c.Hats]).To(Equal(0))
			Expect(p[c.Shoes]).To(Equal(1))

			Expect(t.MoveUp(ctx, c.Shoes, c.Tenant.ID)).To(Succeed())
			p = positionsOf(ctx, t, c.Tenant.ID)
			Expect(p[c.Shoes]).To(Equal(0))

			Expect(errors.Is(t.MoveUp(ctx, c.Shoes, c.Tenant.ID), ntree.ErrInvalidReorder)).To(BeTrue())
		})

		It("refuses to reorder over duplicate positions", func() {
			Expect(c.Store.SavePosition(ctx, ntree.TenantPosition{NodeID: c.Hats, TenantID: c.Tenant.ID, Position: 0, Active: true})).To(Succeed())

			err := t.Reorder(ctx, c.Hats, c.Tenant.ID, ntree.DirectionAuto, 1)
			var dup *ntree.DuplicatePositionError
			Expect(errors.As(err, &dup)).To(BeTrue())
			Expect(dup.ParentID).To(Equal(c.Home))
		})

		It("repairs duplicate positions on reparent", func() {
			Expect(c.Store.SavePosition(ctx, ntree.TenantPosition{NodeID: c.Hats, TenantID: c.Tenant.ID, Position: 0, Active: true})).To(Succeed())
			gloves, err := t.Create(ctx, ntree.CreateRequest{ParentID: c.Boots, Name: "Gloves"})
			Expect(err).NotTo(HaveOccurred())

			Expect(t.Reparent(ctx, gloves.ID, c.Home)).To(Succeed())
			Expect(t.Check(ctx)).To(Succeed())
		})
	})

	Describe("tenants", func() {
		var (
			outlet *ntree.Node
			second *ntree.Tenant
		)

		BeforeEach(func() {
			var err error
			outlet, err = t.Create(ctx, ntree.CreateRequest{Name: "Outlet", IsRootCategory: true})
			Expect(err).NotTo(HaveOccurred())
			second, err = t.CreateTenant(ctx, "outlet", outlet.ID)
			Expect(err).NotTo(HaveOccurred())
		})

		It("scopes membership to the tenant root interval", func() {
			sale, err := t.Create(ctx, ntree.CreateRequest{ParentID: outlet.ID, Name: "Sale", Tenants: []ntree.TenantID{second.ID}})
			Expect(err).NotTo(HaveOccurred())

			in, err := t.InTenant(sale.ID, second.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(in).To(BeTrue())

			in, err = t.InTenant(sale.ID, c.Tenant.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(in).To(BeFalse())

			_, err = t.InTenant(sale.ID, 77)
			Expect(errors.Is(err, ntree.ErrUnknownTenant)).To(BeTrue())
		})

		It("keeps orderings independent per tenant", func() {
			Expect(t.AddToTenant(ctx, c.Shoes, second.ID)).To(Succeed())
			Expect(t.AddToTenant(ctx, c.Hats, second.ID)).To(Succeed())
			Expect(t.Reorder(ctx, c.Hats, second.ID, ntree.DirectionUp, 0)).To(Succeed())

			first := positionsOf(ctx, t, c.Tenant.ID)
			other := positionsOf(ctx, t, second.ID)
			Expect(first[c.Shoes]).To(Equal(0))
			Expect(other[c.Hats]).To(Equal(0))
			Expect(other[c.Shoes]).To(Equal(1))
		})

		It("ignores a repeated AddToTenant", func() {
			Expect(t.AddToTenant(ctx, c.Shoes, second.ID)).To(Succeed())
			Expect(t.AddToTenant(ctx, c.Shoes, second.ID)).To(Succeed())
			Expect(positionsOf(ctx, t, second.ID)[c.Shoes]).To(Equal(0))
		})

		It("closes the gap on RemoveFromTenant", func() {
			Expect(t.RemoveFromTenant(ctx, c.Shoes, c.Tenant.ID)).To(Succeed())
			p := positionsOf(ctx, t, c.Tenant.ID)
			Expect(p).NotTo(HaveKey(c.Shoes))
			Expect(p[c.Hats]).To(Equal(0))
		})

		It("keeps a tenant root inside its tenant", func() {
			var protected *ntree.ProtectedNodeError
			Expect(errors.As(t.RemoveFromTenant(ctx, outlet.ID, second.ID), &protected)).To(BeTrue())
		})

		It("requires a root category as tenant root", func() {
			_, err := t.CreateTenant(ctx, "shoes", c.Shoes)
			Expect(errors.Is(err, ntree.ErrInvalidTenantRoot)).To(BeTrue())
		})

		It("lists tenants in id order", func() {
			Expect(t.Tenants()).To(Equal([]ntree.Tenant{c.Tenant, *second}))
		})
	})

	Describe("reads", func() {
		It("lists ancestors, descendants and paths", func() {
			anc, err := t.AncestorsOf(c.Boots)
			Expect(err).NotTo(HaveOccurred())
			Expect(ids(anc)).To(Equal([]ntree.NodeID{c.Root, c.Home, c.Shoes}))

			desc, err := t.DescendantsOf(c.Home)
			Expect(err).NotTo(HaveOccurred())
			Expect(ids(desc)).To(Equal([]ntree.NodeID{c.Shoes, c.Boots, c.Hats}))

			path, err := t.Path(c.Boots)
			Expect(err).NotTo(HaveOccurred())
			Expect(ids(path)).To(Equal([]ntree.NodeID{c.Home, c.Shoes, c.Boots}))

			_, err = t.Path(999)
			Expect(err).To(Equal(ntree.NotFoundError{ID: 999}))
		})

		It("lists children in tenant order and filters hidden ones", func() {
			Expect(t.Reorder(ctx, c.Hats, c.Tenant.ID, ntree.DirectionAuto, 0)).To(Succeed())
			Expect(t.SetActive(ctx, c.Shoes, c.Tenant.ID, false)).To(Succeed())

			all, err := t.Children(ctx, c.Home, c.Tenant.ID, false)
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(2))
			Expect(all[0].Node.ID).To(Equal(c.Hats))
			Expect(all[1].Node.ID).To(Equal(c.Shoes))
			Expect(all[1].Active).To(BeFalse())

			visible, err := t.Children(ctx, c.Home, c.Tenant.ID, true)
			Expect(err).NotTo(HaveOccurred())
			Expect(visible).To(HaveLen(1))
			Expect(visible[0].Node.ID).To(Equal(c.Hats))
		})

		It("renders a tenant tree and hides inactive branches", func() {
			root, err := t.TenantTree(ctx, c.Tenant.ID, false)
			Expect(err).NotTo(HaveOccurred())
			Expect(root.Node.ID).To(Equal(c.Home))
			Expect(root.Children).To(HaveLen(2))
			Expect(root.Children[0].Node.ID).To(Equal(c.Shoes))
			Expect(root.Children[0].Children[0].Node.ID).To(Equal(c.Boots))

			Expect(t.SetActive(ctx, c.Shoes, c.Tenant.ID, false)).To(Succeed())
			root, err = t.TenantTree(ctx, c.Tenant.ID, true)
			Expect(err).NotTo(HaveOccurred())
			Expect(root.Children).To(HaveLen(1))
			Expect(root.Children[0].Node.ID).To(Equal(c.Hats))
		})

		It("reports SetActive on a node outside the tenant", func() {
			Expect(t.RemoveFromTenant(ctx, c.Hats, c.Tenant.ID)).To(Succeed())
			err := t.SetActive(ctx, c.Hats, c.Tenant.ID, true)
			Expect(err).To(Equal(ntree.NotFoundError{ID: c.Hats, TenantID: c.Tenant.ID}))
		})

		It("finds children by name", func() {
			Expect(ids(t.FindByName(c.Home, "SHOES"))).To(Equal([]ntree.NodeID{c.Shoes}))
		})
	})

	Describe("Batch", func() {
		It("rebuilds once for many structural changes", func() {
			var changes []ntree.Change
			tree, err := ntree.New(ctx, c.Store, ntree.WithChangeHook(func(_ context.Context, ch ntree.Change) {
				changes = append(changes, ch)
			}))
			Expect(err).NotTo(HaveOccurred())

			change, err := tree.Batch(ctx, func(ctx context.Context, b *ntree.Batch) error {
				for i := 0; i < 50; i++ {
					if _, err := b.Create(ctx, ntree.CreateRequest{ParentID: c.Hats, Name: "item"}); err != nil {
						return err
					}
				}
				return b.Reparent(ctx, c.Hats, c.Shoes)
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(change.Rebuilt).To(BeTrue())
			Expect(change.NodeIDs).To(HaveLen(51))
			Expect(changes).To(HaveLen(1))

			Expect(tree.Snapshot().Len()).To(Equal(55))
			Expect(tree.Check(ctx)).To(Succeed())
			Expect(tree.IsDescendantOf(change.NodeIDs[0], c.Shoes)).To(BeTrue())
		})

		It("labels a mixed batch as a batch", func() {
			change, err := t.Batch(ctx, func(ctx context.Context, b *ntree.Batch) error {
				if _, err := b.Create(ctx, ntree.CreateRequest{ParentID: c.Home, Name: "Socks"}); err != nil {
					return err
				}
				return b.Reparent(ctx, c.Hats, c.Shoes)
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(change.Op).To(Equal(ntree.OpBatch))
		})

		DescribeTable("labels a uniform batch with the op of its steps",
			func(want ntree.Op, apply func(ctx context.Context, b *ntree.Batch) error) {
				change, err := t.Batch(ctx, apply)
				Expect(err).NotTo(HaveOccurred())
				Expect(change.Op).To(Equal(want))
			},
			Entry("create", ntree.OpCreate, func(ctx context.Context, b *ntree.Batch) error {
				_, err := b.Create(ctx, ntree.CreateRequest{ParentID: c.Home, Name: "Socks"})
				return err
			}),
			Entry("delete", ntree.OpDelete, func(ctx context.Context, b *ntree.Batch) error {
				_, err := b.Delete(ctx, c.Boots)
				return err
			}),
			Entry("reparent", ntree.OpReparent, func(ctx context.Context, b *ntree.Batch) error {
				return b.Reparent(ctx, c.Hats, c.Shoes)
			}),
			Entry("set active", ntree.OpSetActive, func(ctx context.Context, b *ntree.Batch) error {
				return b.SetActive(ctx, c.Hats, c.Tenant.ID, false)
			}),
		)

		It("keeps the batch label when nothing changed", func() {
			change, err := t.Batch(ctx, func(ctx context.Context, b *ntree.Batch) error { return nil })
			Expect(err).NotTo(HaveOccurred())
			Expect(change.Op).To(Equal(ntree.OpBatch))
		})

		It("deletes nodes created earlier in the same batch", func() {
			_, err := t.Batch(ctx, func(ctx context.Context, b *ntree.Batch) error {
				parent, err := b.Create(ctx, ntree.CreateRequest{ParentID: c.Home, Name: "tmp"})
				if err != nil {
					return err
				}
				if _, err := b.Create(ctx, ntree.CreateRequest{ParentID: parent.ID, Name: "tmp child"}); err != nil {
					return err
				}
				removed, err := b.Delete(ctx, parent.ID)
				if err != nil {
					return err
				}
				Expect(removed).To(HaveLen(2))
				return nil
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(t.Snapshot().Len()).To(Equal(5))
			Expect(t.Check(ctx)).To(Succeed())
		})

		It("discards every step when one fails", func() {
			before := t.Snapshot()
			_, err := t.Batch(ctx, func(ctx context.Context, b *ntree.Batch) error {
				if _, err := b.Create(ctx, ntree.CreateRequest{ParentID: c.Home, Name: "kept?"}); err != nil {
					return err
				}
				return b.Reparent(ctx, c.Shoes, c.Boots)
			})
			var cycle *ntree.CycleError
			Expect(errors.As(err, &cycle)).To(BeTrue())
			Expect(t.Snapshot()).To(BeIdenticalTo(before))
			Expect(c.Store.Store.(*inmemory.Driver).Count()).To(Equal(5))
		})
	})

	Describe("failure and recovery", func() {
		It("flags the tree inconsistent when committing intervals fails", func() {
			c.Store.FailOn("CommitIntervals", nil)

			_, err := t.Create(ctx, ntree.CreateRequest{ParentID: c.Home, Name: "Socks"})
			var se *ntree.StoreError
			Expect(errors.As(err, &se)).To(BeTrue())
			Expect(se.Op).To(Equal("commit intervals"))
			Expect(t.IsConsistent()).To(BeFalse())

			// The failed transaction left nothing behind.
			Expect(c.Store.Store.(*inmemory.Driver).Count()).To(Equal(5))

			c.Store.Clear()
			Expect(t.ForceRebuild(ctx)).To(Succeed())
			Expect(t.IsConsistent()).To(BeTrue())
			Expect(t.Check(ctx)).To(Succeed())
		})

		It("keeps the tree consistent on rejected requests", func() {
			_, err := t.Delete(ctx, c.Home)
			Expect(err).To(HaveOccurred())
			Expect(t.IsConsistent()).To(BeTrue())
		})

		It("rebuilds idempotently", func() {
			Expect(t.ForceRebuild(ctx)).To(Succeed())
			first := t.Snapshot().Nodes()
			Expect(t.ForceRebuild(ctx)).To(Succeed())
			Expect(t.Snapshot().Nodes()).To(Equal(first))
		})

		It("repairs corrupted intervals on load", func() {
			Expect(c.Store.CommitIntervals(ctx, []ntree.Interval{{ID: c.Shoes, Left: 40, Right: 2, Depth: 9}})).To(Succeed())

			reloaded, err := ntree.New(ctx, c.Store)
			Expect(err).NotTo(HaveOccurred())
			Expect(reloaded.IsConsistent()).To(BeTrue())
			Expect(reloaded.Check(ctx)).To(Succeed())

			shoes, err := reloaded.Node(c.Shoes)
			Expect(err).NotTo(HaveOccurred())
			Expect(shoes.Left).To(Equal(3))
		})

		It("repairs a node stored inside a sibling's interval on load", func() {
			Expect(c.Store.CommitIntervals(ctx, []ntree.Interval{
				{ID: c.Shoes, Left: 3, Right: 8, Depth: 2},
				{ID: c.Boots, Left: 4, Right: 5, Depth: 3},
				{ID: c.Hats, Left: 6, Right: 7, Depth: 2},
			})).To(Succeed())

			reloaded, err := ntree.New(ctx, c.Store)
			Expect(err).NotTo(HaveOccurred())
			Expect(reloaded.IsConsistent()).To(BeTrue())
			Expect(reloaded.IsDescendantOf(c.Hats, c.Shoes)).To(BeFalse())
			Expect(reloaded.IsDescendantOf(c.Hats, c.Home)).To(BeTrue())
			Expect(reloaded.Check(ctx)).To(Succeed())
		})

		It("reports stored parent loops as structural errors", func() {
			Expect(c.Store.Atomic(ctx, func(ctx context.Context, tx ntree.Store) error {
				shoes, err := tx.LoadNode(ctx, c.Shoes)
				if err != nil {
					return err
				}
				shoes.ParentID = c.Boots
				return tx.SaveNode(ctx, shoes)
			})).To(Succeed())

			err := t.ForceRebuild(ctx)
			var se *ntree.StructuralError
			Expect(errors.As(err, &se)).To(BeTrue())
			Expect(t.IsConsistent()).To(BeFalse())

			Expect(t.Check(ctx)).To(HaveOccurred())
		})
	})

	Describe("concurrent readers", func() {
		It("only ever observe complete snapshots", func() {
			var wg sync.WaitGroup
			stop := make(chan struct{})

			for i := 0; i < 4; i++ {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					for {
						select {
						case <-stop:
							return
						default:
						}
						snap := t.Snapshot()
						Expect(ntree.Verify(snap.Nodes())).To(Succeed())
						Expect(snap.IsDescendantOf(c.Boots, c.Home)).To(BeTrue())
					}
				}()
			}

			for i := 0; i < 30; i++ {
				_, err := t.Create(ctx, ntree.CreateRequest{ParentID: c.Shoes, Name: "item"})
				Expect(err).NotTo(HaveOccurred())
			}
			close(stop)
			wg.Wait()
		})
	})
})

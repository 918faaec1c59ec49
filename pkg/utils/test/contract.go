package testutils

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/cienislaw/thirtybees/pkg/ntree"
)

// DescribeStoreContract registers the behaviour every ntree.Store driver must
// share. newStore is called before each test and the store is closed after.
func DescribeStoreContract(newStore func() ntree.Store) {
	var (
		store ntree.Store
		ctx   context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = newStore()
	})

	AfterEach(func() {
		if store != nil {
			store.Close()
		}
	})

	Describe("SaveNode", func() {
		It("assigns increasing ids to new nodes", func() {
			root := &ntree.Node{Name: "Root"}
			Expect(store.SaveNode(ctx, root)).To(Succeed())
			child := &ntree.Node{ParentID: root.ID, Name: "Home", IsRootCategory: true}
			Expect(store.SaveNode(ctx, child)).To(Succeed())

			Expect(root.ID).NotTo(BeZero())
			Expect(child.ID).To(BeNumerically(">", root.ID))

			loaded, err := store.LoadNode(ctx, child.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.ParentID).To(Equal(root.ID))
			Expect(loaded.Name).To(Equal("Home"))
			Expect(loaded.IsRootCategory).To(BeTrue())
		})

		It("updates an existing node in place", func() {
			n := &ntree.Node{Name: "Shoes"}
			Expect(store.SaveNode(ctx, n)).To(Succeed())

			n.Name = "Sneakers"
			Expect(store.SaveNode(ctx, n)).To(Succeed())

			all, err := store.LoadAll(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(1))
			Expect(all[0].Name).To(Equal("Sneakers"))
		})
	})

	Describe("LoadNode", func() {
		It("returns NotFoundError for a missing node", func() {
			_, err := store.LoadNode(ctx, 4242)
			var nf ntree.NotFoundError
			Expect(errors.As(err, &nf)).To(BeTrue())
			Expect(nf.ID).To(Equal(ntree.NodeID(4242)))
		})
	})

	Describe("LoadAll", func() {
		It("returns nodes ordered by id", func() {
			for _, name := range []string{"a", "b", "c"} {
				Expect(store.SaveNode(ctx, &ntree.Node{Name: name})).To(Succeed())
			}

			all, err := store.LoadAll(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(3))
			Expect(all[0].ID).To(BeNumerically("<", all[1].ID))
			Expect(all[1].ID).To(BeNumerically("<", all[2].ID))
		})
	})

	Describe("positions", func() {
		It("upserts rows by node and tenant", func() {
			Expect(store.SavePosition(ctx, ntree.TenantPosition{NodeID: 2, TenantID: 1, Position: 0, Active: true})).To(Succeed())
			Expect(store.SavePosition(ctx, ntree.TenantPosition{NodeID: 2, TenantID: 1, Position: 3, Active: false})).To(Succeed())
			Expect(store.SavePosition(ctx, ntree.TenantPosition{NodeID: 1, TenantID: 1, Position: 1, Active: true})).To(Succeed())
			Expect(store.SavePosition(ctx, ntree.TenantPosition{NodeID: 2, TenantID: 2, Position: 0, Active: true})).To(Succeed())

			rows, err := store.LoadPositions(ctx, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(rows).To(Equal([]ntree.TenantPosition{
				{NodeID: 1, TenantID: 1, Position: 1, Active: true},
				{NodeID: 2, TenantID: 1, Position: 3, Active: false},
			}))

			rows, err = store.LoadNodePositions(ctx, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(rows).To(HaveLen(2))
			Expect(rows[0].TenantID).To(Equal(ntree.TenantID(1)))
			Expect(rows[1].TenantID).To(Equal(ntree.TenantID(2)))
		})

		It("deletes a single row and ignores missing ones", func() {
			Expect(store.SavePosition(ctx, ntree.TenantPosition{NodeID: 5, TenantID: 1})).To(Succeed())
			Expect(store.DeletePosition(ctx, 5, 1)).To(Succeed())
			Expect(store.DeletePosition(ctx, 5, 1)).To(Succeed())

			rows, err := store.LoadNodePositions(ctx, 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(rows).To(BeEmpty())
		})
	})

	Describe("tenants", func() {
		It("assigns ids and loads them in order", func() {
			a := &ntree.Tenant{Name: "a", RootID: 2}
			b := &ntree.Tenant{Name: "b", RootID: 3}
			Expect(store.SaveTenant(ctx, a)).To(Succeed())
			Expect(store.SaveTenant(ctx, b)).To(Succeed())
			Expect(a.ID).NotTo(BeZero())

			b.Name = "renamed"
			Expect(store.SaveTenant(ctx, b)).To(Succeed())

			tenants, err := store.LoadTenants(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(tenants).To(Equal([]ntree.Tenant{*a, *b}))
		})
	})

	Describe("DeleteNode", func() {
		It("removes the node", func() {
			n := &ntree.Node{Name: "gone"}
			Expect(store.SaveNode(ctx, n)).To(Succeed())
			Expect(store.DeleteNode(ctx, n.ID)).To(Succeed())

			_, err := store.LoadNode(ctx, n.ID)
			Expect(err).To(BeAssignableToTypeOf(ntree.NotFoundError{}))
		})

		It("returns NotFoundError for a missing node", func() {
			err := store.DeleteNode(ctx, 999)
			Expect(err).To(BeAssignableToTypeOf(ntree.NotFoundError{}))
		})
	})

	Describe("CommitIntervals", func() {
		It("writes left, right and depth", func() {
			root := &ntree.Node{Name: "Root"}
			Expect(store.SaveNode(ctx, root)).To(Succeed())
			child := &ntree.Node{ParentID: root.ID, Name: "Home"}
			Expect(store.SaveNode(ctx, child)).To(Succeed())

			Expect(store.CommitIntervals(ctx, []ntree.Interval{
				{ID: root.ID, Left: 1, Right: 4, Depth: 0},
				{ID: child.ID, Left: 2, Right: 3, Depth: 1},
			})).To(Succeed())

			loaded, err := store.LoadNode(ctx, child.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.Interval()).To(Equal(ntree.Interval{ID: child.ID, Left: 2, Right: 3, Depth: 1}))
		})

		It("writes nothing when a node is missing", func() {
			root := &ntree.Node{Name: "Root"}
			Expect(store.SaveNode(ctx, root)).To(Succeed())

			err := store.CommitIntervals(ctx, []ntree.Interval{
				{ID: root.ID, Left: 1, Right: 4},
				{ID: root.ID + 100, Left: 2, Right: 3, Depth: 1},
			})
			Expect(err).To(HaveOccurred())

			loaded, err := store.LoadNode(ctx, root.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.Right).To(BeZero())
		})
	})

	Describe("Atomic", func() {
		It("commits every write when fn succeeds", func() {
			err := store.Atomic(ctx, func(ctx context.Context, tx ntree.Store) error {
				if err := tx.SaveNode(ctx, &ntree.Node{Name: "a"}); err != nil {
					return err
				}
				return tx.SavePosition(ctx, ntree.TenantPosition{NodeID: 1, TenantID: 1})
			})
			Expect(err).NotTo(HaveOccurred())

			all, err := store.LoadAll(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(1))
		})

		It("discards every write when fn fails", func() {
			boom := errors.New("boom")
			err := store.Atomic(ctx, func(ctx context.Context, tx ntree.Store) error {
				if err := tx.SaveNode(ctx, &ntree.Node{Name: "a"}); err != nil {
					return err
				}
				if err := tx.SaveTenant(ctx, &ntree.Tenant{Name: "t", RootID: 1}); err != nil {
					return err
				}
				return boom
			})
			Expect(err).To(MatchError(boom))

			all, err := store.LoadAll(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(BeEmpty())

			tenants, err := store.LoadTenants(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(tenants).To(BeEmpty())
		})

		It("sees its own writes and joins nested calls", func() {
			err := store.Atomic(ctx, func(ctx context.Context, tx ntree.Store) error {
				n := &ntree.Node{Name: "a"}
				if err := tx.SaveNode(ctx, n); err != nil {
					return err
				}
				return tx.Atomic(ctx, func(ctx context.Context, inner ntree.Store) error {
					loaded, err := inner.LoadNode(ctx, n.ID)
					if err != nil {
						return err
					}
					Expect(loaded.Name).To(Equal("a"))
					return inner.CommitIntervals(ctx, []ntree.Interval{{ID: n.ID, Left: 1, Right: 2}})
				})
			})
			Expect(err).NotTo(HaveOccurred())

			all, err := store.LoadAll(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(1))
			Expect(all[0].Right).To(Equal(2))
		})
	})
}

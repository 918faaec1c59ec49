package ntree_test

import (
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/cienislaw/thirtybees/pkg/ntree"
)

func ids(nodes []*ntree.Node) []ntree.NodeID {
	out := make([]ntree.NodeID, len(nodes))
	for i, n := range nodes {
		out[i] = n.ID
	}
	return out
}

var _ = Describe("Snapshot", func() {
	var snap *ntree.Snapshot

	BeforeEach(func() {
		// Root(1) -> Home(2) -> [Shoes(3) -> Boots(5), Hats(4)]
		snap = ntree.NewSnapshot([]*ntree.Node{
			{ID: 1, Name: "Root", Left: 1, Right: 10},
			{ID: 2, ParentID: 1, Name: "Home", Left: 2, Right: 9, Depth: 1, IsRootCategory: true},
			{ID: 3, ParentID: 2, Name: "Shoes", Left: 3, Right: 6, Depth: 2},
			{ID: 5, ParentID: 3, Name: "Boots", Left: 4, Right: 5, Depth: 3},
			{ID: 4, ParentID: 2, Name: "Hats", Left: 7, Right: 8, Depth: 2},
		})
	})

	It("answers containment from intervals", func() {
		Expect(snap.IsDescendantOf(5, 2)).To(BeTrue())
		Expect(snap.IsDescendantOf(2, 5)).To(BeFalse())
		Expect(snap.IsDescendantOf(4, 3)).To(BeFalse())
		Expect(snap.IsDescendantOf(3, 3)).To(BeFalse())
		Expect(snap.IsAncestorOf(1, 4)).To(BeTrue())
		Expect(snap.IsDescendantOf(99, 1)).To(BeFalse())
	})

	It("treats a node as within itself", func() {
		Expect(snap.IsWithin(2, 2)).To(BeTrue())
		Expect(snap.IsWithin(5, 2)).To(BeTrue())
		Expect(snap.IsWithin(1, 2)).To(BeFalse())
	})

	It("lists descendants in pre-order", func() {
		Expect(ids(snap.DescendantsOf(2))).To(Equal([]ntree.NodeID{3, 5, 4}))
		Expect(snap.DescendantsOf(4)).To(BeEmpty())
		Expect(snap.DescendantsOf(99)).To(BeNil())
	})

	It("lists ancestors root first", func() {
		Expect(ids(snap.AncestorsOf(5))).To(Equal([]ntree.NodeID{1, 2, 3}))
		Expect(snap.AncestorsOf(1)).To(BeEmpty())
	})

	It("lists direct children", func() {
		Expect(ids(snap.ChildrenOf(2))).To(Equal([]ntree.NodeID{3, 4}))
	})

	It("builds paths without the structural root", func() {
		Expect(ids(snap.Path(5))).To(Equal([]ntree.NodeID{2, 3, 5}))
		Expect(snap.Path(1)).To(BeEmpty())
	})

	It("finds children by name ignoring case", func() {
		Expect(ids(snap.FindByName(2, "hats"))).To(Equal([]ntree.NodeID{4}))
		Expect(snap.FindByName(2, "boots")).To(BeEmpty())
	})

	It("hands out copies", func() {
		n, ok := snap.Node(3)
		Expect(ok).To(BeTrue())
		n.Name = "changed"

		again, _ := snap.Node(3)
		Expect(again.Name).To(Equal("Shoes"))
		Expect(snap.Root().ID).To(Equal(ntree.NodeID(1)))
		Expect(snap.Len()).To(Equal(5))
	})
})

var _ = Describe("Snapshot round trip", func() {
	// parentFromIntervals derives the parent of id as its deepest ancestor,
	// using only interval comparisons.
	parentFromIntervals := func(snap *ntree.Snapshot, id ntree.NodeID) ntree.NodeID {
		var parent *ntree.Node
		for _, y := range snap.Nodes() {
			if !snap.IsAncestorOf(y.ID, id) {
				continue
			}
			if parent == nil || y.Left > parent.Left {
				parent = y
			}
		}
		if parent == nil {
			return 0
		}
		return parent.ID
	}

	It("reconstructs the parent graph from intervals on random trees", func() {
		rng := rand.New(rand.NewSource(7))

		for round := 0; round < 20; round++ {
			count := 1 + rng.Intn(120)
			nodes := []*ntree.Node{node(1, 0)}
			var positions []ntree.TenantPosition
			for id := 2; id <= count; id++ {
				nodes = append(nodes, node(ntree.NodeID(id), ntree.NodeID(1+rng.Intn(id-1))))
				positions = append(positions, pos(ntree.NodeID(id), rng.Intn(10)))
			}

			intervals, err := ntree.Build(nodes, positions)
			Expect(err).NotTo(HaveOccurred())
			snap := ntree.NewSnapshot(applied(nodes, intervals))

			for _, n := range nodes {
				Expect(parentFromIntervals(snap, n.ID)).To(Equal(n.ParentID), "node %d", n.ID)
				if n.ParentID != 0 {
					Expect(snap.IsDescendantOf(n.ID, n.ParentID)).To(BeTrue())
					Expect(snap.IsAncestorOf(n.ParentID, n.ID)).To(BeTrue())
				}
			}
		}
	})

	It("derives the wrong parent from a node stored inside its sibling", func() {
		nodes := []*ntree.Node{
			ivNode(1, 0, 1, 6, 0),
			ivNode(2, 1, 2, 5, 1),
			ivNode(3, 1, 3, 4, 1),
		}
		snap := ntree.NewSnapshot(nodes)
		Expect(parentFromIntervals(snap, 3)).To(Equal(ntree.NodeID(2)))
		Expect(ntree.Verify(nodes)).To(HaveOccurred())
	})
})

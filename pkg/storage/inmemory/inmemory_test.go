package inmemory_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/cienislaw/thirtybees/pkg/ntree"
	"github.com/cienislaw/thirtybees/pkg/storage/inmemory"
	testutils "github.com/cienislaw/thirtybees/pkg/utils/test"
)

var _ = Describe("Driver", func() {
	Describe("store contract", func() {
		testutils.DescribeStoreContract(func() ntree.Store {
			return inmemory.NewDriver()
		})
	})

	It("returns copies that callers cannot mutate", func() {
		ctx := context.Background()
		d := inmemory.NewDriver()

		n := &ntree.Node{Name: "Root"}
		Expect(d.SaveNode(ctx, n)).To(Succeed())
		n.Name = "changed"

		loaded, err := d.LoadNode(ctx, n.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded.Name).To(Equal("Root"))

		loaded.Name = "changed again"
		again, err := d.LoadNode(ctx, n.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(again.Name).To(Equal("Root"))
		Expect(d.Count()).To(Equal(1))
	})
})

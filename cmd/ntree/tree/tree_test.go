package treecmder_test

import (
	"context"
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	treecmder "github.com/cienislaw/thirtybees/cmd/ntree/tree"
	"github.com/cienislaw/thirtybees/pkg/ntree"
	testutils "github.com/cienislaw/thirtybees/pkg/utils/test"
)

var _ = Describe("NewTreeCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := treecmder.NewTreeCmd()
		Expect(cmd.Use).To(Equal("tree"))
	})

	It("rejects any arguments", func() {
		cmd := treecmder.NewTreeCmd()
		Expect(cmd.Args(cmd, []string{"extra"})).To(HaveOccurred())
	})

	It("has --tenant, --active and --json flags", func() {
		cmd := treecmder.NewTreeCmd()
		Expect(cmd.Flags().Lookup("tenant").Shorthand).To(Equal("t"))
		Expect(cmd.Flags().Lookup("active").DefValue).To(Equal("false"))
		Expect(cmd.Flags().Lookup("json")).NotTo(BeNil())
	})
})

var _ = Describe("Tree command execution", func() {
	var w *testutils.Workspace

	BeforeEach(func() {
		w = testutils.NewWorkspace()
	})

	It("renders the default tenant", func() {
		out, err := w.Run(treecmder.NewTreeCmd())
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("Tenant: default #"))
		Expect(out).To(ContainSubstring("Home #"))
		Expect(out).To(ContainSubstring("Shoes #"))
		Expect(out).To(ContainSubstring("Hats #"))
	})

	It("leaves out inactive categories with --active", func() {
		Expect(w.Tree().SetActive(context.Background(), w.Hats, w.Tenant.ID, false)).To(Succeed())

		out, err := w.Run(treecmder.NewTreeCmd(), "--active")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("Shoes #"))
		Expect(out).NotTo(ContainSubstring("Hats"))
	})

	It("marks inactive categories otherwise", func() {
		Expect(w.Tree().SetActive(context.Background(), w.Hats, w.Tenant.ID, false)).To(Succeed())

		out, err := w.Run(treecmder.NewTreeCmd())
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("inactive"))
	})

	It("prints JSON", func() {
		out, err := w.Run(treecmder.NewTreeCmd(), "--json")
		Expect(err).NotTo(HaveOccurred())

		var root ntree.TreeNode
		Expect(json.Unmarshal([]byte(out), &root)).To(Succeed())
		Expect(root.Node.ID).To(Equal(w.Home))
		Expect(root.Children).To(HaveLen(2))
		Expect(root.Children[0].Node.Name).To(Equal("Shoes"))
	})

	It("fails for an unknown tenant", func() {
		_, err := w.Run(treecmder.NewTreeCmd(), "--tenant", "9")
		Expect(err).To(MatchError(ntree.ErrUnknownTenant))
	})
})

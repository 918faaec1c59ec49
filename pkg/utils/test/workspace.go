package testutils

import (
	"bytes"
	"context"
	"os"
	"path/filepath"

	"github.com/charmbracelet/x/ansi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	"github.com/cienislaw/thirtybees/pkg/ntree"
	"github.com/cienislaw/thirtybees/pkg/storage/sqlite"
)

// Workspace is a temporary working directory with a .ntree/ directory and a
// bootstrapped SQLite store used by CLI command tests:
//
//	Root
//	└── Home
//	    ├── Shoes
//	    └── Hats
//
// The process changes into Dir for the duration of the test and HOME points
// at an empty directory so no user state leaks in.
type Workspace struct {
	Dir    string
	DB     string
	Tenant ntree.Tenant

	Home, Shoes, Hats ntree.NodeID
}

// NewWorkspace must be called from a Ginkgo setup node.
func NewWorkspace() *Workspace {
	dir := GinkgoT().TempDir()
	GinkgoT().Setenv("HOME", GinkgoT().TempDir())
	GinkgoT().Setenv("NTREE_DB", "")

	origDir, err := os.Getwd()
	Expect(err).NotTo(HaveOccurred())
	Expect(os.Chdir(dir)).To(Succeed())
	DeferCleanup(func() { Expect(os.Chdir(origDir)).To(Succeed()) })

	Expect(os.MkdirAll(filepath.Join(dir, ".ntree"), 0o755)).To(Succeed())
	w := &Workspace{Dir: dir, DB: filepath.Join(dir, ".ntree", "ntree.db")}

	ctx := context.Background()
	store, err := sqlite.NewDriver(ctx, w.DB)
	Expect(err).NotTo(HaveOccurred())
	defer store.Close()

	tree, err := ntree.New(ctx, store)
	Expect(err).NotTo(HaveOccurred())

	tenant, err := tree.Bootstrap(ctx, "default")
	Expect(err).NotTo(HaveOccurred())
	w.Tenant = *tenant
	w.Home = tenant.RootID

	shoes, err := tree.Create(ctx, ntree.CreateRequest{ParentID: w.Home, Name: "Shoes"})
	Expect(err).NotTo(HaveOccurred())
	hats, err := tree.Create(ctx, ntree.CreateRequest{ParentID: w.Home, Name: "Hats"})
	Expect(err).NotTo(HaveOccurred())
	w.Shoes, w.Hats = shoes.ID, hats.ID

	return w
}

// Run executes cmd against the workspace database and returns its combined
// output with color codes stripped.
func (w *Workspace) Run(cmd *cobra.Command, args ...string) (string, error) {
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--sqlite", w.DB))
	err := cmd.Execute()
	return ansi.Strip(out.String()), err
}

// Tree reopens the workspace database. The store is closed when the test
// ends.
func (w *Workspace) Tree() *ntree.Tree {
	ctx := context.Background()
	store, err := sqlite.NewDriver(ctx, w.DB)
	Expect(err).NotTo(HaveOccurred())
	DeferCleanup(store.Close)

	tree, err := ntree.New(ctx, store)
	Expect(err).NotTo(HaveOccurred())
	return tree
}

package nodecmder

import (
	"github.com/spf13/cobra"

	"github.com/cienislaw/thirtybees/cmd/ntree/engine"
	"github.com/cienislaw/thirtybees/pkg/ntree"
)

type createCommander struct {
	parent       int64
	rootCategory bool
	tenants      []int64
	inactive     bool
}

const createLongDesc string = `Create a category.

The category is placed under --parent, or under the node selected with
'ntree use', or under the home category of the default tenant. With
--root-category it is placed directly under the structural root and can
later serve as the root of a tenant.

The category joins every tenant unless --tenants narrows the list. It is
appended after its existing siblings in each of them.

Examples:
  ntree create Shoes
  ntree create Boots --parent 3
  ntree create Outlet --root-category
  ntree create Sale --tenants 1,2 --inactive`

const createShortDesc string = "Create a category"

func NewCreateCmd() *cobra.Command {
	cmder := &createCommander{}

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: createShortDesc,
		Long:  createLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd, args[0])
		},
	}

	cmd.Flags().Int64VarP(&cmder.parent, "parent", "p", 0, "Parent node id (defaults to the selected node, then home)")
	cmd.Flags().BoolVar(&cmder.rootCategory, "root-category", false, "Create a root category under the structural root")
	cmd.Flags().Int64SliceVar(&cmder.tenants, "tenants", nil, "Tenants to join (defaults to all)")
	cmd.Flags().BoolVar(&cmder.inactive, "inactive", false, "Create the category hidden")
	engine.AddStorageFlags(cmd)

	return cmd
}

func (c *createCommander) run(cmd *cobra.Command, name string) error {
	req := ntree.CreateRequest{
		ParentID:       ntree.NodeID(c.parent),
		Name:           name,
		IsRootCategory: c.rootCategory,
		Inactive:       c.inactive,
	}
	for _, t := range c.tenants {
		req.Tenants = append(req.Tenants, ntree.TenantID(t))
	}

	if req.ParentID == 0 && !req.IsRootCategory {
		sel, err := engine.Selection(cmd)
		if err != nil {
			return err
		}
		req.ParentID = ntree.NodeID(sel.NodeID)
	}

	e, err := engine.FromCommand(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	n, err := e.Tree.Create(cmd.Context(), req)
	if err != nil {
		return err
	}

	printDone(cmd.OutOrStdout(), "Created %s under %s", engine.Label(n), label(e, n.ParentID))
	return nil
}

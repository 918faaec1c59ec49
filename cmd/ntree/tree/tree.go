// Package treecmder provides the tree command for rendering a tenant's view
// of the category tree.
package treecmder

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cienislaw/thirtybees/cmd/ntree/engine"
	"github.com/cienislaw/thirtybees/pkg/cliui"
)

type treeCommander struct {
	tenant     int64
	activeOnly bool
	jsonOut    bool
}

const treeLongDesc string = `Render the category tree of a tenant.

Categories appear in the tenant's sibling order. Categories that are not
members of the tenant are left out together with their subtrees, and with
--active so are hidden ones.

Examples:
  ntree tree
  ntree tree --tenant 2 --active
  ntree tree --json`

const treeShortDesc string = "Render a tenant's category tree"

func NewTreeCmd() *cobra.Command {
	cmder := &treeCommander{}

	cmd := &cobra.Command{
		Use:   "tree",
		Short: treeShortDesc,
		Long:  treeLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd)
		},
	}

	engine.AddTenantFlag(cmd, &cmder.tenant)
	cmd.Flags().BoolVar(&cmder.activeOnly, "active", false, "Leave out inactive categories")
	cmd.Flags().BoolVar(&cmder.jsonOut, "json", false, "Print the tree as JSON")
	engine.AddStorageFlags(cmd)

	return cmd
}

func (c *treeCommander) run(cmd *cobra.Command) error {
	e, err := engine.FromCommand(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	tenant, err := e.ResolveTenant(cmd, c.tenant)
	if err != nil {
		return err
	}

	root, err := e.Tree.TenantTree(cmd.Context(), tenant.ID, c.activeOnly)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if c.jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(root)
	}

	fmt.Fprintf(out, "%s\n\n", cliui.KeyValue("Tenant", fmt.Sprintf("%s #%d", tenant.Name, tenant.ID)))
	fmt.Fprintln(out, cliui.RenderTree(root))
	return nil
}

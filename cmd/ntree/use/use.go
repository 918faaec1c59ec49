// Package usecmder provides the use command for selecting the node and
// tenant other commands default to.
package usecmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cienislaw/thirtybees/cmd/ntree/engine"
	"github.com/cienislaw/thirtybees/pkg/dotdir"
	"github.com/cienislaw/thirtybees/pkg/ntree"
)

type useCommander struct {
	tenant int64
}

const useLongDesc string = `Select the node and tenant other commands work against.

'ntree create' places new categories under the selected node and 'ntree
show' shows it when called without an id. Commands that take --tenant fall
back to the selected tenant before the default one. The selection lives in
.ntree/selection.json.

If no id and no --tenant are given, the selection is cleared.

Examples:
  ntree use 3              Select node 3
  ntree use 3 --tenant 2   Select node 3 in tenant 2
  ntree use                Clear the selection`

const useShortDesc string = "Select a node and tenant"

func NewUseCmd() *cobra.Command {
	cmder := &useCommander{}

	cmd := &cobra.Command{
		Use:   "use [id]",
		Short: useShortDesc,
		Long:  useLongDesc,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var id ntree.NodeID
			if len(args) == 1 {
				var err error
				if id, err = engine.ParseNodeID(args[0]); err != nil {
					return err
				}
			}
			return cmder.run(cmd, id)
		},
	}

	engine.AddTenantFlag(cmd, &cmder.tenant)
	engine.AddStorageFlags(cmd)

	return cmd
}

func (c *useCommander) run(cmd *cobra.Command, id ntree.NodeID) error {
	configDir, _ := cmd.Flags().GetString("config-dir")
	manager := dotdir.NewManager()
	out := cmd.OutOrStdout()

	if id == 0 && c.tenant == 0 {
		if err := manager.ClearSelection(configDir); err != nil {
			return fmt.Errorf("clearing selection: %w", err)
		}
		fmt.Fprintln(out, "Selection cleared.")
		return nil
	}

	e, err := engine.FromCommand(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	sel := &dotdir.Selection{TenantID: c.tenant}
	if c.tenant != 0 {
		if _, err := e.Tree.Tenant(ntree.TenantID(c.tenant)); err != nil {
			return err
		}
	}

	var n *ntree.Node
	if id != 0 {
		if n, err = e.Tree.Node(id); err != nil {
			return err
		}
		sel.NodeID = int64(id)
	}

	if err := manager.SaveSelection(sel, configDir); err != nil {
		return fmt.Errorf("saving selection: %w", err)
	}

	if n != nil {
		fmt.Fprintf(out, "Selected %s", engine.Label(n))
	} else {
		fmt.Fprint(out, "Selected no node")
	}
	if c.tenant != 0 {
		fmt.Fprintf(out, " in tenant %d", c.tenant)
	}
	fmt.Fprintln(out)
	return nil
}

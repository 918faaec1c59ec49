package engine

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/cienislaw/thirtybees/pkg/dotdir"
	"github.com/cienislaw/thirtybees/pkg/ntree"
)

// AddTenantFlag registers --tenant/-t on cmd.
func AddTenantFlag(cmd *cobra.Command, target *int64) {
	cmd.Flags().Int64VarP(target, "tenant", "t", 0, "Tenant id (0 for the selected or default tenant)")
}

// Selection loads the CLI selection from the resolved .ntree/ directory.
// It returns an empty selection when nothing is selected.
func Selection(cmd *cobra.Command) (*dotdir.Selection, error) {
	configDir, _ := cmd.Flags().GetString("config-dir")
	sel, err := dotdir.NewManager().LoadSelection(configDir)
	if err != nil {
		return nil, err
	}
	if sel == nil {
		return &dotdir.Selection{}, nil
	}
	return sel, nil
}

// ResolveTenant returns flagValue when set, otherwise the selected tenant,
// otherwise the default tenant of the tree.
func (e *Engine) ResolveTenant(cmd *cobra.Command, flagValue int64) (ntree.Tenant, error) {
	id := ntree.TenantID(flagValue)
	if id == 0 {
		sel, err := Selection(cmd)
		if err != nil {
			return ntree.Tenant{}, err
		}
		id = ntree.TenantID(sel.TenantID)
	}

	if id != 0 {
		return e.Tree.Tenant(id)
	}

	def, ok := e.Tree.DefaultTenant()
	if !ok {
		return ntree.Tenant{}, ntree.ErrNotBootstrapped
	}
	return def, nil
}

// ParseNodeID parses a positive node id argument.
func ParseNodeID(s string) (ntree.NodeID, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid node id %q", s)
	}
	return ntree.NodeID(id), nil
}

// Label renders a node as "Name #id".
func Label(n *ntree.Node) string {
	return fmt.Sprintf("%s #%d", n.Name, n.ID)
}

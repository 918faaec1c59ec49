package nodecmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cienislaw/thirtybees/cmd/ntree/engine"
)

type activeCommander struct {
	tenant int64
}

const activeLongDesc string = `Show or hide a category in one tenant.

An inactive category keeps its position and its subtree; tenant trees
rendered with --active leave it out.

Examples:
  ntree active 3 off
  ntree active 3 on --tenant 2`

const activeShortDesc string = "Show or hide a category in a tenant"

func NewActiveCmd() *cobra.Command {
	cmder := &activeCommander{}

	cmd := &cobra.Command{
		Use:       "active <id> <on|off>",
		Short:     activeShortDesc,
		Long:      activeLongDesc,
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd, args[0], args[1])
		},
	}

	engine.AddTenantFlag(cmd, &cmder.tenant)
	engine.AddStorageFlags(cmd)

	return cmd
}

func (c *activeCommander) run(cmd *cobra.Command, rawID, state string) error {
	id, err := engine.ParseNodeID(rawID)
	if err != nil {
		return err
	}

	var active bool
	switch state {
	case "on":
		active = true
	case "off":
	default:
		return fmt.Errorf("state must be on or off, got %q", state)
	}

	e, err := engine.FromCommand(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	tenant, err := e.ResolveTenant(cmd, c.tenant)
	if err != nil {
		return err
	}

	if err := e.Tree.SetActive(cmd.Context(), id, tenant.ID, active); err != nil {
		return err
	}

	printDone(cmd.OutOrStdout(), "%s is %s in %s", label(e, id), state, tenant.Name)
	return nil
}

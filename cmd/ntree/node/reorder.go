package nodecmder

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/cienislaw/thirtybees/cmd/ntree/engine"
	"github.com/cienislaw/thirtybees/pkg/cliui"
	"github.com/cienislaw/thirtybees/pkg/ntree"
)

type reorderCommander struct {
	tenant    int64
	up        bool
	down      bool
	position  int
	direction string
}

const reorderLongDesc string = `Change the position of a category among its siblings in one tenant.

--up and --down swap the category with its neighbour. --position moves it
to an explicit slot and shifts the siblings in between; --direction can
constrain that move to "up" or "down". Reordering never changes the
nested-set intervals.

Examples:
  ntree reorder 4 --up
  ntree reorder 4 --position 0 --tenant 2
  ntree reorder 3 --position 2 --direction down`

const reorderShortDesc string = "Reorder a category among its siblings"

func NewReorderCmd() *cobra.Command {
	cmder := &reorderCommander{}

	cmd := &cobra.Command{
		Use:   "reorder <id>",
		Short: reorderShortDesc,
		Long:  reorderLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := engine.ParseNodeID(args[0])
			if err != nil {
				return err
			}
			return cmder.run(cmd, id)
		},
	}

	engine.AddTenantFlag(cmd, &cmder.tenant)
	cmd.Flags().BoolVar(&cmder.up, "up", false, "Swap with the previous sibling")
	cmd.Flags().BoolVar(&cmder.down, "down", false, "Swap with the next sibling")
	cmd.Flags().IntVar(&cmder.position, "position", 0, "Target position among the siblings")
	cmd.Flags().StringVar(&cmder.direction, "direction", "auto", "Constrain --position to auto, up or down")
	cmd.MarkFlagsMutuallyExclusive("up", "down", "position")
	cmd.MarkFlagsOneRequired("up", "down", "position")
	engine.AddStorageFlags(cmd)

	return cmd
}

func (c *reorderCommander) run(cmd *cobra.Command, id ntree.NodeID) error {
	dir, err := ntree.ParseDirection(c.direction)
	if err != nil {
		return err
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

	ctx := cmd.Context()
	switch {
	case c.up:
		err = e.Tree.MoveUp(ctx, id, tenant.ID)
	case c.down:
		err = e.Tree.MoveDown(ctx, id, tenant.ID)
	default:
		err = e.Tree.Reorder(ctx, id, tenant.ID, dir, c.position)
	}
	if err != nil {
		return err
	}

	n, err := e.Tree.Node(id)
	if err != nil {
		return err
	}
	return printSiblings(ctx, cmd.OutOrStdout(), e, n.ParentID, tenant.ID, id)
}

// printSiblings lists the children of parent in tenant order and marks
// the moved node.
func printSiblings(ctx context.Context, out io.Writer, e *engine.Engine, parent ntree.NodeID, tenant ntree.TenantID, moved ntree.NodeID) error {
	siblings, err := e.Tree.Children(ctx, parent, tenant, false)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "  %s\n", cliui.KeyValue("Children of", label(e, parent)))
	for _, s := range siblings {
		line := fmt.Sprintf("%3d  %s", s.Position, engine.Label(s.Node))
		if s.Node.ID == moved {
			line = cliui.ValueStyle.Render(line) + " " + cliui.SuccessMark
		} else {
			line = cliui.DimStyle.Render(line)
		}
		fmt.Fprintf(out, "  %s\n", line)
	}
	return nil
}

package nodecmder

import (
	"github.com/spf13/cobra"

	"github.com/cienislaw/thirtybees/cmd/ntree/engine"
)

const moveLongDesc string = `Move a category and its subtree under a new parent.

The category keeps its tenant memberships and is appended after its new
siblings. Moving a category under itself or one of its descendants is
refused, as is moving the structural root or a tenant root.

Examples:
  ntree move 5 4`

const moveShortDesc string = "Move a category under a new parent"

func NewMoveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "move <id> <parent-id>",
		Short: moveShortDesc,
		Long:  moveLongDesc,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := engine.ParseNodeID(args[0])
			if err != nil {
				return err
			}
			parent, err := engine.ParseNodeID(args[1])
			if err != nil {
				return err
			}

			e, err := engine.FromCommand(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			if err := e.Tree.Reparent(cmd.Context(), id, parent); err != nil {
				return err
			}

			printDone(cmd.OutOrStdout(), "Moved %s under %s", label(e, id), label(e, parent))
			return nil
		},
	}

	engine.AddStorageFlags(cmd)

	return cmd
}

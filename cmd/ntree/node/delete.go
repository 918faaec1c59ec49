package nodecmder

import (
	"github.com/spf13/cobra"

	"github.com/cienislaw/thirtybees/cmd/ntree/engine"
)

const deleteLongDesc string = `Delete a category and everything below it.

The structural root and tenant roots cannot be deleted.

Examples:
  ntree delete 3`

const deleteShortDesc string = "Delete a category and its subtree"

func NewDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: deleteShortDesc,
		Long:  deleteLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := engine.ParseNodeID(args[0])
			if err != nil {
				return err
			}

			e, err := engine.FromCommand(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			name := label(e, id)
			removed, err := e.Tree.Delete(cmd.Context(), id)
			if err != nil {
				return err
			}

			printDone(cmd.OutOrStdout(), "Deleted %s (%d nodes)", name, len(removed))
			return nil
		},
	}

	engine.AddStorageFlags(cmd)

	return cmd
}

// Package integritycmder provides the rebuild and check commands that
// repair and verify the nested-set intervals of the local store.
package integritycmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cienislaw/thirtybees/cmd/ntree/engine"
	"github.com/cienislaw/thirtybees/pkg/cliui"
)

const rebuildLongDesc string = `Recompute every interval from the stored parent links.

Rebuilding is safe at any time. It repairs intervals left stale by an
interrupted write and clears the inconsistent state.

Examples:
  ntree rebuild
  ntree rebuild --driver postgres --postgres postgres://localhost/ntree`

const rebuildShortDesc string = "Recompute the nested-set intervals"

func NewRebuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rebuild",
		Short: rebuildShortDesc,
		Long:  rebuildLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := engine.FromCommand(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			out := cmd.OutOrStdout()
			err = cliui.Step(out, "Rebuilding intervals", func() error {
				return e.Tree.ForceRebuild(cmd.Context())
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "  %s\n", cliui.KeyValue("Nodes", fmt.Sprintf("%d", e.Tree.Snapshot().Len())))
			return nil
		},
	}

	engine.AddStorageFlags(cmd)

	return cmd
}

const checkLongDesc string = `Verify the stored intervals against the parent links.

Check recomputes the intervals without writing them and compares them with
the stored ones, and verifies that sibling positions are unique in every
tenant. It exits with an error when anything disagrees; run 'ntree rebuild'
to repair.

Examples:
  ntree check`

const checkShortDesc string = "Verify the nested-set intervals"

func NewCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: checkShortDesc,
		Long:  checkLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := engine.FromCommand(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			err = e.Tree.Check(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "  %s %s\n", cliui.Mark(err), "Tree integrity")
			if err != nil {
				return fmt.Errorf("tree is inconsistent: %w", err)
			}
			return nil
		},
	}

	engine.AddStorageFlags(cmd)

	return cmd
}

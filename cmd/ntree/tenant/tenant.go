// Package tenantcmder provides the tenant command group.
package tenantcmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cienislaw/thirtybees/cmd/ntree/engine"
	"github.com/cienislaw/thirtybees/pkg/cliui"
)

const tenantLongDesc string = `Manage tenants.

A tenant is an independent view over the shared tree, rooted at a root
category. Every tenant keeps its own sibling order and visibility.

Examples:
  ntree tenant list
  ntree tenant create outlet 7`

const tenantShortDesc string = "Manage tenants"

func NewTenantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: tenantShortDesc,
		Long:  tenantLongDesc,
	}

	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newCreateCmd())

	return cmd
}

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tenants",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := engine.FromCommand(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			def, _ := e.Tree.DefaultTenant()
			ref := e.Tree.ReferenceTenant()

			out := cmd.OutOrStdout()
			for _, t := range e.Tree.Tenants() {
				root := fmt.Sprintf("#%d", t.RootID)
				if n, ok := e.Tree.Snapshot().Node(t.RootID); ok {
					root = engine.Label(n)
				}

				line := fmt.Sprintf("%3d  %s  %s", t.ID, cliui.ValueStyle.Render(t.Name), cliui.DimStyle.Render("root "+root))
				if t.ID == def.ID {
					line += " " + cliui.KeyStyle.Render("(default)")
				}
				if t.ID == ref {
					line += " " + cliui.KeyStyle.Render("(reference)")
				}
				fmt.Fprintf(out, "  %s\n", line)
			}
			return nil
		},
	}

	engine.AddStorageFlags(cmd)

	return cmd
}

func newCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <name> <root-id>",
		Short: "Create a tenant rooted at a root category",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := engine.ParseNodeID(args[1])
			if err != nil {
				return err
			}

			e, err := engine.FromCommand(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			t, err := e.Tree.CreateTenant(cmd.Context(), args[0], root)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "  %s Created tenant %s #%d rooted at #%d\n",
				cliui.SuccessMark, t.Name, t.ID, t.RootID)
			return nil
		},
	}

	engine.AddStorageFlags(cmd)

	return cmd
}

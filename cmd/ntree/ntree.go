// Package ntreecmder is the root ntree command.
package ntreecmder

import (
	"github.com/spf13/cobra"

	configcmder "github.com/cienislaw/thirtybees/cmd/ntree/config"
	initcmder "github.com/cienislaw/thirtybees/cmd/ntree/init"
	integritycmder "github.com/cienislaw/thirtybees/cmd/ntree/integrity"
	nodecmder "github.com/cienislaw/thirtybees/cmd/ntree/node"
	servecmder "github.com/cienislaw/thirtybees/cmd/ntree/serve"
	statuscmder "github.com/cienislaw/thirtybees/cmd/ntree/status"
	tenantcmder "github.com/cienislaw/thirtybees/cmd/ntree/tenant"
	treecmder "github.com/cienislaw/thirtybees/cmd/ntree/tree"
	usecmder "github.com/cienislaw/thirtybees/cmd/ntree/use"
	watchcmder "github.com/cienislaw/thirtybees/cmd/ntree/watch"
	versioncmder "github.com/cienislaw/thirtybees/cmd/version"
)

const ntreeLongDesc string = `ntree maintains a category tree with a nested-set index.

Every category keeps a parent link and a (left, right, depth) interval so
ancestor and descendant lookups are range checks. Categories can belong to
several tenants, each with its own sibling order and visibility.

Get started:
  ntree init                 Create .ntree/ and bootstrap the tree
  ntree create Shoes         Add a category under home
  ntree tree                 Show the default tenant's tree
  ntree serve                Run the HTTP API
  ntree watch                Follow changes from a running server`

const ntreeShortDesc string = "ntree - nested-set category trees"

func NewNtreeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "ntree",
		Short:        ntreeShortDesc,
		Long:         ntreeLongDesc,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .ntree/ directory")

	// Add subcommands
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(treecmder.NewTreeCmd())
	cmd.AddCommand(nodecmder.NewCreateCmd())
	cmd.AddCommand(nodecmder.NewMoveCmd())
	cmd.AddCommand(nodecmder.NewDeleteCmd())
	cmd.AddCommand(nodecmder.NewReorderCmd())
	cmd.AddCommand(nodecmder.NewActiveCmd())
	cmd.AddCommand(nodecmder.NewShowCmd())
	cmd.AddCommand(integritycmder.NewRebuildCmd())
	cmd.AddCommand(integritycmder.NewCheckCmd())
	cmd.AddCommand(tenantcmder.NewTenantCmd())
	cmd.AddCommand(usecmder.NewUseCmd())
	cmd.AddCommand(statuscmder.NewStatusCmd())
	cmd.AddCommand(watchcmder.NewWatchCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}

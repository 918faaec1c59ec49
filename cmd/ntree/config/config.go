// Package configcmder provides the config command for managing persistent
// ntree configuration stored in the .ntree/ directory.
package configcmder

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cienislaw/thirtybees/pkg/config"
)

const configLongDesc string = `Manage persistent ntree configuration.

Configuration is stored as config.toml in the .ntree/ directory and provides
default values for command flags. CLI flags and NTREE_* environment
variables always take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  storage.driver, storage.sqlite_path, storage.postgres_dsn,
  tree.default_tenant, tree.reference_tenant,
  api.listen, client.api_target,
  eventstream.provider, eventstream.brokers, eventstream.topic,
  batcher.queue_size, batcher.max_batch

Use subcommands to get, set, or list configuration values:
  ntree config set <key> <value>    Set a configuration value
  ntree config get <key>            Get a configuration value
  ntree config list                 List all configuration values

Examples:
  ntree config set storage.driver postgres
  ntree config set eventstream.brokers kafka-1:9092,kafka-2:9092
  ntree config get tree.default_tenant
  ntree config list`

const configShortDesc string = "Manage persistent ntree configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}

func validateKey(key string) error {
	if !config.IsValidConfigKey(key) {
		return fmt.Errorf("unknown config key: %q\n\nValid keys: %s",
			key, strings.Join(config.ValidConfigKeys(), ", "))
	}
	return nil
}

func completeKeys(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return config.ValidConfigKeys(), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}

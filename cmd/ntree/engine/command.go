package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/cienislaw/thirtybees/pkg/config"
	"github.com/cienislaw/thirtybees/pkg/logger"
)

// storageFlagKeys are the registry keys AddStorageFlags registers.
var storageFlagKeys = []string{
	config.FlagStorageDriver,
	config.FlagSQLite,
	config.FlagPostgres,
	config.FlagDefaultTenant,
	config.FlagReferenceTenant,
}

// AddStorageFlags registers the storage and tenant flags on cmd.
func AddStorageFlags(cmd *cobra.Command) {
	var (
		driver, sqlite, postgres string
		defaultTenant, refTenant int64
	)
	config.AddStringFlag(cmd, config.StorageFlags, config.FlagStorageDriver, &driver)
	config.AddStringFlag(cmd, config.StorageFlags, config.FlagSQLite, &sqlite)
	config.AddStringFlag(cmd, config.StorageFlags, config.FlagPostgres, &postgres)
	config.AddInt64Flag(cmd, config.StorageFlags, config.FlagDefaultTenant, &defaultTenant)
	config.AddInt64Flag(cmd, config.StorageFlags, config.FlagReferenceTenant, &refTenant)
}

// LoadConfig resolves the configuration for cmd with the precedence
// flag > env > config.toml > default. It returns the --config-dir override
// alongside.
func LoadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	configDir, _ := cmd.Flags().GetString("config-dir")

	v, err := config.InitViper(configDir)
	if err != nil {
		return nil, "", fmt.Errorf("loading config: %w", err)
	}

	config.BindRegisteredFlags(v, cmd, config.StorageFlags, storageFlagKeys)
	config.BindRegisteredFlags(v, cmd, config.ServeFlags, keys(config.ServeFlags))
	config.BindRegisteredFlags(v, cmd, config.ClientFlags, keys(config.ClientFlags))

	return config.FromViper(v), configDir, nil
}

func keys(fs config.FlagSet) []string {
	out := make([]string, 0, len(fs))
	for k := range fs {
		out = append(out, k)
	}
	return out
}

// Logger returns the CLI logger: colorized on stderr, warnings only unless
// --debug is set.
func Logger(cmd *cobra.Command) *slog.Logger {
	debug, _ := cmd.Flags().GetBool("debug")
	level := slog.LevelWarn
	if debug {
		level = slog.LevelDebug
	}
	return logger.New(
		logger.WithPretty(true),
		logger.WithLevel(level),
		logger.WithWriter(cmd.ErrOrStderr()),
	)
}

// FromCommand opens an Engine configured by cmd's flags.
func FromCommand(cmd *cobra.Command) (*Engine, error) {
	cfg, configDir, err := LoadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return Open(commandContext(cmd), cfg, configDir, Logger(cmd))
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

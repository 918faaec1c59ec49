package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline. This prevents flag drift
// when the same logical flag appears on multiple commands (e.g., --sqlite
// on both "ntree serve" and "ntree tree").
type Flag struct {
	// Name is the long flag name (e.g. "listen").
	Name string

	// Shorthand is the one-letter short flag (e.g. "l"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "api.listen").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling AddStringFlag, AddUintFlag,
// and BindRegisteredFlags to avoid typos or drift from one command to another.
const (
	FlagStorageDriver   = "storage-driver"
	FlagSQLite          = "sqlite"
	FlagPostgres        = "postgres"
	FlagAPIListen       = "api-listen"
	FlagAPITarget       = "api-target"
	FlagDefaultTenant   = "default-tenant"
	FlagReferenceTenant = "reference-tenant"
	FlagEventProvider   = "eventstream-provider"
	FlagEventBrokers    = "eventstream-brokers"
	FlagEventTopic      = "eventstream-topic"
	FlagQueueSize       = "queue-size"
	FlagMaxBatch        = "max-batch"
)

// StorageFlags is the FlagSet shared by every command that opens a store.
var StorageFlags = FlagSet{
	FlagStorageDriver: {Name: "driver", ViperKey: "storage.driver", Description: "Storage driver: memory, sqlite or postgres"},
	FlagSQLite:        {Name: "sqlite", Shorthand: "s", ViperKey: "storage.sqlite_path", Description: "Path to the SQLite database"},
	FlagPostgres:      {Name: "postgres", ViperKey: "storage.postgres_dsn", Description: "PostgreSQL connection string"},
	FlagDefaultTenant: {Name: "default-tenant", ViperKey: "tree.default_tenant", Description: "Tenant whose root acts as home (0 for the lowest id)"},
	FlagReferenceTenant: {
		Name:        "reference-tenant",
		ViperKey:    "tree.reference_tenant",
		Description: "Tenant whose sibling order drives the interval traversal (0 for the default tenant)",
	},
}

// ServeFlags is the FlagSet of "ntree serve".
var ServeFlags = FlagSet{
	FlagAPIListen:     {Name: "listen", Shorthand: "l", ViperKey: "api.listen", Description: "Address for the API server to listen on"},
	FlagEventProvider: {Name: "eventstream", ViperKey: "eventstream.provider", Description: "Tree event publisher: nop or kafka"},
	FlagEventBrokers:  {Name: "kafka-brokers", ViperKey: "eventstream.brokers", Description: "Comma separated Kafka brokers"},
	FlagEventTopic:    {Name: "kafka-topic", ViperKey: "eventstream.topic", Description: "Kafka topic for tree events"},
	FlagQueueSize:     {Name: "queue-size", ViperKey: "batcher.queue_size", Description: "Capacity of the mutation queue"},
	FlagMaxBatch:      {Name: "max-batch", ViperKey: "batcher.max_batch", Description: "Mutations applied per interval rebuild"},
}

// ClientFlags is the FlagSet of commands that talk to a running API server.
var ClientFlags = FlagSet{
	FlagAPITarget: {Name: "api", Shorthand: "a", ViperKey: "client.api_target", Description: "ntree API server URL"},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddUintFlag registers a uint flag on cmd from the given FlagSet.
func AddUintFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *uint) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaultUint(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().UintVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().UintVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddInt64Flag registers an int64 flag on cmd from the given FlagSet.
func AddInt64Flag(cmd *cobra.Command, fs FlagSet, registryKey string, target *int64) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaultInt64(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().Int64VarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().Int64Var(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaultString returns the default string value for a viper key from NewDefaultConfig.
func defaultString(viperKey string) string {
	v := viper.New()
	setViperDefaults(v)
	return v.GetString(viperKey)
}

// defaultUint returns the default uint value for a viper key from NewDefaultConfig.
func defaultUint(viperKey string) uint {
	v := viper.New()
	setViperDefaults(v)
	return v.GetUint(viperKey)
}

// defaultInt64 returns the default int64 value for a viper key from NewDefaultConfig.
func defaultInt64(viperKey string) int64 {
	v := viper.New()
	setViperDefaults(v)
	return v.GetInt64(viperKey)
}

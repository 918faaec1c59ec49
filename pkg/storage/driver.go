// Package storage selects and opens the ntree.Store backends that live in its
// subpackages.
package storage

import (
	"context"
	"fmt"

	"github.com/cienislaw/thirtybees/pkg/ntree"
	"github.com/cienislaw/thirtybees/pkg/storage/inmemory"
	"github.com/cienislaw/thirtybees/pkg/storage/postgres"
	"github.com/cienislaw/thirtybees/pkg/storage/sqlite"
)

// Driver is the persistence contract the tree engine runs on.
type Driver = ntree.Store

// Supported driver names.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Options selects a backend and its connection settings.
type Options struct {
	Driver      string
	SQLitePath  string
	PostgresDSN string
}

// Open returns the Driver named by opts.Driver.
func Open(ctx context.Context, opts Options) (Driver, error) {
	switch opts.Driver {
	case DriverMemory:
		return inmemory.NewDriver(), nil
	case "", DriverSQLite:
		if opts.SQLitePath == "" {
			return nil, fmt.Errorf("sqlite driver requires a database path")
		}
		return sqlite.NewDriver(ctx, opts.SQLitePath)
	case DriverPostgres:
		if opts.PostgresDSN == "" {
			return nil, fmt.Errorf("postgres driver requires a DSN")
		}
		return postgres.NewDriver(ctx, opts.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", opts.Driver)
	}
}

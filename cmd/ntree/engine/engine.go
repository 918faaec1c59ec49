// Package engine opens the tree engine and its collaborators (store,
// metrics, event publisher, change feed) from resolved configuration for ntree commands.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/cienislaw/thirtybees/cmd/ntree/sqlitepath"
	"github.com/cienislaw/thirtybees/pkg/config"
	"github.com/cienislaw/thirtybees/pkg/dotdir"
	"github.com/cienislaw/thirtybees/pkg/eventstream"
	"github.com/cienislaw/thirtybees/pkg/eventstream/feed"
	"github.com/cienislaw/thirtybees/pkg/eventstream/kafka"
	"github.com/cienislaw/thirtybees/pkg/eventstream/nop"
	"github.com/cienislaw/thirtybees/pkg/ntree"
	"github.com/cienislaw/thirtybees/pkg/storage"
)

// Engine bundles a Tree with the resources it was built on.
type Engine struct {
	Config    *config.Config
	Store     storage.Driver
	Tree      *ntree.Tree
	Registry  *prometheus.Registry
	Publisher eventstream.Publisher
	Feed      *feed.Feed
	Logger    *slog.Logger
}

// Open resolves storage, registers metrics, builds the event publisher and
// loads the tree. configDir is the --config-dir override used to place a new
// SQLite database.
func Open(ctx context.Context, cfg *config.Config, configDir string, logger *slog.Logger) (*Engine, error) {
	opts, err := storageOptions(cfg, configDir)
	if err != nil {
		return nil, err
	}

	store, err := storage.Open(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("opening %s storage: %w", opts.Driver, err)
	}
	logger.Debug("storage opened", "driver", opts.Driver, "sqlite", opts.SQLitePath)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := ntree.NewMetrics(reg)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("registering metrics: %w", err)
	}

	pub, err := NewPublisher(cfg.EventStream)
	if err != nil {
		store.Close()
		return nil, err
	}

	host, _ := os.Hostname()
	source := eventstream.EventSource{Instance: host, Driver: opts.Driver}
	changes := feed.New(feed.DefaultBuffer)

	tree, err := ntree.New(ctx, store,
		ntree.WithLogger(logger),
		ntree.WithMetrics(metrics),
		ntree.WithDefaultTenant(ntree.TenantID(cfg.Tree.DefaultTenant)),
		ntree.WithReferenceTenant(ntree.TenantID(cfg.Tree.ReferenceTenant)),
		ntree.WithChangeHook(eventstream.Hook(pub, source, logger)),
		ntree.WithChangeHook(eventstream.Hook(changes, source, logger)),
	)
	if err != nil {
		changes.Close()
		pub.Close()
		store.Close()
		return nil, fmt.Errorf("loading tree: %w", err)
	}

	return &Engine{
		Config:    cfg,
		Store:     store,
		Tree:      tree,
		Registry:  reg,
		Publisher: pub,
		Feed:      changes,
		Logger:    logger,
	}, nil
}

// Close ends the change feed and releases the publisher and the store.
func (e *Engine) Close() error {
	return errors.Join(e.Feed.Close(), e.Publisher.Close(), e.Store.Close())
}

// NewPublisher returns the event publisher selected by cfg.Provider.
func NewPublisher(cfg config.EventStreamConfig) (eventstream.Publisher, error) {
	switch cfg.Provider {
	case "", "nop":
		return nop.NewPublisher(), nil
	case "kafka":
		pub, err := kafka.NewPublisher(kafka.Config{
			Brokers:  splitBrokers(cfg.Brokers),
			Topic:    cfg.Topic,
			ClientID: "ntree",
		})
		if err != nil {
			return nil, fmt.Errorf("creating kafka publisher: %w", err)
		}
		return pub, nil
	default:
		return nil, fmt.Errorf("unknown eventstream provider %q", cfg.Provider)
	}
}

func splitBrokers(s string) []string {
	var out []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// storageOptions maps cfg onto storage.Options. A SQLite store without a
// configured path uses an existing database when one can be found and
// otherwise creates one in the ntree directory.
func storageOptions(cfg *config.Config, configDir string) (storage.Options, error) {
	opts := storage.Options{
		Driver:      cfg.Storage.Driver,
		SQLitePath:  cfg.Storage.SQLitePath,
		PostgresDSN: cfg.Storage.PostgresDSN,
	}
	if opts.Driver == "" {
		opts.Driver = storage.DriverSQLite
	}
	if opts.Driver != storage.DriverSQLite || opts.SQLitePath != "" {
		return opts, nil
	}

	path, err := sqlitepath.ResolveSQLitePath("")
	if err == nil {
		opts.SQLitePath = path
		return opts, nil
	}
	if !errors.Is(err, sqlitepath.ErrNotFound) {
		return opts, err
	}

	dir, err := dotdir.NewManager().Target(configDir)
	if err != nil {
		return opts, err
	}
	opts.SQLitePath = sqlitepath.DefaultPath(dir)
	return opts, nil
}

// Package servecmder provides the serve command for running the ntree API
// server.
package servecmder

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cienislaw/thirtybees/api"
	"github.com/cienislaw/thirtybees/cmd/ntree/engine"
	"github.com/cienislaw/thirtybees/pkg/batcher"
	"github.com/cienislaw/thirtybees/pkg/config"
	"github.com/cienislaw/thirtybees/pkg/logger"
)

type serveCommander struct {
	listen    string
	provider  string
	brokers   string
	topic     string
	queueSize uint
	maxBatch  uint
	jsonLogs  bool
	logFile   string
}

const serveLongDesc string = `Run the ntree API server.

Reads are served from the last published snapshot of the tree. Mutations
are queued and applied in batches so concurrent writers share one interval
rebuild. Every committed change is published to the configured event
stream, and Prometheus metrics are exposed on /metrics.

Examples:
  ntree serve
  ntree serve --listen :9090 --driver postgres --postgres postgres://localhost/ntree
  ntree serve --eventstream kafka --kafka-brokers localhost:9092 --json-logs
  ntree serve --log-file /var/log/ntree.json`

const serveShortDesc string = "Run the ntree API server"

var serveFlagKeys = []string{
	config.FlagAPIListen,
	config.FlagEventProvider,
	config.FlagEventBrokers,
	config.FlagEventTopic,
}

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd)
		},
	}

	targets := map[string]*string{
		config.FlagAPIListen:     &cmder.listen,
		config.FlagEventProvider: &cmder.provider,
		config.FlagEventBrokers:  &cmder.brokers,
		config.FlagEventTopic:    &cmder.topic,
	}
	for _, key := range serveFlagKeys {
		config.AddStringFlag(cmd, config.ServeFlags, key, targets[key])
	}
	config.AddUintFlag(cmd, config.ServeFlags, config.FlagQueueSize, &cmder.queueSize)
	config.AddUintFlag(cmd, config.ServeFlags, config.FlagMaxBatch, &cmder.maxBatch)
	cmd.Flags().BoolVar(&cmder.jsonLogs, "json-logs", false, "Write logs as JSON")
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also append JSON logs to this file")
	engine.AddStorageFlags(cmd)

	return cmd
}

// newLogger builds the terminal logger and, with --log-file, fans every
// record out to a JSON logger on that file as well. The returned func closes
// the file.
func (c *serveCommander) newLogger(cmd *cobra.Command) (*slog.Logger, func() error, error) {
	debug, _ := cmd.Flags().GetBool("debug")
	term := logger.New(
		logger.WithDebug(debug),
		logger.WithPretty(!c.jsonLogs),
		logger.WithJSON(c.jsonLogs),
		logger.WithWriter(cmd.ErrOrStderr()),
	)
	if c.logFile == "" {
		return term, func() error { return nil }, nil
	}

	f, err := os.OpenFile(c.logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	file := logger.New(
		logger.WithDebug(debug),
		logger.WithJSON(true),
		logger.WithWriter(f),
	)
	return logger.Multi(term, file), f.Close, nil
}

func (c *serveCommander) run(cmd *cobra.Command) error {
	cfg, configDir, err := engine.LoadConfig(cmd)
	if err != nil {
		return err
	}
	log, closeLog, err := c.newLogger(cmd)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e, err := engine.Open(ctx, cfg, configDir, log)
	if err != nil {
		return err
	}
	defer e.Close()

	if !e.Tree.Bootstrapped() {
		log.Warn("tree is not bootstrapped, run 'ntree init' before writing")
	}

	b, err := batcher.New(&batcher.Config{
		Tree:      e.Tree,
		QueueSize: cfg.Batcher.QueueSize,
		MaxBatch:  cfg.Batcher.MaxBatch,
		Logger:    log,
	})
	if err != nil {
		return fmt.Errorf("creating batcher: %w", err)
	}
	defer b.Close()

	server, err := api.NewServer(api.Config{
		ListenAddr: cfg.API.Listen,
		Metrics:    e.Registry,
		Events:     e.Feed,
	}, e.Tree, b, log)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	errChan := make(chan error, 1)
	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		log.Info("shutting down")
		return server.Shutdown()
	}
}

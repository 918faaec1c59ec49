package api

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cienislaw/thirtybees/pkg/batcher"
	"github.com/cienislaw/thirtybees/pkg/ntree"
)

// Server is the API server for reading and mutating the category tree.
type Server struct {
	config   Config
	tree     *ntree.Tree
	batcher  *batcher.Batcher
	validate *requestValidator
	logger   *slog.Logger
	app      *fiber.App

	done     chan struct{}
	stopOnce sync.Once
	stopErr  error
}

// NewServer creates a new API server.
// Reads are served from the tree's published snapshot. Mutations are
// submitted to the batcher so concurrent requests share interval rebuilds.
func NewServer(config Config, tree *ntree.Tree, b *batcher.Batcher, logger *slog.Logger) (*Server, error) {
	if tree == nil {
		return nil, errors.New("tree is required")
	}
	if b == nil {
		return nil, errors.New("batcher is required")
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config:   config,
		tree:     tree,
		batcher:  b,
		validate: newRequestValidator(),
		logger:   logger,
		app:      app,
		done:     make(chan struct{}),
	}

	app.Get("/ping", s.handlePing)

	v1 := app.Group("/v1")
	v1.Get("/tree/status", s.handleStatus)
	v1.Post("/tree/rebuild", s.handleRebuild)
	v1.Post("/tree/check", s.handleCheck)

	v1.Post("/nodes", s.handleCreateNode)
	v1.Get("/nodes/:id", s.handleGetNode)
	v1.Get("/nodes/:id/ancestors", s.handleAncestors)
	v1.Get("/nodes/:id/descendants", s.handleDescendants)
	v1.Get("/nodes/:id/path", s.handlePath)
	v1.Get("/nodes/:id/children", s.handleChildren)
	v1.Put("/nodes/:id/parent", s.handleReparent)
	v1.Put("/nodes/:id/position", s.handleReorder)
	v1.Put("/nodes/:id/active", s.handleSetActive)
	v1.Put("/nodes/:id/tenants/:tenant", s.handleAddToTenant)
	v1.Delete("/nodes/:id/tenants/:tenant", s.handleRemoveFromTenant)
	v1.Delete("/nodes/:id", s.handleDeleteNode)

	v1.Get("/paths", s.handleResolvePath)
	v1.Post("/paths", s.handleEnsurePath)

	v1.Get("/tenants", s.handleListTenants)
	v1.Post("/tenants", s.handleCreateTenant)
	v1.Get("/tenants/:id/tree", s.handleTenantTree)

	if config.Events != nil {
		v1.Get("/events", s.handleEvents)
	}

	if config.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(config.Metrics, promhttp.HandlerOpts{})))
	}

	return s, nil
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		"listen", s.config.ListenAddr,
		"consistent", s.tree.IsConsistent(),
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown ends open event streams and gracefully shuts down the API server.
// Later calls return the first result.
// Queued mutations are drained by the batcher's owner, not here.
func (s *Server) Shutdown() error {
	s.stopOnce.Do(func() {
		close(s.done)
		s.stopErr = s.app.Shutdown()
	})
	return s.stopErr
}

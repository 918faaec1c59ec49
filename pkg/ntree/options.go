package ntree

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/cienislaw/thirtybees/pkg/ntree"

// ChangeHook is invoked after a mutation commits, outside the writer lock.
type ChangeHook func(ctx context.Context, change Change)

// Option configures a Tree created with New.
type Option func(*config)

type config struct {
	logger          *slog.Logger
	metrics         *Metrics
	tracer          trace.Tracer
	hooks           []ChangeHook
	defaultTenant   TenantID
	referenceTenant TenantID
}

func defaultConfig() *config {
	return &config{
		logger: slog.New(slog.DiscardHandler),
		tracer: otel.Tracer(tracerName),
	}
}

// WithLogger sets the logger. Defaults to discarding all output.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics reports rebuilds and mutations to m.
func WithMetrics(m *Metrics) Option {
	return func(c *config) {
		c.metrics = m
	}
}

// WithTracer overrides the tracer obtained from the global otel provider.
func WithTracer(t trace.Tracer) Option {
	return func(c *config) {
		if t != nil {
			c.tracer = t
		}
	}
}

// WithChangeHook registers a hook called after every committed mutation.
func WithChangeHook(h ChangeHook) Option {
	return func(c *config) {
		if h != nil {
			c.hooks = append(c.hooks, h)
		}
	}
}

// WithDefaultTenant selects the tenant whose root acts as home. Defaults to
// the tenant with the lowest id.
func WithDefaultTenant(id TenantID) Option {
	return func(c *config) {
		c.defaultTenant = id
	}
}

// WithReferenceTenant selects the tenant whose sibling order drives the
// interval traversal. Defaults to the default tenant.
func WithReferenceTenant(id TenantID) Option {
	return func(c *config) {
		c.referenceTenant = id
	}
}

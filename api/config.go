// Package api provides an HTTP API server for querying and editing an ntree
// category tree.
package api

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8081")
	ListenAddr string

	// Metrics is served on /metrics when set.
	Metrics prometheus.Gatherer

	// Events backs the /v1/events change stream when set.
	Events EventSource

	// Heartbeat is the keep-alive interval of the change stream.
	// Defaults to 15s.
	Heartbeat time.Duration
}

// Package pim orchestrates time-bound privileged role assignments against
// the Azure PIM control plane.
package pim

import (
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/diggerhq/azure-pim/pkg/azure"
	"github.com/diggerhq/azure-pim/pkg/backend"
	"github.com/diggerhq/azure-pim/pkg/cache"
	"github.com/diggerhq/azure-pim/pkg/graph"
	"github.com/diggerhq/azure-pim/pkg/models"
)

const (
	// DefaultConcurrency keeps batch fan-out under the provider's rate
	// limits; empirically more than 5 in-flight activations gets throttled.
	DefaultConcurrency = 4

	// DefaultDuration is the default activation lifetime.
	DefaultDuration = 8 * time.Hour

	// DefaultCacheTTL bounds the directory and role-definition caches.
	DefaultCacheTTL = time.Hour

	// activationPollInterval throttles convergence polling; the list call
	// itself regularly takes multiple seconds.
	activationPollInterval = 5 * time.Second
)

// ListFilter selects which assignments a list call returns.
type ListFilter int

const (
	// FilterAsTarget lists only assignments targeting the current principal.
	FilterAsTarget ListFilter = iota
	// FilterAtScope lists everything at or under the requested scope.
	FilterAtScope
)

func (f ListFilter) expression() string {
	if f == FilterAtScope {
		return "atScope()"
	}
	return "asTarget()"
}

// Client drives the PIM control plane. The caches and the worker limit are
// owned here and injected into every operation; there is no process-global
// state.
type Client struct {
	backend      *backend.Backend
	resolver     *graph.Resolver
	definitions  *cache.ExpiringMap[models.Scope, []models.Definition]
	pollInterval time.Duration

	poolOnce sync.Once
	pool     *semaphore.Weighted
	poolSize int64
}

// NewClient builds a client authenticated via the local Azure CLI login.
func NewClient() (*Client, error) {
	provider, err := azure.NewCLITokenProvider()
	if err != nil {
		return nil, err
	}
	b, err := backend.NewFromEnv(provider)
	if err != nil {
		return nil, err
	}
	return NewClientWithBackend(b), nil
}

// NewClientWithBackend wires a client onto an existing backend; tests use
// this to point at local fake servers.
func NewClientWithBackend(b *backend.Backend) *Client {
	return &Client{
		backend:      b,
		resolver:     graph.NewResolver(b, DefaultCacheTTL),
		definitions:  cache.NewExpiringMap[models.Scope, []models.Definition](DefaultCacheTTL),
		pollInterval: activationPollInterval,
	}
}

// Resolver exposes the directory object resolver.
func (c *Client) Resolver() *graph.Resolver {
	return c.resolver
}

// ClearCache drops all cached directory objects, group memberships, and
// role definitions.
func (c *Client) ClearCache() {
	c.resolver.ClearCache()
	c.definitions.Clear()
}

// workerPool returns the batch fan-out limiter. The size is fixed by the
// first caller; later calls asking for a different size reuse the original
// pool, logged but not fatal.
func (c *Client) workerPool(concurrency int) *semaphore.Weighted {
	if concurrency < 1 {
		concurrency = 1
	}
	c.poolOnce.Do(func() {
		c.poolSize = int64(concurrency)
		c.pool = semaphore.NewWeighted(c.poolSize)
	})
	if c.poolSize != int64(concurrency) {
		slog.Warn("worker pool already configured, reusing",
			"configured", c.poolSize, "requested", concurrency)
	}
	return c.pool
}

package activity

import (
	"runtime"
	"sync"
	"time"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"

	providerstore "github.com/igniter-labs/igniterx/pkg/db/provider"
	"github.com/igniter-labs/igniterx/pkg/metrics"
	"github.com/igniter-labs/igniterx/pkg/pocket"
	"github.com/igniter-labs/igniterx/pkg/reconcile"
)

type Context struct {
	Logger *zap.Logger
	// Key store
	Store providerstore.Store
	// Chain adapter for supplier, balance and stake calls
	Chain      pocket.Client
	Reconciler *reconcile.Engine
	Metrics    *metrics.ProviderMetrics
	// Clock defaults to time.Now; tests pin it.
	Clock func() time.Time
	// StatusMaxParallelism allows overriding the default status pool size.
	StatusMaxParallelism int
	statusPoolOnce       sync.Once
	statusPool           pond.Pool
	statusPoolSize       int
}

func (c *Context) now() time.Time {
	if c.Clock != nil {
		return c.Clock()
	}
	return time.Now()
}

// statusBatchPool returns the shared pool reconciliation batches fan out on.
func (c *Context) statusBatchPool(batchSize int) pond.Pool {
	c.statusPoolOnce.Do(func() {
		maxWorkers := StatusParallelism(c.StatusMaxParallelism)
		c.statusPoolSize = maxWorkers
		c.statusPool = pond.NewPool(
			maxWorkers,
			pond.WithQueueSize(StatusQueueSize(maxWorkers, batchSize)),
		)
	})

	return c.statusPool
}

// StatusPoolSize exposes the configured pool size for logging purposes.
func (c *Context) StatusPoolSize() int {
	if c.statusPoolSize != 0 {
		return c.statusPoolSize
	}
	return StatusParallelism(c.StatusMaxParallelism)
}

// StatusParallelism is two workers per CPU capped at 64; every task makes chain calls
// that go through the adapter's rate limiter anyway.
func StatusParallelism(override int) int {
	if override > 0 {
		if override > 64 {
			return 64
		}
		return override
	}

	n := runtime.NumCPU()
	if n < 1 {
		n = 1
	}
	parallelism := n * 2
	if parallelism < 2 {
		parallelism = 2
	}
	if parallelism > 64 {
		parallelism = 64
	}
	return parallelism
}

// StatusQueueSize lets a whole batch enqueue without blocking submissions.
func StatusQueueSize(parallelism, batchSize int) int {
	if parallelism < 1 {
		parallelism = 1
	}
	if batchSize < 1 {
		batchSize = 1
	}

	queue := parallelism * batchSize
	if queue < 1024 {
		queue = 1024
	}
	if queue > 65536 {
		queue = 65536
	}
	return queue
}

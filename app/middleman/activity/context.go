package activity

import (
	"time"

	"go.uber.org/zap"

	middlemanstore "github.com/igniter-labs/igniterx/pkg/db/middleman"
	"github.com/igniter-labs/igniterx/pkg/metrics"
	"github.com/igniter-labs/igniterx/pkg/notify"
	"github.com/igniter-labs/igniterx/pkg/pocket"
)

const (
	DefaultPollInterval = 15 * time.Second
	// MaxPollInterval keeps heartbeats well inside the wait activity's heartbeat timeout.
	MaxPollInterval = time.Minute
	// NodeStatusParallelism bounds concurrent chain lookups in a node status batch.
	NodeStatusParallelism = 16
)

type Context struct {
	Logger *zap.Logger
	// Transaction and node store
	Store middlemanstore.Store
	// Chain adapter used to broadcast and verify
	Chain pocket.Client
	// Publisher delivers notifications to provider streams
	Publisher notify.Publisher
	Metrics   *metrics.MiddlemanMetrics
	// PollInterval is how often WaitForNextBlock queries the height.
	PollInterval time.Duration
	// Identity is the requesting party providers delivered keys to. When empty the
	// transaction creator is used.
	Identity string
	// Clock defaults to time.Now; tests pin it.
	Clock func() time.Time
}

func (c *Context) now() time.Time {
	if c.Clock != nil {
		return c.Clock()
	}
	return time.Now()
}

func (c *Context) pollInterval() time.Duration {
	switch {
	case c.PollInterval <= 0:
		return DefaultPollInterval
	case c.PollInterval > MaxPollInterval:
		return MaxPollInterval
	}
	return c.PollInterval
}

package workflow

import (
	"time"

	sdktemporal "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/igniter-labs/igniterx/app/middleman/activity"
)

const DefaultNodeStatusBatchSize = 500

// Config holds the workflow configuration.
type Config struct {
	// NodeStatusBatchSize is the id span of one UpdateNodeStatusBatch page.
	NodeStatusBatchSize int64
}

// Context holds the workflow context.
type Context struct {
	ActivityContext *activity.Context
	Config          Config
}

func (wc *Context) nodeStatusBatchSize(override int64) int64 {
	switch {
	case override > 0:
		return override
	case wc.Config.NodeStatusBatchSize > 0:
		return wc.Config.NodeStatusBatchSize
	}
	return DefaultNodeStatusBatchSize
}

// withDefaultActivityOptions covers every transaction activity except the block wait.
func withDefaultActivityOptions(ctx workflow.Context) workflow.Context {
	return workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &sdktemporal.RetryPolicy{
			InitialInterval:        time.Second,
			BackoffCoefficient:     2.0,
			MaximumInterval:        10 * time.Second,
			MaximumAttempts:        3,
			NonRetryableErrorTypes: []string{"not_found", "invalid_payload"},
		},
	})
}

// withWaitActivityOptions allows a long block wait kept alive by heartbeats.
func withWaitActivityOptions(ctx workflow.Context) workflow.Context {
	return workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 45 * time.Minute,
		HeartbeatTimeout:    6 * time.Minute,
		RetryPolicy: &sdktemporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    time.Minute,
			MaximumAttempts:    200,
		},
	})
}

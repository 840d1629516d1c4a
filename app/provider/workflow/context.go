package workflow

import (
	"time"

	sdktemporal "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/igniter-labs/igniterx/app/provider/activity"
)

const (
	DefaultStatusBatchSize        = 500
	DefaultStatusPagesPerRun      = 200
	DefaultRemediationParallelism = 8
)

// Config holds the workflow configuration.
type Config struct {
	// StatusBatchSize is the id span of one UpsertSupplierStatusBatch page.
	StatusBatchSize int64
	// StatusPagesPerRun is the number of pages one run walks before it continues as new.
	StatusPagesPerRun int
	// RemediationParallelism caps concurrent RemediateSupplier activities.
	RemediationParallelism int
}

// Context holds the workflow context.
type Context struct {
	ActivityContext *activity.Context
	Config          Config
}

func (wc *Context) statusBatchSize(override int64) int64 {
	switch {
	case override > 0:
		return override
	case wc.Config.StatusBatchSize > 0:
		return wc.Config.StatusBatchSize
	}
	return DefaultStatusBatchSize
}

func (wc *Context) statusPagesPerRun() int {
	if wc.Config.StatusPagesPerRun > 0 {
		return wc.Config.StatusPagesPerRun
	}
	return DefaultStatusPagesPerRun
}

func (wc *Context) remediationParallelism() int {
	if wc.Config.RemediationParallelism > 0 {
		return wc.Config.RemediationParallelism
	}
	return DefaultRemediationParallelism
}

// withDefaultActivityOptions is used for store reads and height queries.
func withDefaultActivityOptions(ctx workflow.Context) workflow.Context {
	return workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &sdktemporal.RetryPolicy{
			InitialInterval:        time.Second,
			BackoffCoefficient:     2.0,
			MaximumInterval:        10 * time.Second,
			MaximumAttempts:        3,
			NonRetryableErrorTypes: []string{"not_found"},
		},
	})
}

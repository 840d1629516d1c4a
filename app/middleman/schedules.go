package middleman

import (
	"context"

	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/igniter-labs/igniterx/pkg/temporal"
	middlemanworkflow "github.com/igniter-labs/igniterx/pkg/temporal/middleman"
)

// EnsureSchedules creates the node status schedule if it does not exist.
func EnsureSchedules(ctx context.Context, c *temporal.Client, logger *zap.Logger) error {
	return c.EnsureSchedule(ctx, logger, temporal.ScheduleNodeStatus, temporal.FiveMinuteSpec(), &client.ScheduleWorkflowAction{
		ID:        temporal.ScheduleNodeStatus,
		Workflow:  middlemanworkflow.NodeStatusWorkflowName,
		Args:      []interface{}{middlemanworkflow.NodeStatusInput{}},
		TaskQueue: c.MiddlemanQueue,
	})
}

package provider

import (
	"context"

	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/igniter-labs/igniterx/pkg/temporal"
	providerworkflow "github.com/igniter-labs/igniterx/pkg/temporal/provider"
)

// EnsureSchedules creates the reconciliation and remediation schedules if they do not exist.
func EnsureSchedules(ctx context.Context, c *temporal.Client, logger *zap.Logger) error {
	err := c.EnsureSchedule(ctx, logger, temporal.ScheduleSupplierStatus, temporal.OneMinuteSpec(), &client.ScheduleWorkflowAction{
		ID:        temporal.ScheduleSupplierStatus,
		Workflow:  providerworkflow.SupplierStatusWorkflowName,
		Args:      []interface{}{providerworkflow.SupplierStatusInput{}},
		TaskQueue: c.ProviderQueue,
	})
	if err != nil {
		return err
	}

	return c.EnsureSchedule(ctx, logger, temporal.ScheduleSupplierRemediation, temporal.FiveMinuteSpec(), &client.ScheduleWorkflowAction{
		ID:        temporal.ScheduleSupplierRemediation,
		Workflow:  providerworkflow.SupplierRemediationWorkflowName,
		Args:      []interface{}{providerworkflow.SupplierRemediationInput{}},
		TaskQueue: c.ProviderQueue,
	})
}

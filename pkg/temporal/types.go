package temporal

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/client"
)

const DefaultNamespace = "igniterx"

// Task queues, one per process.
const (
	QueueProvider  = "provider"
	QueueMiddleman = "middleman"
)

// Schedule IDs
const (
	ScheduleSupplierStatus      = "supplier-status"
	ScheduleSupplierRemediation = "supplier-remediation"
	ScheduleNodeStatus          = "node-status"
)

// Workflow ID patterns
const (
	WorkflowIDExecuteTransaction = "execute-transaction:%d"
)

// ExecuteTransactionWorkflowID makes starting the same transaction twice a no-op.
func ExecuteTransactionWorkflowID(transactionID int64) string {
	return fmt.Sprintf(WorkflowIDExecuteTransaction, transactionID)
}

// OneMinuteSpec drives supplier status reconciliation.
func OneMinuteSpec() client.ScheduleSpec {
	return GetScheduleSpec(time.Minute)
}

// FiveMinuteSpec drives remediation and node status passes.
func FiveMinuteSpec() client.ScheduleSpec {
	return GetScheduleSpec(5 * time.Minute)
}

// GetScheduleSpec returns a schedule spec for the given interval.
func GetScheduleSpec(interval time.Duration) client.ScheduleSpec {
	return client.ScheduleSpec{Intervals: []client.ScheduleIntervalSpec{{Every: interval}}}
}

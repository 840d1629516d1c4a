package middleman

// Middleman workflow names
const (
	ExecuteTransactionWorkflowName = "ExecuteTransactionWorkflow"
	NodeStatusWorkflowName         = "NodeStatusWorkflow"
)

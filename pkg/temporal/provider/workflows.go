package provider

// Provider workflow names
const (
	SupplierStatusWorkflowName      = "SupplierStatusWorkflow"
	SupplierRemediationWorkflowName = "SupplierRemediationWorkflow"
)

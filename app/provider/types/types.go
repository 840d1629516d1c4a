package types

import (
	"github.com/igniter-labs/igniterx/pkg/db/models/provider"
	"github.com/igniter-labs/igniterx/pkg/pocket"
)

// ReconcilableStates are the states a status pass re-evaluates, parked and unstaked keys
// included.
var ReconcilableStates = provider.AllKeyStates

// RemediableStates are the states a remediation pass picks keys from.
var RemediableStates = []provider.KeyState{
	provider.KeyStateStaked,
	provider.KeyStateRemediationFailed,
}

// --- Activity types

type ActivityKeysRangeInput struct {
	MinID  int64               `json:"minId"`
	MaxID  int64               `json:"maxId"`
	States []provider.KeyState `json:"states"`
}

type ActivitySupplierStatusInput struct {
	Address string `json:"address"`
	Height  int64  `json:"height"`
}

type ActivitySupplierStatusOutput struct {
	Address       string                       `json:"address"`
	PreviousState provider.KeyState            `json:"previousState"`
	State         provider.KeyState            `json:"state"`
	Applied       bool                         `json:"applied"`
	Findings      []provider.RemediationReason `json:"findings,omitempty"`
}

type ActivitySupplierStatusBatchInput struct {
	Addresses []string `json:"addresses"`
	Height    int64    `json:"height"`
}

type ActivitySupplierStatusBatchOutput struct {
	Processed  int     `json:"processed"`
	Changed    int     `json:"changed"`
	Stale      int     `json:"stale"`
	Failed     int     `json:"failed"`
	DurationMs float64 `json:"durationMs"`
}

type ActivityRemediateSupplierInput struct {
	Address string                       `json:"address"`
	Height  int64                        `json:"height"`
	Reasons []provider.RemediationReason `json:"reasons"`
}

type ActivityRemediateSupplierOutput struct {
	Success  bool             `json:"success"`
	Message  string           `json:"message"`
	TxResult *pocket.TxResult `json:"txResult,omitempty"`
}

// --- Workflow types

type WorkflowSupplierStatusOutput struct {
	Height  int64 `json:"height"`
	Keys    int   `json:"keys"`
	Batches int   `json:"batches"`
	Changed int   `json:"changed"`
	Stale   int   `json:"stale"`
	Failed  int   `json:"failed"`
}

type WorkflowSupplierRemediationOutput struct {
	Height    int64 `json:"height"`
	Attempted int   `json:"attempted"`
	Succeeded int   `json:"succeeded"`
	Failed    int   `json:"failed"`
}

package types

import (
	"github.com/igniter-labs/igniterx/pkg/db/models/middleman"
)

// ActivityUpdateTransactionInput carries a partial update for one transaction. Type only
// labels metrics when the update moves the transaction to a terminal status.
type ActivityUpdateTransactionInput struct {
	TransactionID int64                       `json:"transaction_id"`
	Type          middleman.TransactionType   `json:"type,omitempty"`
	Update        middleman.TransactionUpdate `json:"update"`
}

// ActivityWaitForNextBlockInput blocks until the chain moves past Height.
type ActivityWaitForNextBlockInput struct {
	Height int64 `json:"height"`
}

type ActivityVerifyTransactionInput struct {
	Hash string `json:"hash"`
}

// ActivityNotifyOutput reports what was published to the provider stream.
type ActivityNotifyOutput struct {
	EntryID   string `json:"entry_id,omitempty"`
	Addresses int    `json:"addresses"`
	Skipped   bool   `json:"skipped,omitempty"`
}

type ActivityNodesRangeInput struct {
	MinID int64 `json:"min_id"`
	MaxID int64 `json:"max_id"`
}

type ActivityNodeStatusBatchInput struct {
	Addresses []string `json:"addresses"`
	Height    int64    `json:"height"`
}

type ActivityNodeStatusBatchOutput struct {
	Processed  int   `json:"processed"`
	Changed    int   `json:"changed"`
	Stale      int   `json:"stale"`
	Failed     int   `json:"failed"`
	DurationMs int64 `json:"duration_ms"`
}

// WorkflowExecuteTransactionOutput is the final view of a transaction after the workflow.
type WorkflowExecuteTransactionOutput struct {
	TransactionID  int64                       `json:"transaction_id"`
	Type           middleman.TransactionType   `json:"type"`
	Status         middleman.TransactionStatus `json:"status"`
	Hash           string                      `json:"hash,omitempty"`
	TxHeight       int64                       `json:"tx_height"`
	Code           uint32                      `json:"code"`
	Log            string                      `json:"log,omitempty"`
	NewNodes       []middleman.NodeRef         `json:"new_nodes"`
	UnstakingNodes []string                    `json:"unstaking_nodes"`
}

type WorkflowNodeStatusOutput struct {
	Height  int64 `json:"height"`
	Nodes   int   `json:"nodes"`
	Batches int   `json:"batches"`
	Changed int   `json:"changed"`
	Stale   int   `json:"stale"`
	Failed  int   `json:"failed"`
}

package workflow

import (
	"fmt"

	sdktemporal "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/igniter-labs/igniterx/app/middleman/types"
	"github.com/igniter-labs/igniterx/pkg/db/models/middleman"
	"github.com/igniter-labs/igniterx/pkg/pocket"
	middlemanworkflow "github.com/igniter-labs/igniterx/pkg/temporal/middleman"
)

const unknownError = "unknown error"

// ExecuteTransactionWorkflow drives a pending transaction to success or failure: broadcast,
// wait one block, verify, then materialize nodes and notify the provider.
//
// A transaction that already carries a hash was broadcast by an earlier run and is never
// submitted again.
func (wc *Context) ExecuteTransactionWorkflow(ctx workflow.Context, in middlemanworkflow.ExecuteTransactionInput) (types.WorkflowExecuteTransactionOutput, error) {
	logger := workflow.GetLogger(ctx)
	ctx = withDefaultActivityOptions(ctx)
	ac := wc.ActivityContext

	out := types.WorkflowExecuteTransactionOutput{
		TransactionID:  in.TransactionID,
		NewNodes:       []middleman.NodeRef{},
		UnstakingNodes: []string{},
	}

	var tx middleman.Transaction
	if err := workflow.ExecuteActivity(ctx, ac.GetTransaction, in.TransactionID).Get(ctx, &tx); err != nil {
		return out, err
	}
	out.Type = tx.Type
	out.Status = tx.Status
	out.Hash = tx.Hash

	if tx.Status != middleman.TransactionStatusPending {
		return out, sdktemporal.NewNonRetryableApplicationError(
			fmt.Sprintf("transaction %d is %s, not pending", tx.ID, tx.Status),
			"transaction_not_pending",
			nil,
		)
	}

	if err := workflow.ExecuteActivity(ctx, ac.GetBlockHeight).Get(ctx, &out.TxHeight); err != nil {
		return out, err
	}

	if out.Hash == "" {
		var res pocket.SubmitResult
		if err := workflow.ExecuteActivity(ctx, ac.ExecuteTransaction, in.TransactionID).Get(ctx, &res); err != nil {
			return out, err
		}

		if res.TransactionHash == "" {
			failure := middleman.TransactionStatusFailure
			log := res.Message
			if log == "" {
				log = unknownError
			}
			code := res.Code
			update := types.ActivityUpdateTransactionInput{
				TransactionID: in.TransactionID,
				Type:          tx.Type,
				Update: middleman.TransactionUpdate{
					Status: &failure,
					Code:   &code,
					Log:    &log,
				},
			}
			if err := workflow.ExecuteActivity(ctx, ac.UpdateTransaction, update).Get(ctx, nil); err != nil {
				return out, err
			}

			logger.Warn("Transaction refused", "transactionId", in.TransactionID, "code", code, "log", log)
			out.Status = failure
			out.Code = code
			out.Log = log
			return out, nil
		}

		out.Hash = res.TransactionHash
		execHeight := out.TxHeight
		update := types.ActivityUpdateTransactionInput{
			TransactionID: in.TransactionID,
			Update: middleman.TransactionUpdate{
				Hash:            &out.Hash,
				ExecutionHeight: &execHeight,
			},
		}
		if err := workflow.ExecuteActivity(ctx, ac.UpdateTransaction, update).Get(ctx, nil); err != nil {
			return out, err
		}
	}

	waitCtx := withWaitActivityOptions(ctx)
	if err := workflow.ExecuteActivity(waitCtx, ac.WaitForNextBlock, types.ActivityWaitForNextBlockInput{Height: out.TxHeight}).Get(waitCtx, nil); err != nil {
		return out, err
	}

	var verification pocket.TxVerification
	if err := workflow.ExecuteActivity(ctx, ac.VerifyTransaction, types.ActivityVerifyTransactionInput{Hash: out.Hash}).Get(ctx, &verification); err != nil {
		return out, err
	}

	var verificationHeight int64
	if err := workflow.ExecuteActivity(ctx, ac.GetBlockHeight).Get(ctx, &verificationHeight); err != nil {
		return out, err
	}

	status := middleman.TransactionStatusFailure
	if verification.Success {
		status = middleman.TransactionStatusSuccess
	}
	fee := verification.GasUsed
	final := types.ActivityUpdateTransactionInput{
		TransactionID: in.TransactionID,
		Type:          tx.Type,
		Update: middleman.TransactionUpdate{
			Status:             &status,
			VerificationHeight: &verificationHeight,
			ConsumedFee:        &fee,
		},
	}
	if err := workflow.ExecuteActivity(ctx, ac.UpdateTransaction, final).Get(ctx, nil); err != nil {
		return out, err
	}
	out.Status = status
	out.Code = verification.Code

	switch {
	case tx.Type == middleman.TransactionTypeStake && verification.Success:
		if err := workflow.ExecuteActivity(ctx, ac.CreateNewNodesFromTransaction, in.TransactionID).Get(ctx, &out.NewNodes); err != nil {
			return out, err
		}
		if err := workflow.ExecuteActivity(ctx, ac.NotifyProviderOfStakedAddresses, in.TransactionID).Get(ctx, nil); err != nil {
			return out, err
		}
	case tx.Type == middleman.TransactionTypeStake:
		if err := workflow.ExecuteActivity(ctx, ac.NotifyProviderOfFailedStakes, in.TransactionID).Get(ctx, nil); err != nil {
			return out, err
		}
	case tx.Type == middleman.TransactionTypeUnstake && verification.Success:
		if err := workflow.ExecuteActivity(ctx, ac.UpdateUnstakingNodesFromTransaction, in.TransactionID).Get(ctx, &out.UnstakingNodes); err != nil {
			return out, err
		}
		if err := workflow.ExecuteActivity(ctx, ac.NotifyProviderOfUnstakingAddresses, in.TransactionID).Get(ctx, nil); err != nil {
			return out, err
		}
	}

	logger.Info("Transaction executed",
		"transactionId", in.TransactionID,
		"type", string(tx.Type),
		"status", string(out.Status),
		"hash", out.Hash,
		"code", out.Code,
		"newNodes", len(out.NewNodes),
		"unstakingNodes", len(out.UnstakingNodes),
	)
	return out, nil
}

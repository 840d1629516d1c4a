package activity

import (
	"context"
	"errors"
	"time"

	"go.temporal.io/sdk/activity"
	sdktemporal "go.temporal.io/sdk/temporal"

	"github.com/igniter-labs/igniterx/app/middleman/types"
	middlemanstore "github.com/igniter-labs/igniterx/pkg/db/middleman"
	"github.com/igniter-labs/igniterx/pkg/db/models/middleman"
	"github.com/igniter-labs/igniterx/pkg/pocket"
)

// GetTransaction loads the transaction a workflow drives.
func (c *Context) GetTransaction(ctx context.Context, transactionID int64) (*middleman.Transaction, error) {
	tx, err := c.Store.GetTransaction(ctx, transactionID)
	if err != nil {
		if errors.Is(err, middlemanstore.ErrTransactionNotFound) {
			return nil, sdktemporal.NewNonRetryableApplicationError("transaction not found", "not_found", err)
		}
		return nil, sdktemporal.NewApplicationErrorWithCause("unable to load transaction", "store_error", err)
	}
	return tx, nil
}

func (c *Context) UpdateTransaction(ctx context.Context, in types.ActivityUpdateTransactionInput) error {
	if in.Update.Empty() {
		return nil
	}
	if err := c.Store.UpdateTransaction(ctx, in.TransactionID, in.Update); err != nil {
		if errors.Is(err, middlemanstore.ErrTransactionNotFound) {
			return sdktemporal.NewNonRetryableApplicationError("transaction not found", "not_found", err)
		}
		return sdktemporal.NewApplicationErrorWithCause("unable to update transaction", "store_error", err)
	}
	if in.Update.Status != nil && in.Update.Status.Terminal() {
		c.Metrics.RecordTransaction(string(in.Type), string(*in.Update.Status))
	}
	return nil
}

// GetBlockHeight returns the current chain height.
func (c *Context) GetBlockHeight(ctx context.Context) (int64, error) {
	height, err := c.Chain.Height(ctx)
	if err != nil {
		return 0, sdktemporal.NewApplicationErrorWithCause("unable to query chain height", "chain_error", err)
	}
	return height, nil
}

// ExecuteTransaction broadcasts the signed payload of the transaction. A refusal by the chain
// is a result, not an error: the hash is empty and Code/Message say why.
func (c *Context) ExecuteTransaction(ctx context.Context, transactionID int64) (pocket.SubmitResult, error) {
	logger := activity.GetLogger(ctx)

	tx, err := c.GetTransaction(ctx, transactionID)
	if err != nil {
		return pocket.SubmitResult{}, err
	}
	if tx.SignedPayload == "" {
		return pocket.SubmitResult{}, sdktemporal.NewNonRetryableApplicationError("transaction has no signed payload", "invalid_payload", nil)
	}

	res, err := c.Chain.SubmitTransaction(ctx, tx.SignedPayload)
	if err != nil {
		return pocket.SubmitResult{}, sdktemporal.NewApplicationErrorWithCause("unable to broadcast transaction", "chain_error", err)
	}

	if res.TransactionHash == "" {
		logger.Warn("Transaction refused by the chain",
			"transactionId", transactionID,
			"code", res.Code,
			"message", res.Message,
		)
	} else {
		logger.Info("Transaction broadcast",
			"transactionId", transactionID,
			"type", string(tx.Type),
			"hash", res.TransactionHash,
		)
	}
	return res, nil
}

// WaitForNextBlock returns the first height above in.Height. Every poll heartbeats, so a
// stuck chain query surfaces as a heartbeat timeout and the attempt is retried.
func (c *Context) WaitForNextBlock(ctx context.Context, in types.ActivityWaitForNextBlockInput) (int64, error) {
	logger := activity.GetLogger(ctx)
	start := c.now()
	interval := c.pollInterval()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		activity.RecordHeartbeat(ctx, in.Height)

		height, err := c.Chain.Height(ctx)
		switch {
		case err != nil:
			logger.Warn("Height query failed while waiting for block", "after", in.Height, "error", err)
		case height > in.Height:
			c.Metrics.ObserveWait(c.now().Sub(start))
			return height, nil
		}

		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-ticker.C:
		}
	}
}

// VerifyTransaction looks up the result of hash. A transaction that is not indexed yet is a
// retryable error.
func (c *Context) VerifyTransaction(ctx context.Context, in types.ActivityVerifyTransactionInput) (pocket.TxVerification, error) {
	if in.Hash == "" {
		return pocket.TxVerification{}, sdktemporal.NewNonRetryableApplicationError("transaction hash is required", "invalid_payload", nil)
	}
	res, err := c.Chain.VerifyTransaction(ctx, in.Hash)
	if err != nil {
		if errors.Is(err, pocket.ErrTxNotFound) {
			return pocket.TxVerification{}, sdktemporal.NewApplicationErrorWithCause("transaction not indexed yet", "tx_not_found", err)
		}
		return pocket.TxVerification{}, sdktemporal.NewApplicationErrorWithCause("unable to verify transaction", "chain_error", err)
	}
	return res, nil
}

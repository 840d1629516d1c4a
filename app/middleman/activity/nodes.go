package activity

import (
	"context"

	"go.temporal.io/sdk/activity"
	sdktemporal "go.temporal.io/sdk/temporal"

	"github.com/igniter-labs/igniterx/pkg/db/models/middleman"
)

// transactionMessages loads a transaction and decodes its unsigned payload.
func (c *Context) transactionMessages(ctx context.Context, transactionID int64) (*middleman.Transaction, []middleman.Message, error) {
	tx, err := c.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, nil, err
	}
	msgs, err := tx.Messages()
	if err != nil {
		return nil, nil, sdktemporal.NewNonRetryableApplicationError("unable to decode transaction payload", "invalid_payload", err)
	}
	return tx, msgs, nil
}

// operatorsOf returns the operator addresses of the messages of kind, in payload order.
func operatorsOf(msgs []middleman.Message, kind middleman.MessageKind) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if m.Kind != kind {
			continue
		}
		switch kind {
		case middleman.MessageKindStake:
			out = append(out, m.Stake.OperatorAddress)
		case middleman.MessageKindUnstake:
			out = append(out, m.Unstake.OperatorAddress)
		case middleman.MessageKindFunds:
		}
	}
	return out
}

// CreateNewNodesFromTransaction records a staked node for every stake message of the
// transaction and links them to it.
func (c *Context) CreateNewNodesFromTransaction(ctx context.Context, transactionID int64) ([]middleman.NodeRef, error) {
	logger := activity.GetLogger(ctx)

	tx, msgs, err := c.transactionMessages(ctx, transactionID)
	if err != nil {
		return nil, err
	}

	var height int64
	if tx.VerificationHeight != nil {
		height = *tx.VerificationHeight
	}

	nodes := make([]middleman.Node, 0, len(msgs))
	for _, m := range msgs {
		if m.Kind != middleman.MessageKindStake {
			continue
		}
		amount, err := m.Stake.Amount()
		if err != nil {
			return nil, sdktemporal.NewNonRetryableApplicationError("invalid stake amount", "invalid_payload", err)
		}
		nodes = append(nodes, middleman.Node{
			Address:           m.Stake.OperatorAddress,
			OwnerAddress:      m.Stake.OwnerAddress,
			StakeAmount:       amount,
			Status:            middleman.NodeStatusStaked,
			ProviderID:        tx.ProviderID,
			CreatedBy:         tx.CreatedBy,
			LastUpdatedHeight: height,
		})
	}
	if len(nodes) == 0 {
		logger.Warn("Stake transaction has no stake messages", "transactionId", transactionID)
		return []middleman.NodeRef{}, nil
	}

	refs, err := c.Store.InsertNodes(ctx, nodes, transactionID)
	if err != nil {
		return nil, sdktemporal.NewApplicationErrorWithCause("unable to insert nodes", "store_error", err)
	}
	logger.Info("Nodes created from transaction", "transactionId", transactionID, "nodes", len(refs))
	return refs, nil
}

// UpdateUnstakingNodesFromTransaction moves the operators of every unstake message to
// unstaking and returns the addresses that were updated.
func (c *Context) UpdateUnstakingNodesFromTransaction(ctx context.Context, transactionID int64) ([]string, error) {
	logger := activity.GetLogger(ctx)

	_, msgs, err := c.transactionMessages(ctx, transactionID)
	if err != nil {
		return nil, err
	}

	addresses := operatorsOf(msgs, middleman.MessageKindUnstake)
	updated, err := c.Store.UpdateNodesStatusAndLink(ctx, addresses, middleman.NodeStatusUnstaking, transactionID)
	if err != nil {
		return nil, sdktemporal.NewApplicationErrorWithCause("unable to update unstaking nodes", "store_error", err)
	}
	if len(updated) < len(addresses) {
		logger.Warn("Some unstaked operators are not known nodes",
			"transactionId", transactionID,
			"requested", len(addresses),
			"updated", len(updated),
		)
	}
	return updated, nil
}

package activity

import (
	"context"

	"go.temporal.io/sdk/activity"
	sdktemporal "go.temporal.io/sdk/temporal"

	"github.com/igniter-labs/igniterx/app/middleman/types"
	"github.com/igniter-labs/igniterx/pkg/db/models/middleman"
	"github.com/igniter-labs/igniterx/pkg/notify"
)

// NotifyProviderOfStakedAddresses tells the provider its delivered keys are now staked.
func (c *Context) NotifyProviderOfStakedAddresses(ctx context.Context, transactionID int64) (types.ActivityNotifyOutput, error) {
	return c.notifyProvider(ctx, transactionID, notify.KindNodesStaked, middleman.MessageKindStake)
}

// NotifyProviderOfFailedStakes lets the provider release the keys of a failed stake.
func (c *Context) NotifyProviderOfFailedStakes(ctx context.Context, transactionID int64) (types.ActivityNotifyOutput, error) {
	return c.notifyProvider(ctx, transactionID, notify.KindStakesFailed, middleman.MessageKindStake)
}

func (c *Context) NotifyProviderOfUnstakingAddresses(ctx context.Context, transactionID int64) (types.ActivityNotifyOutput, error) {
	return c.notifyProvider(ctx, transactionID, notify.KindNodesUnstaking, middleman.MessageKindUnstake)
}

func (c *Context) notifyProvider(ctx context.Context, transactionID int64, kind notify.Kind, msgKind middleman.MessageKind) (types.ActivityNotifyOutput, error) {
	logger := activity.GetLogger(ctx)

	tx, msgs, err := c.transactionMessages(ctx, transactionID)
	if err != nil {
		return types.ActivityNotifyOutput{}, err
	}

	addresses := operatorsOf(msgs, msgKind)
	if tx.ProviderID == "" || len(addresses) == 0 {
		logger.Info("Nothing to notify",
			"transactionId", transactionID,
			"kind", string(kind),
			"providerId", tx.ProviderID,
			"addresses", len(addresses),
		)
		return types.ActivityNotifyOutput{Skipped: true}, nil
	}

	party := c.Identity
	if party == "" {
		party = tx.CreatedBy
	}

	entryID, err := c.Publisher.Publish(ctx, tx.ProviderID, notify.Notification{
		Kind:            kind,
		Addresses:       addresses,
		RequestingParty: party,
		TransactionID:   transactionID,
		CreatedAt:       c.now().UTC(),
	})
	if err != nil {
		return types.ActivityNotifyOutput{}, sdktemporal.NewApplicationErrorWithCause("unable to notify provider", "notify_error", err)
	}

	c.Metrics.RecordNotification(string(kind))
	logger.Info("Provider notified",
		"transactionId", transactionID,
		"providerId", tx.ProviderID,
		"kind", string(kind),
		"addresses", len(addresses),
		"entryId", entryID,
	)
	return types.ActivityNotifyOutput{EntryID: entryID, Addresses: len(addresses)}, nil
}

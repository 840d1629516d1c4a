package provider

import (
	"context"

	"go.uber.org/zap"

	"github.com/igniter-labs/igniterx/pkg/allocation"
	"github.com/igniter-labs/igniterx/pkg/notify"
)

// NewDispatcher applies middleman notifications to delivered keys: staked keys move on,
// keys of failed stakes go back to the pool.
func NewDispatcher(engine *allocation.Engine, logger *zap.Logger) notify.Dispatcher {
	apply := func(name string, fn func(ctx context.Context, addresses []string, requestingParty string) ([]string, error)) notify.HandlerFunc {
		return func(ctx context.Context, n notify.Notification) error {
			updated, err := fn(ctx, n.Addresses, n.RequestingParty)
			if err != nil {
				return err
			}
			logger.Info("Applied provider notification",
				zap.String("kind", name),
				zap.String("id", n.ID),
				zap.Int64("transaction_id", n.TransactionID),
				zap.Int("addresses", len(n.Addresses)),
				zap.Int("updated", len(updated)),
			)
			return nil
		}
	}
	return notify.Dispatcher{
		NodesStaked:    apply(string(notify.KindNodesStaked), engine.MarkStaked),
		StakesFailed:   apply(string(notify.KindStakesFailed), engine.Release),
		NodesUnstaking: apply(string(notify.KindNodesUnstaking), engine.MarkUnstaking),
	}
}

package activity

import (
	"context"
	"errors"
	"slices"

	"go.temporal.io/sdk/activity"
	sdktemporal "go.temporal.io/sdk/temporal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/igniter-labs/igniterx/app/provider/types"
	"github.com/igniter-labs/igniterx/pkg/db/models/provider"
	providerstore "github.com/igniter-labs/igniterx/pkg/db/provider"
	"github.com/igniter-labs/igniterx/pkg/pocket"
	"github.com/igniter-labs/igniterx/pkg/supplier"
)

// Remediation outcome messages.
const (
	MsgNoKey              = "Key not found; nothing to remediate."
	MsgNoAddressGroup     = "Key address group not found; nothing to remediate."
	MsgNoSupplier         = "Supplier not found; nothing to remediate."
	MsgNoHistory          = "No remediation history found."
	MsgNoActionable       = "No actionable remediation for this supplier."
	MsgAlreadyConfigured  = "Supplier already configured; remediation cleared."
	MsgRemediationSuccess = "Remediation completed successfully."
	MsgRemediationFailed  = "Remediation transaction failed."
	MsgUpdateFailed       = "Failed while updating the supplier status."
)

// Remediation outcomes reported to metrics.
const (
	outcomeNoop       = "noop"
	outcomeCleared    = "cleared"
	outcomeSucceeded  = "succeeded"
	outcomeTxFailed   = "tx_failed"
	outcomeValidation = "validation_error"
)

// LoadKeysForRemediation returns keys carrying an owner_initial_stake entry that a
// corrective stake may fix.
func (c *Context) LoadKeysForRemediation(ctx context.Context) ([]provider.KeyRef, error) {
	refs, err := c.Store.LoadKeysWithRemediation(ctx, provider.ReasonOwnerInitialStake, types.RemediableStates)
	if err != nil {
		return nil, sdktemporal.NewApplicationErrorWithCause("unable to load keys for remediation", "store_error", err)
	}
	return refs, nil
}

// RemediateSupplier submits a corrective stake that declares the services the key's
// address group computes for a supplier its owner staked without any. Missing key, group
// or supplier are no-ops.
func (c *Context) RemediateSupplier(ctx context.Context, in types.ActivityRemediateSupplierInput) (types.ActivityRemediateSupplierOutput, error) {
	logger := activity.GetLogger(ctx)

	var (
		key     *provider.KeyWithGroup
		balance int64
		sup     *pocket.Supplier
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		key, err = c.Store.LoadKey(gctx, in.Address)
		return err
	})
	g.Go(func() (err error) {
		balance, err = c.Chain.Balance(gctx, in.Address)
		return err
	})
	g.Go(func() (err error) {
		sup, err = c.Chain.Supplier(gctx, in.Address)
		return err
	})
	if err := g.Wait(); err != nil {
		if errors.Is(err, providerstore.ErrKeyNotFound) {
			c.Metrics.RecordRemediation(outcomeNoop)
			return noop(MsgNoKey), nil
		}
		return types.ActivityRemediateSupplierOutput{}, sdktemporal.NewApplicationErrorWithCause("unable to load remediation inputs", "load_error", err)
	}
	switch {
	case key.AddressGroup == nil:
		c.Metrics.RecordRemediation(outcomeNoop)
		return noop(MsgNoAddressGroup), nil
	case sup == nil:
		c.Metrics.RecordRemediation(outcomeNoop)
		return noop(MsgNoSupplier), nil
	case len(key.RemediationHistory) == 0:
		c.Metrics.RecordRemediation(outcomeNoop)
		return noop(MsgNoHistory), nil
	}

	entry, ok := key.RemediationHistory.Get(provider.ReasonOwnerInitialStake)
	if !ok || !slices.Contains(in.Reasons, provider.ReasonOwnerInitialStake) {
		c.Metrics.RecordRemediation(outcomeNoop)
		return noop(MsgNoActionable), nil
	}

	// Configured out of band since the finding was recorded.
	if !sup.Pristine() {
		state := provider.KeyStateStaked
		history := key.RemediationHistory.Without(provider.ReasonOwnerInitialStake)
		applied, err := c.Store.UpdateKey(ctx, in.Address, provider.KeyUpdate{
			State:              &state,
			RemediationHistory: &history,
			BalanceUpokt:       balance,
			LastUpdatedHeight:  in.Height,
		}, in.Height)
		if err != nil {
			return types.ActivityRemediateSupplierOutput{}, sdktemporal.NewApplicationErrorWithCause(MsgUpdateFailed, "store_error", err)
		}
		if applied {
			c.Metrics.RecordTransition(string(key.State), string(state))
		} else {
			c.Metrics.RecordStaleUpdate()
		}
		c.Metrics.RecordRemediation(outcomeCleared)
		return types.ActivityRemediateSupplierOutput{Success: true, Message: MsgAlreadyConfigured}, nil
	}

	settings, err := c.Store.LoadSettings(ctx)
	if err != nil {
		return types.ActivityRemediateSupplierOutput{}, sdktemporal.NewApplicationErrorWithCause("unable to load settings", "store_error", err)
	}

	shares := supplier.SharesForKey(&key.Key)
	shares.OwnerAddress = sup.OwnerAddress
	services, err := supplier.BuildServiceConfigs(key.AddressGroup, shares)
	if err == nil && len(services) == 0 {
		err = &supplier.ValidationError{Field: "services", Reason: "refusing to stake with empty services config"}
	}
	if err != nil {
		c.Metrics.RecordRemediation(outcomeValidation)
		return types.ActivityRemediateSupplierOutput{}, sdktemporal.NewNonRetryableApplicationError("invalid remediation service config", "validation_error", err)
	}

	params := pocket.StakeSupplierParams{
		ChainID:         settings.ChainID,
		PrivateKeyHex:   key.PrivateKey,
		OwnerAddress:    sup.OwnerAddress,
		OperatorAddress: key.Address,
		Services:        services,
	}
	logger.Info("Submitting remediation stake", "params", params.Redacted())

	tx, err := c.Chain.StakeSupplier(ctx, params)
	if err != nil {
		return types.ActivityRemediateSupplierOutput{}, sdktemporal.NewApplicationErrorWithCause("unable to submit remediation stake", "chain_error", err)
	}

	code := tx.Code
	entry.Timestamp = c.now()
	entry.TxResultCode = &code
	entry.TxResultDetails = tx.Message

	state := provider.KeyStateStaked
	history := key.RemediationHistory.With(entry)
	out := types.ActivityRemediateSupplierOutput{Success: tx.Success, TxResult: &tx}

	if !tx.Success {
		state = provider.KeyStateRemediationFailed
		out.Message = MsgRemediationFailed
		c.Metrics.RecordRemediation(outcomeTxFailed)
	} else {
		out.Message = MsgRemediationSuccess
		after, err := c.Chain.Supplier(ctx, in.Address)
		switch {
		case err != nil:
			c.Logger.Warn("Supplier re-query after remediation failed; entry kept",
				zap.String("address", in.Address),
				zap.Error(err),
			)
		case after != nil && !after.Pristine():
			history = key.RemediationHistory.Without(provider.ReasonOwnerInitialStake)
		}
		c.Metrics.RecordRemediation(outcomeSucceeded)
	}

	applied, err := c.Store.UpdateKey(ctx, in.Address, provider.KeyUpdate{
		State:              &state,
		RemediationHistory: &history,
		BalanceUpokt:       balance,
		LastUpdatedHeight:  in.Height,
	}, in.Height)
	if err != nil {
		return types.ActivityRemediateSupplierOutput{}, sdktemporal.NewApplicationErrorWithCause(MsgUpdateFailed, "store_error", err)
	}
	if !applied {
		c.Metrics.RecordStaleUpdate()
	}
	c.Metrics.RecordTransition(string(key.State), string(state))

	c.Logger.Info("Remediation finished",
		zap.String("address", in.Address),
		zap.Bool("success", tx.Success),
		zap.Uint32("code", tx.Code),
		zap.String("tx_hash", tx.TransactionHash),
		zap.String("state", string(state)),
		zap.Bool("applied", applied),
	)
	return out, nil
}

func noop(msg string) types.ActivityRemediateSupplierOutput {
	return types.ActivityRemediateSupplierOutput{Success: true, Message: msg}
}

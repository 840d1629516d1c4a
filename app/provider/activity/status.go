package activity

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/alitto/pond/v2"
	"go.temporal.io/sdk/activity"
	sdktemporal "go.temporal.io/sdk/temporal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/igniter-labs/igniterx/app/provider/types"
	"github.com/igniter-labs/igniterx/pkg/db/models/provider"
	providerstore "github.com/igniter-labs/igniterx/pkg/db/provider"
	"github.com/igniter-labs/igniterx/pkg/pocket"
	"github.com/igniter-labs/igniterx/pkg/reconcile"
)

// GetLatestBlock returns the chain height a pass reconciles against.
func (c *Context) GetLatestBlock(ctx context.Context) (int64, error) {
	height, err := c.Chain.Height(ctx)
	if err != nil {
		return 0, sdktemporal.NewApplicationErrorWithCause("unable to query chain height", "chain_error", err)
	}
	return height, nil
}

// GetKeysMinAndMax returns the id range the status workflow pages through.
func (c *Context) GetKeysMinAndMax(ctx context.Context) (provider.KeysMinMax, error) {
	mm, err := c.Store.GetKeysMinAndMax(ctx)
	if err != nil {
		return provider.KeysMinMax{}, sdktemporal.NewApplicationErrorWithCause("unable to read key range", "store_error", err)
	}
	return mm, nil
}

func (c *Context) LoadKeysInRange(ctx context.Context, in types.ActivityKeysRangeInput) ([]provider.KeyRef, error) {
	refs, err := c.Store.LoadKeysInRange(ctx, in.MinID, in.MaxID, in.States)
	if err != nil {
		return nil, sdktemporal.NewApplicationErrorWithCause("unable to load keys in range", "store_error", err)
	}
	return refs, nil
}

// UpsertSupplierStatus reconciles one key against its on-chain supplier at in.Height.
func (c *Context) UpsertSupplierStatus(ctx context.Context, in types.ActivitySupplierStatusInput) (types.ActivitySupplierStatusOutput, error) {
	return c.upsertSupplierStatus(ctx, in)
}

// UpsertSupplierStatusBatch reconciles a page of keys on the status pool. A failing key
// is counted and logged; it does not fail the batch.
func (c *Context) UpsertSupplierStatusBatch(ctx context.Context, in types.ActivitySupplierStatusBatchInput) (types.ActivitySupplierStatusBatchOutput, error) {
	logger := activity.GetLogger(ctx)
	start := time.Now()

	if len(in.Addresses) == 0 {
		return types.ActivitySupplierStatusBatchOutput{}, nil
	}

	var processed, changed, stale, failed atomic.Int32

	pool := c.statusBatchPool(len(in.Addresses))
	group := pool.NewGroupContext(ctx)
	groupCtx := group.Context()

	for _, address := range in.Addresses {
		addr := address
		group.Submit(func() {
			if err := groupCtx.Err(); err != nil {
				return
			}
			out, err := c.upsertSupplierStatus(groupCtx, types.ActivitySupplierStatusInput{Address: addr, Height: in.Height})
			processed.Add(1)
			if err != nil {
				logger.Warn("Supplier status update failed", "address", addr, "error", err)
				failed.Add(1)
				return
			}
			switch {
			case !out.Applied:
				stale.Add(1)
			case out.PreviousState != out.State:
				changed.Add(1)
			}
		})
	}

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, pond.ErrGroupStopped) {
		logger.Warn("Supplier status batch group encountered error", "error", err)
	}
	if err := ctx.Err(); err != nil {
		return types.ActivitySupplierStatusBatchOutput{}, err
	}

	out := types.ActivitySupplierStatusBatchOutput{
		Processed:  int(processed.Load()),
		Changed:    int(changed.Load()),
		Stale:      int(stale.Load()),
		Failed:     int(failed.Load()),
		DurationMs: float64(time.Since(start).Microseconds()) / 1000.0,
	}
	logger.Info("Supplier status batch completed",
		"height", in.Height,
		"keys", len(in.Addresses),
		"changed", out.Changed,
		"stale", out.Stale,
		"failed", out.Failed,
		"pool_size", c.StatusPoolSize(),
		"duration_ms", out.DurationMs,
	)
	return out, nil
}

func (c *Context) upsertSupplierStatus(ctx context.Context, in types.ActivitySupplierStatusInput) (types.ActivitySupplierStatusOutput, error) {
	out := types.ActivitySupplierStatusOutput{Address: in.Address}

	var (
		key      *provider.KeyWithGroup
		settings *provider.ApplicationSettings
		balance  int64
		sup      *pocket.Supplier
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		key, err = c.Store.LoadKey(gctx, in.Address)
		return err
	})
	g.Go(func() (err error) {
		settings, err = c.Store.LoadSettings(gctx)
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
			return out, sdktemporal.NewNonRetryableApplicationError("key not found", "not_found", err)
		}
		return out, sdktemporal.NewApplicationErrorWithCause("unable to load supplier status inputs", "load_error", err)
	}

	res, err := c.Reconciler.Evaluate(reconcile.Input{
		Key:      key.Key,
		Supplier: sup,
		Height:   in.Height,
		Balance:  balance,
		Settings: *settings,
		Now:      c.now(),
	})
	if err != nil {
		return out, sdktemporal.NewNonRetryableApplicationError("unable to evaluate supplier", "invalid_supplier", err)
	}

	applied, err := c.Store.UpdateKey(ctx, in.Address, res.Update, in.Height)
	if err != nil {
		return out, sdktemporal.NewApplicationErrorWithCause("unable to update key", "store_error", err)
	}

	out.PreviousState = res.PreviousState
	out.State = res.State
	out.Applied = applied
	out.Findings = res.Findings

	if !applied {
		c.Metrics.RecordStaleUpdate()
		c.Logger.Debug("Skipped stale supplier status update",
			zap.String("address", in.Address),
			zap.Int64("height", in.Height),
			zap.Int64("last_updated_height", key.LastUpdatedHeight),
		)
		return out, nil
	}
	c.Metrics.RecordTransition(string(res.PreviousState), string(res.State))
	for _, reason := range res.Findings {
		c.Metrics.RecordFinding(string(reason))
	}
	if res.Changed() {
		c.Logger.Info("Supplier state changed",
			zap.String("address", in.Address),
			zap.String("from", string(res.PreviousState)),
			zap.String("to", string(res.State)),
			zap.Int64("height", in.Height),
		)
	}
	return out, nil
}

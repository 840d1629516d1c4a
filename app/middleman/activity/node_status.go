package activity

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/alitto/pond/v2"
	"go.temporal.io/sdk/activity"
	sdktemporal "go.temporal.io/sdk/temporal"

	"github.com/igniter-labs/igniterx/app/middleman/types"
	"github.com/igniter-labs/igniterx/pkg/db/models/middleman"
	"github.com/igniter-labs/igniterx/pkg/pocket"
)

func (c *Context) GetNodesMinAndMax(ctx context.Context) (middleman.NodesMinMax, error) {
	mm, err := c.Store.GetNodesMinAndMax(ctx)
	if err != nil {
		return middleman.NodesMinMax{}, sdktemporal.NewApplicationErrorWithCause("unable to read node range", "store_error", err)
	}
	return mm, nil
}

// LoadNodesInRange returns the nodes of the page that are not unstaked yet.
func (c *Context) LoadNodesInRange(ctx context.Context, in types.ActivityNodesRangeInput) ([]middleman.NodeRef, error) {
	refs, err := c.Store.LoadNodesInRange(ctx, in.MinID, in.MaxID)
	if err != nil {
		return nil, sdktemporal.NewApplicationErrorWithCause("unable to load nodes in range", "store_error", err)
	}
	return refs, nil
}

// NodeStatusFor maps the on-chain supplier of a node to the node status.
func NodeStatusFor(sup *pocket.Supplier) middleman.NodeStatus {
	switch {
	case sup == nil:
		return middleman.NodeStatusUnstaked
	case sup.UnstakeSessionEndHeight > 0:
		return middleman.NodeStatusUnstaking
	}
	return middleman.NodeStatusStaked
}

// UpdateNodeStatusBatch refreshes a page of nodes from the chain at in.Height. Writes
// older than the stored height are dropped by the store and counted as stale.
func (c *Context) UpdateNodeStatusBatch(ctx context.Context, in types.ActivityNodeStatusBatchInput) (types.ActivityNodeStatusBatchOutput, error) {
	logger := activity.GetLogger(ctx)
	start := time.Now()

	if len(in.Addresses) == 0 {
		return types.ActivityNodeStatusBatchOutput{}, nil
	}

	var processed, changed, stale, failed atomic.Int32

	pool := pond.NewPool(NodeStatusParallelism)
	defer pool.StopAndWait()
	group := pool.NewGroupContext(ctx)
	groupCtx := group.Context()

	for _, address := range in.Addresses {
		addr := address
		group.Submit(func() {
			if groupCtx.Err() != nil {
				return
			}
			processed.Add(1)
			didChange, applied, err := c.updateNodeStatus(groupCtx, addr, in.Height)
			switch {
			case err != nil:
				logger.Warn("Node status update failed", "address", addr, "error", err)
				failed.Add(1)
			case !applied:
				stale.Add(1)
			case didChange:
				changed.Add(1)
			}
		})
	}

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, pond.ErrGroupStopped) {
		return types.ActivityNodeStatusBatchOutput{}, sdktemporal.NewApplicationErrorWithCause("node status batch failed", "batch_error", err)
	}

	out := types.ActivityNodeStatusBatchOutput{
		Processed:  int(processed.Load()),
		Changed:    int(changed.Load()),
		Stale:      int(stale.Load()),
		Failed:     int(failed.Load()),
		DurationMs: time.Since(start).Milliseconds(),
	}
	logger.Info("Node status batch completed",
		"height", in.Height,
		"processed", out.Processed,
		"changed", out.Changed,
		"stale", out.Stale,
		"failed", out.Failed,
		"durationMs", out.DurationMs,
	)
	return out, nil
}

func (c *Context) updateNodeStatus(ctx context.Context, address string, height int64) (changed, applied bool, err error) {
	node, err := c.Store.LoadNode(ctx, address)
	if err != nil {
		return false, false, err
	}
	sup, err := c.Chain.Supplier(ctx, address)
	if err != nil {
		return false, false, err
	}
	status := NodeStatusFor(sup)
	applied, err = c.Store.UpdateNodeStatus(ctx, address, status, height)
	if err != nil {
		return false, false, err
	}
	return applied && status != node.Status, applied, nil
}

package workflow

import (
	"time"

	sdktemporal "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/igniter-labs/igniterx/app/middleman/types"
	"github.com/igniter-labs/igniterx/pkg/db/models/middleman"
	middlemanworkflow "github.com/igniter-labs/igniterx/pkg/temporal/middleman"
)

// NodeStatusWorkflow refreshes every node that is not unstaked from the chain at a single
// height, paging the node id range.
func (wc *Context) NodeStatusWorkflow(ctx workflow.Context, in middlemanworkflow.NodeStatusInput) (types.WorkflowNodeStatusOutput, error) {
	logger := workflow.GetLogger(ctx)
	ctx = withDefaultActivityOptions(ctx)
	ac := wc.ActivityContext

	batchCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		RetryPolicy: &sdktemporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    3,
		},
	})

	var out types.WorkflowNodeStatusOutput

	if err := workflow.ExecuteActivity(ctx, ac.GetBlockHeight).Get(ctx, &out.Height); err != nil {
		return out, err
	}

	var mm middleman.NodesMinMax
	if err := workflow.ExecuteActivity(ctx, ac.GetNodesMinAndMax).Get(ctx, &mm); err != nil {
		return out, err
	}
	if mm.Total == 0 {
		logger.Info("No nodes to refresh", "height", out.Height)
		return out, nil
	}

	batchSize := wc.nodeStatusBatchSize(in.BatchSize)
	for start := mm.MinID; start <= mm.MaxID; start += batchSize {
		end := start + batchSize - 1
		if end > mm.MaxID {
			end = mm.MaxID
		}

		var refs []middleman.NodeRef
		if err := workflow.ExecuteActivity(ctx, ac.LoadNodesInRange, types.ActivityNodesRangeInput{MinID: start, MaxID: end}).Get(ctx, &refs); err != nil {
			return out, err
		}
		if len(refs) == 0 {
			continue
		}

		addresses := make([]string, 0, len(refs))
		for _, ref := range refs {
			addresses = append(addresses, ref.Address)
		}

		var batch types.ActivityNodeStatusBatchOutput
		batchIn := types.ActivityNodeStatusBatchInput{Addresses: addresses, Height: out.Height}
		if err := workflow.ExecuteActivity(batchCtx, ac.UpdateNodeStatusBatch, batchIn).Get(batchCtx, &batch); err != nil {
			return out, err
		}

		out.Batches++
		out.Nodes += len(addresses)
		out.Changed += batch.Changed
		out.Stale += batch.Stale
		out.Failed += batch.Failed
	}

	logger.Info("Node status pass completed",
		"height", out.Height,
		"nodes", out.Nodes,
		"batches", out.Batches,
		"changed", out.Changed,
		"stale", out.Stale,
		"failed", out.Failed,
	)
	return out, nil
}

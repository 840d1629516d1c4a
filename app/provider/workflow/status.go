package workflow

import (
	"time"

	sdktemporal "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/igniter-labs/igniterx/app/provider/types"
	"github.com/igniter-labs/igniterx/pkg/db/models/provider"
	providerworkflow "github.com/igniter-labs/igniterx/pkg/temporal/provider"
)

// SupplierStatusWorkflow reconciles every key in a reconcilable state against the chain at
// a single height, paging the key id range. After StatusPagesPerRun pages it continues as
// new with the next id, the height and the running totals.
func (wc *Context) SupplierStatusWorkflow(ctx workflow.Context, in providerworkflow.SupplierStatusInput) (types.WorkflowSupplierStatusOutput, error) {
	logger := workflow.GetLogger(ctx)
	ctx = withDefaultActivityOptions(ctx)

	batchCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		RetryPolicy: &sdktemporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    3,
		},
	})

	out := types.WorkflowSupplierStatusOutput{
		Height:  in.Height,
		Keys:    in.Totals.Keys,
		Batches: in.Totals.Batches,
		Changed: in.Totals.Changed,
		Stale:   in.Totals.Stale,
		Failed:  in.Totals.Failed,
	}

	startID, maxID := in.StartID, in.MaxID
	if !in.Resumed() {
		if err := workflow.ExecuteActivity(ctx, wc.ActivityContext.GetLatestBlock).Get(ctx, &out.Height); err != nil {
			return out, err
		}

		var mm provider.KeysMinMax
		if err := workflow.ExecuteActivity(ctx, wc.ActivityContext.GetKeysMinAndMax).Get(ctx, &mm); err != nil {
			return out, err
		}
		if mm.Total == 0 {
			logger.Info("No keys to reconcile", "height", out.Height)
			return out, nil
		}
		startID, maxID = mm.MinID, mm.MaxID
	}

	batchSize := wc.statusBatchSize(in.BatchSize)
	pagesPerRun := wc.statusPagesPerRun()
	pages := 0
	for start := startID; start <= maxID; start += batchSize {
		if pages == pagesPerRun {
			logger.Info("Continuing supplier status pass as new",
				"height", out.Height,
				"next_id", start,
				"max_id", maxID,
				"keys", out.Keys,
			)
			return out, workflow.NewContinueAsNewError(ctx, providerworkflow.SupplierStatusWorkflowName, providerworkflow.SupplierStatusInput{
				BatchSize: batchSize,
				StartID:   start,
				MaxID:     maxID,
				Height:    out.Height,
				Totals: providerworkflow.SupplierStatusTotals{
					Keys:    out.Keys,
					Batches: out.Batches,
					Changed: out.Changed,
					Stale:   out.Stale,
					Failed:  out.Failed,
				},
			})
		}
		pages++

		end := start + batchSize - 1
		if end > maxID {
			end = maxID
		}

		var refs []provider.KeyRef
		rangeIn := types.ActivityKeysRangeInput{MinID: start, MaxID: end, States: types.ReconcilableStates}
		if err := workflow.ExecuteActivity(ctx, wc.ActivityContext.LoadKeysInRange, rangeIn).Get(ctx, &refs); err != nil {
			return out, err
		}
		if len(refs) == 0 {
			continue
		}

		addresses := make([]string, 0, len(refs))
		for _, ref := range refs {
			addresses = append(addresses, ref.Address)
		}

		var batch types.ActivitySupplierStatusBatchOutput
		batchIn := types.ActivitySupplierStatusBatchInput{Addresses: addresses, Height: out.Height}
		if err := workflow.ExecuteActivity(batchCtx, wc.ActivityContext.UpsertSupplierStatusBatch, batchIn).Get(batchCtx, &batch); err != nil {
			return out, err
		}

		out.Batches++
		out.Keys += len(addresses)
		out.Changed += batch.Changed
		out.Stale += batch.Stale
		out.Failed += batch.Failed
	}

	logger.Info("Supplier status pass completed",
		"height", out.Height,
		"keys", out.Keys,
		"batches", out.Batches,
		"changed", out.Changed,
		"stale", out.Stale,
		"failed", out.Failed,
	)
	return out, nil
}

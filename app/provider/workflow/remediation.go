package workflow

import (
	"time"

	sdktemporal "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/igniter-labs/igniterx/app/provider/types"
	"github.com/igniter-labs/igniterx/pkg/db/models/provider"
	providerworkflow "github.com/igniter-labs/igniterx/pkg/temporal/provider"
	"github.com/igniter-labs/igniterx/pkg/utils"
)

// SupplierRemediationWorkflow runs one RemediateSupplier activity per key with an
// owner_initial_stake entry. A key that fails is counted; the pass carries on.
func (wc *Context) SupplierRemediationWorkflow(ctx workflow.Context, in providerworkflow.SupplierRemediationInput) (types.WorkflowSupplierRemediationOutput, error) {
	logger := workflow.GetLogger(ctx)
	ctx = withDefaultActivityOptions(ctx)

	remediateCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &sdktemporal.RetryPolicy{
			InitialInterval:        2 * time.Second,
			BackoffCoefficient:     2.0,
			MaximumInterval:        30 * time.Second,
			MaximumAttempts:        3,
			NonRetryableErrorTypes: []string{"validation_error", "not_found"},
		},
	})

	var out types.WorkflowSupplierRemediationOutput

	if err := workflow.ExecuteActivity(ctx, wc.ActivityContext.GetLatestBlock).Get(ctx, &out.Height); err != nil {
		return out, err
	}

	var refs []provider.KeyRef
	if err := workflow.ExecuteActivity(ctx, wc.ActivityContext.LoadKeysForRemediation).Get(ctx, &refs); err != nil {
		return out, err
	}
	if in.Limit > 0 && len(refs) > in.Limit {
		refs = refs[:in.Limit]
	}

	reasons := []provider.RemediationReason{provider.ReasonOwnerInitialStake}
	for _, chunk := range utils.Chunk(refs, wc.remediationParallelism()) {
		futures := make([]workflow.Future, 0, len(chunk))
		for _, ref := range chunk {
			futures = append(futures, workflow.ExecuteActivity(remediateCtx, wc.ActivityContext.RemediateSupplier, types.ActivityRemediateSupplierInput{
				Address: ref.Address,
				Height:  out.Height,
				Reasons: reasons,
			}))
		}

		for i, f := range futures {
			out.Attempted++
			var res types.ActivityRemediateSupplierOutput
			if err := f.Get(remediateCtx, &res); err != nil {
				logger.Warn("Remediation failed", "address", chunk[i].Address, "error", err)
				out.Failed++
				continue
			}
			if res.Success {
				out.Succeeded++
			} else {
				out.Failed++
			}
		}
	}

	logger.Info("Supplier remediation pass completed",
		"height", out.Height,
		"attempted", out.Attempted,
		"succeeded", out.Succeeded,
		"failed", out.Failed,
	)
	return out, nil
}

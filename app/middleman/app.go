package middleman

import (
	"context"
	"time"

	"go.temporal.io/sdk/worker"
	temporalworkflow "go.temporal.io/sdk/workflow"
	"go.uber.org/zap"

	"github.com/igniter-labs/igniterx/app/middleman/activity"
	"github.com/igniter-labs/igniterx/app/middleman/types"
	"github.com/igniter-labs/igniterx/app/middleman/workflow"
	"github.com/igniter-labs/igniterx/pkg/db/postgres"
	middlemandb "github.com/igniter-labs/igniterx/pkg/db/postgres/middleman"
	"github.com/igniter-labs/igniterx/pkg/logging"
	"github.com/igniter-labs/igniterx/pkg/metrics"
	"github.com/igniter-labs/igniterx/pkg/notify"
	"github.com/igniter-labs/igniterx/pkg/pocket"
	"github.com/igniter-labs/igniterx/pkg/redis"
	"github.com/igniter-labs/igniterx/pkg/temporal"
	middlemanworkflow "github.com/igniter-labs/igniterx/pkg/temporal/middleman"
	"github.com/igniter-labs/igniterx/pkg/utils"
)

// Initialize initializes the application.
func Initialize(ctx context.Context) *types.App {
	logger, err := logging.New("middleman")
	if err != nil {
		// nothing else to do here, we'll just log to stderr'
		panic(err)
	}

	store, err := middlemandb.New(ctx, logger, utils.Env("MIDDLEMAN_DB", "igniterx_middleman"), postgres.GetPoolConfigForComponent("middleman_worker"))
	if err != nil {
		logger.Fatal("Unable to initialize middleman database", zap.Error(err))
	}

	temporalClient, err := temporal.NewClient(ctx, logger)
	if err != nil {
		logger.Fatal("Unable to establish temporal connection", zap.Error(err))
	}

	redisClient, err := redis.NewClient(ctx, logger)
	if err != nil {
		logger.Fatal("Unable to establish redis connection", zap.Error(err))
	}

	endpoints := utils.EnvList("POKT_RPC_ENDPOINTS", nil)
	if len(endpoints) == 0 {
		logger.Fatal("POKT_RPC_ENDPOINTS environment variable is required")
	}
	chain := pocket.NewHTTPFactory(pocket.Opts{
		RPS:             utils.EnvInt("POKT_RPC_RPS", 20),
		Burst:           utils.EnvInt("POKT_RPC_BURST", 40),
		BreakerFailures: 3,
		BreakerCooldown: 30 * time.Second,
	}).NewClient(endpoints)

	activityContext := &activity.Context{
		Logger:       logger,
		Store:        store,
		Chain:        chain,
		Publisher:    notify.NewPublisher(redisClient),
		Metrics:      metrics.Middleman(),
		PollInterval: utils.EnvDuration("BLOCK_POLL_INTERVAL", activity.DefaultPollInterval),
		Identity:     utils.Env("MIDDLEMAN_IDENTITY", ""),
	}
	workflowContext := workflow.Context{
		ActivityContext: activityContext,
		Config: workflow.Config{
			NodeStatusBatchSize: utils.EnvInt64("NODE_STATUS_BATCH_SIZE", workflow.DefaultNodeStatusBatchSize),
		},
	}

	wkr := worker.New(
		temporalClient.TClient,
		temporalClient.MiddlemanQueue,
		worker.Options{
			MaxConcurrentWorkflowTaskPollers:   5,
			MaxConcurrentActivityTaskPollers:   10,
			MaxConcurrentActivityExecutionSize: 200,
			WorkerStopTimeout:                  1 * time.Minute,
		},
	)
	wkr.RegisterWorkflowWithOptions(
		workflowContext.ExecuteTransactionWorkflow,
		temporalworkflow.RegisterOptions{Name: middlemanworkflow.ExecuteTransactionWorkflowName},
	)
	wkr.RegisterWorkflowWithOptions(
		workflowContext.NodeStatusWorkflow,
		temporalworkflow.RegisterOptions{Name: middlemanworkflow.NodeStatusWorkflowName},
	)
	wkr.RegisterActivity(activityContext.GetTransaction)
	wkr.RegisterActivity(activityContext.UpdateTransaction)
	wkr.RegisterActivity(activityContext.GetBlockHeight)
	wkr.RegisterActivity(activityContext.ExecuteTransaction)
	wkr.RegisterActivity(activityContext.WaitForNextBlock)
	wkr.RegisterActivity(activityContext.VerifyTransaction)
	wkr.RegisterActivity(activityContext.CreateNewNodesFromTransaction)
	wkr.RegisterActivity(activityContext.UpdateUnstakingNodesFromTransaction)
	wkr.RegisterActivity(activityContext.NotifyProviderOfStakedAddresses)
	wkr.RegisterActivity(activityContext.NotifyProviderOfFailedStakes)
	wkr.RegisterActivity(activityContext.NotifyProviderOfUnstakingAddresses)
	wkr.RegisterActivity(activityContext.GetNodesMinAndMax)
	wkr.RegisterActivity(activityContext.LoadNodesInRange)
	wkr.RegisterActivity(activityContext.UpdateNodeStatusBatch)

	if err := EnsureSchedules(ctx, temporalClient, logger); err != nil {
		logger.Fatal("Unable to reconcile schedules", zap.Error(err))
	}

	return &types.App{
		Store:          store,
		TemporalClient: temporalClient,
		Worker:         wkr,
		RedisClient:    redisClient,
		Logger:         logger,
	}
}

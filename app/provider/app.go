package provider

import (
	"context"
	"errors"
	"os"
	"time"

	"go.temporal.io/sdk/worker"
	temporalworkflow "go.temporal.io/sdk/workflow"
	"go.uber.org/zap"

	"github.com/igniter-labs/igniterx/app/provider/activity"
	"github.com/igniter-labs/igniterx/app/provider/types"
	"github.com/igniter-labs/igniterx/app/provider/workflow"
	"github.com/igniter-labs/igniterx/pkg/allocation"
	"github.com/igniter-labs/igniterx/pkg/db/models/provider"
	"github.com/igniter-labs/igniterx/pkg/db/postgres"
	providerdb "github.com/igniter-labs/igniterx/pkg/db/postgres/provider"
	"github.com/igniter-labs/igniterx/pkg/logging"
	"github.com/igniter-labs/igniterx/pkg/metrics"
	"github.com/igniter-labs/igniterx/pkg/notify"
	"github.com/igniter-labs/igniterx/pkg/pocket"
	"github.com/igniter-labs/igniterx/pkg/reconcile"
	"github.com/igniter-labs/igniterx/pkg/redis"
	"github.com/igniter-labs/igniterx/pkg/temporal"
	providerworkflow "github.com/igniter-labs/igniterx/pkg/temporal/provider"
	"github.com/igniter-labs/igniterx/pkg/utils"
)

// Initialize initializes the application.
func Initialize(ctx context.Context) *types.App {
	logger, err := logging.New("provider")
	if err != nil {
		// nothing else to do here, we'll just log to stderr'
		panic(err)
	}

	defaults := provider.ApplicationSettings{
		ChainID:                 utils.Env("CHAIN_ID", ""),
		MinimumStake:            utils.EnvInt64("MINIMUM_STAKE_UPOKT", 0),
		MinimumOperationalFunds: utils.EnvInt64("MINIMUM_OPERATIONAL_FUNDS_UPOKT", 0),
		ProviderIdentity:        utils.Env("PROVIDER_IDENTITY", ""),
	}

	store, err := providerdb.New(ctx, logger, utils.Env("PROVIDER_DB", "igniterx_provider"), defaults, postgres.GetPoolConfigForComponent("provider_worker"))
	if err != nil {
		logger.Fatal("Unable to initialize provider database", zap.Error(err))
	}

	temporalClient, err := temporal.NewClient(ctx, logger)
	if err != nil {
		logger.Fatal("Unable to establish temporal connection", zap.Error(err))
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

	m := metrics.Provider()
	activityContext := &activity.Context{
		Logger: logger,
		Store:  store,
		Chain:  chain,
		Reconciler: reconcile.New(reconcile.Config{
			OwnerInitialStakeCooldown: utils.EnvDuration("REMEDIATION_COOLDOWN", reconcile.DefaultOwnerInitialStakeCooldown),
			MissingStakeAfter:         utils.EnvDuration("MISSING_STAKE_AFTER", reconcile.DefaultMissingStakeAfter),
		}),
		Metrics:              m,
		StatusMaxParallelism: utils.EnvInt("STATUS_PARALLELISM", 0),
	}
	workflowContext := workflow.Context{
		ActivityContext: activityContext,
		Config: workflow.Config{
			StatusBatchSize:        utils.EnvInt64("STATUS_BATCH_SIZE", workflow.DefaultStatusBatchSize),
			StatusPagesPerRun:      utils.EnvInt("STATUS_PAGES_PER_RUN", workflow.DefaultStatusPagesPerRun),
			RemediationParallelism: utils.EnvInt("REMEDIATION_PARALLELISM", workflow.DefaultRemediationParallelism),
		},
	}

	wkr := worker.New(
		temporalClient.TClient,
		temporalClient.ProviderQueue,
		worker.Options{
			MaxConcurrentWorkflowTaskPollers:   5,
			MaxConcurrentActivityTaskPollers:   10,
			MaxConcurrentActivityExecutionSize: 200,
			WorkerStopTimeout:                  1 * time.Minute,
		},
	)
	wkr.RegisterWorkflowWithOptions(
		workflowContext.SupplierStatusWorkflow,
		temporalworkflow.RegisterOptions{Name: providerworkflow.SupplierStatusWorkflowName},
	)
	wkr.RegisterWorkflowWithOptions(
		workflowContext.SupplierRemediationWorkflow,
		temporalworkflow.RegisterOptions{Name: providerworkflow.SupplierRemediationWorkflowName},
	)
	wkr.RegisterActivity(activityContext.GetLatestBlock)
	wkr.RegisterActivity(activityContext.GetKeysMinAndMax)
	wkr.RegisterActivity(activityContext.LoadKeysInRange)
	wkr.RegisterActivity(activityContext.UpsertSupplierStatus)
	wkr.RegisterActivity(activityContext.UpsertSupplierStatusBatch)
	wkr.RegisterActivity(activityContext.LoadKeysForRemediation)
	wkr.RegisterActivity(activityContext.RemediateSupplier)

	app := &types.App{
		Store:          store,
		Allocator:      allocation.New(store, logger,
			allocation.WithMetrics(m),
			allocation.WithMaxSlots(utils.EnvInt("ALLOCATION_MAX_SLOTS", allocation.DefaultMaxSlots)),
		),
		TemporalClient: temporalClient,
		Worker:         wkr,
		Logger:         logger,
	}
	app.Dispatcher = NewDispatcher(app.Allocator, logger)

	if utils.EnvBool("REDIS_ENABLED", true) {
		if err := initConsumer(ctx, app, defaults.ProviderIdentity); err != nil {
			logger.Fatal("Unable to initialize notification consumer", zap.Error(err))
		}
	} else {
		logger.Info("Redis disabled - provider notifications will not be consumed")
	}

	if err := EnsureSchedules(ctx, temporalClient, logger); err != nil {
		logger.Fatal("Unable to reconcile schedules", zap.Error(err))
	}

	return app
}

func initConsumer(ctx context.Context, app *types.App, identity string) error {
	if identity == "" {
		return errors.New("PROVIDER_IDENTITY is required to consume notifications")
	}
	redisClient, err := redis.NewClient(ctx, app.Logger)
	if err != nil {
		return err
	}
	hostname, _ := os.Hostname()
	consumer, err := redis.NewStreamConsumer(redisClient, redis.StreamConsumerConfig{
		Stream:   notify.StreamName(identity),
		Group:    utils.Env("NOTIFICATIONS_GROUP", "provider"),
		Consumer: utils.Env("NOTIFICATIONS_CONSUMER", hostname),
		Logger:   app.Logger,
	})
	if err != nil {
		_ = redisClient.Close()
		return err
	}
	app.RedisClient = redisClient
	app.Consumer = consumer
	return nil
}

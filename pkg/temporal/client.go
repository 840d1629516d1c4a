package temporal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/igniter-labs/igniterx/pkg/utils"
	"go.uber.org/zap"

	"go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	taskqueuepb "go.temporal.io/api/taskqueue/v1"
	workflowservicepb "go.temporal.io/api/workflowservice/v1"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/log"
)

type Client struct {
	TClient   client.Client
	TSClient  client.ScheduleClient
	Namespace string

	ProviderQueue  string
	MiddlemanQueue string
}

type Health struct {
	ConnectionOK   bool                      `json:"connection_ok"`
	ProviderQueue  []*taskqueuepb.PollerInfo `json:"provider_queue"`
	MiddlemanQueue []*taskqueuepb.PollerInfo `json:"middleman_queue"`
}

// NewClient dials TEMPORAL_HOSTPORT, registering TEMPORAL_NAMESPACE first when missing.
func NewClient(ctx context.Context, logger *zap.Logger) (*Client, error) {
	host := utils.Env("TEMPORAL_HOSTPORT", "localhost:7233")
	ns := utils.Env("TEMPORAL_NAMESPACE", DefaultNamespace)
	retention := utils.EnvDuration("TEMPORAL_RETENTION", 7*24*time.Hour)
	loggerWrapper := NewZapAdapter(logger)

	if err := EnsureNamespace(ctx, logger, host, ns, retention); err != nil {
		return nil, err
	}

	logger.Info("Connecting to Temporal", zap.String("host", host), zap.String("namespace", ns))
	tClient, err := Dial(ctx, host, ns, loggerWrapper)
	if err != nil {
		return nil, err
	}

	if _, err = tClient.CheckHealth(ctx, nil); err != nil {
		tClient.Close()
		return nil, err
	}

	return &Client{
		TClient:        tClient,
		TSClient:       tClient.ScheduleClient(),
		Namespace:      ns,
		ProviderQueue:  QueueProvider,
		MiddlemanQueue: QueueMiddleman,
	}, nil
}

// Dial connects to Temporal using the provided hostPort and namespace.
func Dial(ctx context.Context, hostPort, namespace string, logger log.Logger) (client.Client, error) {
	return client.DialContext(
		ctx,
		client.Options{
			HostPort:  hostPort,
			Namespace: namespace,
			Logger:    logger,
		},
	)
}

// EnsureSchedule creates the schedule id unless it already exists.
func (c *Client) EnsureSchedule(ctx context.Context, logger *zap.Logger, id string, spec client.ScheduleSpec, action *client.ScheduleWorkflowAction) error {
	h := c.TSClient.GetHandle(ctx, id)
	_, err := h.Describe(ctx)
	if err == nil {
		logger.Debug("Schedule already exists", zap.String("scheduleId", id))
		return nil
	}
	var notFound *serviceerror.NotFound
	if !errors.As(err, &notFound) {
		return fmt.Errorf("describe schedule %s: %w", id, err)
	}

	logger.Info("Creating schedule", zap.String("scheduleId", id))
	_, err = c.TSClient.Create(ctx, client.ScheduleOptions{
		ID:      id,
		Spec:    spec,
		Action:  action,
		Overlap: enums.SCHEDULE_OVERLAP_POLICY_SKIP,
	})
	if err != nil {
		return fmt.Errorf("create schedule %s: %w", id, err)
	}
	return nil
}

// Health returns the pollers of both task queues.
func (c *Client) Health(ctx context.Context) (Health, error) {
	h := Health{ConnectionOK: true}
	ctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	svc := c.TClient.WorkflowService()
	if svc == nil {
		return h, nil
	}
	describe := func(queue string) []*taskqueuepb.PollerInfo {
		rep, err := svc.DescribeTaskQueue(ctx, &workflowservicepb.DescribeTaskQueueRequest{
			Namespace:     c.Namespace,
			TaskQueue:     &taskqueuepb.TaskQueue{Name: queue},
			TaskQueueType: enums.TASK_QUEUE_TYPE_WORKFLOW,
		})
		if err != nil {
			return nil
		}
		return rep.GetPollers()
	}
	h.ProviderQueue = describe(c.ProviderQueue)
	h.MiddlemanQueue = describe(c.MiddlemanQueue)
	return h, nil
}

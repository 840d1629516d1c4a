package temporal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/api/workflowservice/v1"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"
	"google.golang.org/protobuf/types/known/durationpb"
)

// EnsureNamespace registers namespace with the given retention when it does not exist and
// waits until it can be described.
func EnsureNamespace(ctx context.Context, logger *zap.Logger, hostPort, namespace string, retention time.Duration) error {
	nsClient, err := client.NewNamespaceClient(client.Options{
		HostPort: hostPort,
		Logger:   NewZapAdapter(logger),
	})
	if err != nil {
		return fmt.Errorf("failed to create namespace client: %w", err)
	}
	defer nsClient.Close()

	registered := false
	for attempt := 0; attempt < 10; attempt++ {
		_, err = nsClient.Describe(ctx, namespace)
		if err == nil {
			logger.Debug("Namespace ready", zap.String("namespace", namespace))
			return nil
		}

		var notFound *serviceerror.NamespaceNotFound
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to describe namespace: %w", err)
		}

		if !registered {
			logger.Info("Creating namespace", zap.String("namespace", namespace), zap.Duration("retention", retention))
			err = nsClient.Register(ctx, &workflowservice.RegisterNamespaceRequest{
				Namespace:                        namespace,
				WorkflowExecutionRetentionPeriod: durationpb.New(retention),
			})
			var exists *serviceerror.NamespaceAlreadyExists
			if err != nil && !errors.As(err, &exists) {
				return fmt.Errorf("failed to register namespace: %w", err)
			}
			registered = true
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
	return fmt.Errorf("namespace %s not available after registration", namespace)
}

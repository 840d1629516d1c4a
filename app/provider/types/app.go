package types

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"

	"github.com/igniter-labs/igniterx/pkg/allocation"
	providerstore "github.com/igniter-labs/igniterx/pkg/db/provider"
	"github.com/igniter-labs/igniterx/pkg/notify"
	"github.com/igniter-labs/igniterx/pkg/redis"
	"github.com/igniter-labs/igniterx/pkg/temporal"
)

type App struct {
	// Key store
	Store providerstore.Store

	// Allocation engine shared by the API and the notification consumer
	Allocator *allocation.Engine

	// Temporal client and the provider queue worker
	TemporalClient *temporal.Client
	Worker         worker.Worker

	// Redis client and the consumer of this provider's notification stream (optional)
	RedisClient *redis.Client
	Consumer    *redis.StreamConsumer
	Dispatcher  notify.Dispatcher

	// Zap Logger
	Logger *zap.Logger

	// HTTP Server
	Server *http.Server
}

// Start starts the worker, the notification consumer and the API, then blocks until ctx is done.
func (a *App) Start(ctx context.Context) {
	if err := a.Worker.Start(); err != nil {
		a.Logger.Fatal("Unable to start worker", zap.Error(err))
	}

	consumerDone := make(chan struct{})
	if a.Consumer != nil {
		go func() {
			defer close(consumerDone)
			if err := a.Consumer.Run(ctx, a.Dispatcher.Handle); err != nil && !errors.Is(err, context.Canceled) {
				a.Logger.Error("Notification consumer stopped", zap.Error(err))
			}
		}()
	} else {
		close(consumerDone)
	}

	if a.Server != nil {
		go func() {
			if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.Logger.Error("HTTP server stopped", zap.Error(err))
			}
		}()
	}

	<-ctx.Done()
	a.Stop(consumerDone)
}

// Stop gracefully stops the app.
func (a *App) Stop(consumerDone <-chan struct{}) {
	if a.Server != nil {
		a.Logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = a.Server.Shutdown(shutdownCtx)
	}

	a.Worker.Stop()

	select {
	case <-consumerDone:
	case <-time.After(5 * time.Second):
		a.Logger.Warn("Notification consumer did not stop in time")
	}

	if a.RedisClient != nil {
		if err := a.RedisClient.Close(); err != nil {
			a.Logger.Warn("Failed to close redis client", zap.Error(err))
		}
	}
	if a.TemporalClient != nil {
		a.TemporalClient.TClient.Close()
	}
	if a.Store != nil {
		a.Logger.Info("closing provider database connection")
		if err := a.Store.Close(); err != nil {
			a.Logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	time.Sleep(200 * time.Millisecond)
	a.Logger.Info("さようなら!")
}

package types

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"

	middlemanstore "github.com/igniter-labs/igniterx/pkg/db/middleman"
	"github.com/igniter-labs/igniterx/pkg/redis"
	"github.com/igniter-labs/igniterx/pkg/temporal"
)

type App struct {
	// Transaction and node store
	Store middlemanstore.Store

	// Temporal client and the middleman queue worker
	TemporalClient *temporal.Client
	Worker         worker.Worker

	// Redis client backing the provider notification publisher
	RedisClient *redis.Client

	// Zap Logger
	Logger *zap.Logger

	// HTTP Server
	Server *http.Server
}

// Start starts the worker and the API, then blocks until ctx is done.
func (a *App) Start(ctx context.Context) {
	if err := a.Worker.Start(); err != nil {
		a.Logger.Fatal("Unable to start worker", zap.Error(err))
	}

	if a.Server != nil {
		go func() {
			if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.Logger.Error("HTTP server stopped", zap.Error(err))
			}
		}()
	}

	<-ctx.Done()
	a.Stop()
}

// Stop gracefully stops the app.
func (a *App) Stop() {
	if a.Server != nil {
		a.Logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = a.Server.Shutdown(shutdownCtx)
	}

	a.Worker.Stop()

	if a.RedisClient != nil {
		if err := a.RedisClient.Close(); err != nil {
			a.Logger.Warn("Failed to close redis client", zap.Error(err))
		}
	}
	if a.TemporalClient != nil {
		a.TemporalClient.TClient.Close()
	}
	if a.Store != nil {
		a.Logger.Info("closing middleman database connection")
		if err := a.Store.Close(); err != nil {
			a.Logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	time.Sleep(200 * time.Millisecond)
	a.Logger.Info("さようなら!")
}

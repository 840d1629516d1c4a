package middleman

import (
	"context"
	"fmt"

	"github.com/igniter-labs/igniterx/pkg/db/models/middleman"
	"github.com/igniter-labs/igniterx/pkg/db/postgres"
	"go.uber.org/zap"
)

// DB is the PostgreSQL transaction and node store of the middleman.
type DB struct {
	postgres.Client
	Name string
}

func New(ctx context.Context, logger *zap.Logger, name string, poolConfig *postgres.PoolConfig) (*DB, error) {
	client, err := postgres.New(ctx, logger.With(
		zap.String("db", name),
		zap.String("component", poolConfig.Component),
	), name, poolConfig)
	if err != nil {
		return nil, err
	}

	db := NewWithClient(client, name)
	if err := db.InitializeDB(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return db, nil
}

func NewWithClient(client postgres.Client, name string) *DB {
	return &DB{Client: client, Name: name}
}

func (db *DB) Close() error {
	db.Pool.Close()
	return nil
}

func (db *DB) DatabaseName() string {
	return db.Name
}

func (db *DB) Ping(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

func (db *DB) InitializeDB(ctx context.Context) error {
	db.Logger.Info("Initializing middleman database", zap.String("database", db.Name))

	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{middleman.TransactionsTableName, db.initTransactions},
		{middleman.NodesTableName, db.initNodes},
		{middleman.TransactionsToNodesTableName, db.initTransactionsToNodes},
	}
	for _, step := range steps {
		db.Logger.Debug("Initialize table", zap.String("table", step.name))
		if err := step.fn(ctx); err != nil {
			return fmt.Errorf("initialize %s: %w", step.name, err)
		}
	}
	return nil
}

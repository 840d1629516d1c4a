package provider

import (
	"context"
	"fmt"

	"github.com/igniter-labs/igniterx/pkg/db/models/provider"
	"github.com/igniter-labs/igniterx/pkg/db/postgres"
	"go.uber.org/zap"
)

// DB is the PostgreSQL key store of the provider.
type DB struct {
	postgres.Client
	Name string
	// Defaults answer LoadSettings until an application_settings row exists.
	Defaults provider.ApplicationSettings
}

// New connects to the provider database and ensures its tables exist.
func New(ctx context.Context, logger *zap.Logger, name string, defaults provider.ApplicationSettings, poolConfig *postgres.PoolConfig) (*DB, error) {
	client, err := postgres.New(ctx, logger.With(
		zap.String("db", name),
		zap.String("component", poolConfig.Component),
	), name, poolConfig)
	if err != nil {
		return nil, err
	}

	db := NewWithClient(client, name, defaults)
	if err := db.InitializeDB(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return db, nil
}

// NewWithClient wraps an already connected client without touching the schema.
func NewWithClient(client postgres.Client, name string, defaults provider.ApplicationSettings) *DB {
	return &DB{Client: client, Name: name, Defaults: defaults}
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

// InitializeDB ensures the required tables exist. Tables are created parents first.
func (db *DB) InitializeDB(ctx context.Context) error {
	db.Logger.Info("Initializing provider database", zap.String("database", db.Name))

	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{provider.RegionsTableName, db.initRegions},
		{provider.RelayMinersTableName, db.initRelayMiners},
		{provider.ServicesTableName, db.initServices},
		{provider.AddressGroupsTableName, db.initAddressGroups},
		{provider.AddressGroupServicesTableName, db.initAddressGroupServices},
		{provider.KeysTableName, db.initKeys},
		{provider.SettingsTableName, db.initSettings},
	}
	for _, step := range steps {
		db.Logger.Debug("Initialize table", zap.String("table", step.name))
		if err := step.fn(ctx); err != nil {
			return fmt.Errorf("initialize %s: %w", step.name, err)
		}
	}
	return nil
}

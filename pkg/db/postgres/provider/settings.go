package provider

import (
	"context"
	"fmt"

	"github.com/igniter-labs/igniterx/pkg/db/models/provider"
	"github.com/igniter-labs/igniterx/pkg/db/postgres"
	providerstore "github.com/igniter-labs/igniterx/pkg/db/provider"
)

// initSettings creates the single-row application_settings table.
func (db *DB) initSettings(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS application_settings (
			id SMALLINT PRIMARY KEY DEFAULT 1 CHECK (id = 1),
			chain_id TEXT NOT NULL,
			minimum_stake BIGINT NOT NULL DEFAULT 0,
			minimum_operational_funds BIGINT NOT NULL DEFAULT 0,
			provider_identity TEXT NOT NULL DEFAULT '',
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`
	return db.Exec(ctx, query)
}

// LoadSettings reads the settings row, falling back to the configured defaults.
func (db *DB) LoadSettings(ctx context.Context) (*provider.ApplicationSettings, error) {
	query := `
		SELECT chain_id, minimum_stake, minimum_operational_funds, provider_identity
		FROM application_settings
		WHERE id = 1
	`
	var s provider.ApplicationSettings
	err := db.GetExecutor(ctx).QueryRow(ctx, query).Scan(
		&s.ChainID,
		&s.MinimumStake,
		&s.MinimumOperationalFunds,
		&s.ProviderIdentity,
	)
	if err == nil {
		return &s, nil
	}
	if !postgres.IsNoRows(err) {
		return nil, fmt.Errorf("failed to query application settings: %w", err)
	}
	if db.Defaults.ChainID == "" {
		return nil, providerstore.ErrSettingsNotFound
	}
	defaults := db.Defaults
	return &defaults, nil
}

var _ providerstore.Store = (*DB)(nil)

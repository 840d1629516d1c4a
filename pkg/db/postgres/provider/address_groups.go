package provider

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/igniter-labs/igniterx/pkg/db/models/provider"
	"github.com/igniter-labs/igniterx/pkg/db/postgres"
	providerstore "github.com/igniter-labs/igniterx/pkg/db/provider"
)

func (db *DB) initRegions(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS regions (
			id BIGSERIAL PRIMARY KEY,
			display_name TEXT NOT NULL,
			url_value TEXT NOT NULL UNIQUE
		)
	`
	return db.Exec(ctx, query)
}

func (db *DB) initRelayMiners(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS relay_miners (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			identity TEXT NOT NULL UNIQUE,
			domain TEXT NOT NULL,
			region_id BIGINT NOT NULL REFERENCES regions(id)
		)
	`
	return db.Exec(ctx, query)
}

// initServices creates the services table. endpoints holds URL templates with their rpc type.
func (db *DB) initServices(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS services (
			service_id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			endpoints JSONB NOT NULL DEFAULT '[]'
		)
	`
	return db.Exec(ctx, query)
}

func (db *DB) initAddressGroups(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS address_groups (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			linked_addresses TEXT[] NOT NULL DEFAULT '{}',
			private BOOLEAN NOT NULL DEFAULT FALSE,
			relay_miner_id BIGINT NOT NULL REFERENCES relay_miners(id)
		)
	`
	return db.Exec(ctx, query)
}

func (db *DB) initAddressGroupServices(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS address_group_services (
			address_group_id BIGINT NOT NULL REFERENCES address_groups(id) ON DELETE CASCADE,
			service_id TEXT NOT NULL REFERENCES services(service_id),
			add_supplier_share BOOLEAN NOT NULL DEFAULT FALSE,
			supplier_share INTEGER NOT NULL DEFAULT 0,
			rev_share JSONB NOT NULL DEFAULT '[]',
			PRIMARY KEY (address_group_id, service_id)
		)
	`
	return db.Exec(ctx, query)
}

// LoadAddressGroup returns the group with its relay miner, region and services.
func (db *DB) LoadAddressGroup(ctx context.Context, id int64) (*provider.AddressGroup, error) {
	exec := db.GetExecutor(ctx)

	query := `
		SELECT g.id, g.name, g.linked_addresses, g.private,
			rm.id, rm.name, rm.identity, rm.domain,
			r.id, r.display_name, r.url_value
		FROM address_groups g
		JOIN relay_miners rm ON rm.id = g.relay_miner_id
		JOIN regions r ON r.id = rm.region_id
		WHERE g.id = $1
	`
	var g provider.AddressGroup
	err := exec.QueryRow(ctx, query, id).Scan(
		&g.ID,
		&g.Name,
		&g.LinkedAddresses,
		&g.Private,
		&g.RelayMiner.ID,
		&g.RelayMiner.Name,
		&g.RelayMiner.Identity,
		&g.RelayMiner.Domain,
		&g.RelayMiner.Region.ID,
		&g.RelayMiner.Region.DisplayName,
		&g.RelayMiner.Region.URLValue,
	)
	if err != nil {
		if postgres.IsNoRows(err) {
			return nil, fmt.Errorf("%d: %w", id, providerstore.ErrAddressGroupNotFound)
		}
		return nil, fmt.Errorf("failed to query address group %d: %w", id, err)
	}

	servicesQuery := `
		SELECT ags.service_id, ags.add_supplier_share, ags.supplier_share, ags.rev_share,
			s.name, s.endpoints
		FROM address_group_services ags
		JOIN services s ON s.service_id = ags.service_id
		WHERE ags.address_group_id = $1
		ORDER BY ags.service_id
	`
	rows, err := exec.Query(ctx, servicesQuery, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query services of address group %d: %w", id, err)
	}
	defer rows.Close()

	g.Services = make([]provider.AddressGroupService, 0)
	for rows.Next() {
		var (
			svc       provider.AddressGroupService
			revShare  []byte
			endpoints []byte
		)
		if err := rows.Scan(&svc.ServiceID, &svc.AddSupplierShare, &svc.SupplierShare, &revShare, &svc.Service.Name, &endpoints); err != nil {
			return nil, err
		}
		svc.Service.ServiceID = svc.ServiceID
		if len(revShare) > 0 {
			if err := json.Unmarshal(revShare, &svc.RevShare); err != nil {
				return nil, fmt.Errorf("decode rev share of %s: %w", svc.ServiceID, err)
			}
		}
		if len(endpoints) > 0 {
			if err := json.Unmarshal(endpoints, &svc.Service.Endpoints); err != nil {
				return nil, fmt.Errorf("decode endpoints of %s: %w", svc.ServiceID, err)
			}
		}
		g.Services = append(g.Services, svc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &g, nil
}

package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/igniter-labs/igniterx/pkg/db/models/provider"
	"github.com/igniter-labs/igniterx/pkg/db/postgres"
	providerstore "github.com/igniter-labs/igniterx/pkg/db/provider"
	"github.com/igniter-labs/igniterx/pkg/pocket"
)

const keyColumns = `id, address, public_key, private_key, address_group_id, state, owner_address, stake_owner,
	stake_amount_upokt, services, delegator_rewards_address, delegator_rev_share_percentage, delivered_to,
	delivered_at, balance_upokt, last_updated_height, remediation_history, created_at, updated_at`

// initKeys creates the keys table.
func (db *DB) initKeys(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS keys (
			id BIGSERIAL PRIMARY KEY,
			address TEXT NOT NULL UNIQUE,
			public_key TEXT NOT NULL,
			private_key TEXT NOT NULL,
			address_group_id BIGINT REFERENCES address_groups(id),
			state TEXT NOT NULL DEFAULT 'imported',
			owner_address TEXT NOT NULL DEFAULT '',
			stake_owner TEXT NOT NULL DEFAULT '',
			stake_amount_upokt BIGINT NOT NULL DEFAULT 0,
			services JSONB NOT NULL DEFAULT '[]',
			delegator_rewards_address TEXT NOT NULL DEFAULT '',
			delegator_rev_share_percentage INTEGER NOT NULL DEFAULT 0,
			delivered_to TEXT NOT NULL DEFAULT '',
			delivered_at TIMESTAMPTZ,
			balance_upokt BIGINT NOT NULL DEFAULT 0,
			last_updated_height BIGINT NOT NULL DEFAULT 0,
			remediation_history JSONB NOT NULL DEFAULT '[]',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS keys_group_state_idx ON keys (address_group_id, state, id);
		CREATE INDEX IF NOT EXISTS keys_state_idx ON keys (state, id);
	`
	return db.Exec(ctx, query)
}

func scanKey(row pgx.Row) (provider.Key, error) {
	var (
		k           provider.Key
		groupID     *int64
		state       string
		services    []byte
		history     []byte
		deliveredAt *time.Time
	)
	err := row.Scan(
		&k.ID,
		&k.Address,
		&k.PublicKey,
		&k.PrivateKey,
		&groupID,
		&state,
		&k.OwnerAddress,
		&k.StakeOwner,
		&k.StakeAmountUpokt,
		&services,
		&k.DelegatorRewardsAddress,
		&k.DelegatorRevSharePercentage,
		&k.DeliveredTo,
		&deliveredAt,
		&k.BalanceUpokt,
		&k.LastUpdatedHeight,
		&history,
		&k.CreatedAt,
		&k.UpdatedAt,
	)
	if err != nil {
		return provider.Key{}, err
	}
	if groupID != nil {
		k.AddressGroupID = *groupID
	}
	k.State = provider.KeyState(state)
	k.DeliveredAt = deliveredAt
	if len(services) > 0 {
		if err := json.Unmarshal(services, &k.Services); err != nil {
			return provider.Key{}, fmt.Errorf("decode services of %s: %w", k.Address, err)
		}
	}
	if len(history) > 0 {
		if err := json.Unmarshal(history, &k.RemediationHistory); err != nil {
			return provider.Key{}, fmt.Errorf("decode remediation history of %s: %w", k.Address, err)
		}
	}
	return k, nil
}

func collectKeys(rows pgx.Rows) ([]provider.Key, error) {
	defer rows.Close()
	out := make([]provider.Key, 0)
	for rows.Next() {
		k, err := scanKey(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

func collectRefs(rows pgx.Rows) ([]provider.KeyRef, error) {
	defer rows.Close()
	out := make([]provider.KeyRef, 0)
	for rows.Next() {
		var ref provider.KeyRef
		if err := rows.Scan(&ref.ID, &ref.Address); err != nil {
			return nil, err
		}
		out = append(out, ref)
	}
	return out, rows.Err()
}

func collectAddresses(rows pgx.Rows) ([]string, error) {
	defer rows.Close()
	out := make([]string, 0)
	for rows.Next() {
		var addr string
		if err := rows.Scan(&addr); err != nil {
			return nil, err
		}
		out = append(out, addr)
	}
	return out, rows.Err()
}

func stateStrings(states []provider.KeyState) []string {
	out := make([]string, len(states))
	for i, s := range states {
		out[i] = string(s)
	}
	return out
}

// LoadKey returns the key at address joined with its address group.
func (db *DB) LoadKey(ctx context.Context, address string) (*provider.KeyWithGroup, error) {
	query := `SELECT ` + keyColumns + ` FROM keys WHERE address = $1`
	k, err := scanKey(db.GetExecutor(ctx).QueryRow(ctx, query, address))
	if err != nil {
		if postgres.IsNoRows(err) {
			return nil, fmt.Errorf("%s: %w", address, providerstore.ErrKeyNotFound)
		}
		return nil, fmt.Errorf("failed to query key %s: %w", address, err)
	}

	out := &provider.KeyWithGroup{Key: k}
	if k.AddressGroupID == 0 {
		return out, nil
	}
	group, err := db.LoadAddressGroup(ctx, k.AddressGroupID)
	if err != nil && !errors.Is(err, providerstore.ErrAddressGroupNotFound) {
		return nil, err
	}
	out.AddressGroup = group
	return out, nil
}

// UpdateKey writes update only when the stored last_updated_height is <= height, so a
// slower pass never overwrites the result of a newer one. last_updated_height is set to height.
func (db *DB) UpdateKey(ctx context.Context, address string, u provider.KeyUpdate, height int64) (bool, error) {
	args := []any{address, height, u.BalanceUpokt}
	sets := []string{"last_updated_height = $2", "balance_upokt = $3", "updated_at = NOW()"}
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if u.State != nil {
		add("state", string(*u.State))
	}
	if u.OwnerAddress != nil {
		add("owner_address", *u.OwnerAddress)
	}
	if u.StakeOwner != nil {
		add("stake_owner", *u.StakeOwner)
	}
	if u.StakeAmountUpokt != nil {
		add("stake_amount_upokt", *u.StakeAmountUpokt)
	}
	if u.Services != nil {
		services := *u.Services
		if services == nil {
			services = []pocket.ServiceConfig{}
		}
		b, err := json.Marshal(services)
		if err != nil {
			return false, fmt.Errorf("encode services: %w", err)
		}
		add("services", b)
	}
	if u.RemediationHistory != nil {
		b, err := json.Marshal(*u.RemediationHistory)
		if err != nil {
			return false, fmt.Errorf("encode remediation history: %w", err)
		}
		add("remediation_history", b)
	}

	query := fmt.Sprintf(`UPDATE keys SET %s WHERE address = $1 AND last_updated_height <= $2`, strings.Join(sets, ", "))
	tag, err := db.GetExecutor(ctx).Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to update key %s: %w", address, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (db *DB) GetKeysMinAndMax(ctx context.Context) (provider.KeysMinMax, error) {
	query := `SELECT COUNT(*), COALESCE(MIN(id), 0), COALESCE(MAX(id), 0) FROM keys`
	var out provider.KeysMinMax
	if err := db.GetExecutor(ctx).QueryRow(ctx, query).Scan(&out.Total, &out.MinID, &out.MaxID); err != nil {
		return provider.KeysMinMax{}, fmt.Errorf("failed to query keys range: %w", err)
	}
	return out, nil
}

// LoadKeysInRange returns the keys with minID <= id <= maxID in one of states, by id.
func (db *DB) LoadKeysInRange(ctx context.Context, minID, maxID int64, states []provider.KeyState) ([]provider.KeyRef, error) {
	query := `
		SELECT id, address FROM keys
		WHERE id >= $1 AND id <= $2 AND state = ANY($3)
		ORDER BY id
	`
	rows, err := db.GetExecutor(ctx).Query(ctx, query, minID, maxID, stateStrings(states))
	if err != nil {
		return nil, fmt.Errorf("failed to query keys in range [%d, %d]: %w", minID, maxID, err)
	}
	return collectRefs(rows)
}

// LoadKeysWithRemediation returns keys in states holding a remediation entry for reason.
func (db *DB) LoadKeysWithRemediation(ctx context.Context, reason provider.RemediationReason, states []provider.KeyState) ([]provider.KeyRef, error) {
	query := `
		SELECT id, address FROM keys
		WHERE state = ANY($1)
		  AND remediation_history @> jsonb_build_array(jsonb_build_object('reason', $2::text))
		ORDER BY id
	`
	rows, err := db.GetExecutor(ctx).Query(ctx, query, stateStrings(states), string(reason))
	if err != nil {
		return nil, fmt.Errorf("failed to query keys with %s: %w", reason, err)
	}
	return collectRefs(rows)
}

// InsertKeys inserts keys and returns them as stored, in input order.
func (db *DB) InsertKeys(ctx context.Context, keys []provider.Key) ([]provider.Key, error) {
	query := `
		INSERT INTO keys (address, public_key, private_key, address_group_id, state, owner_address,
			delegator_rewards_address, delegator_rev_share_percentage, delivered_to, delivered_at, remediation_history)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING ` + keyColumns

	exec := db.GetExecutor(ctx)
	out := make([]provider.Key, 0, len(keys))
	for _, k := range keys {
		var groupID *int64
		if k.AddressGroupID != 0 {
			id := k.AddressGroupID
			groupID = &id
		}
		history, err := json.Marshal(k.RemediationHistory)
		if err != nil {
			return nil, fmt.Errorf("encode remediation history: %w", err)
		}
		stored, err := scanKey(exec.QueryRow(ctx, query,
			k.Address,
			k.PublicKey,
			k.PrivateKey,
			groupID,
			string(k.State),
			k.OwnerAddress,
			k.DelegatorRewardsAddress,
			k.DelegatorRevSharePercentage,
			k.DeliveredTo,
			k.DeliveredAt,
			history,
		))
		if err != nil {
			return nil, fmt.Errorf("failed to insert key %s: %w", k.Address, err)
		}
		out = append(out, stored)
	}
	return out, nil
}

// LockAvailableKeys must run inside InTx; the row locks last until the transaction ends.
func (db *DB) LockAvailableKeys(ctx context.Context, addressGroupID int64, limit int) ([]provider.Key, error) {
	if limit <= 0 {
		return []provider.Key{}, nil
	}
	query := `
		SELECT ` + keyColumns + ` FROM keys
		WHERE address_group_id = $1 AND state = $2
		ORDER BY id
		LIMIT $3
		FOR UPDATE SKIP LOCKED
	`
	rows, err := db.GetExecutor(ctx).Query(ctx, query, addressGroupID, string(provider.KeyStateAvailable), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to lock available keys of group %d: %w", addressGroupID, err)
	}
	return collectKeys(rows)
}

func (db *DB) PeekAvailableKeys(ctx context.Context, addressGroupID int64, limit int) ([]provider.Key, error) {
	if limit <= 0 {
		return []provider.Key{}, nil
	}
	query := `
		SELECT ` + keyColumns + ` FROM keys
		WHERE address_group_id = $1 AND state = $2
		ORDER BY id
		LIMIT $3
	`
	rows, err := db.GetExecutor(ctx).Query(ctx, query, addressGroupID, string(provider.KeyStateAvailable), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read available keys of group %d: %w", addressGroupID, err)
	}
	return collectKeys(rows)
}

// MarkKeysDelivered moves reserved keys to delivered and returns them ordered by id.
func (db *DB) MarkKeysDelivered(ctx context.Context, ids []int64, d provider.Delivery) ([]provider.Key, error) {
	if len(ids) == 0 {
		return []provider.Key{}, nil
	}
	query := `
		UPDATE keys SET
			state = $2,
			owner_address = $3,
			delegator_rewards_address = $4,
			delegator_rev_share_percentage = $5,
			delivered_to = $6,
			delivered_at = $7,
			updated_at = NOW()
		WHERE id = ANY($1) AND state = $8
		RETURNING ` + keyColumns
	rows, err := db.GetExecutor(ctx).Query(ctx, query,
		ids,
		string(provider.KeyStateDelivered),
		d.OwnerAddress,
		d.DelegatorAddress,
		d.RevSharePercentage,
		d.RequestingParty,
		d.At,
		string(provider.KeyStateAvailable),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to deliver keys: %w", err)
	}
	keys, err := collectKeys(rows)
	if err != nil {
		return nil, err
	}
	if len(keys) != len(ids) {
		return nil, fmt.Errorf("delivered %d of %d reserved keys", len(keys), len(ids))
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].ID < keys[j].ID })
	return keys, nil
}

// ReleaseDelivered returns delivered keys of requestingParty to the available pool.
func (db *DB) ReleaseDelivered(ctx context.Context, addresses []string, requestingParty string) ([]string, error) {
	query := `
		UPDATE keys SET
			state = 'available',
			owner_address = '',
			delegator_rewards_address = '',
			delegator_rev_share_percentage = 0,
			delivered_to = '',
			delivered_at = NULL,
			updated_at = NOW()
		WHERE address = ANY($1) AND delivered_to = $2 AND state = 'delivered'
		RETURNING address
	`
	return db.transition(ctx, "release", query, addresses, requestingParty)
}

func (db *DB) MarkDeliveredStaked(ctx context.Context, addresses []string, requestingParty string) ([]string, error) {
	query := `
		UPDATE keys SET state = 'staked', updated_at = NOW()
		WHERE address = ANY($1) AND delivered_to = $2 AND state = 'delivered'
		RETURNING address
	`
	return db.transition(ctx, "mark staked", query, addresses, requestingParty)
}

// MarkStakedUnstaking also accepts keys waiting on remediation, they are still staked on chain.
func (db *DB) MarkStakedUnstaking(ctx context.Context, addresses []string, requestingParty string) ([]string, error) {
	query := `
		UPDATE keys SET state = 'unstaking', updated_at = NOW()
		WHERE address = ANY($1) AND delivered_to = $2
		  AND state IN ('staked', 'attention_needed', 'remediation_failed')
		RETURNING address
	`
	return db.transition(ctx, "mark unstaking", query, addresses, requestingParty)
}

func (db *DB) transition(ctx context.Context, op, query string, addresses []string, requestingParty string) ([]string, error) {
	if len(addresses) == 0 {
		return []string{}, nil
	}
	rows, err := db.GetExecutor(ctx).Query(ctx, query, addresses, requestingParty)
	if err != nil {
		return nil, fmt.Errorf("failed to %s keys: %w", op, err)
	}
	return collectAddresses(rows)
}

// ResetRemediationStates puts attention_needed and remediation_failed keys back to staked so
// the next passes re-evaluate them. No addresses means every such key.
func (db *DB) ResetRemediationStates(ctx context.Context, addresses []string) ([]string, error) {
	query := `
		UPDATE keys SET state = 'staked', updated_at = NOW()
		WHERE state IN ('attention_needed', 'remediation_failed')
	`
	args := []any{}
	if len(addresses) > 0 {
		query += ` AND address = ANY($1)`
		args = append(args, addresses)
	}
	query += ` RETURNING address`

	rows, err := db.GetExecutor(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to reset remediation states: %w", err)
	}
	return collectAddresses(rows)
}

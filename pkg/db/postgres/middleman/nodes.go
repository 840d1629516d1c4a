package middleman

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	middlemanstore "github.com/igniter-labs/igniterx/pkg/db/middleman"
	"github.com/igniter-labs/igniterx/pkg/db/models/middleman"
	"github.com/igniter-labs/igniterx/pkg/db/postgres"
)

func (db *DB) initNodes(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS nodes (
			id BIGSERIAL PRIMARY KEY,
			address TEXT NOT NULL UNIQUE,
			owner_address TEXT NOT NULL,
			stake_amount BIGINT NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'staked',
			provider_id TEXT NOT NULL DEFAULT '',
			created_by TEXT NOT NULL DEFAULT '',
			last_updated_height BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`
	return db.Exec(ctx, query)
}

func (db *DB) initTransactionsToNodes(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS transactions_to_nodes (
			transaction_id BIGINT NOT NULL REFERENCES transactions(id),
			node_id BIGINT NOT NULL REFERENCES nodes(id),
			PRIMARY KEY (transaction_id, node_id)
		)
	`
	return db.Exec(ctx, query)
}

func (db *DB) link(ctx context.Context, transactionID int64, refs []middleman.NodeRef) error {
	query := `
		INSERT INTO transactions_to_nodes (transaction_id, node_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`
	exec := db.GetExecutor(ctx)
	for _, ref := range refs {
		if _, err := exec.Exec(ctx, query, transactionID, ref.ID); err != nil {
			return fmt.Errorf("failed to link node %s to transaction %d: %w", ref.Address, transactionID, err)
		}
	}
	return nil
}

// InsertNodes upserts nodes by address, so a replayed activity re-stakes the same rows.
func (db *DB) InsertNodes(ctx context.Context, nodes []middleman.Node, transactionID int64) ([]middleman.NodeRef, error) {
	query := `
		INSERT INTO nodes (address, owner_address, stake_amount, status, provider_id, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (address) DO UPDATE SET
			owner_address = EXCLUDED.owner_address,
			stake_amount = EXCLUDED.stake_amount,
			status = EXCLUDED.status,
			provider_id = EXCLUDED.provider_id,
			updated_at = NOW()
		RETURNING id, address
	`
	refs := make([]middleman.NodeRef, 0, len(nodes))
	err := db.InTx(ctx, func(ctx context.Context) error {
		exec := db.GetExecutor(ctx)
		for _, n := range nodes {
			var ref middleman.NodeRef
			err := exec.QueryRow(ctx, query,
				n.Address,
				n.OwnerAddress,
				n.StakeAmount,
				string(n.Status),
				n.ProviderID,
				n.CreatedBy,
			).Scan(&ref.ID, &ref.Address)
			if err != nil {
				return fmt.Errorf("failed to insert node %s: %w", n.Address, err)
			}
			refs = append(refs, ref)
		}
		return db.link(ctx, transactionID, refs)
	})
	if err != nil {
		return nil, err
	}
	return refs, nil
}

func (db *DB) UpdateNodesStatusAndLink(ctx context.Context, addresses []string, status middleman.NodeStatus, transactionID int64) ([]string, error) {
	if len(addresses) == 0 {
		return []string{}, nil
	}
	query := `
		UPDATE nodes SET status = $2, updated_at = NOW()
		WHERE address = ANY($1)
		RETURNING id, address
	`
	var updated []string
	err := db.InTx(ctx, func(ctx context.Context) error {
		rows, err := db.GetExecutor(ctx).Query(ctx, query, addresses, string(status))
		if err != nil {
			return fmt.Errorf("failed to update nodes status: %w", err)
		}
		refs, err := collectRefs(rows)
		if err != nil {
			return err
		}
		updated = make([]string, len(refs))
		for i, ref := range refs {
			updated[i] = ref.Address
		}
		return db.link(ctx, transactionID, refs)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (db *DB) LoadNode(ctx context.Context, address string) (*middleman.Node, error) {
	query := `
		SELECT id, address, owner_address, stake_amount, status, provider_id, created_by,
			last_updated_height, created_at, updated_at
		FROM nodes
		WHERE address = $1
	`
	var (
		n      middleman.Node
		status string
	)
	err := db.GetExecutor(ctx).QueryRow(ctx, query, address).Scan(
		&n.ID,
		&n.Address,
		&n.OwnerAddress,
		&n.StakeAmount,
		&status,
		&n.ProviderID,
		&n.CreatedBy,
		&n.LastUpdatedHeight,
		&n.CreatedAt,
		&n.UpdatedAt,
	)
	if err != nil {
		if postgres.IsNoRows(err) {
			return nil, fmt.Errorf("%s: %w", address, middlemanstore.ErrNodeNotFound)
		}
		return nil, fmt.Errorf("failed to query node %s: %w", address, err)
	}
	n.Status = middleman.NodeStatus(status)
	return &n, nil
}

// UpdateNodeStatus applies status unless the row was already refreshed past height.
func (db *DB) UpdateNodeStatus(ctx context.Context, address string, status middleman.NodeStatus, height int64) (bool, error) {
	query := `
		UPDATE nodes SET status = $2, last_updated_height = $3, updated_at = NOW()
		WHERE address = $1 AND last_updated_height <= $3
	`
	tag, err := db.GetExecutor(ctx).Exec(ctx, query, address, string(status), height)
	if err != nil {
		return false, fmt.Errorf("failed to update node %s: %w", address, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (db *DB) GetNodesMinAndMax(ctx context.Context) (middleman.NodesMinMax, error) {
	query := `SELECT COUNT(*), COALESCE(MIN(id), 0), COALESCE(MAX(id), 0) FROM nodes`
	var out middleman.NodesMinMax
	if err := db.GetExecutor(ctx).QueryRow(ctx, query).Scan(&out.Total, &out.MinID, &out.MaxID); err != nil {
		return middleman.NodesMinMax{}, fmt.Errorf("failed to query nodes range: %w", err)
	}
	return out, nil
}

// LoadNodesInRange returns nodes that are not yet unstaked with minID <= id <= maxID.
func (db *DB) LoadNodesInRange(ctx context.Context, minID, maxID int64) ([]middleman.NodeRef, error) {
	query := `
		SELECT id, address FROM nodes
		WHERE id >= $1 AND id <= $2 AND status <> 'unstaked'
		ORDER BY id
	`
	rows, err := db.GetExecutor(ctx).Query(ctx, query, minID, maxID)
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes in range [%d, %d]: %w", minID, maxID, err)
	}
	return collectRefs(rows)
}

func collectRefs(rows pgx.Rows) ([]middleman.NodeRef, error) {
	defer rows.Close()
	out := make([]middleman.NodeRef, 0)
	for rows.Next() {
		var ref middleman.NodeRef
		if err := rows.Scan(&ref.ID, &ref.Address); err != nil {
			return nil, err
		}
		out = append(out, ref)
	}
	return out, rows.Err()
}

var _ middlemanstore.Store = (*DB)(nil)

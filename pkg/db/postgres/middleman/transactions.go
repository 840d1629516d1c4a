package middleman

import (
	"context"
	"fmt"
	"strings"

	middlemanstore "github.com/igniter-labs/igniterx/pkg/db/middleman"
	"github.com/igniter-labs/igniterx/pkg/db/models/middleman"
	"github.com/igniter-labs/igniterx/pkg/db/postgres"
)

func (db *DB) initTransactions(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS transactions (
			id BIGSERIAL PRIMARY KEY,
			type TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			hash TEXT NOT NULL DEFAULT '',
			execution_height BIGINT,
			verification_height BIGINT,
			code BIGINT,
			log TEXT NOT NULL DEFAULT '',
			consumed_fee BIGINT NOT NULL DEFAULT 0,
			estimated_fee BIGINT NOT NULL DEFAULT 0,
			signed_payload TEXT NOT NULL DEFAULT '',
			unsigned_payload TEXT NOT NULL DEFAULT '',
			from_address TEXT NOT NULL,
			provider_id TEXT NOT NULL DEFAULT '',
			created_by TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS transactions_status_idx ON transactions (status, id);
	`
	return db.Exec(ctx, query)
}

func (db *DB) GetTransaction(ctx context.Context, id int64) (*middleman.Transaction, error) {
	query := `
		SELECT id, type, status, hash, execution_height, verification_height, code, log,
			consumed_fee, estimated_fee, signed_payload, unsigned_payload, from_address,
			provider_id, created_by, created_at, updated_at
		FROM transactions
		WHERE id = $1
	`
	var (
		tx     middleman.Transaction
		txType string
		status string
		code   *int64
	)
	err := db.GetExecutor(ctx).QueryRow(ctx, query, id).Scan(
		&tx.ID,
		&txType,
		&status,
		&tx.Hash,
		&tx.ExecutionHeight,
		&tx.VerificationHeight,
		&code,
		&tx.Log,
		&tx.ConsumedFee,
		&tx.EstimatedFee,
		&tx.SignedPayload,
		&tx.UnsignedPayload,
		&tx.FromAddress,
		&tx.ProviderID,
		&tx.CreatedBy,
		&tx.CreatedAt,
		&tx.UpdatedAt,
	)
	if err != nil {
		if postgres.IsNoRows(err) {
			return nil, fmt.Errorf("%d: %w", id, middlemanstore.ErrTransactionNotFound)
		}
		return nil, fmt.Errorf("failed to query transaction %d: %w", id, err)
	}
	tx.Type = middleman.TransactionType(txType)
	tx.Status = middleman.TransactionStatus(status)
	if code != nil {
		c := uint32(*code)
		tx.Code = &c
	}
	return &tx, nil
}

// UpdateTransaction writes the non-nil fields of u.
func (db *DB) UpdateTransaction(ctx context.Context, id int64, u middleman.TransactionUpdate) error {
	if u.Empty() {
		return nil
	}

	args := []any{id}
	sets := []string{"updated_at = NOW()"}
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if u.Status != nil {
		add("status", string(*u.Status))
	}
	if u.Hash != nil {
		add("hash", *u.Hash)
	}
	if u.ExecutionHeight != nil {
		add("execution_height", *u.ExecutionHeight)
	}
	if u.VerificationHeight != nil {
		add("verification_height", *u.VerificationHeight)
	}
	if u.Code != nil {
		add("code", int64(*u.Code))
	}
	if u.Log != nil {
		add("log", *u.Log)
	}
	if u.ConsumedFee != nil {
		add("consumed_fee", *u.ConsumedFee)
	}

	query := fmt.Sprintf(`UPDATE transactions SET %s WHERE id = $1`, strings.Join(sets, ", "))
	tag, err := db.GetExecutor(ctx).Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update transaction %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%d: %w", id, middlemanstore.ErrTransactionNotFound)
	}
	return nil
}

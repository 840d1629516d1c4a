package provider

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/igniter-labs/igniterx/pkg/db/models/provider"
	"github.com/igniter-labs/igniterx/pkg/db/postgres"
	providerstore "github.com/igniter-labs/igniterx/pkg/db/provider"
)

var keyColumnNames = []string{
	"id", "address", "public_key", "private_key", "address_group_id", "state", "owner_address", "stake_owner",
	"stake_amount_upokt", "services", "delegator_rewards_address", "delegator_rev_share_percentage", "delivered_to",
	"delivered_at", "balance_upokt", "last_updated_height", "remediation_history", "created_at", "updated_at",
}

func newMockDB(t *testing.T, defaults provider.ApplicationSettings) (*DB, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	client := postgres.NewWithPool(zaptest.NewLogger(t), "provider_test", mock)
	return NewWithClient(client, "provider_test", defaults), mock
}

func keyRow(rows *pgxmock.Rows, id int64, address string, groupID *int64, state provider.KeyState) *pgxmock.Rows {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return rows.AddRow(
		id, address, "pub-"+address, "priv-"+address, groupID, string(state), "", "",
		int64(0), []byte(`[]`), "", 0, "",
		nil, int64(0), int64(0), []byte(`[]`), now, now,
	)
}

func TestUpdateKey_WritesUnderHeightGuard(t *testing.T) {
	db, mock := newMockDB(t, provider.ApplicationSettings{})
	ctx := context.Background()

	state := provider.KeyStateStaked
	mock.ExpectExec(regexp.QuoteMeta(
		`UPDATE keys SET last_updated_height = $2, balance_upokt = $3, updated_at = NOW(), state = $4 WHERE address = $1 AND last_updated_height <= $2`,
	)).
		WithArgs("pokt1abc", int64(120), int64(5_000), "staked").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	written, err := db.UpdateKey(ctx, "pokt1abc", provider.KeyUpdate{State: &state, BalanceUpokt: 5_000, LastUpdatedHeight: 120}, 120)
	require.NoError(t, err)
	assert.True(t, written)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateKey_StaleHeightIsNoop(t *testing.T) {
	db, mock := newMockDB(t, provider.ApplicationSettings{})

	mock.ExpectExec(`UPDATE keys SET .* WHERE address = \$1 AND last_updated_height <= \$2`).
		WithArgs("pokt1abc", int64(90), int64(0)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	written, err := db.UpdateKey(context.Background(), "pokt1abc", provider.KeyUpdate{LastUpdatedHeight: 90}, 90)
	require.NoError(t, err)
	assert.False(t, written)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateKey_EncodesJSONColumns(t *testing.T) {
	db, mock := newMockDB(t, provider.ApplicationSettings{})

	history := provider.RemediationHistory{}.With(provider.RemediationEntry{
		Reason:    provider.ReasonSupplierFundsTooLow,
		Message:   "balance 0 below 1000",
		Timestamp: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	})
	mock.ExpectExec(`UPDATE keys SET .*remediation_history = \$4 WHERE`).
		WithArgs("pokt1abc", int64(7), int64(0), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	written, err := db.UpdateKey(context.Background(), "pokt1abc", provider.KeyUpdate{RemediationHistory: &history}, 7)
	require.NoError(t, err)
	assert.True(t, written)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadKey_NotFound(t *testing.T) {
	db, mock := newMockDB(t, provider.ApplicationSettings{})

	mock.ExpectQuery(`SELECT .* FROM keys WHERE address = \$1`).
		WithArgs("pokt1missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := db.LoadKey(context.Background(), "pokt1missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, providerstore.ErrKeyNotFound))
}

func TestLoadKey_WithAddressGroup(t *testing.T) {
	db, mock := newMockDB(t, provider.ApplicationSettings{})
	groupID := int64(3)

	mock.ExpectQuery(`SELECT .* FROM keys WHERE address = \$1`).
		WithArgs("pokt1abc").
		WillReturnRows(keyRow(mock.NewRows(keyColumnNames), 1, "pokt1abc", &groupID, provider.KeyStateStaked))
	mock.ExpectQuery(`FROM address_groups g`).
		WithArgs(groupID).
		WillReturnRows(mock.NewRows([]string{
			"id", "name", "linked_addresses", "private", "rm_id", "rm_name", "identity", "domain", "r_id", "display_name", "url_value",
		}).AddRow(groupID, "gold", []string{"pokt1owner"}, true, int64(1), "rm", "rm-1", "example.com", int64(2), "US East", "us-east"))
	mock.ExpectQuery(`FROM address_group_services ags`).
		WithArgs(groupID).
		WillReturnRows(mock.NewRows([]string{
			"service_id", "add_supplier_share", "supplier_share", "rev_share", "name", "endpoints",
		}).AddRow("anvil", true, 10, []byte(`[{"address":"pokt1rev","share":5}]`), "Anvil",
			[]byte(`[{"url":"{scheme}://{sid}.{domain}","rpc_type":"JSON_RPC"}]`)))

	k, err := db.LoadKey(context.Background(), "pokt1abc")
	require.NoError(t, err)
	require.NotNil(t, k.AddressGroup)
	assert.Equal(t, provider.KeyStateStaked, k.State)
	assert.Equal(t, groupID, k.AddressGroupID)
	assert.Equal(t, "rm-1", k.AddressGroup.RelayMiner.Identity)
	assert.Equal(t, "us-east", k.AddressGroup.RelayMiner.Region.URLValue)
	require.Len(t, k.AddressGroup.Services, 1)
	svc := k.AddressGroup.Services[0]
	assert.Equal(t, "anvil", svc.Service.ServiceID)
	assert.Equal(t, []provider.RevShare{{Address: "pokt1rev", Share: 5}}, svc.RevShare)
	require.Len(t, svc.Service.Endpoints, 1)
	assert.True(t, k.AddressGroup.AllowsOwner("pokt1owner"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLockAvailableKeys_InTransaction(t *testing.T) {
	db, mock := newMockDB(t, provider.ApplicationSettings{})
	groupID := int64(1)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM keys\s+WHERE address_group_id = \$1 AND state = \$2\s+ORDER BY id\s+LIMIT \$3\s+FOR UPDATE SKIP LOCKED`).
		WithArgs(groupID, "available", 2).
		WillReturnRows(keyRow(keyRow(mock.NewRows(keyColumnNames), 4, "pokt1d", &groupID, provider.KeyStateAvailable),
			5, "pokt1e", &groupID, provider.KeyStateAvailable))
	mock.ExpectCommit()

	var locked []provider.Key
	err := db.InTx(context.Background(), func(ctx context.Context) error {
		var err error
		locked, err = db.LockAvailableKeys(ctx, groupID, 2)
		return err
	})
	require.NoError(t, err)
	require.Len(t, locked, 2)
	assert.Equal(t, "pokt1d", locked[0].Address)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkKeysDelivered_SortsByID(t *testing.T) {
	db, mock := newMockDB(t, provider.ApplicationSettings{})
	groupID := int64(1)

	mock.ExpectQuery(`UPDATE keys SET\s+state = \$2`).
		WithArgs([]int64{7, 6}, "delivered", "pokt1owner", "", 0, "party", pgxmock.AnyArg(), "available").
		WillReturnRows(keyRow(keyRow(mock.NewRows(keyColumnNames), 7, "pokt1g", &groupID, provider.KeyStateDelivered),
			6, "pokt1f", &groupID, provider.KeyStateDelivered))

	keys, err := db.MarkKeysDelivered(context.Background(), []int64{7, 6}, provider.Delivery{
		OwnerAddress:    "pokt1owner",
		RequestingParty: "party",
		At:              time.Now(),
	})
	require.NoError(t, err)
	require.Len(t, keys, 2)
	assert.Equal(t, int64(6), keys[0].ID)
	assert.Equal(t, int64(7), keys[1].ID)
}

func TestMarkKeysDelivered_RejectsLostReservation(t *testing.T) {
	db, mock := newMockDB(t, provider.ApplicationSettings{})
	groupID := int64(1)

	mock.ExpectQuery(`UPDATE keys SET\s+state = \$2`).
		WillReturnRows(keyRow(mock.NewRows(keyColumnNames), 6, "pokt1f", &groupID, provider.KeyStateDelivered))

	_, err := db.MarkKeysDelivered(context.Background(), []int64{6, 7}, provider.Delivery{At: time.Now()})
	require.Error(t, err)
}

func TestReleaseDelivered_FiltersByRequestingParty(t *testing.T) {
	db, mock := newMockDB(t, provider.ApplicationSettings{})

	mock.ExpectQuery(`WHERE address = ANY\(\$1\) AND delivered_to = \$2 AND state = 'delivered'`).
		WithArgs([]string{"pokt1a", "pokt1b"}, "party").
		WillReturnRows(mock.NewRows([]string{"address"}).AddRow("pokt1a"))

	released, err := db.ReleaseDelivered(context.Background(), []string{"pokt1a", "pokt1b"}, "party")
	require.NoError(t, err)
	assert.Equal(t, []string{"pokt1a"}, released)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitions_EmptyInputSkipsQuery(t *testing.T) {
	db, mock := newMockDB(t, provider.ApplicationSettings{})

	out, err := db.MarkDeliveredStaked(context.Background(), nil, "party")
	require.NoError(t, err)
	assert.Empty(t, out)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResetRemediationStates_AllWhenNoAddresses(t *testing.T) {
	db, mock := newMockDB(t, provider.ApplicationSettings{})

	mock.ExpectQuery(`WHERE state IN \('attention_needed', 'remediation_failed'\)\s+RETURNING address`).
		WithArgs().
		WillReturnRows(mock.NewRows([]string{"address"}).AddRow("pokt1a").AddRow("pokt1b"))

	reset, err := db.ResetRemediationStates(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"pokt1a", "pokt1b"}, reset)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadKeysWithRemediation_UsesContainment(t *testing.T) {
	db, mock := newMockDB(t, provider.ApplicationSettings{})

	mock.ExpectQuery(`remediation_history @> jsonb_build_array\(jsonb_build_object\('reason', \$2::text\)\)`).
		WithArgs([]string{"staked"}, "owner_initial_stake").
		WillReturnRows(mock.NewRows([]string{"id", "address"}).AddRow(int64(2), "pokt1b"))

	refs, err := db.LoadKeysWithRemediation(context.Background(), provider.ReasonOwnerInitialStake, []provider.KeyState{provider.KeyStateStaked})
	require.NoError(t, err)
	assert.Equal(t, []provider.KeyRef{{ID: 2, Address: "pokt1b"}}, refs)
}

func TestGetKeysMinAndMax(t *testing.T) {
	db, mock := newMockDB(t, provider.ApplicationSettings{})

	mock.ExpectQuery(`SELECT COUNT\(\*\), COALESCE\(MIN\(id\), 0\), COALESCE\(MAX\(id\), 0\) FROM keys`).
		WillReturnRows(mock.NewRows([]string{"count", "min", "max"}).AddRow(int64(10), int64(1), int64(12)))

	mm, err := db.GetKeysMinAndMax(context.Background())
	require.NoError(t, err)
	assert.Equal(t, provider.KeysMinMax{Total: 10, MinID: 1, MaxID: 12}, mm)
}

func TestLoadSettings_FallsBackToDefaults(t *testing.T) {
	defaults := provider.ApplicationSettings{ChainID: "pocket", MinimumStake: 60_000_000_000}
	db, mock := newMockDB(t, defaults)

	mock.ExpectQuery(`FROM application_settings`).WillReturnError(pgx.ErrNoRows)

	s, err := db.LoadSettings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, defaults, *s)
}

func TestLoadSettings_NoDefaults(t *testing.T) {
	db, mock := newMockDB(t, provider.ApplicationSettings{})

	mock.ExpectQuery(`FROM application_settings`).WillReturnError(pgx.ErrNoRows)

	_, err := db.LoadSettings(context.Background())
	assert.ErrorIs(t, err, providerstore.ErrSettingsNotFound)
}

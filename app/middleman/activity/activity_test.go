package activity

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	sdktemporal "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"
	"go.uber.org/zap/zaptest"

	"github.com/igniter-labs/igniterx/app/middleman/types"
	"github.com/igniter-labs/igniterx/pkg/db/models/middleman"
	"github.com/igniter-labs/igniterx/pkg/notify"
	"github.com/igniter-labs/igniterx/pkg/pocket"
)

const (
	owner       = "pokt1owner"
	providerID  = "provider-one"
	middlemanID = "middleman-one"
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func payload(t *testing.T, msgs ...middleman.Message) string {
	b, err := json.Marshal(msgs)
	require.NoError(t, err)
	return string(b)
}

func stakeMsg(operator string) middleman.Message {
	return middleman.Message{Kind: middleman.MessageKindStake, Stake: &middleman.StakeMessage{
		Signer:          owner,
		OwnerAddress:    owner,
		OperatorAddress: operator,
		StakeAmount:     "60000000000",
	}}
}

func unstakeMsg(operator string) middleman.Message {
	return middleman.Message{Kind: middleman.MessageKindUnstake, Unstake: &middleman.UnstakeMessage{
		Signer:          owner,
		OperatorAddress: operator,
	}}
}

func fundsMsg(to string) middleman.Message {
	return middleman.Message{Kind: middleman.MessageKindFunds, Funds: &middleman.FundsMessage{ToAddress: to, Amount: "1000000"}}
}

func newTestContext(t *testing.T, store *fakeStore, chain *fakeChain, pub *fakePublisher) *Context {
	return &Context{
		Logger:       zaptest.NewLogger(t),
		Store:        store,
		Chain:        chain,
		Publisher:    pub,
		PollInterval: time.Millisecond,
		Identity:     middlemanID,
		Clock:        func() time.Time { return testNow },
	}
}

func newEnv() *testsuite.TestActivityEnvironment {
	suite := testsuite.WorkflowTestSuite{}
	return suite.NewTestActivityEnvironment()
}

func requireAppError(t *testing.T, err error, errType string, nonRetryable bool) {
	t.Helper()
	var appErr *sdktemporal.ApplicationError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, errType, appErr.Type())
	require.Equal(t, nonRetryable, appErr.NonRetryable())
}

func TestGetTransactionMissingIsNotRetried(t *testing.T) {
	c := newTestContext(t, newFakeStore(), newFakeChain(1), &fakePublisher{})
	env := newEnv()
	env.RegisterActivity(c.GetTransaction)

	_, err := env.ExecuteActivity(c.GetTransaction, int64(42))
	requireAppError(t, err, "not_found", true)
}

func TestExecuteTransactionSubmitsSignedPayload(t *testing.T) {
	store := newFakeStore(middleman.Transaction{ID: 7, Type: middleman.TransactionTypeStake, Status: middleman.TransactionStatusPending, SignedPayload: "c2lnbmVk"})
	chain := newFakeChain(100)
	chain.submitResult = pocket.SubmitResult{TransactionHash: "ABCD"}
	c := newTestContext(t, store, chain, &fakePublisher{})

	env := newEnv()
	env.RegisterActivity(c.ExecuteTransaction)
	future, err := env.ExecuteActivity(c.ExecuteTransaction, int64(7))
	require.NoError(t, err)

	var res pocket.SubmitResult
	require.NoError(t, future.Get(&res))
	require.Equal(t, "ABCD", res.TransactionHash)
	require.Equal(t, []string{"c2lnbmVk"}, chain.submitted)
}

func TestExecuteTransactionWithoutSignedPayloadFails(t *testing.T) {
	store := newFakeStore(middleman.Transaction{ID: 7, Status: middleman.TransactionStatusPending})
	chain := newFakeChain(100)
	c := newTestContext(t, store, chain, &fakePublisher{})

	env := newEnv()
	env.RegisterActivity(c.ExecuteTransaction)
	_, err := env.ExecuteActivity(c.ExecuteTransaction, int64(7))
	requireAppError(t, err, "invalid_payload", true)
	require.Empty(t, chain.submitted)
}

func TestUpdateTransactionAppliesPartialUpdate(t *testing.T) {
	store := newFakeStore(middleman.Transaction{ID: 3, Status: middleman.TransactionStatusPending, Hash: "H"})
	c := newTestContext(t, store, newFakeChain(1), &fakePublisher{})

	status := middleman.TransactionStatusSuccess
	height := int64(120)
	fee := int64(2500)

	env := newEnv()
	env.RegisterActivity(c.UpdateTransaction)
	_, err := env.ExecuteActivity(c.UpdateTransaction, types.ActivityUpdateTransactionInput{
		TransactionID: 3,
		Type:          middleman.TransactionTypeStake,
		Update:        middleman.TransactionUpdate{Status: &status, VerificationHeight: &height, ConsumedFee: &fee},
	})
	require.NoError(t, err)

	tx := store.tx(3)
	require.Equal(t, middleman.TransactionStatusSuccess, tx.Status)
	require.Equal(t, "H", tx.Hash)
	require.Equal(t, int64(120), *tx.VerificationHeight)
	require.Equal(t, int64(2500), tx.ConsumedFee)
}

func TestWaitForNextBlockReturnsFirstHigherHeight(t *testing.T) {
	chain := newFakeChain(100, 100, 100, 101)
	c := newTestContext(t, newFakeStore(), chain, &fakePublisher{})

	env := newEnv()
	env.RegisterActivity(c.WaitForNextBlock)
	future, err := env.ExecuteActivity(c.WaitForNextBlock, types.ActivityWaitForNextBlockInput{Height: 100})
	require.NoError(t, err)

	var height int64
	require.NoError(t, future.Get(&height))
	require.Equal(t, int64(101), height)
}

func TestVerifyTransactionNotIndexedIsRetryable(t *testing.T) {
	chain := newFakeChain(1)
	chain.verifyErr = fmt.Errorf("lookup ABCD: %w", pocket.ErrTxNotFound)
	c := newTestContext(t, newFakeStore(), chain, &fakePublisher{})

	env := newEnv()
	env.RegisterActivity(c.VerifyTransaction)
	_, err := env.ExecuteActivity(c.VerifyTransaction, types.ActivityVerifyTransactionInput{Hash: "ABCD"})
	requireAppError(t, err, "tx_not_found", false)
}

func TestCreateNewNodesFromTransaction(t *testing.T) {
	verified := int64(130)
	store := newFakeStore(middleman.Transaction{
		ID:                 9,
		Type:               middleman.TransactionTypeStake,
		Status:             middleman.TransactionStatusSuccess,
		VerificationHeight: &verified,
		UnsignedPayload:    payload(t, stakeMsg("pokt1a"), fundsMsg("pokt1a"), stakeMsg("pokt1b")),
		ProviderID:         providerID,
		CreatedBy:          "alice@example.com",
	})
	c := newTestContext(t, store, newFakeChain(1), &fakePublisher{})

	env := newEnv()
	env.RegisterActivity(c.CreateNewNodesFromTransaction)
	future, err := env.ExecuteActivity(c.CreateNewNodesFromTransaction, int64(9))
	require.NoError(t, err)

	var refs []middleman.NodeRef
	require.NoError(t, future.Get(&refs))
	require.Len(t, refs, 2)
	require.Equal(t, "pokt1a", refs[0].Address)
	require.Equal(t, "pokt1b", refs[1].Address)

	n := store.node("pokt1b")
	require.Equal(t, middleman.NodeStatusStaked, n.Status)
	require.Equal(t, owner, n.OwnerAddress)
	require.Equal(t, int64(60_000_000_000), n.StakeAmount)
	require.Equal(t, providerID, n.ProviderID)
	require.Equal(t, int64(130), n.LastUpdatedHeight)
	require.Equal(t, []string{"pokt1a", "pokt1b"}, store.links[9])
}

func TestCreateNewNodesRejectsUndecodablePayload(t *testing.T) {
	store := newFakeStore(middleman.Transaction{ID: 9, Type: middleman.TransactionTypeStake, UnsignedPayload: "{"})
	c := newTestContext(t, store, newFakeChain(1), &fakePublisher{})

	env := newEnv()
	env.RegisterActivity(c.CreateNewNodesFromTransaction)
	_, err := env.ExecuteActivity(c.CreateNewNodesFromTransaction, int64(9))
	requireAppError(t, err, "invalid_payload", true)
}

func TestUpdateUnstakingNodesFromTransaction(t *testing.T) {
	store := newFakeStore(middleman.Transaction{
		ID:              11,
		Type:            middleman.TransactionTypeUnstake,
		UnsignedPayload: payload(t, unstakeMsg("pokt1a"), unstakeMsg("pokt1unknown")),
	})
	store.addNode(middleman.Node{Address: "pokt1a", Status: middleman.NodeStatusStaked})
	c := newTestContext(t, store, newFakeChain(1), &fakePublisher{})

	env := newEnv()
	env.RegisterActivity(c.UpdateUnstakingNodesFromTransaction)
	future, err := env.ExecuteActivity(c.UpdateUnstakingNodesFromTransaction, int64(11))
	require.NoError(t, err)

	var updated []string
	require.NoError(t, future.Get(&updated))
	require.Equal(t, []string{"pokt1a"}, updated)
	require.Equal(t, middleman.NodeStatusUnstaking, store.node("pokt1a").Status)
}

func TestNotifyProviderOfStakedAddresses(t *testing.T) {
	store := newFakeStore(middleman.Transaction{
		ID:              9,
		Type:            middleman.TransactionTypeStake,
		UnsignedPayload: payload(t, stakeMsg("pokt1a"), stakeMsg("pokt1b")),
		ProviderID:      providerID,
		CreatedBy:       "alice@example.com",
	})
	pub := &fakePublisher{}
	c := newTestContext(t, store, newFakeChain(1), pub)

	env := newEnv()
	env.RegisterActivity(c.NotifyProviderOfStakedAddresses)
	future, err := env.ExecuteActivity(c.NotifyProviderOfStakedAddresses, int64(9))
	require.NoError(t, err)

	var out types.ActivityNotifyOutput
	require.NoError(t, future.Get(&out))
	require.Equal(t, 2, out.Addresses)
	require.Equal(t, "1-0", out.EntryID)

	require.Len(t, pub.sent, 1)
	sent := pub.sent[0]
	require.Equal(t, providerID, sent.identity)
	require.Equal(t, notify.KindNodesStaked, sent.n.Kind)
	require.Equal(t, []string{"pokt1a", "pokt1b"}, sent.n.Addresses)
	require.Equal(t, middlemanID, sent.n.RequestingParty)
	require.Equal(t, int64(9), sent.n.TransactionID)
}

func TestNotifyFallsBackToCreatorAsRequestingParty(t *testing.T) {
	store := newFakeStore(middleman.Transaction{
		ID:              12,
		Type:            middleman.TransactionTypeUnstake,
		UnsignedPayload: payload(t, unstakeMsg("pokt1a")),
		ProviderID:      providerID,
		CreatedBy:       "alice@example.com",
	})
	pub := &fakePublisher{}
	c := newTestContext(t, store, newFakeChain(1), pub)
	c.Identity = ""

	env := newEnv()
	env.RegisterActivity(c.NotifyProviderOfUnstakingAddresses)
	_, err := env.ExecuteActivity(c.NotifyProviderOfUnstakingAddresses, int64(12))
	require.NoError(t, err)

	require.Len(t, pub.sent, 1)
	require.Equal(t, notify.KindNodesUnstaking, pub.sent[0].n.Kind)
	require.Equal(t, "alice@example.com", pub.sent[0].n.RequestingParty)
}

func TestNotifySkipsTransactionsWithoutProvider(t *testing.T) {
	store := newFakeStore(middleman.Transaction{
		ID:              13,
		Type:            middleman.TransactionTypeStake,
		UnsignedPayload: payload(t, stakeMsg("pokt1a")),
	})
	pub := &fakePublisher{}
	c := newTestContext(t, store, newFakeChain(1), pub)

	env := newEnv()
	env.RegisterActivity(c.NotifyProviderOfFailedStakes)
	future, err := env.ExecuteActivity(c.NotifyProviderOfFailedStakes, int64(13))
	require.NoError(t, err)

	var out types.ActivityNotifyOutput
	require.NoError(t, future.Get(&out))
	require.True(t, out.Skipped)
	require.Empty(t, pub.sent)
}

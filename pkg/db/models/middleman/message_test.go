package middleman

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

const payload = `[
	{"typeUrl":"/pocket.supplier.MsgStakeSupplier","body":{"signer":"pokt1owner","ownerAddress":"pokt1owner","operatorAddress":"pokt1op1","stakeAmount":"60000000000","services":[{"serviceId":"anvil","revShare":[{"address":"pokt1owner","revSharePercentage":100}],"endpoints":[{"url":"https://a","rpcType":"JSON_RPC","configs":[]}]}]}},
	{"typeUrl":"/cosmos.bank.v1beta1.MsgSend","body":{"toAddress":"pokt1op1","amount":"1000000"}},
	{"typeUrl":"/pocket.supplier.MsgUnstakeSupplier","body":{"signer":"pokt1owner","operatorAddress":"pokt1op2"}}
]`

func TestParseMessages(t *testing.T) {
	msgs, err := ParseMessages(payload)
	require.NoError(t, err)
	require.Len(t, msgs, 3)

	require.Equal(t, MessageKindStake, msgs[0].Kind)
	require.NotNil(t, msgs[0].Stake)
	require.Nil(t, msgs[0].Unstake)
	amount, err := msgs[0].Stake.Amount()
	require.NoError(t, err)
	require.Equal(t, int64(60_000_000_000), amount)

	require.Equal(t, MessageKindFunds, msgs[1].Kind)
	require.Equal(t, "1000000", msgs[1].Funds.Amount)
	require.Equal(t, MessageKindUnstake, msgs[2].Kind)

	require.Equal(t, []string{"pokt1op1", "pokt1op2"}, OperatorAddresses(msgs))
}

func TestMessageRoundTripKeepsTypeURL(t *testing.T) {
	msgs, err := ParseMessages(payload)
	require.NoError(t, err)
	b, err := json.Marshal(msgs)
	require.NoError(t, err)
	require.JSONEq(t, payload, string(b))
}

func TestParseMessagesRejectsUnknownType(t *testing.T) {
	_, err := ParseMessages(`[{"typeUrl":"/cosmos.gov.v1.MsgVote","body":{}}]`)
	require.Error(t, err)
	_, err = ParseMessages(`not json`)
	require.Error(t, err)
}

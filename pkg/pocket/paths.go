package pocket

import "net/url"

const (
	latestBlockPath = "/cosmos/base/tendermint/v1beta1/blocks/latest"
	balancePath     = "/cosmos/bank/v1beta1/balances/%s/by_denom"
	supplierPath    = "/pokt-network/poktroll/supplier/supplier/%s"
	accountInfoPath = "/cosmos/auth/v1beta1/account_info/%s"
	broadcastPath   = "/cosmos/tx/v1beta1/txs"
	txByHashPath    = "/cosmos/tx/v1beta1/txs/%s"
)

const (
	msgStakeSupplierTypeURL = "/pocket.supplier.MsgStakeSupplier"
	secp256k1PubKeyTypeURL  = "/cosmos.crypto.secp256k1.PubKey"
	broadcastModeSync       = "BROADCAST_MODE_SYNC"
)

func withQuery(path string, values url.Values) string {
	if len(values) == 0 {
		return path
	}
	return path + "?" + values.Encode()
}

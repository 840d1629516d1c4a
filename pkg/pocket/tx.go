package pocket

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

type broadcastRequest struct {
	TxBytes string `json:"tx_bytes"`
	Mode    string `json:"mode"`
}

type txResponse struct {
	Height  string `json:"height"`
	TxHash  string `json:"txhash"`
	Code    uint32 `json:"code"`
	RawLog  string `json:"raw_log"`
	GasUsed string `json:"gas_used"`
}

type txResponseEnvelope struct {
	TxResponse txResponse `json:"tx_response"`
}

// StakeSupplier builds, signs and broadcasts a MsgStakeSupplier where the operator key is
// the signer. Success means the transaction passed CheckTx; inclusion is observed later by
// re-reading the supplier.
func (c *HTTPClient) StakeSupplier(ctx context.Context, p StakeSupplierParams) (TxResult, error) {
	priv, err := parsePrivateKey(p.PrivateKeyHex)
	if err != nil {
		return TxResult{}, err
	}
	pub := priv.PubKey().SerializeCompressed()
	signer, err := AddressFromPublicKey(pub)
	if err != nil {
		return TxResult{}, err
	}
	if p.OperatorAddress != "" && p.OperatorAddress != signer {
		return TxResult{}, fmt.Errorf("operator %s does not match signing key %s", p.OperatorAddress, signer)
	}

	acc, err := c.account(ctx, signer)
	if err != nil {
		return TxResult{}, err
	}

	msg := encodeAny(msgStakeSupplierTypeURL, encodeMsgStakeSupplier(signer, p))
	body := encodeTxBody([][]byte{msg}, "")
	authInfo := encodeAuthInfo(pub, acc.Sequence, NewCoin(c.feeUpokt), c.gasLimit)
	signature := signDirect(priv, encodeSignDoc(body, authInfo, p.ChainID, acc.Number))

	resp, err := c.broadcast(ctx, encodeTxRaw(body, authInfo, signature))
	if err != nil {
		return TxResult{}, err
	}
	return TxResult{
		Success:         resp.Code == 0,
		Code:            resp.Code,
		Message:         resp.RawLog,
		TransactionHash: resp.TxHash,
	}, nil
}

// SubmitTransaction broadcasts a transaction signed elsewhere. The payload is the raw
// TxRaw bytes, hex or base64 encoded.
func (c *HTTPClient) SubmitTransaction(ctx context.Context, signedPayload string) (SubmitResult, error) {
	txBytes, err := decodePayload(signedPayload)
	if err != nil {
		return SubmitResult{}, err
	}
	resp, err := c.broadcast(ctx, txBytes)
	if err != nil {
		return SubmitResult{}, err
	}
	out := SubmitResult{Code: resp.Code, Message: resp.RawLog}
	if resp.Code == 0 {
		out.TransactionHash = resp.TxHash
	}
	return out, nil
}

// VerifyTransaction looks up an included transaction. It returns ErrTxNotFound while the
// transaction is not indexed yet.
func (c *HTTPClient) VerifyTransaction(ctx context.Context, hash string) (TxVerification, error) {
	var env txResponseEnvelope
	if err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf(txByHashPath, url.PathEscape(hash)), nil, &env); err != nil {
		if IsNotFound(err) {
			return TxVerification{}, fmt.Errorf("%s: %w", hash, ErrTxNotFound)
		}
		return TxVerification{}, fmt.Errorf("verify %s: %w", hash, err)
	}
	gas, err := strconv.ParseInt(defaultZero(env.TxResponse.GasUsed), 10, 64)
	if err != nil {
		return TxVerification{}, fmt.Errorf("parse gas used: %w", err)
	}
	return TxVerification{
		Success: env.TxResponse.Code == 0,
		Code:    env.TxResponse.Code,
		GasUsed: gas,
	}, nil
}

func (c *HTTPClient) broadcast(ctx context.Context, txBytes []byte) (txResponse, error) {
	var env txResponseEnvelope
	req := broadcastRequest{
		TxBytes: base64.StdEncoding.EncodeToString(txBytes),
		Mode:    broadcastModeSync,
	}
	if err := c.doJSON(ctx, http.MethodPost, broadcastPath, req, &env); err != nil {
		return txResponse{}, fmt.Errorf("broadcast: %w", err)
	}
	return env.TxResponse, nil
}

func decodePayload(payload string) ([]byte, error) {
	payload = strings.TrimSpace(strings.TrimPrefix(payload, "0x"))
	if payload == "" {
		return nil, fmt.Errorf("empty signed payload")
	}
	if b, err := hex.DecodeString(payload); err == nil {
		return b, nil
	}
	b, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("signed payload is neither hex nor base64: %w", err)
	}
	return b, nil
}

func defaultZero(s string) string {
	if s == "" {
		return "0"
	}
	return s
}

package pocket

import (
	"google.golang.org/protobuf/encoding/protowire"
)

// Hand rolled protobuf encoders for the handful of cosmos and poktroll messages the
// adapter signs. Field numbers follow the upstream .proto definitions.

const signModeDirect = 1

var configOptionKeys = map[string]int32{
	"UNKNOWN_CONFIG": 0,
	"TIMEOUT":        1,
}

func appendString(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func appendBytes(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

// appendMessage always writes the field, an empty nested message is still present.
func appendMessage(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func encodeAny(typeURL string, value []byte) []byte {
	var b []byte
	b = appendString(b, 1, typeURL)
	b = appendBytes(b, 2, value)
	return b
}

func encodeCoin(c Coin) []byte {
	var b []byte
	b = appendString(b, 1, c.Denom)
	b = appendString(b, 2, c.Amount)
	return b
}

func encodeEndpoint(e Endpoint) []byte {
	var b []byte
	b = appendString(b, 1, e.URL)
	b = appendVarint(b, 2, uint64(e.RPCType))
	for _, opt := range e.Configs {
		var o []byte
		o = appendVarint(o, 1, uint64(configOptionKeys[opt.Key]))
		o = appendString(o, 2, opt.Value)
		b = appendMessage(b, 3, o)
	}
	return b
}

func encodeServiceConfig(s ServiceConfig) []byte {
	var b []byte
	b = appendString(b, 1, s.ServiceID)
	for _, e := range s.Endpoints {
		b = appendMessage(b, 2, encodeEndpoint(e))
	}
	for _, rs := range s.RevShare {
		var r []byte
		r = appendString(r, 1, rs.Address)
		// field 2 is the retired float percentage
		r = appendVarint(r, 3, rs.RevSharePercentage)
		b = appendMessage(b, 3, r)
	}
	return b
}

func encodeMsgStakeSupplier(signer string, p StakeSupplierParams) []byte {
	var b []byte
	b = appendString(b, 1, signer)
	b = appendString(b, 2, p.OwnerAddress)
	b = appendString(b, 3, p.OperatorAddress)
	if p.Stake != nil {
		b = appendMessage(b, 4, encodeCoin(*p.Stake))
	}
	for _, s := range p.Services {
		b = appendMessage(b, 5, encodeServiceConfig(s))
	}
	return b
}

func encodeTxBody(messages [][]byte, memo string) []byte {
	var b []byte
	for _, m := range messages {
		b = appendMessage(b, 1, m)
	}
	b = appendString(b, 2, memo)
	return b
}

func encodeAuthInfo(pubKey []byte, sequence uint64, fee Coin, gasLimit uint64) []byte {
	var pk []byte
	pk = appendBytes(pk, 1, pubKey)

	var single []byte
	single = appendVarint(single, 1, signModeDirect)
	var modeInfo []byte
	modeInfo = appendMessage(modeInfo, 1, single)

	var signerInfo []byte
	signerInfo = appendMessage(signerInfo, 1, encodeAny(secp256k1PubKeyTypeURL, pk))
	signerInfo = appendMessage(signerInfo, 2, modeInfo)
	signerInfo = appendVarint(signerInfo, 3, sequence)

	var feeMsg []byte
	feeMsg = appendMessage(feeMsg, 1, encodeCoin(fee))
	feeMsg = appendVarint(feeMsg, 2, gasLimit)

	var b []byte
	b = appendMessage(b, 1, signerInfo)
	b = appendMessage(b, 2, feeMsg)
	return b
}

func encodeSignDoc(body, authInfo []byte, chainID string, accountNumber uint64) []byte {
	var b []byte
	b = appendBytes(b, 1, body)
	b = appendBytes(b, 2, authInfo)
	b = appendString(b, 3, chainID)
	b = appendVarint(b, 4, accountNumber)
	return b
}

func encodeTxRaw(body, authInfo, signature []byte) []byte {
	var b []byte
	b = appendBytes(b, 1, body)
	b = appendBytes(b, 2, authInfo)
	b = appendBytes(b, 3, signature)
	return b
}

package pocket

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

const (
	// Denom is the base unit every amount in this module is expressed in.
	Denom = "upokt"
	// AddressPrefix is the bech32 human readable part of account addresses.
	AddressPrefix = "pokt"
)

// RPCType mirrors the on-chain enum of the same name.
type RPCType int32

const (
	RPCTypeUnknown RPCType = iota
	RPCTypeGRPC
	RPCTypeWebsocket
	RPCTypeJSONRPC
	RPCTypeREST
	RPCTypeCometBFT
)

var rpcTypeNames = map[RPCType]string{
	RPCTypeUnknown:   "UNKNOWN_RPC",
	RPCTypeGRPC:      "GRPC",
	RPCTypeWebsocket: "WEBSOCKET",
	RPCTypeJSONRPC:   "JSON_RPC",
	RPCTypeREST:      "REST",
	RPCTypeCometBFT:  "COMET_BFT",
}

func (t RPCType) String() string {
	if name, ok := rpcTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("RPCType(%d)", int32(t))
}

func (t RPCType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON accepts both the enum name and its number, the gateway emits names
// while older payloads stored numbers.
func (t *RPCType) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err == nil {
		for k, v := range rpcTypeNames {
			if strings.EqualFold(v, name) {
				*t = k
				return nil
			}
		}
		if n, convErr := strconv.Atoi(name); convErr == nil {
			*t = RPCType(n)
			return nil
		}
		return fmt.Errorf("unknown rpc type %q", name)
	}
	var n int32
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("rpc type: %w", err)
	}
	*t = RPCType(n)
	return nil
}

// Coin is an amount of a denom. Amount stays a decimal string as on the wire.
type Coin struct {
	Denom  string `json:"denom"`
	Amount string `json:"amount"`
}

// Int64 parses the amount, treating an empty amount as zero.
func (c Coin) Int64() (int64, error) {
	if c.Amount == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(c.Amount, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse coin amount %q: %w", c.Amount, err)
	}
	return v, nil
}

func NewCoin(amount int64) Coin {
	return Coin{Denom: Denom, Amount: strconv.FormatInt(amount, 10)}
}

type ConfigOption struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type Endpoint struct {
	URL     string         `json:"url"`
	RPCType RPCType        `json:"rpc_type"`
	Configs []ConfigOption `json:"configs,omitempty"`
}

type RevShare struct {
	Address            string `json:"address"`
	RevSharePercentage uint64 `json:"rev_share_percentage,string"`
}

// ServiceConfig is one service a supplier serves, with its endpoints and reward split.
type ServiceConfig struct {
	ServiceID string     `json:"service_id"`
	Endpoints []Endpoint `json:"endpoints"`
	RevShare  []RevShare `json:"rev_share"`
}

type ServiceConfigUpdate struct {
	OperatorAddress    string         `json:"operator_address"`
	Service            *ServiceConfig `json:"service,omitempty"`
	ActivationHeight   int64          `json:"activation_height,string"`
	DeactivationHeight int64          `json:"deactivation_height,string"`
}

// Supplier is the on-chain supplier record.
type Supplier struct {
	OwnerAddress            string                `json:"owner_address"`
	OperatorAddress         string                `json:"operator_address"`
	Stake                   Coin                  `json:"stake"`
	Services                []ServiceConfig       `json:"services"`
	UnstakeSessionEndHeight int64                 `json:"unstake_session_end_height,string"`
	ServiceConfigHistory    []ServiceConfigUpdate `json:"service_config_history"`
}

// Pristine reports a supplier staked by its owner without any service configuration.
func (s *Supplier) Pristine() bool {
	return len(s.Services) == 0 && len(s.ServiceConfigHistory) == 0
}

// StakeAmount returns the staked amount in upokt.
func (s *Supplier) StakeAmount() (int64, error) {
	return s.Stake.Int64()
}

// StakeSupplierParams describes a MsgStakeSupplier signed by the operator key.
type StakeSupplierParams struct {
	ChainID         string
	PrivateKeyHex   string
	OwnerAddress    string
	OperatorAddress string
	// Stake is optional, an operator re-stake that only updates services leaves it nil.
	Stake    *Coin
	Services []ServiceConfig
}

// Redacted is safe to log.
func (p StakeSupplierParams) Redacted() map[string]any {
	return map[string]any{
		"chain_id":         p.ChainID,
		"owner_address":    p.OwnerAddress,
		"operator_address": p.OperatorAddress,
		"services":         len(p.Services),
	}
}

// TxResult is the outcome of a transaction the adapter built and broadcast itself.
type TxResult struct {
	Success         bool   `json:"success"`
	Code            uint32 `json:"code"`
	Message         string `json:"message"`
	TransactionHash string `json:"transaction_hash,omitempty"`
}

// SubmitResult is the outcome of broadcasting a pre-signed payload. TransactionHash is
// empty when the chain refused the transaction.
type SubmitResult struct {
	TransactionHash string `json:"transaction_hash,omitempty"`
	Code            uint32 `json:"code"`
	Message         string `json:"message"`
}

type TxVerification struct {
	Success bool   `json:"success"`
	Code    uint32 `json:"code"`
	GasUsed int64  `json:"gas_used"`
}

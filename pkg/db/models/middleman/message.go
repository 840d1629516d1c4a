package middleman

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// MessageKind tags which body a Message carries.
type MessageKind string

const (
	MessageKindStake   MessageKind = "stake"
	MessageKindUnstake MessageKind = "unstake"
	MessageKindFunds   MessageKind = "funds"
)

const (
	TypeURLStakeSupplier   = "/pocket.supplier.MsgStakeSupplier"
	TypeURLUnstakeSupplier = "/pocket.supplier.MsgUnstakeSupplier"
	TypeURLSend            = "/cosmos.bank.v1beta1.MsgSend"
)

type MessageRevShare struct {
	Address            string `json:"address"`
	RevSharePercentage int    `json:"revSharePercentage"`
}

type MessageEndpointConfig struct {
	Key   int    `json:"key"`
	Value string `json:"value"`
}

type MessageEndpoint struct {
	URL     string                  `json:"url"`
	RPCType string                  `json:"rpcType"`
	Configs []MessageEndpointConfig `json:"configs"`
}

type MessageService struct {
	ServiceID string            `json:"serviceId"`
	RevShare  []MessageRevShare `json:"revShare"`
	Endpoints []MessageEndpoint `json:"endpoints"`
}

type StakeMessage struct {
	Signer          string           `json:"signer"`
	OwnerAddress    string           `json:"ownerAddress"`
	OperatorAddress string           `json:"operatorAddress"`
	StakeAmount     string           `json:"stakeAmount"`
	Services        []MessageService `json:"services"`
}

// Amount parses the stake amount in upokt.
func (m *StakeMessage) Amount() (int64, error) {
	v, err := strconv.ParseInt(m.StakeAmount, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("stake amount %q: %w", m.StakeAmount, err)
	}
	return v, nil
}

type UnstakeMessage struct {
	Signer          string `json:"signer"`
	OperatorAddress string `json:"operatorAddress"`
}

type FundsMessage struct {
	ToAddress string `json:"toAddress"`
	Amount    string `json:"amount"`
}

// Message is one message of a transaction. Exactly one body is set, matching Kind.
type Message struct {
	Kind    MessageKind
	Stake   *StakeMessage
	Unstake *UnstakeMessage
	Funds   *FundsMessage
}

type wireMessage struct {
	TypeURL string          `json:"typeUrl"`
	Body    json.RawMessage `json:"body"`
}

func (m Message) MarshalJSON() ([]byte, error) {
	var (
		typeURL string
		body    any
	)
	switch m.Kind {
	case MessageKindStake:
		typeURL, body = TypeURLStakeSupplier, m.Stake
	case MessageKindUnstake:
		typeURL, body = TypeURLUnstakeSupplier, m.Unstake
	case MessageKindFunds:
		typeURL, body = TypeURLSend, m.Funds
	default:
		return nil, fmt.Errorf("unknown message kind %q", m.Kind)
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireMessage{TypeURL: typeURL, Body: raw})
}

func (m *Message) UnmarshalJSON(b []byte) error {
	var w wireMessage
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	out := Message{}
	switch w.TypeURL {
	case TypeURLStakeSupplier:
		out.Kind, out.Stake = MessageKindStake, &StakeMessage{}
		if err := json.Unmarshal(w.Body, out.Stake); err != nil {
			return fmt.Errorf("stake message: %w", err)
		}
	case TypeURLUnstakeSupplier:
		out.Kind, out.Unstake = MessageKindUnstake, &UnstakeMessage{}
		if err := json.Unmarshal(w.Body, out.Unstake); err != nil {
			return fmt.Errorf("unstake message: %w", err)
		}
	case TypeURLSend:
		out.Kind, out.Funds = MessageKindFunds, &FundsMessage{}
		if err := json.Unmarshal(w.Body, out.Funds); err != nil {
			return fmt.Errorf("funds message: %w", err)
		}
	default:
		return fmt.Errorf("unsupported message type %q", w.TypeURL)
	}
	*m = out
	return nil
}

// ParseMessages decodes an unsigned payload.
func ParseMessages(unsignedPayload string) ([]Message, error) {
	var msgs []Message
	if err := json.Unmarshal([]byte(unsignedPayload), &msgs); err != nil {
		return nil, fmt.Errorf("parse unsigned payload: %w", err)
	}
	return msgs, nil
}

// OperatorAddresses returns the operator of every stake or unstake message, in order.
func OperatorAddresses(msgs []Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		switch m.Kind {
		case MessageKindStake:
			out = append(out, m.Stake.OperatorAddress)
		case MessageKindUnstake:
			out = append(out, m.Unstake.OperatorAddress)
		case MessageKindFunds:
		}
	}
	return out
}

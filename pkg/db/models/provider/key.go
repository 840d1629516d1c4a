package provider

import (
	"time"

	"github.com/igniter-labs/igniterx/pkg/pocket"
)

const KeysTableName = "keys"

// KeyState is the lifecycle state of an operator key.
type KeyState string

const (
	KeyStateImported          KeyState = "imported"
	KeyStateAvailable         KeyState = "available"
	KeyStateDelivered         KeyState = "delivered"
	KeyStateStaked            KeyState = "staked"
	KeyStateUnstaking         KeyState = "unstaking"
	KeyStateUnstaked          KeyState = "unstaked"
	KeyStateMissingStake      KeyState = "missing_stake"
	KeyStateAttentionNeeded   KeyState = "attention_needed"
	KeyStateRemediationFailed KeyState = "remediation_failed"
)

// AllKeyStates lists every state in lifecycle order.
var AllKeyStates = []KeyState{
	KeyStateImported,
	KeyStateAvailable,
	KeyStateDelivered,
	KeyStateStaked,
	KeyStateUnstaking,
	KeyStateUnstaked,
	KeyStateMissingStake,
	KeyStateAttentionNeeded,
	KeyStateRemediationFailed,
}

func (s KeyState) Valid() bool {
	for _, known := range AllKeyStates {
		if s == known {
			return true
		}
	}
	return false
}

// Key is the provider's record of one operator key and the supplier it backs.
type Key struct {
	ID             int64    `json:"id"`
	Address        string   `json:"address"`
	PublicKey      string   `json:"public_key"`
	PrivateKey     string   `json:"-"`
	AddressGroupID int64    `json:"address_group_id"`
	State          KeyState `json:"state"`

	OwnerAddress     string                 `json:"owner_address,omitempty"`
	StakeOwner       string                 `json:"stake_owner,omitempty"`
	StakeAmountUpokt int64                  `json:"stake_amount_upokt"`
	Services         []pocket.ServiceConfig `json:"services,omitempty"`

	DelegatorRewardsAddress     string `json:"delegator_rewards_address,omitempty"`
	DelegatorRevSharePercentage int    `json:"delegator_rev_share_percentage"`

	DeliveredTo string     `json:"delivered_to,omitempty"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`

	BalanceUpokt       int64              `json:"balance_upokt"`
	LastUpdatedHeight  int64              `json:"last_updated_height"`
	RemediationHistory RemediationHistory `json:"remediation_history"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasDelegator reports whether rewards can be split with a delegator.
func (k *Key) HasDelegator() bool {
	return k.DelegatorRewardsAddress != ""
}

// KeyUpdate is a partial update applied under the height guard. Nil fields are left
// untouched; balance and height are always written.
type KeyUpdate struct {
	State              *KeyState               `json:"state,omitempty"`
	OwnerAddress       *string                 `json:"owner_address,omitempty"`
	StakeOwner         *string                 `json:"stake_owner,omitempty"`
	StakeAmountUpokt   *int64                  `json:"stake_amount_upokt,omitempty"`
	Services           *[]pocket.ServiceConfig `json:"services,omitempty"`
	RemediationHistory *RemediationHistory     `json:"remediation_history,omitempty"`
	BalanceUpokt       int64                   `json:"balance_upokt"`
	LastUpdatedHeight  int64                   `json:"last_updated_height"`
}

// Apply returns a copy of k with u applied, mirroring what the store persists.
func (u KeyUpdate) Apply(k Key) Key {
	out := k
	if u.State != nil {
		out.State = *u.State
	}
	if u.OwnerAddress != nil {
		out.OwnerAddress = *u.OwnerAddress
	}
	if u.StakeOwner != nil {
		out.StakeOwner = *u.StakeOwner
	}
	if u.StakeAmountUpokt != nil {
		out.StakeAmountUpokt = *u.StakeAmountUpokt
	}
	if u.Services != nil {
		out.Services = *u.Services
	}
	if u.RemediationHistory != nil {
		out.RemediationHistory = u.RemediationHistory.Clone()
	}
	out.BalanceUpokt = u.BalanceUpokt
	out.LastUpdatedHeight = u.LastUpdatedHeight
	return out
}

// KeyWithGroup is a key joined with its address group; the group may be missing.
type KeyWithGroup struct {
	Key
	AddressGroup *AddressGroup `json:"address_group,omitempty"`
}

// KeyRef is the light projection used to page through keys.
type KeyRef struct {
	ID      int64  `json:"id"`
	Address string `json:"address"`
}

type KeysMinMax struct {
	Total int64 `json:"total"`
	MinID int64 `json:"min_id"`
	MaxID int64 `json:"max_id"`
}

// Delivery is the metadata stamped on keys handed to a requesting party.
type Delivery struct {
	OwnerAddress       string    `json:"owner_address"`
	DelegatorAddress   string    `json:"delegator_address"`
	RevSharePercentage int       `json:"rev_share_percentage"`
	RequestingParty    string    `json:"requesting_party"`
	At                 time.Time `json:"at"`
}
